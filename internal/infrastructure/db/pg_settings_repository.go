package db

import (
	"context"
	"database/sql"
	"errors"
)

// PgSettingsRepository is a plain key/value table. It holds the Presto
// token and anything else the operator tunes from the dashboard.
type PgSettingsRepository struct {
	db *sql.DB
}

func NewPgSettingsRepository(db *sql.DB) *PgSettingsRepository {
	return &PgSettingsRepository{db: db}
}

// Get returns "" for keys that were never set.
func (r *PgSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	query := `select value from settings where key = $1`
	var value string
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *PgSettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
        insert into settings (key, value)
        values ($1,$2)
        on conflict (key) do update
        set value = excluded.value
    `
	_, err := r.db.ExecContext(ctx, query, key, value)
	return err
}
