package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

type PgSyncEventRepository struct {
	db *sql.DB
}

func NewPgSyncEventRepository(db *sql.DB) *PgSyncEventRepository {
	return &PgSyncEventRepository{db: db}
}

func (r *PgSyncEventRepository) Insert(
	ctx context.Context,
	ev *domain.SyncEvent,
) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAtUtc.IsZero() {
		ev.CreatedAtUtc = time.Now().UTC()
	}

	query := `
        insert into sync_events
        (id, pos_product_id, product_name, action, status, error_message, stock_quantity, created_at_utc)
        values ($1,$2,$3,$4,$5,$6,$7,$8)
    `
	_, err := r.db.ExecContext(
		ctx, query,
		ev.ID,
		ev.PosProductID,
		ev.ProductName,
		string(ev.Action),
		string(ev.Status),
		ev.ErrorMessage,
		ev.StockQuantity,
		ev.CreatedAtUtc,
	)
	return err
}

// MarkBatch resolves every event of one push batch to the same outcome.
// Rows already resolved are left alone; retries never rewrite history.
func (r *PgSyncEventRepository) MarkBatch(
	ctx context.Context,
	ids []uuid.UUID,
	status domain.SyncEventStatus,
	errorMessage *string,
) error {
	if len(ids) == 0 {
		return nil
	}

	var msg sql.NullString
	if errorMessage != nil {
		msg.String = *errorMessage
		msg.Valid = true
	}

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}

	query := `
        update sync_events
        set status = $2,
            error_message = $3
        where id = any($1::uuid[])
          and status = 'pending'
    `
	_, err := r.db.ExecContext(ctx, query, idStrs, string(status), msg)
	return err
}

func (r *PgSyncEventRepository) ListRecent(
	ctx context.Context,
	limit int,
) ([]*domain.SyncEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
        select id, pos_product_id, product_name, action, status, error_message, stock_quantity, created_at_utc
        from sync_events
        order by created_at_utc desc
        limit $1
    `
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.SyncEvent
	for rows.Next() {
		var ev domain.SyncEvent
		var action, status string
		var msg sql.NullString
		if err := rows.Scan(
			&ev.ID,
			&ev.PosProductID,
			&ev.ProductName,
			&action,
			&status,
			&msg,
			&ev.StockQuantity,
			&ev.CreatedAtUtc,
		); err != nil {
			return nil, err
		}
		ev.Action = domain.SyncAction(action)
		ev.Status = domain.SyncEventStatus(status)
		if msg.Valid {
			m := msg.String
			ev.ErrorMessage = &m
		}
		result = append(result, &ev)
	}
	return result, rows.Err()
}
