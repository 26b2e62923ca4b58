package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

type PgStockStateRepository struct {
	db *sql.DB
}

func NewPgStockStateRepository(db *sql.DB) *PgStockStateRepository {
	return &PgStockStateRepository{db: db}
}

func (r *PgStockStateRepository) GetAll(
	ctx context.Context,
) (map[string]*domain.StockState, error) {
	query := `
        select pos_product_id, is_available, stock_quantity, updated_at_utc
        from stock_states
    `
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*domain.StockState)
	for rows.Next() {
		var st domain.StockState
		if err := rows.Scan(
			&st.PosProductID,
			&st.IsAvailable,
			&st.StockQuantity,
			&st.UpdatedAtUtc,
		); err != nil {
			return nil, err
		}
		result[st.PosProductID] = &st
	}

	// products never seen before are simply absent
	return result, rows.Err()
}

func (r *PgStockStateRepository) Upsert(
	ctx context.Context,
	state *domain.StockState,
) error {
	if state.UpdatedAtUtc.IsZero() {
		state.UpdatedAtUtc = time.Now().UTC()
	}

	query := `
        insert into stock_states (pos_product_id, is_available, stock_quantity, updated_at_utc)
        values ($1,$2,$3,$4)
        on conflict (pos_product_id) do update
        set is_available = excluded.is_available,
            stock_quantity = excluded.stock_quantity,
            updated_at_utc = excluded.updated_at_utc
    `
	_, err := r.db.ExecContext(
		ctx, query,
		state.PosProductID,
		state.IsAvailable,
		state.StockQuantity,
		state.UpdatedAtUtc,
	)
	return err
}
