package db

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

type PgProductMappingRepository struct {
	db *sql.DB
}

func NewPgProductMappingRepository(db *sql.DB) *PgProductMappingRepository {
	return &PgProductMappingRepository{db: db}
}

// AllVendorRefs joins mappings against the cached catalog. The push reference
// is vendor_reference_id when set, otherwise the raw presto_id.
func (r *PgProductMappingRepository) AllVendorRefs(
	ctx context.Context,
) (map[string][]string, error) {
	query := `
        select m.pos_product_id, i.vendor_reference_id, i.presto_id
        from product_mappings m
        join presto_items i on i.id = m.presto_item_id
        order by m.pos_product_id, m.created_at_utc
    `
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var posID string
		var vendorRef sql.NullString
		var prestoID int64
		if err := rows.Scan(&posID, &vendorRef, &prestoID); err != nil {
			return nil, err
		}
		ref := strconv.FormatInt(prestoID, 10)
		if vendorRef.Valid && vendorRef.String != "" {
			ref = vendorRef.String
		}
		result[posID] = append(result[posID], ref)
	}
	return result, rows.Err()
}

func (r *PgProductMappingRepository) List(
	ctx context.Context,
) ([]*domain.ProductMapping, error) {
	query := `
        select id, pos_product_id, presto_item_id, created_at_utc
        from product_mappings
        order by created_at_utc desc
    `
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.ProductMapping
	for rows.Next() {
		var m domain.ProductMapping
		if err := rows.Scan(
			&m.ID,
			&m.PosProductID,
			&m.PrestoItemID,
			&m.CreatedAtUtc,
		); err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	return result, rows.Err()
}

func (r *PgProductMappingRepository) Insert(
	ctx context.Context,
	m *domain.ProductMapping,
) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAtUtc.IsZero() {
		m.CreatedAtUtc = time.Now().UTC()
	}

	// (pos_product_id, presto_item_id) lleva unique constraint en la tabla
	query := `
        insert into product_mappings (id, pos_product_id, presto_item_id, created_at_utc)
        values ($1,$2,$3,$4)
    `
	_, err := r.db.ExecContext(
		ctx, query,
		m.ID,
		m.PosProductID,
		m.PrestoItemID,
		m.CreatedAtUtc,
	)
	return err
}

func (r *PgProductMappingRepository) Delete(
	ctx context.Context,
	id uuid.UUID,
) error {
	query := `delete from product_mappings where id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
