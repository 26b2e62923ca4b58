package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

type PgPrestoItemRepository struct {
	db *sql.DB
}

func NewPgPrestoItemRepository(db *sql.DB) *PgPrestoItemRepository {
	return &PgPrestoItemRepository{db: db}
}

const prestoItemColumns = `
    id, presto_id, vendor_reference_id, name_ar, name_en,
    price, stock, sku, barcode, is_active, is_available, image_url, cached_at_utc
`

func (r *PgPrestoItemRepository) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*domain.PrestoItem, error) {
	query := `select ` + prestoItemColumns + ` from presto_items where id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	item, err := scanPrestoItem(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

func (r *PgPrestoItemRepository) List(
	ctx context.Context,
) ([]*domain.PrestoItem, error) {
	query := `select ` + prestoItemColumns + ` from presto_items order by presto_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.PrestoItem
	for rows.Next() {
		item, err := scanPrestoItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// UpsertMany refreshes the catalog cache, keyed by the remote presto_id.
func (r *PgPrestoItemRepository) UpsertMany(
	ctx context.Context,
	items []*domain.PrestoItem,
) error {
	if len(items) == 0 {
		return nil
	}

	query := `
        insert into presto_items
        (id, presto_id, vendor_reference_id, name_ar, name_en,
         price, stock, sku, barcode, is_active, is_available, image_url, cached_at_utc)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        on conflict (presto_id) do update
        set vendor_reference_id = excluded.vendor_reference_id,
            name_ar = excluded.name_ar,
            name_en = excluded.name_en,
            price = excluded.price,
            stock = excluded.stock,
            sku = excluded.sku,
            barcode = excluded.barcode,
            is_active = excluded.is_active,
            is_available = excluded.is_available,
            image_url = excluded.image_url,
            cached_at_utc = excluded.cached_at_utc
    `
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.CachedAtUtc.IsZero() {
			item.CachedAtUtc = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(
			ctx,
			item.ID,
			item.PrestoID,
			item.VendorRef,
			item.NameAr,
			item.NameEn,
			item.Price,
			item.Stock,
			item.Sku,
			item.Barcode,
			item.IsActive,
			item.IsAvailable,
			item.ImageURL,
			item.CachedAtUtc,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func scanPrestoItem(scan func(dest ...any) error) (*domain.PrestoItem, error) {
	var item domain.PrestoItem
	var vendorRef, nameAr, nameEn, sku, barcode, imageURL sql.NullString
	if err := scan(
		&item.ID,
		&item.PrestoID,
		&vendorRef,
		&nameAr,
		&nameEn,
		&item.Price,
		&item.Stock,
		&sku,
		&barcode,
		&item.IsActive,
		&item.IsAvailable,
		&imageURL,
		&item.CachedAtUtc,
	); err != nil {
		return nil, err
	}
	item.VendorRef = nullableString(vendorRef)
	item.NameAr = nullableString(nameAr)
	item.NameEn = nullableString(nameEn)
	item.Sku = nullableString(sku)
	item.Barcode = nullableString(barcode)
	item.ImageURL = nullableString(imageURL)
	return &item, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
