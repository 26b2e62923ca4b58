package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// PrestoItem is the local cache of one item from the Presto catalog,
// refreshed by the catalog import.
type PrestoItem struct {
	ID          uuid.UUID
	PrestoID    int64
	VendorRef   *string
	NameAr      *string
	NameEn      *string
	Price       float64
	Stock       int
	Sku         *string
	Barcode     *string
	IsActive    bool
	IsAvailable bool
	ImageURL    *string
	CachedAtUtc time.Time
}

// Name prefers the English name, then Arabic, like the dashboard does.
func (p *PrestoItem) Name() string {
	if p.NameEn != nil && *p.NameEn != "" {
		return *p.NameEn
	}
	if p.NameAr != nil && *p.NameAr != "" {
		return *p.NameAr
	}
	return "Unnamed Product"
}

// PushRef is the reference the availability endpoint expects: the vendor
// reference id when present, otherwise the numeric Presto id.
func (p *PrestoItem) PushRef() string {
	if p.VendorRef != nil && *p.VendorRef != "" {
		return *p.VendorRef
	}
	return strconv.FormatInt(p.PrestoID, 10)
}

// ProductMapping links one POS product to one Presto item. The pair is
// unique; the POS id alone is not (several mappings may share it).
type ProductMapping struct {
	ID           uuid.UUID
	PosProductID string
	PrestoItemID uuid.UUID
	CreatedAtUtc time.Time
}

func NewProductMapping(posProductID string, prestoItemID uuid.UUID) *ProductMapping {
	return &ProductMapping{
		ID:           uuid.New(),
		PosProductID: posProductID,
		PrestoItemID: prestoItemID,
		CreatedAtUtc: time.Now().UTC(),
	}
}
