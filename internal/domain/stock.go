package domain

import (
	"time"
)

// StockRow es una fila del snapshot del POS; se construye fresca en cada ciclo.
type StockRow struct {
	PosProductID  string
	ProductName   string
	StockQuantity int
}

// IsAvailable derives availability from the raw quantity.
func (r StockRow) IsAvailable() bool {
	return r.StockQuantity > 0
}

// StockState is the last observed availability for one POS product.
// Written only by the change detector, never deleted.
type StockState struct {
	PosProductID  string
	IsAvailable   bool
	StockQuantity int
	UpdatedAtUtc  time.Time
}

func NewStockState(posProductID string, isAvailable bool, quantity int) *StockState {
	return &StockState{
		PosProductID:  posProductID,
		IsAvailable:   isAvailable,
		StockQuantity: quantity,
		UpdatedAtUtc:  time.Now().UTC(),
	}
}

// Changed reports whether the observed availability differs from the stored one.
func (s *StockState) Changed(isAvailable bool) bool {
	return s.IsAvailable != isAvailable
}

type SyncAction string

const (
	ActionEnable  SyncAction = "enable"
	ActionDisable SyncAction = "disable"
)

// ActionFor maps an availability flag onto the Presto-side action.
func ActionFor(isAvailable bool) SyncAction {
	if isAvailable {
		return ActionEnable
	}
	return ActionDisable
}

// Transition is one detected availability change, ready to push.
// Derived per (pos product, vendor ref) pair: a product mapped to several
// Presto items broadcasts the same change to each of them.
type Transition struct {
	PosProductID  string
	ProductName   string
	VendorRef     string
	StockQuantity int
	IsAvailable   bool
	Action        SyncAction
}
