package application

import (
	"context"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

// ChangeDetector compares a fresh POS snapshot against the last observed
// availability and emits the transitions worth pushing. Quantity-only
// moves with unchanged availability are not transitions: Presto cares
// whether an item can be sold, not about the exact count.
type ChangeDetector struct {
	stateRepo domain.StockStateRepository
}

func NewChangeDetector(stateRepo domain.StockStateRepository) *ChangeDetector {
	return &ChangeDetector{stateRepo: stateRepo}
}

// Detect walks the snapshot in order. Unmapped products are skipped
// silently. A product mapped to several Presto items broadcasts one
// transition per vendor ref, all carrying the same availability.
//
// The new state is committed per product as soon as its transitions are
// emitted, before any push happens: a crash between detect and push must
// not re-emit the same transition on the next cycle.
func (d *ChangeDetector) Detect(
	ctx context.Context,
	snapshot []domain.StockRow,
	mappings map[string][]string,
) ([]domain.Transition, error) {
	states, err := d.stateRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var transitions []domain.Transition
	for _, row := range snapshot {
		refs := mappings[row.PosProductID]
		if len(refs) == 0 {
			continue // not mapped
		}

		isAvailable := row.IsAvailable()
		if prev, ok := states[row.PosProductID]; ok && !prev.Changed(isAvailable) {
			continue
		}

		action := domain.ActionFor(isAvailable)
		for _, ref := range refs {
			transitions = append(transitions, domain.Transition{
				PosProductID:  row.PosProductID,
				ProductName:   row.ProductName,
				VendorRef:     ref,
				StockQuantity: row.StockQuantity,
				IsAvailable:   isAvailable,
				Action:        action,
			})
		}

		state := domain.NewStockState(row.PosProductID, isAvailable, row.StockQuantity)
		if err := d.stateRepo.Upsert(ctx, state); err != nil {
			return nil, err
		}
	}

	return transitions, nil
}
