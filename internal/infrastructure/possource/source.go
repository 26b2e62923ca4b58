package possource

import (
	"context"
	"fmt"
	"log"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

// SnapshotTransport is one way of reaching the Market database. Transports
// are interchangeable; the source probes them in order.
type SnapshotTransport interface {
	Name() string
	QueryStock(ctx context.Context) ([]domain.StockRow, error)
	Ping(ctx context.Context) error
}

// FallbackSource implements domain.SnapshotSource over an ordered list of
// transports: first one that answers wins, the rest are never tried.
type FallbackSource struct {
	transports []SnapshotTransport
}

func NewFallbackSource(transports ...SnapshotTransport) *FallbackSource {
	return &FallbackSource{transports: transports}
}

func (s *FallbackSource) FetchSnapshot(ctx context.Context) ([]domain.StockRow, error) {
	var lastErr error
	for _, t := range s.transports {
		rows, err := t.QueryStock(ctx)
		if err != nil {
			log.Printf("Snapshot: transport %s failed: %v", t.Name(), err)
			lastErr = err
			continue
		}
		return rows, nil
	}
	if lastErr == nil {
		return nil, fmt.Errorf("no snapshot transports configured")
	}
	return nil, fmt.Errorf("all snapshot transports failed: %w", lastErr)
}

func (s *FallbackSource) TestConnection(ctx context.Context) error {
	var lastErr error
	for _, t := range s.transports {
		if err := t.Ping(ctx); err != nil {
			log.Printf("Snapshot: ping via %s failed: %v", t.Name(), err)
			lastErr = err
			continue
		}
		log.Printf("Snapshot: Market DB reachable via %s", t.Name())
		return nil
	}
	if lastErr == nil {
		return fmt.Errorf("no snapshot transports configured")
	}
	return fmt.Errorf("market db unreachable: %w", lastErr)
}

// stockRowFromColumns maps one result row onto a StockRow, tolerating both
// the aliased column names and the raw Pieces ones.
func stockRowFromColumns(cols map[string]string) domain.StockRow {
	row := domain.StockRow{
		PosProductID: firstOf(cols, "pos_product_id", "Pno"),
		ProductName:  firstOf(cols, "product_name", "PName"),
	}
	if row.ProductName == "" {
		row.ProductName = "Unknown"
	}
	row.StockQuantity = atoiOrZero(firstOf(cols, "stock_quantity", "Qnt"))
	return row
}

func firstOf(cols map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := cols[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
