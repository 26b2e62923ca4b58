package domain

import (
	"context"

	"github.com/google/uuid"
)

// SnapshotSource abstracts the POS database read. A failed fetch aborts
// the whole cycle.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) ([]StockRow, error)
	TestConnection(ctx context.Context) error
}

// CatalogPusher abstracts the Presto availability endpoint. It is pure
// transport: no event-log or state-store side effects.
type CatalogPusher interface {
	IsAuthenticated() bool
	UpdateItemAvailability(ctx context.Context, batch []Transition) error
}

type StockStateRepository interface {
	GetAll(ctx context.Context) (map[string]*StockState, error)
	Upsert(ctx context.Context, state *StockState) error
}

type ProductMappingRepository interface {
	// AllVendorRefs resolves every mapping to the reference the availability
	// endpoint expects, keyed by POS product id.
	AllVendorRefs(ctx context.Context) (map[string][]string, error)
	List(ctx context.Context) ([]*ProductMapping, error)
	Insert(ctx context.Context, m *ProductMapping) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SyncEventRepository interface {
	Insert(ctx context.Context, ev *SyncEvent) error
	// MarkBatch resolves every event of one cycle to the same status.
	MarkBatch(ctx context.Context, ids []uuid.UUID, status SyncEventStatus, errorMessage *string) error
	ListRecent(ctx context.Context, limit int) ([]*SyncEvent, error)
}

type PrestoItemRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*PrestoItem, error)
	UpsertMany(ctx context.Context, items []*PrestoItem) error
	List(ctx context.Context) ([]*PrestoItem, error)
}

type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type OutboxRepository interface {
	Insert(ctx context.Context, msg OutboxMessage) error
	GetPendingBatch(ctx context.Context, maxRetry, batchSize int) ([]OutboxMessage, error)
	Save(ctx context.Context, msg OutboxMessage) error
}

type OutboxMessage struct {
	ID             uuid.UUID
	Type           string
	PayloadJSON    string
	OccurredAtUtc  int64 // unix seconds
	RetryCount     int
	ProcessedAtUtc *int64
}
