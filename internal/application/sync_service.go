package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

// ErrCycleInProgress is returned when a cycle is requested while the
// previous one has not finished; the caller should just skip the tick.
var ErrCycleInProgress = errors.New("sync cycle already in progress")

// SyncService runs one full poll cycle: fetch snapshot, detect
// transitions, audit them, push the batch, resolve the audit rows.
type SyncService struct {
	source      domain.SnapshotSource
	mappingRepo domain.ProductMappingRepository
	detector    *ChangeDetector
	pusher      domain.CatalogPusher
	eventRepo   domain.SyncEventRepository
	outbox      OutboxWriter

	mu sync.Mutex // single-flight: cycles never overlap
}

func NewSyncService(
	source domain.SnapshotSource,
	mappingRepo domain.ProductMappingRepository,
	detector *ChangeDetector,
	pusher domain.CatalogPusher,
	eventRepo domain.SyncEventRepository,
	outbox OutboxWriter,
) *SyncService {
	return &SyncService{
		source:      source,
		mappingRepo: mappingRepo,
		detector:    detector,
		pusher:      pusher,
		eventRepo:   eventRepo,
		outbox:      outbox,
	}
}

// CheckPreconditions verifies Presto auth and POS reachability. Run once
// before entering the loop; a failure here aborts the whole run.
func (s *SyncService) CheckPreconditions(ctx context.Context) error {
	if !s.pusher.IsAuthenticated() {
		return errors.New("presto token missing or expired, run auth first")
	}
	if err := s.source.TestConnection(ctx); err != nil {
		return fmt.Errorf("market db: %w", err)
	}
	return nil
}

// RunOnce executes a single cycle. Any failure aborts the cycle and is
// reported to the caller; the next scheduled cycle proceeds independently.
func (s *SyncService) RunOnce(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrCycleInProgress
	}
	defer s.mu.Unlock()

	snapshot, err := s.source.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	log.Printf("Sync: found %d products in Market DB", len(snapshot))

	mappings, err := s.mappingRepo.AllVendorRefs(ctx)
	if err != nil {
		return fmt.Errorf("load mappings: %w", err)
	}

	transitions, err := s.detector.Detect(ctx, snapshot, mappings)
	if err != nil {
		return fmt.Errorf("detect changes: %w", err)
	}
	if len(transitions) == 0 {
		log.Printf("Sync: no changes detected")
		return nil
	}
	log.Printf("Sync: detected %d transitions", len(transitions))

	// Audit rows go in pending before anything hits the network.
	eventIDs := make([]uuid.UUID, 0, len(transitions))
	for _, t := range transitions {
		ev := domain.NewSyncEvent(t)
		if err := s.eventRepo.Insert(ctx, ev); err != nil {
			return fmt.Errorf("record sync event: %w", err)
		}
		eventIDs = append(eventIDs, ev.ID)
		log.Printf("Sync:   -> %s %s (stock: %d)", t.Action, t.ProductName, t.StockQuantity)
	}

	if err := s.pusher.UpdateItemAvailability(ctx, transitions); err != nil {
		// one bulk request, one outcome: the whole batch fails together
		msg := err.Error()
		if markErr := s.eventRepo.MarkBatch(ctx, eventIDs, domain.SyncFailed, &msg); markErr != nil {
			log.Printf("Sync: failed to mark events failed: %v", markErr)
		}
		return fmt.Errorf("push availability: %w", err)
	}

	if err := s.eventRepo.MarkBatch(ctx, eventIDs, domain.SyncSuccess, nil); err != nil {
		log.Printf("Sync: failed to mark events success: %v", err)
	}

	s.enqueueIntegrationEvents(ctx, transitions)

	log.Printf("Sync: successfully updated %d items in Presto", len(transitions))
	return nil
}

// enqueueIntegrationEvents writes one StockAvailabilityChanged per POS
// product into the outbox. Best effort: the sync already succeeded.
func (s *SyncService) enqueueIntegrationEvents(ctx context.Context, transitions []domain.Transition) {
	if s.outbox == nil {
		return
	}

	type group struct {
		first domain.Transition
		refs  []string
	}
	order := make([]string, 0, len(transitions))
	groups := make(map[string]*group)
	for _, t := range transitions {
		g, ok := groups[t.PosProductID]
		if !ok {
			g = &group{first: t}
			groups[t.PosProductID] = g
			order = append(order, t.PosProductID)
		}
		g.refs = append(g.refs, t.VendorRef)
	}

	for _, posID := range order {
		g := groups[posID]
		ev := domain.NewStockAvailabilityChangedEvent(
			g.first.PosProductID,
			g.first.ProductName,
			g.refs,
			g.first.Action,
			g.first.StockQuantity,
		)
		if err := s.outbox.Enqueue(ctx, ev); err != nil {
			log.Printf("Sync: failed to enqueue integration event for %s: %v", posID, err)
		}
	}
}
