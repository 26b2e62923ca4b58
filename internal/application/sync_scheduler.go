package application

import (
	"context"
	"errors"
	"log"
	"time"
)

// SyncScheduler drives the poll loop in continuous mode. Ticks that land
// while a cycle is still running are skipped, never queued.
type SyncScheduler struct {
	service  *SyncService
	interval time.Duration
}

func NewSyncScheduler(service *SyncService, intervalSec int) *SyncScheduler {
	return &SyncScheduler{
		service:  service,
		interval: time.Duration(intervalSec) * time.Second,
	}
}

func (s *SyncScheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		log.Printf("Sync scheduler: polling every %s", s.interval)
		for {
			select {
			case <-ctx.Done():
				log.Printf("Sync scheduler stopped")
				return
			case <-ticker.C:
				if err := s.service.RunOnce(ctx); err != nil {
					if errors.Is(err, ErrCycleInProgress) {
						log.Printf("Sync scheduler: previous cycle still running, skipping tick")
						continue
					}
					log.Printf("Sync scheduler: cycle failed: %v", err)
				}
			}
		}
	}()
}
