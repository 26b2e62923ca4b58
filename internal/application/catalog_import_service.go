package application

import (
	"context"
	"log"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

// CatalogLister is the read side of the Presto API needed by the import.
type CatalogLister interface {
	ListItems(ctx context.Context) ([]*domain.PrestoItem, error)
}

// CatalogImportService refreshes the local presto_items cache from the
// remote catalog so the dashboard can build mappings against it.
type CatalogImportService struct {
	catalog  CatalogLister
	itemRepo domain.PrestoItemRepository
}

func NewCatalogImportService(
	catalog CatalogLister,
	itemRepo domain.PrestoItemRepository,
) *CatalogImportService {
	return &CatalogImportService{
		catalog:  catalog,
		itemRepo: itemRepo,
	}
}

func (s *CatalogImportService) ImportOnce(ctx context.Context) (int, error) {
	items, err := s.catalog.ListItems(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.itemRepo.UpsertMany(ctx, items); err != nil {
		return 0, err
	}

	log.Printf("Catalog import: synced %d items to database", len(items))
	return len(items), nil
}
