package inventory

import (
	"context"
	"time"

	"github.com/campops/procurement-service/internal/inventory/dto"
	"github.com/campops/procurement-service/internal/model"
)

type Repository interface {
	// Catalog items
	Create(ctx context.Context, item *model.InventoryItem) error
	Update(ctx context.Context, item *model.InventoryItem) error
	FindByID(ctx context.Context, id string) (*model.InventoryItem, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.InventoryItem, error)
	FindAll(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, int, error)
	// ActiveByProperty returns the full active catalog of one property, the
	// candidate set for fuzzy matching and order auto-generation.
	ActiveByProperty(ctx context.Context, propertyID string) ([]model.InventoryItem, error)
	ListCategories(ctx context.Context, propertyID string) ([]string, error)
	SearchByName(ctx context.Context, propertyID, query string, limit int) ([]model.InventoryItem, error)

	// Counting sessions
	CreateCount(ctx context.Context, count *model.InventoryCount) error
	FindCountByID(ctx context.Context, id string) (*model.InventoryCount, error)
	ListCounts(ctx context.Context, propertyID string, skip, limit int) ([]model.InventoryCount, error)

	// Transaction support: marks the count finalized, sets each moved item's
	// stock to the movement's quantity_after, and appends the audit rows, all
	// in one transaction.
	FinalizeCountWithStock(ctx context.Context, countID string, finalizedAt time.Time, movements []model.StockMovement) error
}
