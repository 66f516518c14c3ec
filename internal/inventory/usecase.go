package inventory

import (
	"context"

	"github.com/campops/procurement-service/internal/inventory/dto"
	"github.com/campops/procurement-service/internal/model"
)

type UseCase interface {
	CreateItem(ctx context.Context, input *dto.CreateItemInput) (*model.InventoryItem, error)
	UpdateItem(ctx context.Context, input *dto.UpdateItemInput) (*model.InventoryItem, error)
	GetItem(ctx context.Context, id string) (*dto.ItemWithStatus, error)
	ListItems(ctx context.Context, filters *dto.ItemFilters) ([]dto.ItemWithStatus, int, error)
	DeactivateItem(ctx context.Context, id string) error
	ListCategories(ctx context.Context, propertyID string) ([]string, error)

	MatchItem(ctx context.Context, input *dto.MatchInput) (*dto.MatchResult, error)
	SearchItems(ctx context.Context, propertyID, query string, limit int) ([]model.InventoryItem, error)

	CreateCount(ctx context.Context, actor model.Actor, input *dto.CreateCountInput) (*dto.CountView, error)
	FinalizeCount(ctx context.Context, actor model.Actor, countID string) (*dto.CountView, error)
	GetCount(ctx context.Context, countID string) (*dto.CountView, error)
	ListCounts(ctx context.Context, propertyID string, skip, limit int) ([]dto.CountView, error)

	PrintableList(ctx context.Context, propertyID string) (*dto.PrintableList, error)
}
