package order

import (
	"context"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/order/dto"
)

type UseCase interface {
	CreateOrder(ctx context.Context, actor model.Actor, input *dto.CreateOrderInput) (*dto.OrderView, error)
	AutoGenerateOrder(ctx context.Context, actor model.Actor, input *dto.AutoGenerateInput) (*dto.OrderView, error)
	GetOrder(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error)
	ListOrders(ctx context.Context, actor model.Actor, filters *dto.OrderFilters) (*dto.OrderList, error)
	PendingReview(ctx context.Context, actor model.Actor, skip, limit int) (*dto.OrderList, error)
	ReadyToOrder(ctx context.Context, actor model.Actor, skip, limit int) (*dto.OrderList, error)
	MyOrders(ctx context.Context, actor model.Actor, skip, limit int) (*dto.OrderList, error)
	UpdateOrder(ctx context.Context, actor model.Actor, input *dto.UpdateOrderInput) (*dto.OrderView, error)
	DeleteOrder(ctx context.Context, actor model.Actor, id string) error

	AddOrderItem(ctx context.Context, actor model.Actor, orderID string, input *dto.OrderItemInput) (*dto.OrderView, error)
	UpdateOrderItem(ctx context.Context, actor model.Actor, input *dto.UpdateOrderItemInput) (*dto.OrderView, error)
	RemoveOrderItem(ctx context.Context, actor model.Actor, orderID, itemID string) (*dto.OrderView, error)

	SubmitOrder(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error)
	ReviewOrder(ctx context.Context, actor model.Actor, id string, input *dto.ReviewInput) (*dto.OrderView, error)
	ResubmitOrder(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error)
	MarkOrdered(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error)
	UnmarkOrdered(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error)
	WithdrawOrder(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error)

	ReceiveItems(ctx context.Context, actor model.Actor, orderID string, input *dto.ReceiveInput) (*dto.OrderView, error)

	Shortages(ctx context.Context, actor model.Actor, propertyID string) (*dto.ShortageList, error)
	DismissShortages(ctx context.Context, actor model.Actor, input *dto.DismissShortagesInput) (int64, error)
	FlaggedItems(ctx context.Context, actor model.Actor, propertyID string) (*dto.FlaggedItemsList, error)
	SupplierPurchaseList(ctx context.Context, actor model.Actor, orderIDs []string, weekOf *time.Time) (*dto.SupplierPurchaseList, error)
	SummaryByProperty(ctx context.Context, actor model.Actor) ([]dto.PropertySummary, error)

	SeedHistoricalOrder(ctx context.Context, actor model.Actor, input *dto.SeedOrderInput) (*dto.SeedResult, error)
}
