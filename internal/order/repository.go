package order

import (
	"context"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/order/dto"
)

type Repository interface {
	// Create persists the order header and its items in one transaction.
	Create(ctx context.Context, order *model.Order) error
	// Update persists header columns only; attached items are ignored.
	Update(ctx context.Context, order *model.Order) error
	// UpdateWithItems persists the header and every attached item in one
	// transaction, for operations that touch both (review, resubmit).
	UpdateWithItems(ctx context.Context, order *model.Order) error
	// Delete hard-deletes the order and cascades its items. Only legal for
	// drafts; the usecase guards that.
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindAll(ctx context.Context, filters *dto.OrderFilters) ([]model.Order, int, error)
	// NumberSequence reports how many orders already carry the base number or
	// a "-N" suffix of it, for same-day collision numbering.
	NumberSequence(ctx context.Context, base string) (int, error)

	// AddItem inserts the item and persists the order header (totals) in one
	// transaction; RemoveItem is the deleting counterpart.
	AddItem(ctx context.Context, order *model.Order, item *model.OrderItem) error
	RemoveItem(ctx context.Context, order *model.Order, itemID string) error
	FindItemsByIDs(ctx context.Context, ids []string) ([]model.OrderItem, error)

	// SaveReceivingProgress persists receiving fields on the given items
	// without touching order status or stock.
	SaveReceivingProgress(ctx context.Context, items []model.OrderItem) error
	// FinalizeReceiving persists every attached item's receiving fields, the
	// order's status and stamps, and the stock deltas with their audit rows,
	// all in one transaction. Stock updates are relative (+= delta) so
	// concurrent receiving against other orders can never clobber a read.
	FinalizeReceiving(ctx context.Context, order *model.Order, movements []model.StockMovement) error

	// ShortageRows returns undismissed short lines of received and partially
	// received orders, joined with their display context.
	ShortageRows(ctx context.Context, propertyID string) ([]dto.ShortageRow, error)
	// DismissShortages flips shortage_dismissed on the given items. Already
	// dismissed rows are skipped; returns the newly dismissed count.
	DismissShortages(ctx context.Context, ids []string) (int64, error)

	FlaggedItems(ctx context.Context, propertyID string) ([]dto.FlaggedItemView, error)
	SummaryByProperty(ctx context.Context) ([]dto.PropertySummary, error)
	// PurchaseOrders loads approved and ordered orders with items, optionally
	// narrowed to specific ids or one week.
	PurchaseOrders(ctx context.Context, orderIDs []string, weekOf *time.Time) ([]model.Order, error)
}
