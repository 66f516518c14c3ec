// Package receipt reconciles extracted proof-of-purchase documents against
// orders and the inventory catalog: line matching via learned code aliases,
// price writeback, and actual-spend tracking.
package receipt

import (
	"context"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/receipt/dto"
)

type UseCase interface {
	// Reconcile ingests one finished extraction result: creates the receipt
	// with its lines, resolves the supplier, matches lines through extractor
	// hints and the alias cache, applies the data-quality checks, and
	// refreshes the linked order's actual total.
	Reconcile(ctx context.Context, actor model.Actor, input *dto.ExtractionInput) (*dto.ReconcileResult, error)
	// Create records a receipt header without extraction data.
	Create(ctx context.Context, actor model.Actor, input *dto.CreateReceiptInput) (*dto.ReceiptView, error)
	Get(ctx context.Context, actor model.Actor, id string) (*dto.ReceiptView, error)
	List(ctx context.Context, actor model.Actor, filters *dto.ReceiptFilters) (*dto.ReceiptList, error)
	PendingVerification(ctx context.Context, actor model.Actor) ([]dto.ReceiptView, error)
	Update(ctx context.Context, actor model.Actor, input *dto.UpdateReceiptInput) (*dto.ReceiptView, error)
	// Verify marks the receipt manually checked and reapplies the price
	// writeback from its matched lines.
	Verify(ctx context.Context, actor model.Actor, id string) (*dto.ReceiptView, error)
	Delete(ctx context.Context, actor model.Actor, id string) error

	// MatchLine links a line to an order item or directly to an inventory
	// item, writes the line's price back to the catalog, and trains the
	// alias cache.
	MatchLine(ctx context.Context, actor model.Actor, input *dto.MatchLineInput) (*dto.ReceiptView, error)
	UpdateLine(ctx context.Context, actor model.Actor, input *dto.UpdateLineInput) (*dto.ReceiptView, error)
	DeleteLine(ctx context.Context, actor model.Actor, receiptID, lineID string) (*dto.ReceiptView, error)
	// AddToInventory promotes an unmatched receipt item into a new catalog
	// item with zero stock.
	AddToInventory(ctx context.Context, actor model.Actor, input *dto.AddToInventoryInput) (*model.InventoryItem, error)

	ListAliases(ctx context.Context, actor model.Actor, propertyID string) ([]dto.AliasView, error)
	DeactivateAlias(ctx context.Context, actor model.Actor, id string) error

	Dashboard(ctx context.Context, actor model.Actor, propertyID string) (*dto.FinancialDashboard, error)
}
