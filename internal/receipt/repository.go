package receipt

import (
	"context"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/receipt/dto"
)

type Repository interface {
	// Create persists the receipt header and its line items and refreshes the
	// linked order's actual total, all in one transaction.
	Create(ctx context.Context, receipt *model.Receipt) error
	// Update persists header columns; when replaceLines is set the attached
	// line items replace the stored rows. prevOrderID names the order the
	// receipt pointed at before a re-link so both orders' actual totals get
	// refreshed.
	Update(ctx context.Context, receipt *model.Receipt, replaceLines bool, prevOrderID *string) error
	// Delete removes the receipt and cascades its lines, then refreshes the
	// formerly linked order's actual total.
	Delete(ctx context.Context, receipt *model.Receipt) error
	// FindByID loads the receipt with its lines. Nil when absent.
	FindByID(ctx context.Context, id string) (*model.Receipt, error)
	FindAll(ctx context.Context, filters *dto.ReceiptFilters) ([]model.Receipt, int, error)
	// PendingVerification lists receipts awaiting manual verification, oldest
	// first. Empty propertyID means every property.
	PendingVerification(ctx context.Context, propertyID string) ([]model.Receipt, error)

	// SaveLine persists the line together with the receipt's header amounts
	// and refreshes the linked order's actual total, in one transaction.
	SaveLine(ctx context.Context, receipt *model.Receipt, line *model.ReceiptLineItem) error
	// DeleteLine removes the line and persists the receipt's adjusted header
	// amounts, refreshing the linked order's actual total.
	DeleteLine(ctx context.Context, receipt *model.Receipt, lineID string) error

	// AliasesForMatching returns the active aliases applicable to a property,
	// supplier-specific rows before global ones, higher match counts first.
	AliasesForMatching(ctx context.Context, propertyID string, supplierID *string) ([]model.ReceiptCodeAlias, error)
	// UpsertAlias records one successful code-to-item match. The argument is
	// the prototype for a first sighting; when an active row for the same
	// code and supplier already exists it is re-pointed at the prototype's
	// item with matchCount incremented and lastSeen touched. Returns the row
	// that won.
	UpsertAlias(ctx context.Context, alias *model.ReceiptCodeAlias) (*model.ReceiptCodeAlias, error)
	ListAliases(ctx context.Context, propertyID string) ([]dto.AliasView, error)
	FindAliasByID(ctx context.Context, id string) (*model.ReceiptCodeAlias, error)
	DeactivateAlias(ctx context.Context, id string) error

	// Dashboard aggregates the purchasing finance numbers as of now,
	// optionally narrowed to one property.
	Dashboard(ctx context.Context, propertyID string, now time.Time) (*dto.FinancialDashboard, error)
}
