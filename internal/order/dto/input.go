package dto

import (
	"strings"
	"time"

	"github.com/campops/procurement-service/internal/model"
)

// OrderItemInput is one requested line. A line either references a catalog
// item or carries a free-text custom name; custom lines get resolved against
// the property's non-recurring items at create time.
type OrderItemInput struct {
	InventoryItemID       *string  `json:"inventory_item_id"`
	CustomItemName        *string  `json:"custom_item_name"`
	CustomItemDescription *string  `json:"custom_item_description"`
	SupplierID            *string  `json:"supplier_id"`
	Flag                  *string  `json:"flag"`
	RequestedQuantity     float64  `json:"requested_quantity" binding:"required"`
	Unit                  *string  `json:"unit"`
	UnitPrice             *float64 `json:"unit_price"`
	CampNotes             *string  `json:"camp_notes"`
}

func (i *OrderItemInput) Validate() error {
	hasCatalog := i.InventoryItemID != nil && *i.InventoryItemID != ""
	hasCustom := i.CustomItemName != nil && strings.TrimSpace(*i.CustomItemName) != ""
	if !hasCatalog && !hasCustom {
		return model.ErrValidation("order item needs an inventory item or a custom name")
	}
	if i.RequestedQuantity <= 0 {
		return model.ErrValidation("requested quantity must be positive")
	}
	if i.Flag != nil && *i.Flag != "" {
		switch model.OrderItemFlag(*i.Flag) {
		case model.FlagLowStock, model.FlagTrendSuggested, model.FlagManual, model.FlagCustom:
		default:
			return model.ErrValidation("unknown item flag %q", *i.Flag)
		}
	}
	return nil
}

// ResolveFlag picks the stored flag: an explicit value wins, otherwise custom
// lines are tagged custom and catalog lines manual.
func (i *OrderItemInput) ResolveFlag() model.OrderItemFlag {
	if i.Flag != nil && *i.Flag != "" {
		return model.OrderItemFlag(*i.Flag)
	}
	if i.InventoryItemID == nil || *i.InventoryItemID == "" {
		return model.FlagCustom
	}
	return model.FlagManual
}

type CreateOrderInput struct {
	PropertyID string           `json:"property_id" binding:"required"`
	WeekOf     *time.Time       `json:"week_of"`
	Notes      *string          `json:"notes"`
	Items      []OrderItemInput `json:"items"`
}

func (i *CreateOrderInput) Validate() error {
	for idx := range i.Items {
		if err := i.Items[idx].Validate(); err != nil {
			return err
		}
	}
	return nil
}

type AutoGenerateInput struct {
	PropertyID string     `json:"property_id" binding:"required"`
	WeekOf     *time.Time `json:"week_of"`
}

// UpdateOrderInput patches order header fields. Status is deliberately not
// here; it only moves through the workflow operations.
type UpdateOrderInput struct {
	ID     string     `json:"-"`
	WeekOf *time.Time `json:"week_of"`
	Notes  *string    `json:"notes"`
}

// UpdateOrderItemInput patches one line; nil means leave unchanged.
type UpdateOrderItemInput struct {
	OrderID string `json:"-"`
	ItemID  string `json:"-"`

	RequestedQuantity     *float64 `json:"requested_quantity"`
	ApprovedQuantity      *float64 `json:"approved_quantity"`
	SupplierID            *string  `json:"supplier_id"`
	Unit                  *string  `json:"unit"`
	UnitPrice             *float64 `json:"unit_price"`
	CustomItemName        *string  `json:"custom_item_name"`
	CustomItemDescription *string  `json:"custom_item_description"`
	CampNotes             *string  `json:"camp_notes"`
	ReviewerNotes         *string  `json:"reviewer_notes"`
}

// ReviewerOnly reports whether the patch touches nothing but the reviewer
// fields, which is what keeps it legal on a submitted order.
func (i *UpdateOrderItemInput) ReviewerOnly() bool {
	return i.RequestedQuantity == nil && i.SupplierID == nil && i.Unit == nil &&
		i.UnitPrice == nil && i.CustomItemName == nil &&
		i.CustomItemDescription == nil && i.CampNotes == nil
}

func (i *UpdateOrderItemInput) Validate() error {
	if i.RequestedQuantity != nil && *i.RequestedQuantity <= 0 {
		return model.ErrValidation("requested quantity must be positive")
	}
	if i.ApprovedQuantity != nil && *i.ApprovedQuantity < 0 {
		return model.ErrValidation("approved quantity cannot be negative")
	}
	if i.CustomItemName != nil && strings.TrimSpace(*i.CustomItemName) == "" {
		return model.ErrValidation("custom item name cannot be empty")
	}
	return nil
}

// Review actions.
const (
	ReviewApprove        = "approve"
	ReviewRequestChanges = "request_changes"
	ReviewReject         = "reject"
)

type ReviewItemOverride struct {
	OrderItemID      string   `json:"order_item_id" binding:"required"`
	ApprovedQuantity *float64 `json:"approved_quantity"`
	ReviewerNotes    *string  `json:"reviewer_notes"`
}

type ReviewInput struct {
	Action        string               `json:"action" binding:"required"`
	ReviewerNotes *string              `json:"reviewer_notes"`
	ItemOverrides []ReviewItemOverride `json:"item_overrides"`
}

func (i *ReviewInput) Validate() error {
	switch i.Action {
	case ReviewApprove, ReviewRequestChanges, ReviewReject:
	default:
		return model.ErrValidation("unknown review action %q", i.Action)
	}
	for _, ov := range i.ItemOverrides {
		if ov.ApprovedQuantity != nil && *ov.ApprovedQuantity < 0 {
			return model.ErrValidation("approved quantity cannot be negative")
		}
	}
	return nil
}

type ReceiveItemInput struct {
	OrderItemID      string  `json:"order_item_id" binding:"required"`
	ReceivedQuantity float64 `json:"received_quantity"`
	HasIssue         bool    `json:"has_issue"`
	IssueDescription *string `json:"issue_description"`
	IssuePhotoURL    *string `json:"issue_photo_url"`
	ReceivingNotes   *string `json:"receiving_notes"`
}

// ReceiveInput records delivery quantities. Finalize false saves progress
// only; true applies stock deltas and settles the order status.
type ReceiveInput struct {
	Items    []ReceiveItemInput `json:"items" binding:"required,min=1"`
	Finalize bool               `json:"finalize"`
}

func (i *ReceiveInput) Validate() error {
	seen := map[string]bool{}
	for _, it := range i.Items {
		if it.ReceivedQuantity < 0 {
			return model.ErrValidation("received quantity cannot be negative")
		}
		if seen[it.OrderItemID] {
			return model.ErrValidation("duplicate order item %s in receiving call", it.OrderItemID)
		}
		seen[it.OrderItemID] = true
	}
	return nil
}

type DismissShortagesInput struct {
	OrderItemIDs []string `json:"order_item_ids" binding:"required,min=1"`
}

// OrderFilters narrows list queries. Zero values mean no filter.
type OrderFilters struct {
	PropertyID string
	Statuses   []model.OrderStatus
	CreatedBy  string
	Skip       int
	Limit      int
}

type SeedItemInput struct {
	ItemName  string   `json:"item_name" binding:"required"`
	Quantity  float64  `json:"quantity"`
	Unit      *string  `json:"unit"`
	UnitPrice *float64 `json:"unit_price"`
	Category  *string  `json:"category"`
}

// SeedOrderInput is an extracted historical order sheet to backfill: matched
// against the property catalog, auto-approved, and marked received.
type SeedOrderInput struct {
	PropertyID      string          `json:"property_id" binding:"required"`
	SupplierName    *string         `json:"supplier_name"`
	OrderDate       *time.Time      `json:"order_date"`
	ConfidenceScore *float64        `json:"confidence_score"`
	Items           []SeedItemInput `json:"items" binding:"required,min=1"`
	Threshold       *float64        `json:"threshold"`
}

func (i *SeedOrderInput) Validate() error {
	for _, it := range i.Items {
		if strings.TrimSpace(it.ItemName) == "" {
			return model.ErrValidation("seed item name is required")
		}
		if it.Quantity <= 0 {
			return model.ErrValidation("seed item quantity must be positive")
		}
	}
	return nil
}
