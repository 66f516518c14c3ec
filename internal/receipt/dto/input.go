package dto

import (
	"strings"
	"time"

	"github.com/campops/procurement-service/internal/model"
)

// ExtractedLineInput is one line of an extraction result as the external
// extraction service delivers it.
type ExtractedLineInput struct {
	ItemName           string   `json:"item_name"`
	Quantity           *float64 `json:"quantity"`
	UnitPrice          *float64 `json:"unit_price"`
	TotalPrice         *float64 `json:"total_price"`
	MatchedOrderItemID *string  `json:"matched_order_item_id"`
}

// ExtractionInput is a finished extraction result plus the context it applies
// to. Arrives over HTTP or from the extraction topic.
type ExtractionInput struct {
	PropertyID      string               `json:"property_id"`
	OrderID         *string              `json:"order_id"`
	SupplierName    *string              `json:"supplier_name"`
	ReceiptDate     *time.Time           `json:"receipt_date"`
	Subtotal        *float64             `json:"subtotal"`
	Tax             *float64             `json:"tax"`
	Total           *float64             `json:"total"`
	ImageURL        *string              `json:"image_url"`
	Notes           *string              `json:"notes"`
	ConfidenceScore *float64             `json:"confidence_score"`
	LineItems       []ExtractedLineInput `json:"line_items"`
}

// Validate requires a target property, directly or through the linked order,
// and fills the extractor's occasional blank line names.
func (i *ExtractionInput) Validate() error {
	if i.PropertyID == "" && (i.OrderID == nil || *i.OrderID == "") {
		return model.ErrValidation("property_id or order_id is required")
	}
	for idx := range i.LineItems {
		if strings.TrimSpace(i.LineItems[idx].ItemName) == "" {
			i.LineItems[idx].ItemName = "Unknown Item"
		}
	}
	return nil
}

type CreateReceiptInput struct {
	PropertyID  string     `json:"property_id"`
	OrderID     *string    `json:"order_id"`
	SupplierID  *string    `json:"supplier_id"`
	ReceiptDate *time.Time `json:"receipt_date"`
	Subtotal    *float64   `json:"subtotal"`
	Tax         *float64   `json:"tax"`
	Total       *float64   `json:"total"`
	ImageURL    *string    `json:"image_url"`
	Notes       *string    `json:"notes"`
}

func (i *CreateReceiptInput) Validate() error {
	if i.PropertyID == "" && (i.OrderID == nil || *i.OrderID == "") {
		return model.ErrValidation("property_id or order_id is required")
	}
	return nil
}

// UpdateReceiptInput carries only the fields the caller sent; nil means leave
// unchanged. A non-empty LineItems slice replaces the stored rows wholesale.
type UpdateReceiptInput struct {
	ID          string               `json:"-"`
	OrderID     *string              `json:"order_id"`
	SupplierID  *string              `json:"supplier_id"`
	ReceiptDate *time.Time           `json:"receipt_date"`
	Subtotal    *float64             `json:"subtotal"`
	Tax         *float64             `json:"tax"`
	Total       *float64             `json:"total"`
	ImageURL    *string              `json:"image_url"`
	Notes       *string              `json:"notes"`
	LineItems   []ExtractedLineInput `json:"line_items"`
}

// MatchLineInput links a receipt line to the catalog, either through an order
// item or straight to an inventory item.
type MatchLineInput struct {
	ReceiptID       string  `json:"-"`
	LineID          string  `json:"-"`
	OrderItemID     *string `json:"order_item_id"`
	InventoryItemID *string `json:"inventory_item_id"`
}

func (i *MatchLineInput) Validate() error {
	hasOrderItem := i.OrderItemID != nil && *i.OrderItemID != ""
	hasInventory := i.InventoryItemID != nil && *i.InventoryItemID != ""
	if hasOrderItem == hasInventory {
		return model.ErrValidation("exactly one of order_item_id or inventory_item_id is required")
	}
	return nil
}

// UpdateLineInput edits one line; nil fields stay unchanged. Total changes
// flow into the receipt's header amounts.
type UpdateLineInput struct {
	ReceiptID  string   `json:"-"`
	LineID     string   `json:"-"`
	ItemName   *string  `json:"item_name"`
	Quantity   *float64 `json:"quantity"`
	UnitPrice  *float64 `json:"unit_price"`
	TotalPrice *float64 `json:"total_price"`
}

func (i *UpdateLineInput) Validate() error {
	if i.ItemName != nil && strings.TrimSpace(*i.ItemName) == "" {
		return model.ErrValidation("item name cannot be empty")
	}
	return nil
}

type AddToInventoryInput struct {
	PropertyID  string   `json:"property_id" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	SupplierID  *string  `json:"supplier_id"`
	Category    *string  `json:"category"`
	Unit        string   `json:"unit"`
	UnitPrice   *float64 `json:"unit_price"`
	ParLevel    *float64 `json:"par_level"`
	IsRecurring *bool    `json:"is_recurring"`
}

// Validate checks category and unit against the configured allow-lists and
// canonicalizes their casing, mirroring catalog item creation.
func (i *AddToInventoryInput) Validate(categories, units []string) error {
	if strings.TrimSpace(i.Name) == "" {
		return model.ErrValidation("item name is required")
	}
	if i.Category != nil && *i.Category != "" {
		canonical, ok := canonicalize(*i.Category, categories)
		if !ok {
			return model.ErrValidation("unknown category %q", *i.Category)
		}
		i.Category = &canonical
	}
	if i.Unit == "" {
		i.Unit = "Unit"
	}
	canonical, ok := canonicalize(i.Unit, units)
	if !ok {
		return model.ErrValidation("unknown unit %q", i.Unit)
	}
	i.Unit = canonical
	return nil
}

func canonicalize(value string, allowed []string) (string, bool) {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(value), a) {
			return a, true
		}
	}
	return "", false
}
