package model

import "time"

// Receipt is an uploaded proof of purchase, optionally linked to the order it
// settles. Header amounts come from the external extractor and may disagree
// with the line items; that disagreement is recorded, not rejected.
type Receipt struct {
	BaseModel
	PropertyID  string     `db:"property_id" json:"property_id"`
	OrderID     *string    `db:"order_id" json:"order_id"`
	SupplierID  *string    `db:"supplier_id" json:"supplier_id"`
	ReceiptDate *time.Time `db:"receipt_date" json:"receipt_date"`

	Subtotal *float64 `db:"subtotal" json:"subtotal"`
	Tax      *float64 `db:"tax" json:"tax"`
	Total    *float64 `db:"total" json:"total"`

	ImageURL           *string  `db:"image_url" json:"image_url"`
	ConfidenceScore    *float64 `db:"confidence_score" json:"confidence_score"`
	ValidationNotes    *string  `db:"validation_notes" json:"validation_notes"`
	IsManuallyVerified bool     `db:"is_manually_verified" json:"is_manually_verified"`
	Notes              *string  `db:"notes" json:"notes"`
	CreatedBy          string   `db:"created_by" json:"created_by"`

	LineItems []ReceiptLineItem `db:"-" json:"line_items,omitempty"`
}

type ReceiptLineItem struct {
	BaseModel
	ReceiptID  string   `db:"receipt_id" json:"receipt_id"`
	ItemName   string   `db:"item_name" json:"item_name"`
	Quantity   *float64 `db:"quantity" json:"quantity"`
	UnitPrice  *float64 `db:"unit_price" json:"unit_price"`
	TotalPrice *float64 `db:"total_price" json:"total_price"`

	MatchedOrderItemID     *string `db:"matched_order_item_id" json:"matched_order_item_id"`
	MatchedInventoryItemID *string `db:"matched_inventory_item_id" json:"matched_inventory_item_id"`
}

// ReceiptCodeAlias is a learned mapping from a supplier's receipt shorthand
// to a catalog item. Supplier nil means the alias applies to any supplier.
type ReceiptCodeAlias struct {
	BaseModel
	ReceiptCode     string    `db:"receipt_code" json:"receipt_code"`
	InventoryItemID string    `db:"inventory_item_id" json:"inventory_item_id"`
	SupplierID      *string   `db:"supplier_id" json:"supplier_id"`
	MatchCount      int       `db:"match_count" json:"match_count"`
	LastSeen        time.Time `db:"last_seen" json:"last_seen"`
	IsActive        bool      `db:"is_active" json:"is_active"`
}
