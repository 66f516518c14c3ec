package dto

import (
	"time"

	"github.com/campops/procurement-service/internal/model"
)

// ItemView decorates an order line with its resolved display fields.
type ItemView struct {
	model.OrderItem
	ItemName      string  `json:"item_name"`
	EffectiveUnit string  `json:"effective_unit"`
	SupplierName  *string `json:"supplier_name,omitempty"`
	FinalQuantity float64 `json:"final_quantity"`
	LineTotal     float64 `json:"line_total"`
}

type OrderView struct {
	model.Order
	PropertyName   string     `json:"property_name"`
	PropertyCode   string     `json:"property_code"`
	CreatedByName  *string    `json:"created_by_name,omitempty"`
	ReviewedByName *string    `json:"reviewed_by_name,omitempty"`
	Items          []ItemView `json:"items"`
	ItemCount      int        `json:"item_count"`
}

type OrderList struct {
	Orders     []OrderView `json:"orders"`
	TotalCount int         `json:"total_count"`
}

// FlaggedItemView is one receiving issue, scanned straight from the flagged
// items join.
type FlaggedItemView struct {
	OrderItemID      string     `db:"order_item_id" json:"order_item_id"`
	ItemName         string     `db:"item_name" json:"item_name"`
	OrderID          string     `db:"order_id" json:"order_id"`
	OrderNumber      string     `db:"order_number" json:"order_number"`
	PropertyID       string     `db:"property_id" json:"property_id"`
	PropertyName     string     `db:"property_name" json:"property_name"`
	ReceivedQuantity *float64   `db:"received_quantity" json:"received_quantity"`
	ApprovedQuantity *float64   `db:"approved_quantity" json:"approved_quantity"`
	IssueDescription *string    `db:"issue_description" json:"issue_description"`
	IssuePhotoURL    *string    `db:"issue_photo_url" json:"issue_photo_url"`
	ReceivingNotes   *string    `db:"receiving_notes" json:"receiving_notes"`
	ReceivedAt       *time.Time `db:"received_at" json:"received_at"`
	FlaggedByName    *string    `db:"flagged_by_name" json:"flagged_by_name"`
}

type FlaggedItemsList struct {
	Items      []FlaggedItemView `json:"items"`
	TotalCount int               `json:"total_count"`
}

// ShortageRow is one short order line joined with its display context, before
// aggregation. Aggregation happens in the usecase because custom lines group
// by normalized name.
type ShortageRow struct {
	OrderItemID       string     `db:"order_item_id"`
	OrderID           string     `db:"order_id"`
	OrderNumber       string     `db:"order_number"`
	OrderCreatedAt    time.Time  `db:"order_created_at"`
	WeekOf            *time.Time `db:"week_of"`
	PropertyID        string     `db:"property_id"`
	PropertyName      string     `db:"property_name"`
	InventoryItemID   *string    `db:"inventory_item_id"`
	ItemName          string     `db:"item_name"`
	Unit              *string    `db:"unit"`
	UnitPrice         *float64   `db:"unit_price"`
	SupplierID        *string    `db:"supplier_id"`
	SupplierName      *string    `db:"supplier_name"`
	RequestedQuantity float64    `db:"requested_quantity"`
	ApprovedQuantity  *float64   `db:"approved_quantity"`
	ReceivedQuantity  *float64   `db:"received_quantity"`
}

// ShortageQuantity mirrors OrderItem.ShortageQuantity for the joined row.
func (r *ShortageRow) ShortageQuantity() float64 {
	final := r.RequestedQuantity
	if r.ApprovedQuantity != nil {
		final = *r.ApprovedQuantity
	}
	received := 0.0
	if r.ReceivedQuantity != nil {
		received = *r.ReceivedQuantity
	}
	if gap := final - received; gap > 0 {
		return gap
	}
	return 0
}

// ShortageView aggregates shortages of one item across orders.
type ShortageView struct {
	InventoryItemID    *string    `json:"inventory_item_id"`
	ItemName           string     `json:"item_name"`
	TotalShortage      float64    `json:"total_shortage"`
	Unit               *string    `json:"unit"`
	UnitPrice          *float64   `json:"unit_price"`
	SupplierID         *string    `json:"supplier_id"`
	SupplierName       *string    `json:"supplier_name"`
	PropertyID         string     `json:"property_id"`
	PropertyName       string     `json:"property_name"`
	SourceOrderItemIDs []string   `json:"source_order_item_ids"`
	LatestOrderNumber  string     `json:"latest_order_number"`
	LatestWeekOf       *time.Time `json:"latest_week_of"`
	OrderCount         int        `json:"order_count"`
}

type ShortageList struct {
	Items              []ShortageView `json:"items"`
	TotalCount         int            `json:"total_count"`
	TotalShortageValue float64        `json:"total_shortage_value"`
}

type PurchaseItem struct {
	OrderItemID  string   `json:"order_item_id"`
	ItemName     string   `json:"item_name"`
	Category     *string  `json:"category,omitempty"`
	Brand        *string  `json:"brand,omitempty"`
	SizeLabel    *string  `json:"size_label,omitempty"`
	ProductNotes *string  `json:"product_notes,omitempty"`
	Quantity     float64  `json:"quantity"`
	Unit         string   `json:"unit"`
	UnitPrice    *float64 `json:"unit_price"`
	LineTotal    float64  `json:"line_total"`
	OrderID      string   `json:"order_id"`
	OrderNumber  string   `json:"order_number"`
	PropertyName string   `json:"property_name"`
}

type SupplierGroup struct {
	SupplierID   *string        `json:"supplier_id"`
	SupplierName string         `json:"supplier_name"`
	Items        []PurchaseItem `json:"items"`
	TotalItems   int            `json:"total_items"`
	TotalValue   float64        `json:"total_value"`
}

type SupplierPurchaseList struct {
	Suppliers   []SupplierGroup `json:"suppliers"`
	OrderIDs    []string        `json:"order_ids"`
	TotalOrders int             `json:"total_orders"`
	GrandTotal  float64         `json:"grand_total"`
}

// PropertySummary is the per-property dashboard row, scanned straight from
// the summary aggregate.
type PropertySummary struct {
	PropertyID     string     `db:"property_id" json:"property_id"`
	PropertyName   string     `db:"property_name" json:"property_name"`
	PropertyCode   string     `db:"property_code" json:"property_code"`
	PendingOrders  int        `db:"pending_orders" json:"pending_orders"`
	TotalEstimated float64    `db:"total_estimated" json:"total_estimated"`
	LastOrderDate  *time.Time `db:"last_order_date" json:"last_order_date"`
}

// Seed outcomes per extracted line.
const (
	SeedOutcomeMatched = "matched"
	SeedOutcomeCreated = "created"
)

type SeedItemResult struct {
	ItemName        string   `json:"item_name"`
	Outcome         string   `json:"outcome"`
	InventoryItemID string   `json:"inventory_item_id"`
	Score           *float64 `json:"score,omitempty"`
}

type SeedResult struct {
	Order        OrderView        `json:"order"`
	ItemResults  []SeedItemResult `json:"item_results"`
	MatchedCount int              `json:"matched_count"`
	CreatedCount int              `json:"created_count"`
}
