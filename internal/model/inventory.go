package model

import (
	"math"
	"time"
)

// InventoryItem is a property-scoped catalog row. Items are never hard
// deleted, only deactivated, because order items and aliases keep pointing
// at them.
type InventoryItem struct {
	BaseModel
	PropertyID  string  `db:"property_id" json:"property_id"`
	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description"`
	Category    *string `db:"category" json:"category"`
	Subcategory *string `db:"subcategory" json:"subcategory"`
	Brand       *string `db:"brand" json:"brand"`
	// SizeLabel is the free-text product size as suppliers print it ("50#", "5 Gal").
	SizeLabel    *string `db:"size_label" json:"size_label"`
	ProductNotes *string `db:"product_notes" json:"product_notes"`
	SupplierID   *string `db:"supplier_id" json:"supplier_id"`

	Unit     string   `db:"unit" json:"unit"`
	PackSize *float64 `db:"pack_size" json:"pack_size"`
	PackUnit *string  `db:"pack_unit" json:"pack_unit"`
	// OrderUnit is used when the purchasing unit differs from the counting
	// unit, e.g. counting by "box" but ordering by "case".
	OrderUnit         *string  `db:"order_unit" json:"order_unit"`
	UnitsPerOrderUnit *float64 `db:"units_per_order_unit" json:"units_per_order_unit"`

	UnitPrice        *float64 `db:"unit_price" json:"unit_price"`
	ParLevel         *float64 `db:"par_level" json:"par_level"`
	OrderAtThreshold *float64 `db:"order_at_threshold" json:"order_at_threshold"`
	CurrentStock     float64  `db:"current_stock" json:"current_stock"`
	AvgWeeklyUsage   *float64 `db:"avg_weekly_usage" json:"avg_weekly_usage"`

	SortOrder   int  `db:"sort_order" json:"sort_order"`
	IsRecurring bool `db:"is_recurring" json:"is_recurring"`
	IsActive    bool `db:"is_active" json:"is_active"`
}

// EffectiveThreshold resolves the reorder trigger: the explicit order-at
// threshold when set, otherwise the par level. Nil means reordering is not
// tracked for this item.
func (i *InventoryItem) EffectiveThreshold() *float64 {
	if i.OrderAtThreshold != nil {
		return i.OrderAtThreshold
	}
	return i.ParLevel
}

func (i *InventoryItem) IsLowStock() bool {
	threshold := i.EffectiveThreshold()
	if threshold == nil {
		return false
	}
	return i.CurrentStock <= *threshold
}

// SuggestedOrderQty suggests a reorder quantity in order units. It suggests
// nothing unless stock is at or below the effective threshold, and orders
// enough to bring stock back up to par plus one week of usage when usage
// history exists.
func (i *InventoryItem) SuggestedOrderQty() float64 {
	threshold := i.EffectiveThreshold()
	if threshold == nil {
		return 0
	}
	if i.CurrentStock > *threshold {
		return 0
	}

	var needed float64
	switch {
	case i.ParLevel != nil && i.AvgWeeklyUsage != nil:
		needed = *i.ParLevel - i.CurrentStock + *i.AvgWeeklyUsage
	case i.ParLevel != nil:
		needed = *i.ParLevel - i.CurrentStock
	default:
		return 0
	}
	if needed <= 0 {
		return 0
	}

	unitsPerOrder := 1.0
	if i.UnitsPerOrderUnit != nil && *i.UnitsPerOrderUnit > 0 {
		unitsPerOrder = *i.UnitsPerOrderUnit
	}
	return math.Ceil(needed / unitsPerOrder)
}

func (i *InventoryItem) EffectiveOrderUnit() string {
	if i.OrderUnit != nil && *i.OrderUnit != "" {
		return *i.OrderUnit
	}
	return i.Unit
}

// InventoryCount is one counting session for a property. Finalizing a count
// sets each counted item's stock to the absolute counted quantity.
type InventoryCount struct {
	BaseModel
	PropertyID  string    `db:"property_id" json:"property_id"`
	CountDate   time.Time `db:"count_date" json:"count_date"`
	CountedBy   *string   `db:"counted_by" json:"counted_by"`
	Notes       *string   `db:"notes" json:"notes"`
	IsFinalized bool      `db:"is_finalized" json:"is_finalized"`

	Items []InventoryCountItem `db:"-" json:"items,omitempty"`
}

type InventoryCountItem struct {
	BaseModel
	InventoryCountID string   `db:"inventory_count_id" json:"inventory_count_id"`
	InventoryItemID  string   `db:"inventory_item_id" json:"inventory_item_id"`
	Quantity         float64  `db:"quantity" json:"quantity"`
	Notes            *string  `db:"notes" json:"notes"`
	Confidence       *float64 `db:"confidence" json:"confidence"`
}

// StockMovement is the audit row written alongside every stock mutation,
// inside the same transaction.
type StockMovement struct {
	ID              string    `db:"id" json:"id"`
	InventoryItemID string    `db:"inventory_item_id" json:"inventory_item_id"`
	PropertyID      string    `db:"property_id" json:"property_id"`
	MovementType    string    `db:"movement_type" json:"movement_type"`
	QuantityChange  float64   `db:"quantity_change" json:"quantity_change"`
	QuantityBefore  float64   `db:"quantity_before" json:"quantity_before"`
	QuantityAfter   float64   `db:"quantity_after" json:"quantity_after"`
	ReferenceType   *string   `db:"reference_type" json:"reference_type"`
	ReferenceID     *string   `db:"reference_id" json:"reference_id"`
	CreatedBy       *string   `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Movement types.
const (
	MovementReceiving  = "order_receiving"
	MovementCount      = "inventory_count"
	MovementAdjustment = "manual_adjustment"
)
