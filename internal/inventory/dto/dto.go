package dto

import (
	"time"

	"github.com/campops/procurement-service/internal/model"
)

type ItemFilters struct {
	PropertyID   string
	Category     string
	SupplierID   string
	LowStockOnly bool
	Skip         int
	Limit        int
}

// ItemWithStatus is an inventory item plus its derived reorder status, the
// shape every item read surface returns.
type ItemWithStatus struct {
	model.InventoryItem
	IsLowStock         bool    `json:"is_low_stock"`
	SuggestedOrderQty  float64 `json:"suggested_order_qty"`
	EffectiveOrderUnit string  `json:"effective_order_unit"`
	SupplierName       *string `json:"supplier_name,omitempty"`
}

type MatchResult struct {
	Matched bool                 `json:"matched"`
	Item    *model.InventoryItem `json:"item,omitempty"`
	Score   float64              `json:"score"`
}

type CountView struct {
	ID          string          `json:"id"`
	PropertyID  string          `json:"property_id"`
	CountDate   time.Time       `json:"count_date"`
	CountedBy   *string         `json:"counted_by"`
	Notes       *string         `json:"notes"`
	IsFinalized bool            `json:"is_finalized"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []CountItemView `json:"items,omitempty"`
}

type CountItemView struct {
	ID              string   `json:"id"`
	InventoryItemID string   `json:"inventory_item_id"`
	ItemName        string   `json:"item_name"`
	ItemCategory    *string  `json:"item_category,omitempty"`
	ItemUnit        string   `json:"item_unit"`
	Quantity        float64  `json:"quantity"`
	Notes           *string  `json:"notes,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
}

type PrintableList struct {
	PropertyName string          `json:"property_name"`
	PropertyCode string          `json:"property_code"`
	GeneratedAt  time.Time       `json:"generated_at"`
	Items        []PrintableItem `json:"items"`
}

// PrintableItem is one row of the count sheet; CountField is the blank the
// counter writes into.
type PrintableItem struct {
	Name         string   `json:"name"`
	Category     *string  `json:"category"`
	Unit         string   `json:"unit"`
	ParLevel     *float64 `json:"par_level"`
	CurrentStock float64  `json:"current_stock"`
	CountField   string   `json:"count_field"`
}
