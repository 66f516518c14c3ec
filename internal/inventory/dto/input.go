package dto

import (
	"strings"

	"github.com/campops/procurement-service/internal/model"
)

type CreateItemInput struct {
	PropertyID        string   `json:"property_id" binding:"required"`
	Name              string   `json:"name" binding:"required"`
	Description       *string  `json:"description"`
	Category          *string  `json:"category"`
	Subcategory       *string  `json:"subcategory"`
	Brand             *string  `json:"brand"`
	SizeLabel         *string  `json:"size_label"`
	ProductNotes      *string  `json:"product_notes"`
	SupplierID        *string  `json:"supplier_id"`
	Unit              string   `json:"unit"`
	PackSize          *float64 `json:"pack_size"`
	PackUnit          *string  `json:"pack_unit"`
	OrderUnit         *string  `json:"order_unit"`
	UnitsPerOrderUnit *float64 `json:"units_per_order_unit"`
	UnitPrice         *float64 `json:"unit_price"`
	ParLevel          *float64 `json:"par_level"`
	OrderAtThreshold  *float64 `json:"order_at_threshold"`
	CurrentStock      float64  `json:"current_stock"`
	SortOrder         int      `json:"sort_order"`
	IsRecurring       *bool    `json:"is_recurring"`
}

// Validate checks the category and unit against the configured allow-lists and
// canonicalizes their casing. An empty unit falls back to "Unit".
func (i *CreateItemInput) Validate(categories, units []string) error {
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

// UpdateItemInput carries only the fields the caller sent; nil means leave
// unchanged.
type UpdateItemInput struct {
	ID                string   `json:"-"`
	Name              *string  `json:"name"`
	Description       *string  `json:"description"`
	Category          *string  `json:"category"`
	Subcategory       *string  `json:"subcategory"`
	Brand             *string  `json:"brand"`
	SizeLabel         *string  `json:"size_label"`
	ProductNotes      *string  `json:"product_notes"`
	SupplierID        *string  `json:"supplier_id"`
	Unit              *string  `json:"unit"`
	PackSize          *float64 `json:"pack_size"`
	PackUnit          *string  `json:"pack_unit"`
	OrderUnit         *string  `json:"order_unit"`
	UnitsPerOrderUnit *float64 `json:"units_per_order_unit"`
	UnitPrice         *float64 `json:"unit_price"`
	ParLevel          *float64 `json:"par_level"`
	OrderAtThreshold  *float64 `json:"order_at_threshold"`
	CurrentStock      *float64 `json:"current_stock"`
	AvgWeeklyUsage    *float64 `json:"avg_weekly_usage"`
	SortOrder         *int     `json:"sort_order"`
	IsRecurring       *bool    `json:"is_recurring"`
	IsActive          *bool    `json:"is_active"`
}

func (i *UpdateItemInput) Validate(categories, units []string) error {
	if i.Name != nil && strings.TrimSpace(*i.Name) == "" {
		return model.ErrValidation("item name cannot be empty")
	}
	if i.Category != nil && *i.Category != "" {
		canonical, ok := canonicalize(*i.Category, categories)
		if !ok {
			return model.ErrValidation("unknown category %q", *i.Category)
		}
		i.Category = &canonical
	}
	if i.Unit != nil {
		canonical, ok := canonicalize(*i.Unit, units)
		if !ok {
			return model.ErrValidation("unknown unit %q", *i.Unit)
		}
		i.Unit = &canonical
	}
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

type CreateCountInput struct {
	PropertyID string           `json:"property_id" binding:"required"`
	Notes      *string          `json:"notes"`
	Items      []CountItemInput `json:"items" binding:"required"`
	// AutoFinalize defaults to true: counting sessions normally apply their
	// quantities to stock immediately. False saves a draft for later review.
	AutoFinalize *bool `json:"auto_finalize"`
}

type CountItemInput struct {
	InventoryItemID string   `json:"inventory_item_id" binding:"required"`
	Quantity        float64  `json:"quantity"`
	Notes           *string  `json:"notes"`
	Confidence      *float64 `json:"confidence"`
}

type MatchInput struct {
	PropertyID string   `json:"property_id" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	Threshold  *float64 `json:"threshold"`
}
