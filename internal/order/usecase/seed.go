package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/order/dto"
	"github.com/google/uuid"
)

// SeedHistoricalOrder backfills a past purchase from an extracted invoice.
// Extracted names resolve against the property's catalog; misses become new
// catalog items, hits fill catalog gaps. The order is written directly in
// received state since the purchase already happened.
func (uc *orderUseCase) SeedHistoricalOrder(ctx context.Context, actor model.Actor, input *dto.SeedOrderInput) (*dto.SeedResult, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	prop, err := uc.loadProperty(ctx, input.PropertyID)
	if err != nil {
		return nil, err
	}

	var supplierID *string
	if input.SupplierName != nil && strings.TrimSpace(*input.SupplierName) != "" {
		sup, err := uc.ref.MatchSupplierByName(ctx, *input.SupplierName)
		if err != nil {
			return nil, err
		}
		if sup != nil {
			id := sup.ID
			supplierID = &id
		}
	}

	threshold := uc.threshold
	if input.Threshold != nil {
		threshold = *input.Threshold
	}

	catalog, err := uc.inv.ActiveByProperty(ctx, prop.ID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(catalog))
	for i := range catalog {
		names[i] = catalog[i].Name
	}

	orderDate := time.Now().UTC()
	if input.OrderDate != nil {
		orderDate = input.OrderDate.UTC()
	}
	now := time.Now().UTC()

	result := &dto.SeedResult{}
	var items []model.OrderItem
	for i := range input.Items {
		in := &input.Items[i]
		invItem, itemResult, err := uc.seedResolveItem(ctx, prop.ID, in, catalog, names, threshold, supplierID, now)
		if err != nil {
			return nil, err
		}
		result.ItemResults = append(result.ItemResults, itemResult)
		if itemResult.Outcome == dto.SeedOutcomeMatched {
			result.MatchedCount++
		} else {
			result.CreatedCount++
			// Newly created items join the candidate pool so duplicate lines
			// on the same invoice match instead of creating twice.
			catalog = append(catalog, *invItem)
			names = append(names, invItem.Name)
		}

		itemID := invItem.ID
		qty := in.Quantity
		item := model.OrderItem{
			BaseModel:         model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			InventoryItemID:   &itemID,
			SupplierID:        supplierID,
			Flag:              model.FlagManual,
			RequestedQuantity: qty,
			ApprovedQuantity:  &qty,
			ReceivedQuantity:  &qty,
			Unit:              in.Unit,
			UnitPrice:         in.UnitPrice,
			IsReceived:        true,
		}
		if item.Unit == nil || *item.Unit == "" {
			unit := invItem.EffectiveOrderUnit()
			item.Unit = &unit
		}
		if item.UnitPrice == nil {
			item.UnitPrice = invItem.UnitPrice
		}
		items = append(items, item)
	}

	number, err := uc.generateOrderNumber(ctx, prop.Code, orderDate)
	if err != nil {
		return nil, err
	}

	// Seeding bypasses the workflow: the purchase already happened, so the
	// order is born received with every stamp backdated to the order date.
	ord := &model.Order{
		BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: orderDate, UpdatedAt: now},
		PropertyID:  prop.ID,
		OrderNumber: number,
		Status:      model.OrderStatusReceived,
		WeekOf:      &orderDate,
		CreatedBy:   actor.UserID,
		SubmittedAt: &orderDate,
		ApprovedAt:  &orderDate,
		ReceivedAt:  &orderDate,
	}
	for i := range items {
		items[i].OrderID = ord.ID
	}
	ord.Items = items
	ord.EstimatedTotal = model.OrderItemsTotal(ord.Items)

	if err := uc.repo.Create(ctx, ord); err != nil {
		return nil, err
	}

	view, err := uc.view(ctx, ord)
	if err != nil {
		return nil, err
	}
	result.Order = *view
	return result, nil
}

// seedResolveItem matches one extracted line against the catalog. A hit fills
// only the catalog fields the item was missing; a miss creates a non-recurring
// active item.
func (uc *orderUseCase) seedResolveItem(
	ctx context.Context,
	propertyID string,
	in *dto.SeedItemInput,
	catalog []model.InventoryItem,
	names []string,
	threshold float64,
	supplierID *string,
	now time.Time,
) (*model.InventoryItem, dto.SeedItemResult, error) {
	name := strings.TrimSpace(in.ItemName)

	if best, ok := uc.scorer.Resolve(name, names, threshold); ok {
		matched := &catalog[best.Index]
		if uc.fillCatalogGaps(matched, in, now) {
			if err := uc.inv.Update(ctx, matched); err != nil {
				return nil, dto.SeedItemResult{}, err
			}
		}
		score := best.Score
		return matched, dto.SeedItemResult{
			ItemName:        name,
			Outcome:         dto.SeedOutcomeMatched,
			InventoryItemID: matched.ID,
			Score:           &score,
		}, nil
	}

	unit := "Unit"
	if in.Unit != nil && *in.Unit != "" {
		unit = *in.Unit
	}
	item := &model.InventoryItem{
		BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		PropertyID:  propertyID,
		Name:        name,
		Category:    in.Category,
		SupplierID:  supplierID,
		Unit:        unit,
		UnitPrice:   in.UnitPrice,
		IsRecurring: false,
		IsActive:    true,
	}
	if err := uc.inv.Create(ctx, item); err != nil {
		return nil, dto.SeedItemResult{}, err
	}
	return item, dto.SeedItemResult{
		ItemName:        name,
		Outcome:         dto.SeedOutcomeCreated,
		InventoryItemID: item.ID,
	}, nil
}

// fillCatalogGaps copies extracted values into catalog fields that are still
// empty. Existing values always win; returns whether anything changed.
func (uc *orderUseCase) fillCatalogGaps(item *model.InventoryItem, in *dto.SeedItemInput, now time.Time) bool {
	changed := false
	if item.UnitPrice == nil && in.UnitPrice != nil {
		item.UnitPrice = in.UnitPrice
		changed = true
	}
	if item.Category == nil && in.Category != nil && *in.Category != "" {
		item.Category = in.Category
		changed = true
	}
	if item.Unit == "" && in.Unit != nil && *in.Unit != "" {
		item.Unit = *in.Unit
		changed = true
	}
	if changed {
		item.UpdatedAt = now
	}
	return changed
}
