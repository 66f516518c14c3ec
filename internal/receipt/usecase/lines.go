package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/receipt/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (uc *receiptUseCase) MatchLine(ctx context.Context, actor model.Actor, input *dto.MatchLineInput) (*dto.ReceiptView, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}

	rec, err := uc.loadReceipt(ctx, input.ReceiptID)
	if err != nil {
		return nil, err
	}
	line, err := findLine(rec, input.LineID)
	if err != nil {
		return nil, err
	}

	var target *string
	if input.OrderItemID != nil && *input.OrderItemID != "" {
		items, err := uc.orders.FindItemsByIDs(ctx, []string{*input.OrderItemID})
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, model.ErrNotFound("order item not found")
		}
		if rec.OrderID != nil && items[0].OrderID != *rec.OrderID {
			return nil, model.ErrNotPartOfOrder("order item does not belong to this receipt's order")
		}
		line.MatchedOrderItemID = input.OrderItemID
		line.MatchedInventoryItemID = items[0].InventoryItemID
		target = items[0].InventoryItemID
	} else {
		item, err := uc.inv.FindByID(ctx, *input.InventoryItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, model.ErrNotFound("inventory item not found")
		}
		if item.PropertyID != rec.PropertyID {
			return nil, model.ErrValidation("inventory item belongs to a different property")
		}
		line.MatchedInventoryItemID = &item.ID
		target = &item.ID
	}

	now := time.Now()
	line.UpdatedAt = now
	rec.UpdatedAt = now
	if err := uc.repo.SaveLine(ctx, rec, line); err != nil {
		return nil, err
	}

	if target != nil {
		if line.UnitPrice != nil {
			if err := uc.writePrice(ctx, *target, *line.UnitPrice); err != nil {
				uc.logger.Warn("price writeback failed",
					zap.String("inventory_item_id", *target), zap.Error(err))
			}
		}
		uc.trainAlias(ctx, rec, line)
	}
	return uc.view(ctx, rec)
}

func (uc *receiptUseCase) UpdateLine(ctx context.Context, actor model.Actor, input *dto.UpdateLineInput) (*dto.ReceiptView, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}

	rec, err := uc.loadReceipt(ctx, input.ReceiptID)
	if err != nil {
		return nil, err
	}
	line, err := findLine(rec, input.LineID)
	if err != nil {
		return nil, err
	}

	if input.ItemName != nil {
		line.ItemName = strings.TrimSpace(*input.ItemName)
	}
	if input.Quantity != nil {
		line.Quantity = input.Quantity
	}
	if input.UnitPrice != nil {
		line.UnitPrice = input.UnitPrice
	}
	if input.TotalPrice != nil {
		prev := 0.0
		if line.TotalPrice != nil {
			prev = *line.TotalPrice
		}
		line.TotalPrice = input.TotalPrice
		applyHeaderDelta(rec, *input.TotalPrice-prev)
	}

	now := time.Now()
	line.UpdatedAt = now
	rec.UpdatedAt = now
	if err := uc.repo.SaveLine(ctx, rec, line); err != nil {
		return nil, err
	}
	return uc.view(ctx, rec)
}

func (uc *receiptUseCase) DeleteLine(ctx context.Context, actor model.Actor, receiptID, lineID string) (*dto.ReceiptView, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}

	rec, err := uc.loadReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	line, err := findLine(rec, lineID)
	if err != nil {
		return nil, err
	}

	if line.TotalPrice != nil {
		applyHeaderDelta(rec, -*line.TotalPrice)
	}
	rec.UpdatedAt = time.Now()
	if err := uc.repo.DeleteLine(ctx, rec, lineID); err != nil {
		return nil, err
	}

	kept := make([]model.ReceiptLineItem, 0, len(rec.LineItems)-1)
	for i := range rec.LineItems {
		if rec.LineItems[i].ID != lineID {
			kept = append(kept, rec.LineItems[i])
		}
	}
	rec.LineItems = kept
	return uc.view(ctx, rec)
}

// applyHeaderDelta shifts the header amounts by a line-total change. Amounts
// the extractor never produced stay unset.
func applyHeaderDelta(rec *model.Receipt, delta float64) {
	if rec.Subtotal != nil {
		v := *rec.Subtotal + delta
		rec.Subtotal = &v
	}
	if rec.Total != nil {
		v := *rec.Total + delta
		rec.Total = &v
	}
}

func (uc *receiptUseCase) AddToInventory(ctx context.Context, actor model.Actor, input *dto.AddToInventoryInput) (*model.InventoryItem, error) {
	if err := input.Validate(uc.catalog.Categories, uc.catalog.Units); err != nil {
		return nil, err
	}
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}

	prop, err := uc.loadProperty(ctx, input.PropertyID)
	if err != nil {
		return nil, err
	}
	if input.SupplierID != nil && *input.SupplierID != "" {
		if err := uc.requireSupplier(ctx, *input.SupplierID); err != nil {
			return nil, err
		}
	}

	name := strings.TrimSpace(input.Name)
	existing, err := uc.inv.ActiveByProperty(ctx, prop.ID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if strings.EqualFold(existing[i].Name, name) {
			return nil, model.ErrConflict("an item named %q already exists for this property", name)
		}
	}

	now := time.Now()
	item := &model.InventoryItem{
		BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		PropertyID:  prop.ID,
		Name:        name,
		SupplierID:  normalizeID(input.SupplierID),
		Category:    input.Category,
		Unit:        input.Unit,
		UnitPrice:   input.UnitPrice,
		ParLevel:    input.ParLevel,
		IsRecurring: input.IsRecurring == nil || *input.IsRecurring,
		IsActive:    true,
	}
	if err := uc.inv.Create(ctx, item); err != nil {
		return nil, err
	}

	uc.logger.Info("receipt item promoted to catalog",
		zap.String("inventory_item_id", item.ID),
		zap.String("property_id", prop.ID))
	return item, nil
}
