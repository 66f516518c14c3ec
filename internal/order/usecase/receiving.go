package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/campops/procurement-service/internal/match"
	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/notification"
	"github.com/campops/procurement-service/internal/order/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	receiveLockTTL      = 5 * time.Second
	receiveLockAttempts = 3
	receiveLockBackoff  = 100 * time.Millisecond
)

// lockReceiving serializes receiving calls per order. Without the lock two
// concurrent finalizations would both read the same priors and double-apply
// stock deltas.
func (uc *orderUseCase) lockReceiving(ctx context.Context, orderID string) (func(), error) {
	if uc.cache == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf("lock:order:receive:%s", orderID)
	token := uuid.New().String()
	for attempt := 0; attempt < receiveLockAttempts; attempt++ {
		ok, err := uc.cache.AcquireLock(ctx, key, token, receiveLockTTL)
		if err != nil {
			uc.logger.Warn("receiving lock unavailable, proceeding without", zap.Error(err))
			return func() {}, nil
		}
		if ok {
			return func() {
				if err := uc.cache.ReleaseLock(context.Background(), key, token); err != nil {
					uc.logger.Warn("failed to release receiving lock", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		time.Sleep(receiveLockBackoff)
	}
	return nil, model.ErrBusy("another receiving call is in progress for this order")
}

func (uc *orderUseCase) ReceiveItems(ctx context.Context, actor model.Actor, orderID string, input *dto.ReceiveInput) (*dto.OrderView, error) {
	unlock, err := uc.lockReceiving(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ord, err := uc.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessProperty(ord.PropertyID) {
		return nil, model.ErrForbidden("no access to this property")
	}
	if !ord.Status.IsReceivable() {
		return nil, model.ErrPrecondition("order %s is not receivable in status %s", ord.OrderNumber, ord.Status)
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Validate the whole batch before touching anything: one unknown item
	// rejects the call with no partial writes.
	targets := make(map[string]*model.OrderItem, len(input.Items))
	for i := range input.Items {
		in := &input.Items[i]
		item := findItem(ord, in.OrderItemID)
		if item == nil {
			return nil, model.ErrNotPartOfOrder("item %s is not part of order %s", in.OrderItemID, ord.OrderNumber)
		}
		targets[in.OrderItemID] = item
	}

	now := time.Now().UTC()

	// Priors: quantity already applied to stock. Partial saves record a
	// received_quantity without applying it, so only finalized lines count.
	priors := make(map[string]float64, len(input.Items))
	for id, item := range targets {
		prior := 0.0
		if item.IsReceived && item.ReceivedQuantity != nil {
			prior = *item.ReceivedQuantity
		}
		priors[id] = prior
	}

	changed := make([]model.OrderItem, 0, len(input.Items))
	for i := range input.Items {
		in := &input.Items[i]
		item := targets[in.OrderItemID]
		qty := in.ReceivedQuantity
		item.ReceivedQuantity = &qty
		item.HasIssue = in.HasIssue
		item.IssueDescription = in.IssueDescription
		item.IssuePhotoURL = in.IssuePhotoURL
		item.ReceivingNotes = in.ReceivingNotes
		item.UpdatedAt = now
	}

	if !input.Finalize {
		for i := range input.Items {
			changed = append(changed, *targets[input.Items[i].OrderItemID])
		}
		if err := uc.repo.SaveReceivingProgress(ctx, changed); err != nil {
			return nil, err
		}
		return uc.view(ctx, ord)
	}

	// Finalize: stock moves by the delta against what was already applied, so
	// re-finalizing with the same numbers is a no-op and corrections adjust
	// by the difference.
	var linkedIDs []string
	for i := range input.Items {
		item := targets[input.Items[i].OrderItemID]
		if item.InventoryItemID != nil {
			linkedIDs = append(linkedIDs, *item.InventoryItemID)
		}
	}
	stock, err := uc.loadInventory(ctx, linkedIDs)
	if err != nil {
		return nil, err
	}

	var movements []model.StockMovement
	refType := "order"
	refID := ord.ID
	actorID := actor.UserID
	for i := range input.Items {
		in := &input.Items[i]
		item := targets[in.OrderItemID]
		item.IsReceived = true

		if item.InventoryItemID == nil {
			continue
		}
		delta := in.ReceivedQuantity - priors[in.OrderItemID]
		if delta == 0 {
			continue
		}
		inv, ok := stock[*item.InventoryItemID]
		if !ok {
			continue
		}
		movements = append(movements, model.StockMovement{
			ID:              uuid.New().String(),
			InventoryItemID: inv.ID,
			PropertyID:      ord.PropertyID,
			MovementType:    model.MovementReceiving,
			QuantityChange:  delta,
			QuantityBefore:  inv.CurrentStock,
			QuantityAfter:   inv.CurrentStock + delta,
			ReferenceType:   &refType,
			ReferenceID:     &refID,
			CreatedBy:       &actorID,
			CreatedAt:       now,
		})
	}

	allReceived := true
	for i := range ord.Items {
		if !ord.Items[i].IsReceived {
			allReceived = false
			break
		}
	}
	next := model.OrderStatusPartiallyReceived
	if allReceived {
		next = model.OrderStatusReceived
	}
	if err := ord.TransitionTo(next); err != nil {
		return nil, err
	}
	if ord.ReceivedAt == nil {
		ord.ReceivedAt = &now
	}
	ord.UpdatedAt = now

	if err := uc.repo.FinalizeReceiving(ctx, ord, movements); err != nil {
		return nil, err
	}

	uc.notifyFlagged(ctx, ord, input.Items, stock)
	return uc.view(ctx, ord)
}

// notifyFlagged reports receiving issues to reviewers after the commit.
func (uc *orderUseCase) notifyFlagged(ctx context.Context, ord *model.Order, inputs []dto.ReceiveItemInput, stock map[string]model.InventoryItem) {
	if uc.notifier == nil {
		return
	}
	var flagged []notification.FlaggedItem
	for i := range inputs {
		in := &inputs[i]
		if !in.HasIssue {
			continue
		}
		item := findItem(ord, in.OrderItemID)
		if item == nil {
			continue
		}
		name := "Unknown Item"
		switch {
		case item.InventoryItemID != nil:
			if inv, ok := stock[*item.InventoryItemID]; ok {
				name = inv.Name
			} else if item.CustomItemName != nil {
				name = *item.CustomItemName
			}
		case item.CustomItemName != nil:
			name = *item.CustomItemName
		}
		desc := ""
		if in.IssueDescription != nil {
			desc = *in.IssueDescription
		}
		flagged = append(flagged, notification.FlaggedItem{
			OrderItemID:      item.ID,
			ItemName:         name,
			IssueDescription: desc,
		})
	}
	if len(flagged) == 0 {
		return
	}

	propName := uc.propertyName(ctx, ord.PropertyID)
	snapshot := *ord
	uc.dispatch("items_flagged", func(ctx context.Context) error {
		return uc.notifier.ItemsFlagged(ctx, &snapshot, propName, flagged)
	})
}

func (uc *orderUseCase) Shortages(ctx context.Context, actor model.Actor, propertyID string) (*dto.ShortageList, error) {
	if !actor.Role.CanReview() {
		if actor.PropertyID == nil {
			return nil, model.ErrForbidden("caller has no property scope")
		}
		propertyID = *actor.PropertyID
	}

	rows, err := uc.repo.ShortageRows(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	// Rows arrive newest order first; the first row seen for a key carries
	// the display fields, later rows only add quantity and provenance.
	byKey := map[string]*dto.ShortageView{}
	orders := map[string]map[string]bool{}
	var keys []string
	for i := range rows {
		row := &rows[i]
		key := ""
		if row.InventoryItemID != nil {
			key = *row.InventoryItemID
		} else {
			key = row.PropertyID + "|" + match.Normalize(row.ItemName)
		}

		view, ok := byKey[key]
		if !ok {
			weekOf := row.WeekOf
			view = &dto.ShortageView{
				InventoryItemID:   row.InventoryItemID,
				ItemName:          row.ItemName,
				Unit:              row.Unit,
				UnitPrice:         row.UnitPrice,
				SupplierID:        row.SupplierID,
				SupplierName:      row.SupplierName,
				PropertyID:        row.PropertyID,
				PropertyName:      row.PropertyName,
				LatestOrderNumber: row.OrderNumber,
				LatestWeekOf:      weekOf,
			}
			byKey[key] = view
			orders[key] = map[string]bool{}
			keys = append(keys, key)
		}
		view.TotalShortage += row.ShortageQuantity()
		view.SourceOrderItemIDs = append(view.SourceOrderItemIDs, row.OrderItemID)
		orders[key][row.OrderID] = true
	}

	list := &dto.ShortageList{Items: make([]dto.ShortageView, 0, len(keys))}
	for _, key := range keys {
		view := byKey[key]
		view.OrderCount = len(orders[key])
		price := 0.0
		if view.UnitPrice != nil {
			price = *view.UnitPrice
		}
		list.TotalShortageValue += view.TotalShortage * price
		list.Items = append(list.Items, *view)
	}
	sort.SliceStable(list.Items, func(i, j int) bool {
		if list.Items[i].TotalShortage != list.Items[j].TotalShortage {
			return list.Items[i].TotalShortage > list.Items[j].TotalShortage
		}
		return list.Items[i].ItemName < list.Items[j].ItemName
	})
	list.TotalCount = len(list.Items)
	return list, nil
}

// DismissShortages clears items off the shortage report. One-way: there is
// no undismiss, and re-dismissing already-dismissed rows counts zero.
func (uc *orderUseCase) DismissShortages(ctx context.Context, actor model.Actor, input *dto.DismissShortagesInput) (int64, error) {
	if !actor.Role.CanReview() {
		return 0, model.ErrForbidden("reviewer role required")
	}

	items, err := uc.repo.FindItemsByIDs(ctx, input.OrderItemIDs)
	if err != nil {
		return 0, err
	}
	found := make(map[string]bool, len(items))
	for i := range items {
		found[items[i].ID] = true
	}
	for _, id := range input.OrderItemIDs {
		if !found[id] {
			return 0, model.ErrNotFound("order item %s not found", id)
		}
	}

	return uc.repo.DismissShortages(ctx, input.OrderItemIDs)
}

func (uc *orderUseCase) FlaggedItems(ctx context.Context, actor model.Actor, propertyID string) (*dto.FlaggedItemsList, error) {
	if !actor.Role.CanReview() {
		if actor.PropertyID == nil {
			return nil, model.ErrForbidden("caller has no property scope")
		}
		propertyID = *actor.PropertyID
	}

	rows, err := uc.repo.FlaggedItems(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []dto.FlaggedItemView{}
	}
	return &dto.FlaggedItemsList{Items: rows, TotalCount: len(rows)}, nil
}
