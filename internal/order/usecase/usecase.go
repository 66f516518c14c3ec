package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campops/procurement-service/config"
	"github.com/campops/procurement-service/internal/inventory"
	"github.com/campops/procurement-service/internal/match"
	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/notification"
	"github.com/campops/procurement-service/internal/order"
	"github.com/campops/procurement-service/internal/order/dto"
	"github.com/campops/procurement-service/internal/refdata"
	"github.com/campops/procurement-service/pkg/cache"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type orderUseCase struct {
	repo      order.Repository
	inv       inventory.Repository
	ref       refdata.Repository
	notifier  notification.Notifier
	cache     *cache.RedisClient
	scorer    match.Scorer
	threshold float64
	logger    logger.ZapLogger
}

// NewOrderUseCase builds the order workflow service. notifier and cache may be
// nil (tests, degraded boot); notifications are then skipped and receiving
// runs unserialized.
func NewOrderUseCase(
	repo order.Repository,
	inv inventory.Repository,
	ref refdata.Repository,
	notifier notification.Notifier,
	redis *cache.RedisClient,
	matcherCfg config.MatcherConfig,
	log logger.ZapLogger,
) order.UseCase {
	return &orderUseCase{
		repo:      repo,
		inv:       inv,
		ref:       ref,
		notifier:  notifier,
		cache:     redis,
		scorer:    match.Scorer{MinSubstringLen: matcherCfg.MinSubstringLen},
		threshold: matcherCfg.Threshold,
		logger:    log,
	}
}

func (uc *orderUseCase) CreateOrder(ctx context.Context, actor model.Actor, input *dto.CreateOrderInput) (*dto.OrderView, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	prop, err := uc.loadProperty(ctx, input.PropertyID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessProperty(prop.ID) {
		return nil, model.ErrForbidden("no access to this property")
	}

	now := time.Now().UTC()
	number, err := uc.generateOrderNumber(ctx, prop.Code, now)
	if err != nil {
		return nil, err
	}

	ord := &model.Order{
		BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		PropertyID:  prop.ID,
		OrderNumber: number,
		Status:      model.OrderStatusDraft,
		WeekOf:      input.WeekOf,
		Notes:       input.Notes,
		CreatedBy:   actor.UserID,
	}
	if err := uc.buildItems(ctx, ord, input.Items, now); err != nil {
		return nil, err
	}
	ord.EstimatedTotal = model.OrderItemsTotal(ord.Items)

	if err := uc.repo.Create(ctx, ord); err != nil {
		return nil, err
	}
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) AutoGenerateOrder(ctx context.Context, actor model.Actor, input *dto.AutoGenerateInput) (*dto.OrderView, error) {
	prop, err := uc.loadProperty(ctx, input.PropertyID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessProperty(prop.ID) {
		return nil, model.ErrForbidden("no access to this property")
	}

	items, err := uc.inv.ActiveByProperty(ctx, prop.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	number, err := uc.generateOrderNumber(ctx, prop.Code, now)
	if err != nil {
		return nil, err
	}

	ord := &model.Order{
		BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		PropertyID:  prop.ID,
		OrderNumber: number,
		Status:      model.OrderStatusDraft,
		WeekOf:      input.WeekOf,
		CreatedBy:   actor.UserID,
	}

	for i := range items {
		it := &items[i]
		qty := it.SuggestedOrderQty()
		if qty <= 0 {
			continue
		}
		flag := model.FlagTrendSuggested
		if it.IsLowStock() {
			flag = model.FlagLowStock
		}
		itemID := it.ID
		unit := it.EffectiveOrderUnit()
		ord.Items = append(ord.Items, model.OrderItem{
			BaseModel:         model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			OrderID:           ord.ID,
			InventoryItemID:   &itemID,
			SupplierID:        it.SupplierID,
			Flag:              flag,
			RequestedQuantity: qty,
			Unit:              &unit,
			UnitPrice:         it.UnitPrice,
		})
	}
	if len(ord.Items) == 0 {
		return nil, model.ErrPrecondition("no items need reordering for this property")
	}
	ord.EstimatedTotal = model.OrderItemsTotal(ord.Items)

	if err := uc.repo.Create(ctx, ord); err != nil {
		return nil, err
	}
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) GetOrder(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error) {
	ord, err := uc.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessProperty(ord.PropertyID) {
		return nil, model.ErrForbidden("no access to this property")
	}
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) ListOrders(ctx context.Context, actor model.Actor, filters *dto.OrderFilters) (*dto.OrderList, error) {
	if !actor.Role.CanReview() {
		// Camp workers only ever see their own property.
		if actor.PropertyID == nil {
			return nil, model.ErrForbidden("caller has no property scope")
		}
		filters.PropertyID = *actor.PropertyID
	}

	orders, count, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, err
	}
	views, err := uc.buildViews(ctx, orders)
	if err != nil {
		return nil, err
	}
	return &dto.OrderList{Orders: views, TotalCount: count}, nil
}

func (uc *orderUseCase) PendingReview(ctx context.Context, actor model.Actor, skip, limit int) (*dto.OrderList, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	return uc.ListOrders(ctx, actor, &dto.OrderFilters{
		Statuses: []model.OrderStatus{model.OrderStatusSubmitted, model.OrderStatusUnderReview},
		Skip:     skip,
		Limit:    limit,
	})
}

func (uc *orderUseCase) ReadyToOrder(ctx context.Context, actor model.Actor, skip, limit int) (*dto.OrderList, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	return uc.ListOrders(ctx, actor, &dto.OrderFilters{
		Statuses: []model.OrderStatus{model.OrderStatusApproved},
		Skip:     skip,
		Limit:    limit,
	})
}

func (uc *orderUseCase) MyOrders(ctx context.Context, actor model.Actor, skip, limit int) (*dto.OrderList, error) {
	orders, count, err := uc.repo.FindAll(ctx, &dto.OrderFilters{
		CreatedBy: actor.UserID,
		Skip:      skip,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	views, err := uc.buildViews(ctx, orders)
	if err != nil {
		return nil, err
	}
	return &dto.OrderList{Orders: views, TotalCount: count}, nil
}

func (uc *orderUseCase) UpdateOrder(ctx context.Context, actor model.Actor, input *dto.UpdateOrderInput) (*dto.OrderView, error) {
	ord, err := uc.loadOrder(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := requireCreatorOrAdmin(actor, ord); err != nil {
		return nil, err
	}
	if ord.Status != model.OrderStatusDraft {
		return nil, model.ErrPrecondition("order %s can only be edited in draft", ord.OrderNumber)
	}

	if input.WeekOf != nil {
		ord.WeekOf = input.WeekOf
	}
	if input.Notes != nil {
		ord.Notes = input.Notes
	}
	ord.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, ord); err != nil {
		return nil, err
	}
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) DeleteOrder(ctx context.Context, actor model.Actor, id string) error {
	ord, err := uc.loadOrder(ctx, id)
	if err != nil {
		return err
	}
	if err := requireCreatorOrAdmin(actor, ord); err != nil {
		return err
	}
	if ord.Status != model.OrderStatusDraft {
		return model.ErrPrecondition("only draft orders can be deleted")
	}
	return uc.repo.Delete(ctx, id)
}

func (uc *orderUseCase) AddOrderItem(ctx context.Context, actor model.Actor, orderID string, input *dto.OrderItemInput) (*dto.OrderView, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ord, err := uc.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireEditor(actor, ord); err != nil {
		return nil, err
	}
	if !ord.Status.IsEditable() {
		return nil, model.ErrPrecondition("items can only be added in draft or changes_requested")
	}

	now := time.Now().UTC()
	if err := uc.buildItems(ctx, ord, []dto.OrderItemInput{*input}, now); err != nil {
		return nil, err
	}
	added := &ord.Items[len(ord.Items)-1]
	ord.EstimatedTotal = model.OrderItemsTotal(ord.Items)
	ord.UpdatedAt = now

	if err := uc.repo.AddItem(ctx, ord, added); err != nil {
		return nil, err
	}
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) UpdateOrderItem(ctx context.Context, actor model.Actor, input *dto.UpdateOrderItemInput) (*dto.OrderView, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ord, err := uc.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessProperty(ord.PropertyID) {
		return nil, model.ErrForbidden("no access to this property")
	}

	item := findItem(ord, input.ItemID)
	if item == nil {
		return nil, model.ErrNotPartOfOrder("item %s is not part of order %s", input.ItemID, ord.OrderNumber)
	}

	now := time.Now().UTC()
	switch {
	case ord.Status.IsEditable():
		if err := requireEditor(actor, ord); err != nil {
			return nil, err
		}
	case ord.Status.IsReviewable() && actor.Role.CanReview() && input.ReviewerOnly():
		// First reviewer touch moves a submitted order under review.
		if ord.Status == model.OrderStatusSubmitted {
			if err := ord.TransitionTo(model.OrderStatusUnderReview); err != nil {
				return nil, err
			}
		}
	default:
		return nil, model.ErrPrecondition("order %s is not editable in status %s", ord.OrderNumber, ord.Status)
	}

	if input.RequestedQuantity != nil {
		item.RequestedQuantity = *input.RequestedQuantity
	}
	if input.ApprovedQuantity != nil {
		item.ApprovedQuantity = input.ApprovedQuantity
	}
	if input.SupplierID != nil {
		if *input.SupplierID == "" {
			item.SupplierID = nil
		} else {
			sup, err := uc.ref.SupplierByID(ctx, *input.SupplierID)
			if err != nil {
				return nil, err
			}
			if sup == nil {
				return nil, model.ErrValidation("unknown supplier")
			}
			item.SupplierID = input.SupplierID
		}
	}
	if input.Unit != nil {
		item.Unit = input.Unit
	}
	if input.UnitPrice != nil {
		item.UnitPrice = input.UnitPrice
	}
	if input.CustomItemName != nil {
		item.CustomItemName = input.CustomItemName
	}
	if input.CustomItemDescription != nil {
		item.CustomItemDescription = input.CustomItemDescription
	}
	if input.CampNotes != nil {
		item.CampNotes = input.CampNotes
	}
	if input.ReviewerNotes != nil {
		item.ReviewerNotes = input.ReviewerNotes
	}
	item.UpdatedAt = now

	ord.EstimatedTotal = model.OrderItemsTotal(ord.Items)
	ord.UpdatedAt = now
	if err := uc.repo.UpdateWithItems(ctx, ord); err != nil {
		return nil, err
	}
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) RemoveOrderItem(ctx context.Context, actor model.Actor, orderID, itemID string) (*dto.OrderView, error) {
	ord, err := uc.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireEditor(actor, ord); err != nil {
		return nil, err
	}
	if !ord.Status.IsEditable() {
		return nil, model.ErrPrecondition("items can only be removed in draft or changes_requested")
	}
	if findItem(ord, itemID) == nil {
		return nil, model.ErrNotPartOfOrder("item %s is not part of order %s", itemID, ord.OrderNumber)
	}

	kept := ord.Items[:0]
	for _, it := range ord.Items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	ord.Items = kept
	ord.EstimatedTotal = model.OrderItemsTotal(ord.Items)
	ord.UpdatedAt = time.Now().UTC()

	if err := uc.repo.RemoveItem(ctx, ord, itemID); err != nil {
		return nil, err
	}
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) SubmitOrder(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error) {
	ord, err := uc.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireCreatorOrAdmin(actor, ord); err != nil {
		return nil, err
	}
	if len(ord.Items) == 0 {
		return nil, model.ErrPrecondition("cannot submit an order with no items")
	}
	if err := ord.TransitionTo(model.OrderStatusSubmitted); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ord.SubmittedAt = &now
	ord.UpdatedAt = now
	if err := uc.repo.Update(ctx, ord); err != nil {
		return nil, err
	}

	uc.notifySubmitted(ctx, actor, ord)
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) ReviewOrder(ctx context.Context, actor model.Actor, id string, input *dto.ReviewInput) (*dto.OrderView, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ord, err := uc.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ord.Status.IsReviewable() {
		return nil, model.ErrPrecondition("order %s is not awaiting review", ord.OrderNumber)
	}

	now := time.Now().UTC()
	for _, ov := range input.ItemOverrides {
		item := findItem(ord, ov.OrderItemID)
		if item == nil {
			return nil, model.ErrNotPartOfOrder("item %s is not part of order %s", ov.OrderItemID, ord.OrderNumber)
		}
		if ov.ApprovedQuantity != nil {
			item.ApprovedQuantity = ov.ApprovedQuantity
		}
		if ov.ReviewerNotes != nil {
			item.ReviewerNotes = ov.ReviewerNotes
		}
		item.UpdatedAt = now
	}

	switch input.Action {
	case dto.ReviewApprove:
		// Approval locks in a quantity for every line; untouched lines keep
		// what was requested.
		for i := range ord.Items {
			if ord.Items[i].ApprovedQuantity == nil {
				qty := ord.Items[i].RequestedQuantity
				ord.Items[i].ApprovedQuantity = &qty
				ord.Items[i].UpdatedAt = now
			}
		}
		if err := ord.TransitionTo(model.OrderStatusApproved); err != nil {
			return nil, err
		}
		ord.ApprovedAt = &now
	case dto.ReviewRequestChanges:
		if err := ord.TransitionTo(model.OrderStatusChangesRequested); err != nil {
			return nil, err
		}
	case dto.ReviewReject:
		if err := ord.TransitionTo(model.OrderStatusCancelled); err != nil {
			return nil, err
		}
	}

	reviewer := actor.UserID
	ord.ReviewedAt = &now
	ord.ReviewedBy = &reviewer
	if input.ReviewerNotes != nil {
		ord.ReviewerNotes = input.ReviewerNotes
	}
	ord.EstimatedTotal = model.OrderItemsTotal(ord.Items)
	ord.UpdatedAt = now

	if err := uc.repo.UpdateWithItems(ctx, ord); err != nil {
		return nil, err
	}

	uc.notifyReviewed(ctx, actor, ord, input.Action)
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) ResubmitOrder(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error) {
	ord, err := uc.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireCreatorOrAdmin(actor, ord); err != nil {
		return nil, err
	}
	if !ord.Status.IsEditable() {
		return nil, model.ErrPrecondition("order %s cannot be resubmitted from %s", ord.OrderNumber, ord.Status)
	}
	if len(ord.Items) == 0 {
		return nil, model.ErrPrecondition("cannot submit an order with no items")
	}

	now := time.Now().UTC()
	// A resubmission is a fresh review request: prior approvals and reviewer
	// notes no longer apply.
	for i := range ord.Items {
		ord.Items[i].ApprovedQuantity = nil
		ord.Items[i].ReviewerNotes = nil
		ord.Items[i].UpdatedAt = now
	}
	ord.ReviewedAt = nil
	ord.ReviewedBy = nil
	ord.ApprovedAt = nil
	ord.ReviewerNotes = nil

	if err := ord.TransitionTo(model.OrderStatusSubmitted); err != nil {
		return nil, err
	}
	ord.SubmittedAt = &now
	ord.EstimatedTotal = model.OrderItemsTotal(ord.Items)
	ord.UpdatedAt = now

	if err := uc.repo.UpdateWithItems(ctx, ord); err != nil {
		return nil, err
	}

	uc.notifySubmitted(ctx, actor, ord)
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) MarkOrdered(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	ord, err := uc.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ord.TransitionTo(model.OrderStatusOrdered); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	by := actor.UserID
	ord.OrderedAt = &now
	ord.OrderedBy = &by
	ord.UpdatedAt = now
	if err := uc.repo.Update(ctx, ord); err != nil {
		return nil, err
	}
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) UnmarkOrdered(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	ord, err := uc.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if ord.Status != model.OrderStatusOrdered {
		return nil, model.ErrPrecondition("order %s is not marked as ordered", ord.OrderNumber)
	}
	if err := ord.TransitionTo(model.OrderStatusApproved); err != nil {
		return nil, err
	}

	ord.OrderedAt = nil
	ord.OrderedBy = nil
	ord.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Update(ctx, ord); err != nil {
		return nil, err
	}
	return uc.view(ctx, ord)
}

func (uc *orderUseCase) WithdrawOrder(ctx context.Context, actor model.Actor, id string) (*dto.OrderView, error) {
	ord, err := uc.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireCreatorOrAdmin(actor, ord); err != nil {
		return nil, err
	}
	if err := ord.TransitionTo(model.OrderStatusDraft); err != nil {
		return nil, err
	}

	ord.SubmittedAt = nil
	ord.ReviewedAt = nil
	ord.ReviewedBy = nil
	ord.ApprovedAt = nil
	ord.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Update(ctx, ord); err != nil {
		return nil, err
	}
	return uc.view(ctx, ord)
}

// --- shared helpers ---

func (uc *orderUseCase) loadOrder(ctx context.Context, id string) (*model.Order, error) {
	ord, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, model.ErrNotFound("order not found")
	}
	return ord, nil
}

func (uc *orderUseCase) loadProperty(ctx context.Context, id string) (*model.Property, error) {
	prop, err := uc.ref.PropertyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, model.ErrNotFound("property not found")
	}
	return prop, nil
}

func requireCreatorOrAdmin(actor model.Actor, ord *model.Order) error {
	if actor.UserID == ord.CreatedBy || actor.Role == model.RoleAdmin {
		return nil
	}
	return model.ErrForbidden("only the order's creator may do this")
}

// requireEditor gates item edits: the creator, or any reviewer.
func requireEditor(actor model.Actor, ord *model.Order) error {
	if !actor.CanAccessProperty(ord.PropertyID) {
		return model.ErrForbidden("no access to this property")
	}
	if actor.UserID == ord.CreatedBy || actor.Role.CanReview() {
		return nil
	}
	return model.ErrForbidden("only the order's creator may edit its items")
}

func findItem(ord *model.Order, itemID string) *model.OrderItem {
	for i := range ord.Items {
		if ord.Items[i].ID == itemID {
			return &ord.Items[i]
		}
	}
	return nil
}

// generateOrderNumber builds "<CODE>-<YYYYMMDD>", suffixing "-2", "-3"...
// when the property already ordered that day.
func (uc *orderUseCase) generateOrderNumber(ctx context.Context, code string, date time.Time) (string, error) {
	base := fmt.Sprintf("%s-%s", strings.ToUpper(code), date.Format("20060102"))
	taken, err := uc.repo.NumberSequence(ctx, base)
	if err != nil {
		return "", err
	}
	if taken == 0 {
		return base, nil
	}
	return fmt.Sprintf("%s-%d", base, taken+1), nil
}

// buildItems resolves inputs into order lines and appends them. Catalog
// references must belong to the order's property; custom lines are resolved
// against (or materialized into) the property's non-recurring items.
func (uc *orderUseCase) buildItems(ctx context.Context, ord *model.Order, inputs []dto.OrderItemInput, now time.Time) error {
	var invIDs []string
	for i := range inputs {
		if inputs[i].InventoryItemID != nil && *inputs[i].InventoryItemID != "" {
			invIDs = append(invIDs, *inputs[i].InventoryItemID)
		}
	}
	catalog, err := uc.loadInventory(ctx, invIDs)
	if err != nil {
		return err
	}

	for i := range inputs {
		in := &inputs[i]
		item := model.OrderItem{
			BaseModel:             model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			OrderID:               ord.ID,
			CustomItemName:        in.CustomItemName,
			CustomItemDescription: in.CustomItemDescription,
			SupplierID:            in.SupplierID,
			Flag:                  in.ResolveFlag(),
			RequestedQuantity:     in.RequestedQuantity,
			Unit:                  in.Unit,
			UnitPrice:             in.UnitPrice,
			CampNotes:             in.CampNotes,
		}

		if in.InventoryItemID != nil && *in.InventoryItemID != "" {
			inv, ok := catalog[*in.InventoryItemID]
			if !ok {
				return model.ErrValidation("unknown inventory item %s", *in.InventoryItemID)
			}
			if inv.PropertyID != ord.PropertyID {
				return model.ErrValidation("inventory item %s belongs to another property", inv.ID)
			}
			itemID := inv.ID
			item.InventoryItemID = &itemID
			applyCatalogDefaults(&item, &inv)
		} else {
			resolvedID, err := uc.resolveCustomItem(ctx, ord.PropertyID, in, now)
			if err != nil {
				return err
			}
			item.InventoryItemID = &resolvedID
		}

		ord.Items = append(ord.Items, item)
	}
	return nil
}

// applyCatalogDefaults fills unit, price, and supplier from the catalog when
// the request left them blank.
func applyCatalogDefaults(item *model.OrderItem, inv *model.InventoryItem) {
	if item.Unit == nil || *item.Unit == "" {
		unit := inv.EffectiveOrderUnit()
		item.Unit = &unit
	}
	if item.UnitPrice == nil {
		item.UnitPrice = inv.UnitPrice
	}
	if item.SupplierID == nil {
		item.SupplierID = inv.SupplierID
	}
}

// resolveCustomItem links a free-text line to the property's catalog: an
// existing non-recurring item with the same normalized name is reused,
// otherwise one is materialized so later orders and receiving can track it.
// The printable count sheet only lists recurring items, so these never show
// up there.
func (uc *orderUseCase) resolveCustomItem(ctx context.Context, propertyID string, in *dto.OrderItemInput, now time.Time) (string, error) {
	name := strings.TrimSpace(*in.CustomItemName)
	normalized := match.Normalize(name)

	existing, err := uc.inv.ActiveByProperty(ctx, propertyID)
	if err != nil {
		return "", err
	}
	for i := range existing {
		if !existing[i].IsRecurring && match.Normalize(existing[i].Name) == normalized {
			return existing[i].ID, nil
		}
	}

	unit := "Unit"
	if in.Unit != nil && *in.Unit != "" {
		unit = *in.Unit
	}
	item := &model.InventoryItem{
		BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		PropertyID:  propertyID,
		Name:        name,
		Description: in.CustomItemDescription,
		SupplierID:  in.SupplierID,
		Unit:        unit,
		UnitPrice:   in.UnitPrice,
		IsRecurring: false,
		IsActive:    true,
	}
	if err := uc.inv.Create(ctx, item); err != nil {
		return "", err
	}
	return item.ID, nil
}

func (uc *orderUseCase) loadInventory(ctx context.Context, ids []string) (map[string]model.InventoryItem, error) {
	items, err := uc.inv.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.InventoryItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return byID, nil
}

// --- notifications (post-commit, fire-and-forget) ---

func (uc *orderUseCase) notifySubmitted(ctx context.Context, actor model.Actor, ord *model.Order) {
	if uc.notifier == nil {
		return
	}
	propName := uc.propertyName(ctx, ord.PropertyID)
	byName := uc.actorName(ctx, actor.UserID)
	snapshot := *ord
	uc.dispatch("order_submitted", func(ctx context.Context) error {
		return uc.notifier.OrderSubmitted(ctx, &snapshot, propName, byName)
	})
}

func (uc *orderUseCase) notifyReviewed(ctx context.Context, actor model.Actor, ord *model.Order, action string) {
	if uc.notifier == nil {
		return
	}
	byName := uc.actorName(ctx, actor.UserID)
	snapshot := *ord
	uc.dispatch("order_reviewed", func(ctx context.Context) error {
		return uc.notifier.OrderReviewed(ctx, &snapshot, action, byName)
	})
}

// dispatch runs a notification send in the background with its own deadline,
// logging failures instead of surfacing them.
func (uc *orderUseCase) dispatch(event string, send func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			uc.logger.Error("notification dispatch failed", zap.String("event", event), zap.Error(err))
		}
	}()
}

func (uc *orderUseCase) propertyName(ctx context.Context, propertyID string) string {
	prop, err := uc.ref.PropertyByID(ctx, propertyID)
	if err != nil || prop == nil {
		return "Unknown Property"
	}
	return prop.Name
}

func (uc *orderUseCase) actorName(ctx context.Context, userID string) string {
	user, err := uc.ref.UserByID(ctx, userID)
	if err != nil || user == nil {
		return userID
	}
	if user.FullName != "" {
		return user.FullName
	}
	return user.Email
}

// --- view assembly ---

func (uc *orderUseCase) view(ctx context.Context, ord *model.Order) (*dto.OrderView, error) {
	views, err := uc.buildViews(ctx, []model.Order{*ord})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (uc *orderUseCase) buildViews(ctx context.Context, orders []model.Order) ([]dto.OrderView, error) {
	props := map[string]*model.Property{}
	users := map[string]*model.User{}
	var invIDs []string
	seenInv := map[string]bool{}

	for i := range orders {
		ord := &orders[i]
		if _, ok := props[ord.PropertyID]; !ok {
			prop, err := uc.ref.PropertyByID(ctx, ord.PropertyID)
			if err != nil {
				return nil, err
			}
			props[ord.PropertyID] = prop
		}
		for _, id := range []string{ord.CreatedBy, deref(ord.ReviewedBy)} {
			if id == "" {
				continue
			}
			if _, ok := users[id]; !ok {
				user, err := uc.ref.UserByID(ctx, id)
				if err != nil {
					return nil, err
				}
				users[id] = user
			}
		}
		for _, it := range ord.Items {
			if it.InventoryItemID != nil && !seenInv[*it.InventoryItemID] {
				seenInv[*it.InventoryItemID] = true
				invIDs = append(invIDs, *it.InventoryItemID)
			}
		}
	}

	catalog, err := uc.loadInventory(ctx, invIDs)
	if err != nil {
		return nil, err
	}

	var supIDs []string
	seenSup := map[string]bool{}
	for i := range orders {
		for _, it := range orders[i].Items {
			if sid := itemSupplierID(&it, catalog); sid != "" && !seenSup[sid] {
				seenSup[sid] = true
				supIDs = append(supIDs, sid)
			}
		}
	}
	supplierNames, err := uc.ref.SupplierNames(ctx, supIDs)
	if err != nil {
		return nil, err
	}

	views := make([]dto.OrderView, 0, len(orders))
	for i := range orders {
		ord := orders[i]
		view := dto.OrderView{
			Order:         ord,
			PropertyName:  "Unknown Property",
			CreatedByName: displayName(users[ord.CreatedBy]),
			ItemCount:     len(ord.Items),
			Items:         make([]dto.ItemView, 0, len(ord.Items)),
		}
		if prop := props[ord.PropertyID]; prop != nil {
			view.PropertyName = prop.Name
			view.PropertyCode = prop.Code
		}
		if ord.ReviewedBy != nil {
			view.ReviewedByName = displayName(users[*ord.ReviewedBy])
		}
		for _, it := range ord.Items {
			view.Items = append(view.Items, itemView(it, catalog, supplierNames))
		}
		views = append(views, view)
	}
	return views, nil
}

func itemView(it model.OrderItem, catalog map[string]model.InventoryItem, supplierNames map[string]string) dto.ItemView {
	view := dto.ItemView{
		OrderItem:     it,
		ItemName:      "Unknown Item",
		EffectiveUnit: "Unit",
		FinalQuantity: it.FinalQuantity(),
		LineTotal:     it.LineTotal(),
	}

	var inv *model.InventoryItem
	if it.InventoryItemID != nil {
		if cat, ok := catalog[*it.InventoryItemID]; ok {
			inv = &cat
		}
	}
	switch {
	case inv != nil:
		view.ItemName = inv.Name
	case it.CustomItemName != nil && *it.CustomItemName != "":
		view.ItemName = *it.CustomItemName
	}
	switch {
	case it.Unit != nil && *it.Unit != "":
		view.EffectiveUnit = *it.Unit
	case inv != nil:
		view.EffectiveUnit = inv.Unit
	}
	if sid := itemSupplierID(&it, catalog); sid != "" {
		if name, ok := supplierNames[sid]; ok {
			supplierName := name
			view.SupplierName = &supplierName
		}
	}
	return view
}

// itemSupplierID resolves the line's supplier: explicit assignment first,
// then the catalog item's default.
func itemSupplierID(it *model.OrderItem, catalog map[string]model.InventoryItem) string {
	if it.SupplierID != nil && *it.SupplierID != "" {
		return *it.SupplierID
	}
	if it.InventoryItemID != nil {
		if inv, ok := catalog[*it.InventoryItemID]; ok && inv.SupplierID != nil {
			return *inv.SupplierID
		}
	}
	return ""
}

func displayName(u *model.User) *string {
	if u == nil {
		return nil
	}
	name := u.FullName
	if name == "" {
		name = u.Email
	}
	if name == "" {
		return nil
	}
	return &name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
