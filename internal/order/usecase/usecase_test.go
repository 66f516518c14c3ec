package usecase

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/campops/procurement-service/config"
	"github.com/campops/procurement-service/internal/inventory"
	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/order/dto"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	orders map[string]model.Order
	// FinalizeReceiving applies stock deltas here, standing in for the
	// single transaction the real repository runs.
	inv *fakeInv

	movements     []model.StockMovement
	progressSaves int
	shortageRows  []dto.ShortageRow
	shortageProp  string
	flaggedRows   []dto.FlaggedItemView
	summaries     []dto.PropertySummary
}

func (r *fakeRepo) store(ord *model.Order) {
	cp := *ord
	cp.Items = append([]model.OrderItem(nil), ord.Items...)
	r.orders[ord.ID] = cp
}

func (r *fakeRepo) Create(_ context.Context, ord *model.Order) error {
	r.store(ord)
	return nil
}

func (r *fakeRepo) Update(_ context.Context, ord *model.Order) error {
	items := r.orders[ord.ID].Items
	cp := *ord
	cp.Items = items
	r.orders[ord.ID] = cp
	return nil
}

func (r *fakeRepo) UpdateWithItems(_ context.Context, ord *model.Order) error {
	r.store(ord)
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	delete(r.orders, id)
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*model.Order, error) {
	ord, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := ord
	cp.Items = append([]model.OrderItem(nil), ord.Items...)
	return &cp, nil
}

func (r *fakeRepo) FindAll(_ context.Context, f *dto.OrderFilters) ([]model.Order, int, error) {
	var out []model.Order
	for _, ord := range r.orders {
		if f.PropertyID != "" && ord.PropertyID != f.PropertyID {
			continue
		}
		if f.CreatedBy != "" && ord.CreatedBy != f.CreatedBy {
			continue
		}
		if len(f.Statuses) > 0 {
			match := false
			for _, s := range f.Statuses {
				if ord.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, ord)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *fakeRepo) NumberSequence(_ context.Context, base string) (int, error) {
	n := 0
	for _, ord := range r.orders {
		if ord.OrderNumber == base || strings.HasPrefix(ord.OrderNumber, base+"-") {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) AddItem(_ context.Context, ord *model.Order, _ *model.OrderItem) error {
	r.store(ord)
	return nil
}

func (r *fakeRepo) RemoveItem(_ context.Context, ord *model.Order, _ string) error {
	r.store(ord)
	return nil
}

func (r *fakeRepo) FindItemsByIDs(_ context.Context, ids []string) ([]model.OrderItem, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []model.OrderItem
	for _, ord := range r.orders {
		for _, it := range ord.Items {
			if want[it.ID] {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) SaveReceivingProgress(_ context.Context, items []model.OrderItem) error {
	r.progressSaves++
	for _, it := range items {
		ord := r.orders[it.OrderID]
		for i := range ord.Items {
			if ord.Items[i].ID == it.ID {
				ord.Items[i] = it
			}
		}
		r.orders[it.OrderID] = ord
	}
	return nil
}

func (r *fakeRepo) FinalizeReceiving(_ context.Context, ord *model.Order, movements []model.StockMovement) error {
	r.store(ord)
	r.movements = append(r.movements, movements...)
	for _, m := range movements {
		item := r.inv.items[m.InventoryItemID]
		item.CurrentStock += m.QuantityChange
		r.inv.items[m.InventoryItemID] = item
	}
	return nil
}

func (r *fakeRepo) ShortageRows(_ context.Context, propertyID string) ([]dto.ShortageRow, error) {
	r.shortageProp = propertyID
	return r.shortageRows, nil
}

func (r *fakeRepo) DismissShortages(_ context.Context, ids []string) (int64, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for oid, ord := range r.orders {
		for i := range ord.Items {
			if want[ord.Items[i].ID] && !ord.Items[i].ShortageDismissed {
				ord.Items[i].ShortageDismissed = true
				n++
			}
		}
		r.orders[oid] = ord
	}
	return n, nil
}

func (r *fakeRepo) FlaggedItems(_ context.Context, _ string) ([]dto.FlaggedItemView, error) {
	return r.flaggedRows, nil
}

func (r *fakeRepo) SummaryByProperty(_ context.Context) ([]dto.PropertySummary, error) {
	return r.summaries, nil
}

func (r *fakeRepo) PurchaseOrders(_ context.Context, orderIDs []string, _ *time.Time) ([]model.Order, error) {
	want := map[string]bool{}
	for _, id := range orderIDs {
		want[id] = true
	}
	var out []model.Order
	for _, ord := range r.orders {
		if ord.Status != model.OrderStatusApproved && ord.Status != model.OrderStatusOrdered {
			continue
		}
		if len(want) > 0 && !want[ord.ID] {
			continue
		}
		cp := ord
		cp.Items = append([]model.OrderItem(nil), ord.Items...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeInv struct {
	inventory.Repository
	items map[string]model.InventoryItem
}

func (r *fakeInv) Create(_ context.Context, item *model.InventoryItem) error {
	r.items[item.ID] = *item
	return nil
}

func (r *fakeInv) Update(_ context.Context, item *model.InventoryItem) error {
	r.items[item.ID] = *item
	return nil
}

func (r *fakeInv) FindByIDs(_ context.Context, ids []string) ([]model.InventoryItem, error) {
	var out []model.InventoryItem
	for _, id := range ids {
		if item, ok := r.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeInv) ActiveByProperty(_ context.Context, propertyID string) ([]model.InventoryItem, error) {
	var out []model.InventoryItem
	for _, item := range r.items {
		if item.IsActive && item.PropertyID == propertyID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRef struct {
	properties map[string]model.Property
	suppliers  map[string]model.Supplier
	users      map[string]model.User
}

func (r *fakeRef) PropertyByID(_ context.Context, id string) (*model.Property, error) {
	p, ok := r.properties[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *fakeRef) SupplierByID(_ context.Context, id string) (*model.Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeRef) SupplierNames(_ context.Context, ids []string) (map[string]string, error) {
	names := map[string]string{}
	for _, id := range ids {
		if s, ok := r.suppliers[id]; ok {
			names[id] = s.Name
		}
	}
	return names, nil
}

func (r *fakeRef) MatchSupplierByName(_ context.Context, name string) (*model.Supplier, error) {
	for _, s := range r.suppliers {
		if strings.EqualFold(s.Name, name) {
			sup := s
			return &sup, nil
		}
	}
	return nil, nil
}

func (r *fakeRef) UserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *fakeRef) ListReviewers(_ context.Context) ([]model.User, error) {
	return nil, nil
}

func newFakes() (*fakeRepo, *fakeInv, *fakeRef) {
	inv := &fakeInv{items: map[string]model.InventoryItem{}}
	repo := &fakeRepo{orders: map[string]model.Order{}, inv: inv}
	ref := &fakeRef{
		properties: map[string]model.Property{
			"prop-1": {BaseModel: model.BaseModel{ID: "prop-1"}, Name: "Bear Camp", Code: "BEAR", IsActive: true},
			"prop-2": {BaseModel: model.BaseModel{ID: "prop-2"}, Name: "Yukon River Camp", Code: "YRC", IsActive: true},
		},
		suppliers: map[string]model.Supplier{
			"sup-1": {BaseModel: model.BaseModel{ID: "sup-1"}, Name: "Sysco", IsActive: true},
		},
		users: map[string]model.User{
			"worker-1": {BaseModel: model.BaseModel{ID: "worker-1"}, Email: "dana@camp.test", FullName: "Dana W", Role: model.RoleCampWorker},
			"user-1":   {BaseModel: model.BaseModel{ID: "user-1"}, Email: "sam@camp.test", FullName: "Sam P", Role: model.RoleSupervisor},
		},
	}
	return repo, inv, ref
}

// newTestUseCase wires the workflow with nil notifier and nil cache, the
// degraded-boot path: notifications are skipped and receiving runs without
// the lock.
func newTestUseCase(repo *fakeRepo, inv *fakeInv, ref *fakeRef) *orderUseCase {
	uc := NewOrderUseCase(repo, inv, ref, nil, nil,
		config.MatcherConfig{Threshold: 0.6},
		logger.NewNop(),
	)
	return uc.(*orderUseCase)
}

func seedItem(inv *fakeInv, id, name string, mutate func(*model.InventoryItem)) model.InventoryItem {
	item := model.InventoryItem{
		BaseModel:   model.BaseModel{ID: id},
		PropertyID:  "prop-1",
		Name:        name,
		Unit:        "Each",
		IsRecurring: true,
		IsActive:    true,
	}
	if mutate != nil {
		mutate(&item)
	}
	inv.items[id] = item
	return item
}

func seedOrder(repo *fakeRepo, id string, status model.OrderStatus, mutate func(*model.Order)) model.Order {
	ord := model.Order{
		BaseModel:   model.BaseModel{ID: id},
		PropertyID:  "prop-1",
		OrderNumber: "BEAR-20260817",
		Status:      status,
		CreatedBy:   "worker-1",
	}
	if mutate != nil {
		mutate(&ord)
	}
	for i := range ord.Items {
		ord.Items[i].OrderID = ord.ID
	}
	repo.store(&ord)
	return ord
}

func orderLine(id string, invID *string, qty float64, price *float64) model.OrderItem {
	return model.OrderItem{
		BaseModel:         model.BaseModel{ID: id},
		InventoryItemID:   invID,
		Flag:              model.FlagManual,
		RequestedQuantity: qty,
		UnitPrice:         price,
	}
}

func creatorActor() model.Actor {
	prop := "prop-1"
	return model.Actor{UserID: "worker-1", Role: model.RoleCampWorker, PropertyID: &prop}
}

func reviewerActor() model.Actor {
	return model.Actor{UserID: "user-1", Role: model.RoleSupervisor}
}

func f64(v float64) *float64 { return &v }

func sp(v string) *string { return &v }

func TestCreateOrder_GeneratesSequencedNumbers(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedItem(inv, "item-1", "Green Onions", func(i *model.InventoryItem) {
		i.UnitPrice = f64(2.5)
	})

	input := &dto.CreateOrderInput{
		PropertyID: "prop-1",
		Items:      []dto.OrderItemInput{{InventoryItemID: sp("item-1"), RequestedQuantity: 4}},
	}
	first, err := uc.CreateOrder(context.Background(), creatorActor(), input)
	require.NoError(t, err)

	base := "BEAR-" + time.Now().UTC().Format("20060102")
	assert.Equal(t, base, first.OrderNumber)
	assert.Equal(t, model.OrderStatusDraft, first.Status)
	assert.Equal(t, 10.0, first.EstimatedTotal)

	line := first.Items[0]
	assert.Equal(t, "Green Onions", line.ItemName)
	assert.Equal(t, "Each", line.EffectiveUnit, "unit falls back to the catalog")
	assert.Equal(t, 2.5, *line.UnitPrice, "price falls back to the catalog")

	// Same property, same day: the number gets a sequence suffix.
	second, err := uc.CreateOrder(context.Background(), creatorActor(), input)
	require.NoError(t, err)
	assert.Equal(t, base+"-2", second.OrderNumber)
}

func TestCreateOrder_CustomLineMaterializesCatalogItem(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)

	view, err := uc.CreateOrder(context.Background(), creatorActor(), &dto.CreateOrderInput{
		PropertyID: "prop-1",
		Items: []dto.OrderItemInput{{
			CustomItemName:    sp("Birthday Candles"),
			RequestedQuantity: 2,
			Unit:              sp("Box"),
		}},
	})
	require.NoError(t, err)

	line := view.Items[0]
	assert.Equal(t, model.FlagCustom, line.Flag)
	assert.Equal(t, "Birthday Candles", line.ItemName)
	require.NotNil(t, line.InventoryItemID)

	created := inv.items[*line.InventoryItemID]
	assert.Equal(t, "Birthday Candles", created.Name)
	assert.False(t, created.IsRecurring, "materialized custom items stay off the count sheet")
	assert.True(t, created.IsActive)

	// A later order with the same name reuses the materialized item.
	again, err := uc.CreateOrder(context.Background(), creatorActor(), &dto.CreateOrderInput{
		PropertyID: "prop-1",
		Items:      []dto.OrderItemInput{{CustomItemName: sp("birthday candles"), RequestedQuantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, *line.InventoryItemID, *again.Items[0].InventoryItemID)
	assert.Len(t, inv.items, 1)
}

func TestCreateOrder_RejectsForeignCatalogItem(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedItem(inv, "item-other", "Foreign Flour", func(i *model.InventoryItem) {
		i.PropertyID = "prop-2"
	})

	_, err := uc.CreateOrder(context.Background(), creatorActor(), &dto.CreateOrderInput{
		PropertyID: "prop-1",
		Items:      []dto.OrderItemInput{{InventoryItemID: sp("item-other"), RequestedQuantity: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeValidation, model.CodeOf(err))
}

func TestSubmitOrder_RequiresItems(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusDraft, nil)

	_, err := uc.SubmitOrder(context.Background(), creatorActor(), "ord-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodePrecondition, model.CodeOf(err))
	assert.Equal(t, model.OrderStatusDraft, repo.orders["ord-1"].Status, "failed submit leaves the order untouched")
}

func TestSubmitOrder_StampsAndGates(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusDraft, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-1", nil, 5, f64(2))}
	})

	// A supervisor who didn't create the order cannot submit it.
	_, err := uc.SubmitOrder(context.Background(), reviewerActor(), "ord-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))

	view, err := uc.SubmitOrder(context.Background(), creatorActor(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusSubmitted, view.Status)
	require.NotNil(t, view.SubmittedAt)
}

func TestReviewOrder_ApproveLocksQuantities(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusSubmitted, func(o *model.Order) {
		o.Items = []model.OrderItem{
			orderLine("oi-1", nil, 5, f64(2)),
			orderLine("oi-2", nil, 3, f64(1)),
		}
	})

	_, err := uc.ReviewOrder(context.Background(), creatorActor(), "ord-1", &dto.ReviewInput{Action: dto.ReviewApprove})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))

	view, err := uc.ReviewOrder(context.Background(), reviewerActor(), "ord-1", &dto.ReviewInput{
		Action:        dto.ReviewApprove,
		ReviewerNotes: sp("looks fine, trimmed the onions"),
		ItemOverrides: []dto.ReviewItemOverride{
			{OrderItemID: "oi-1", ApprovedQuantity: f64(4)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusApproved, view.Status)
	require.NotNil(t, view.ApprovedAt)
	require.NotNil(t, view.ReviewedBy)
	assert.Equal(t, "user-1", *view.ReviewedBy)

	assert.Equal(t, 4.0, *view.Items[0].ApprovedQuantity)
	assert.Equal(t, 3.0, *view.Items[1].ApprovedQuantity, "untouched lines lock at the requested quantity")
	assert.Equal(t, 11.0, view.EstimatedTotal, "total follows approved quantities")
}

func TestReviewOrder_UnknownOverrideRejected(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusSubmitted, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-1", nil, 5, nil)}
	})

	_, err := uc.ReviewOrder(context.Background(), reviewerActor(), "ord-1", &dto.ReviewInput{
		Action:        dto.ReviewApprove,
		ItemOverrides: []dto.ReviewItemOverride{{OrderItemID: "oi-404", ApprovedQuantity: f64(1)}},
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeNotPartOfOrder, model.CodeOf(err))
}

func TestResubmit_ClearsReviewArtifacts(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusSubmitted, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-1", nil, 5, f64(2))}
	})

	_, err := uc.ReviewOrder(context.Background(), reviewerActor(), "ord-1", &dto.ReviewInput{
		Action:        dto.ReviewRequestChanges,
		ReviewerNotes: sp("halve this, the walk-in is full"),
		ItemOverrides: []dto.ReviewItemOverride{
			{OrderItemID: "oi-1", ApprovedQuantity: f64(2), ReviewerNotes: sp("2 is plenty")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusChangesRequested, repo.orders["ord-1"].Status)

	view, err := uc.ResubmitOrder(context.Background(), creatorActor(), "ord-1")
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusSubmitted, view.Status)
	assert.Nil(t, view.Items[0].ApprovedQuantity, "resubmission is a fresh review request")
	assert.Nil(t, view.Items[0].ReviewerNotes)
	assert.Nil(t, view.ReviewedAt)
	assert.Nil(t, view.ReviewedBy)
	assert.Nil(t, view.ReviewerNotes)
	require.NotNil(t, view.SubmittedAt)
}

func TestUpdateOrderItem_ReviewerTouchMovesUnderReview(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusSubmitted, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-1", nil, 5, nil)}
	})

	// The creator cannot edit a submitted order.
	_, err := uc.UpdateOrderItem(context.Background(), creatorActor(), &dto.UpdateOrderItemInput{
		OrderID:           "ord-1",
		ItemID:            "oi-1",
		RequestedQuantity: f64(6),
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodePrecondition, model.CodeOf(err))

	// A reviewer-only patch is legal and claims the order for review.
	view, err := uc.UpdateOrderItem(context.Background(), reviewerActor(), &dto.UpdateOrderItemInput{
		OrderID:          "ord-1",
		ItemID:           "oi-1",
		ApprovedQuantity: f64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusUnderReview, view.Status)
	assert.Equal(t, 3.0, *view.Items[0].ApprovedQuantity)
}

func TestReceiveItems_PartialSaveRecordsWithoutStock(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedItem(inv, "item-1", "Green Onions", func(i *model.InventoryItem) {
		i.CurrentStock = 10
	})
	seedOrder(repo, "ord-1", model.OrderStatusOrdered, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-1", sp("item-1"), 8, nil)}
	})

	view, err := uc.ReceiveItems(context.Background(), creatorActor(), "ord-1", &dto.ReceiveInput{
		Items: []dto.ReceiveItemInput{{OrderItemID: "oi-1", ReceivedQuantity: 6}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusOrdered, view.Status, "partial saves do not settle the order")
	assert.Equal(t, 6.0, *view.Items[0].ReceivedQuantity)
	assert.False(t, view.Items[0].IsReceived)
	assert.Equal(t, 10.0, inv.items["item-1"].CurrentStock, "stock moves only on finalize")
	assert.Empty(t, repo.movements)
	assert.Equal(t, 1, repo.progressSaves)
}

func TestReceiveItems_StockFollowsCorrections(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedItem(inv, "item-1", "Green Onions", func(i *model.InventoryItem) {
		i.CurrentStock = 10
	})
	seedOrder(repo, "ord-1", model.OrderStatusOrdered, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-1", sp("item-1"), 8, nil)}
	})
	receive := func(qty float64) *dto.OrderView {
		view, err := uc.ReceiveItems(context.Background(), creatorActor(), "ord-1", &dto.ReceiveInput{
			Items:    []dto.ReceiveItemInput{{OrderItemID: "oi-1", ReceivedQuantity: qty}},
			Finalize: true,
		})
		require.NoError(t, err)
		return view
	}

	// A prior partial save must not count against the delta.
	_, err := uc.ReceiveItems(context.Background(), creatorActor(), "ord-1", &dto.ReceiveInput{
		Items: []dto.ReceiveItemInput{{OrderItemID: "oi-1", ReceivedQuantity: 6}},
	})
	require.NoError(t, err)

	view := receive(6)
	assert.Equal(t, model.OrderStatusReceived, view.Status)
	require.NotNil(t, view.ReceivedAt)
	assert.True(t, view.Items[0].IsReceived)
	assert.Equal(t, 16.0, inv.items["item-1"].CurrentStock)

	// Correcting 6 to 10 applies the difference, not the full amount again.
	receive(10)
	assert.Equal(t, 20.0, inv.items["item-1"].CurrentStock)

	// Re-finalizing the same numbers is a no-op.
	receive(10)
	assert.Equal(t, 20.0, inv.items["item-1"].CurrentStock)

	require.Len(t, repo.movements, 2)
	first, second := repo.movements[0], repo.movements[1]
	assert.Equal(t, 6.0, first.QuantityChange)
	assert.Equal(t, 10.0, first.QuantityBefore)
	assert.Equal(t, 16.0, first.QuantityAfter)
	assert.Equal(t, 4.0, second.QuantityChange)
	assert.Equal(t, model.MovementReceiving, first.MovementType)
	require.NotNil(t, first.ReferenceID)
	assert.Equal(t, "ord-1", *first.ReferenceID)
	require.NotNil(t, first.CreatedBy)
	assert.Equal(t, "worker-1", *first.CreatedBy)
}

func TestReceiveItems_MixedLinesPartiallyReceive(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedItem(inv, "item-1", "Green Onions", func(i *model.InventoryItem) {
		i.CurrentStock = 10
	})
	seedOrder(repo, "ord-1", model.OrderStatusOrdered, func(o *model.Order) {
		o.Items = []model.OrderItem{
			orderLine("oi-1", sp("item-1"), 8, nil),
			func() model.OrderItem {
				it := orderLine("oi-2", nil, 1, nil)
				it.CustomItemName = sp("Firewood Permit")
				it.Flag = model.FlagCustom
				return it
			}(),
		}
	})

	view, err := uc.ReceiveItems(context.Background(), creatorActor(), "ord-1", &dto.ReceiveInput{
		Items:    []dto.ReceiveItemInput{{OrderItemID: "oi-1", ReceivedQuantity: 8}},
		Finalize: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPartiallyReceived, view.Status)

	view, err = uc.ReceiveItems(context.Background(), creatorActor(), "ord-1", &dto.ReceiveInput{
		Items:    []dto.ReceiveItemInput{{OrderItemID: "oi-2", ReceivedQuantity: 1}},
		Finalize: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusReceived, view.Status)

	// Only the catalog-linked line moved stock.
	require.Len(t, repo.movements, 1)
	assert.Equal(t, "item-1", repo.movements[0].InventoryItemID)
}

func TestReceiveItems_ValidatesBatchBeforeWriting(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedItem(inv, "item-1", "Green Onions", func(i *model.InventoryItem) {
		i.CurrentStock = 10
	})
	seedOrder(repo, "ord-1", model.OrderStatusOrdered, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-1", sp("item-1"), 8, nil)}
	})

	_, err := uc.ReceiveItems(context.Background(), creatorActor(), "ord-1", &dto.ReceiveInput{
		Items: []dto.ReceiveItemInput{
			{OrderItemID: "oi-1", ReceivedQuantity: 8},
			{OrderItemID: "oi-404", ReceivedQuantity: 2},
		},
		Finalize: true,
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeNotPartOfOrder, model.CodeOf(err))

	assert.Nil(t, repo.orders["ord-1"].Items[0].ReceivedQuantity, "one bad line rejects the whole batch")
	assert.Equal(t, 10.0, inv.items["item-1"].CurrentStock)
	assert.Empty(t, repo.movements)
}

func TestReceiveItems_RequiresReceivableStatus(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusDraft, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-1", nil, 8, nil)}
	})

	_, err := uc.ReceiveItems(context.Background(), creatorActor(), "ord-1", &dto.ReceiveInput{
		Items: []dto.ReceiveItemInput{{OrderItemID: "oi-1", ReceivedQuantity: 8}},
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodePrecondition, model.CodeOf(err))

	// A worker from another property cannot receive here either.
	other := "prop-2"
	_, err = uc.ReceiveItems(context.Background(), model.Actor{UserID: "worker-2", Role: model.RoleCampWorker, PropertyID: &other},
		"ord-1", &dto.ReceiveInput{Items: []dto.ReceiveItemInput{{OrderItemID: "oi-1", ReceivedQuantity: 8}}})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))
}

func TestShortages_AggregatesByItem(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	repo.shortageRows = []dto.ShortageRow{
		{
			OrderItemID: "oi-1", OrderID: "ord-A", OrderNumber: "BEAR-20260817-2",
			PropertyID: "prop-1", PropertyName: "Bear Camp",
			InventoryItemID: sp("item-1"), ItemName: "Green Onions", UnitPrice: f64(2),
			RequestedQuantity: 10, ApprovedQuantity: f64(10), ReceivedQuantity: f64(8),
		},
		{
			OrderItemID: "oi-2", OrderID: "ord-B", OrderNumber: "BEAR-20260810",
			PropertyID: "prop-1", PropertyName: "Bear Camp",
			InventoryItemID: sp("item-1"), ItemName: "Green Onions", UnitPrice: f64(2),
			RequestedQuantity: 5, ReceivedQuantity: f64(2),
		},
		{
			OrderItemID: "oi-3", OrderID: "ord-B", OrderNumber: "BEAR-20260810",
			PropertyID: "prop-1", PropertyName: "Bear Camp",
			ItemName: "Birthday Candles",
			RequestedQuantity: 4, ReceivedQuantity: f64(1),
		},
	}

	list, err := uc.Shortages(context.Background(), creatorActor(), "prop-2")
	require.NoError(t, err)
	assert.Equal(t, "prop-1", repo.shortageProp, "workers are pinned to their own property")

	require.Len(t, list.Items, 2)
	onions := list.Items[0]
	assert.Equal(t, "Green Onions", onions.ItemName)
	assert.Equal(t, 5.0, onions.TotalShortage, "2 short on one order, 3 on the other")
	assert.Equal(t, 2, onions.OrderCount)
	assert.Equal(t, "BEAR-20260817-2", onions.LatestOrderNumber)
	assert.Equal(t, []string{"oi-1", "oi-2"}, onions.SourceOrderItemIDs)

	candles := list.Items[1]
	assert.Equal(t, "Birthday Candles", candles.ItemName)
	assert.Equal(t, 3.0, candles.TotalShortage)

	assert.Equal(t, 10.0, list.TotalShortageValue, "unpriced lines count zero value")
	assert.Equal(t, 2, list.TotalCount)
}

func TestDismissShortages(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusReceived, func(o *model.Order) {
		o.Items = []model.OrderItem{
			orderLine("oi-1", nil, 5, nil),
			orderLine("oi-2", nil, 3, nil),
		}
	})

	_, err := uc.DismissShortages(context.Background(), creatorActor(), &dto.DismissShortagesInput{OrderItemIDs: []string{"oi-1"}})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))

	_, err = uc.DismissShortages(context.Background(), reviewerActor(), &dto.DismissShortagesInput{OrderItemIDs: []string{"oi-404"}})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeNotFound, model.CodeOf(err))

	n, err := uc.DismissShortages(context.Background(), reviewerActor(), &dto.DismissShortagesInput{OrderItemIDs: []string{"oi-1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, repo.orders["ord-1"].Items[0].ShortageDismissed)

	// Dismissing again counts nothing new.
	n, err = uc.DismissShortages(context.Background(), reviewerActor(), &dto.DismissShortagesInput{OrderItemIDs: []string{"oi-1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestAutoGenerate_SuggestsFromThresholds(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	// Below par with usage history: order back to par plus a week of usage.
	seedItem(inv, "item-1", "Green Onions", func(i *model.InventoryItem) {
		i.ParLevel = f64(10)
		i.CurrentStock = 4
		i.AvgWeeklyUsage = f64(3)
		i.UnitPrice = f64(2)
	})
	// Ordered by the case: the need converts and rounds up.
	seedItem(inv, "item-2", "Paper Towels", func(i *model.InventoryItem) {
		i.ParLevel = f64(12)
		i.CurrentStock = 2
		i.OrderUnit = sp("Case")
		i.UnitsPerOrderUnit = f64(4)
		i.UnitPrice = f64(8)
	})
	// Comfortably stocked: skipped.
	seedItem(inv, "item-3", "Flour", func(i *model.InventoryItem) {
		i.ParLevel = f64(10)
		i.CurrentStock = 30
	})
	// No par, no threshold: reordering is not tracked.
	seedItem(inv, "item-4", "Loaner Radios", nil)

	view, err := uc.AutoGenerateOrder(context.Background(), creatorActor(), &dto.AutoGenerateInput{PropertyID: "prop-1"})
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	byItem := map[string]dto.ItemView{}
	for _, it := range view.Items {
		byItem[*it.InventoryItemID] = it
	}

	onions := byItem["item-1"]
	assert.Equal(t, 9.0, onions.RequestedQuantity, "par 10 - stock 4 + usage 3")
	assert.Equal(t, model.FlagLowStock, onions.Flag)
	assert.Equal(t, "Each", onions.EffectiveUnit)

	towels := byItem["item-2"]
	assert.Equal(t, 3.0, towels.RequestedQuantity, "10 needed at 4 per case rounds up to 3 cases")
	assert.Equal(t, "Case", towels.EffectiveUnit)

	assert.Equal(t, 9*2.0+3*8.0, view.EstimatedTotal)
}

func TestAutoGenerate_NothingToReorder(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedItem(inv, "item-3", "Flour", func(i *model.InventoryItem) {
		i.ParLevel = f64(10)
		i.CurrentStock = 30
	})

	_, err := uc.AutoGenerateOrder(context.Background(), creatorActor(), &dto.AutoGenerateInput{PropertyID: "prop-1"})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodePrecondition, model.CodeOf(err))
}

func TestSeedHistoricalOrder(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedItem(inv, "item-1", "Sockeye Salmon", nil)

	_, err := uc.SeedHistoricalOrder(context.Background(), creatorActor(), &dto.SeedOrderInput{
		PropertyID: "prop-1",
		Items:      []dto.SeedItemInput{{ItemName: "Sockeye Salmon", Quantity: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))

	orderDate := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)
	result, err := uc.SeedHistoricalOrder(context.Background(), reviewerActor(), &dto.SeedOrderInput{
		PropertyID:   "prop-1",
		SupplierName: sp("Sysco"),
		OrderDate:    &orderDate,
		Items: []dto.SeedItemInput{
			{ItemName: "Sockeye Salmon", Quantity: 6, Unit: sp("Case"), UnitPrice: f64(120), Category: sp("Proteins")},
			{ItemName: "Moose Jerky", Quantity: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, dto.SeedOutcomeMatched, result.ItemResults[0].Outcome)
	assert.Equal(t, "item-1", result.ItemResults[0].InventoryItemID)
	assert.Equal(t, dto.SeedOutcomeCreated, result.ItemResults[1].Outcome)

	// The matched hit filled the catalog gaps it found.
	salmon := inv.items["item-1"]
	require.NotNil(t, salmon.UnitPrice)
	assert.Equal(t, 120.0, *salmon.UnitPrice)
	require.NotNil(t, salmon.Category)
	assert.Equal(t, "Proteins", *salmon.Category)

	jerky := inv.items[result.ItemResults[1].InventoryItemID]
	assert.Equal(t, "Moose Jerky", jerky.Name)
	assert.False(t, jerky.IsRecurring)
	require.NotNil(t, jerky.SupplierID)
	assert.Equal(t, "sup-1", *jerky.SupplierID)

	ord := result.Order
	assert.Equal(t, model.OrderStatusReceived, ord.Status)
	assert.Equal(t, "BEAR-20260704", ord.OrderNumber)
	require.NotNil(t, ord.ReceivedAt)
	assert.True(t, ord.ReceivedAt.Equal(orderDate))
	for _, it := range ord.Items {
		assert.True(t, it.IsReceived)
		assert.Equal(t, it.RequestedQuantity, *it.ReceivedQuantity)
	}
}

func TestMarkOrdered_RoundTrip(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusApproved, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-1", nil, 5, nil)}
	})

	_, err := uc.MarkOrdered(context.Background(), creatorActor(), "ord-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))

	view, err := uc.MarkOrdered(context.Background(), reviewerActor(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusOrdered, view.Status)
	require.NotNil(t, view.OrderedAt)
	require.NotNil(t, view.OrderedBy)
	assert.Equal(t, "user-1", *view.OrderedBy)

	view, err = uc.UnmarkOrdered(context.Background(), reviewerActor(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusApproved, view.Status)
	assert.Nil(t, view.OrderedAt)
	assert.Nil(t, view.OrderedBy)

	_, err = uc.UnmarkOrdered(context.Background(), reviewerActor(), "ord-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodePrecondition, model.CodeOf(err))
}

func TestWithdraw_ReturnsToDraft(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	now := time.Now().UTC()
	by := "user-1"
	seedOrder(repo, "ord-1", model.OrderStatusApproved, func(o *model.Order) {
		o.SubmittedAt = &now
		o.ReviewedAt = &now
		o.ReviewedBy = &by
		o.ApprovedAt = &now
		o.Items = []model.OrderItem{orderLine("oi-1", nil, 5, nil)}
	})

	view, err := uc.WithdrawOrder(context.Background(), creatorActor(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDraft, view.Status)
	assert.Nil(t, view.SubmittedAt)
	assert.Nil(t, view.ReviewedAt)
	assert.Nil(t, view.ApprovedAt)

	// Once the purchase went out there is nothing to withdraw.
	seedOrder(repo, "ord-2", model.OrderStatusOrdered, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-2", nil, 5, nil)}
	})
	_, err = uc.WithdrawOrder(context.Background(), creatorActor(), "ord-2")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodePrecondition, model.CodeOf(err))
}

func TestUpdateOrder_DraftOnly(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusSubmitted, nil)

	_, err := uc.UpdateOrder(context.Background(), creatorActor(), &dto.UpdateOrderInput{
		ID:    "ord-1",
		Notes: sp("forgot the syrup"),
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodePrecondition, model.CodeOf(err))
}

func TestAddRemoveOrderItem(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedItem(inv, "item-1", "Green Onions", func(i *model.InventoryItem) {
		i.UnitPrice = f64(2)
	})
	seedOrder(repo, "ord-1", model.OrderStatusDraft, nil)

	view, err := uc.AddOrderItem(context.Background(), creatorActor(), "ord-1", &dto.OrderItemInput{
		InventoryItemID:   sp("item-1"),
		RequestedQuantity: 3,
	})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 6.0, view.EstimatedTotal)
	itemID := view.Items[0].ID

	_, err = uc.RemoveOrderItem(context.Background(), creatorActor(), "ord-1", "oi-404")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeNotPartOfOrder, model.CodeOf(err))

	view, err = uc.RemoveOrderItem(context.Background(), creatorActor(), "ord-1", itemID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0.0, view.EstimatedTotal)

	// Approved orders are locked.
	seedOrder(repo, "ord-2", model.OrderStatusApproved, nil)
	_, err = uc.AddOrderItem(context.Background(), creatorActor(), "ord-2", &dto.OrderItemInput{
		InventoryItemID:   sp("item-1"),
		RequestedQuantity: 1,
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodePrecondition, model.CodeOf(err))
}

func TestPendingReview_FiltersToReviewQueue(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedOrder(repo, "ord-1", model.OrderStatusDraft, nil)
	seedOrder(repo, "ord-2", model.OrderStatusSubmitted, nil)
	seedOrder(repo, "ord-3", model.OrderStatusUnderReview, nil)
	seedOrder(repo, "ord-4", model.OrderStatusApproved, nil)

	_, err := uc.PendingReview(context.Background(), creatorActor(), 0, 50)
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))

	list, err := uc.PendingReview(context.Background(), reviewerActor(), 0, 50)
	require.NoError(t, err)
	require.Len(t, list.Orders, 2)
	assert.Equal(t, "ord-2", list.Orders[0].ID)
	assert.Equal(t, "ord-3", list.Orders[1].ID)
}

func TestSupplierPurchaseList_GroupsBySupplier(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	seedItem(inv, "item-1", "Green Onions", func(i *model.InventoryItem) {
		i.SupplierID = sp("sup-1")
	})
	seedOrder(repo, "ord-1", model.OrderStatusApproved, func(o *model.Order) {
		o.Items = []model.OrderItem{
			orderLine("oi-1", sp("item-1"), 4, f64(2.5)),
			func() model.OrderItem {
				it := orderLine("oi-2", nil, 1, nil)
				it.CustomItemName = sp("Firewood Permit")
				it.Flag = model.FlagCustom
				return it
			}(),
		}
	})
	// Drafts never make the shopping list.
	seedOrder(repo, "ord-2", model.OrderStatusDraft, func(o *model.Order) {
		o.Items = []model.OrderItem{orderLine("oi-3", sp("item-1"), 2, f64(2.5))}
	})

	_, err := uc.SupplierPurchaseList(context.Background(), creatorActor(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))

	list, err := uc.SupplierPurchaseList(context.Background(), reviewerActor(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, list.TotalOrders)
	require.Len(t, list.Suppliers, 2)

	sysco := list.Suppliers[0]
	assert.Equal(t, "Sysco", sysco.SupplierName)
	assert.Equal(t, 1, sysco.TotalItems)
	assert.Equal(t, 10.0, sysco.TotalValue)
	assert.Equal(t, "Green Onions", sysco.Items[0].ItemName)

	unassigned := list.Suppliers[1]
	assert.Equal(t, "Unassigned", unassigned.SupplierName)
	assert.Nil(t, unassigned.SupplierID)
	assert.Equal(t, "Firewood Permit", unassigned.Items[0].ItemName)

	assert.Equal(t, 10.0, list.GrandTotal)
}

func TestSummaryByProperty_ReviewerOnly(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)
	repo.summaries = []dto.PropertySummary{
		{PropertyID: "prop-1", PropertyName: "Bear Camp", PropertyCode: "BEAR", PendingOrders: 2, TotalEstimated: 480},
	}

	_, err := uc.SummaryByProperty(context.Background(), creatorActor())
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))

	rows, err := uc.SummaryByProperty(context.Background(), reviewerActor())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].PendingOrders)
}

func TestFlaggedItems_EmptyIsNotNil(t *testing.T) {
	repo, inv, ref := newFakes()
	uc := newTestUseCase(repo, inv, ref)

	list, err := uc.FlaggedItems(context.Background(), reviewerActor(), "prop-1")
	require.NoError(t, err)
	assert.NotNil(t, list.Items)
	assert.Equal(t, 0, list.TotalCount)
}
