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
	"github.com/campops/procurement-service/internal/order"
	"github.com/campops/procurement-service/internal/receipt/dto"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	receipts map[string]model.Receipt
	aliases  map[string]model.ReceiptCodeAlias

	lastReplaceLines bool
	lastPrevOrderID  *string
	dashboardProp    string
	dashboard        *dto.FinancialDashboard
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		receipts: map[string]model.Receipt{},
		aliases:  map[string]model.ReceiptCodeAlias{},
	}
}

func (r *fakeRepo) store(rec *model.Receipt) {
	cp := *rec
	cp.LineItems = append([]model.ReceiptLineItem(nil), rec.LineItems...)
	r.receipts[rec.ID] = cp
}

func (r *fakeRepo) Create(_ context.Context, rec *model.Receipt) error {
	r.store(rec)
	return nil
}

func (r *fakeRepo) Update(_ context.Context, rec *model.Receipt, replaceLines bool, prevOrderID *string) error {
	r.lastReplaceLines = replaceLines
	r.lastPrevOrderID = prevOrderID
	if !replaceLines {
		if stored, ok := r.receipts[rec.ID]; ok {
			rec.LineItems = stored.LineItems
		}
	}
	r.store(rec)
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, rec *model.Receipt) error {
	delete(r.receipts, rec.ID)
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*model.Receipt, error) {
	rec, ok := r.receipts[id]
	if !ok {
		return nil, nil
	}
	cp := rec
	cp.LineItems = append([]model.ReceiptLineItem(nil), rec.LineItems...)
	return &cp, nil
}

func (r *fakeRepo) FindAll(_ context.Context, f *dto.ReceiptFilters) ([]model.Receipt, int, error) {
	var out []model.Receipt
	for _, rec := range r.receipts {
		if f.PropertyID != "" && rec.PropertyID != f.PropertyID {
			continue
		}
		if f.Verified != nil && rec.IsManuallyVerified != *f.Verified {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *fakeRepo) PendingVerification(_ context.Context, propertyID string) ([]model.Receipt, error) {
	var out []model.Receipt
	for _, rec := range r.receipts {
		if rec.IsManuallyVerified {
			continue
		}
		if propertyID != "" && rec.PropertyID != propertyID {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) SaveLine(_ context.Context, rec *model.Receipt, line *model.ReceiptLineItem) error {
	stored := r.receipts[rec.ID]
	stored.Subtotal = rec.Subtotal
	stored.Tax = rec.Tax
	stored.Total = rec.Total
	stored.UpdatedAt = rec.UpdatedAt
	for i := range stored.LineItems {
		if stored.LineItems[i].ID == line.ID {
			stored.LineItems[i] = *line
		}
	}
	r.receipts[rec.ID] = stored
	return nil
}

func (r *fakeRepo) DeleteLine(_ context.Context, rec *model.Receipt, lineID string) error {
	stored := r.receipts[rec.ID]
	stored.Subtotal = rec.Subtotal
	stored.Tax = rec.Tax
	stored.Total = rec.Total
	var kept []model.ReceiptLineItem
	for _, ln := range stored.LineItems {
		if ln.ID != lineID {
			kept = append(kept, ln)
		}
	}
	stored.LineItems = kept
	r.receipts[rec.ID] = stored
	return nil
}

func aliasKey(code string, supplierID *string) string {
	if supplierID == nil {
		return code
	}
	return code + "|" + *supplierID
}

func (r *fakeRepo) AliasesForMatching(_ context.Context, _ string, supplierID *string) ([]model.ReceiptCodeAlias, error) {
	var out []model.ReceiptCodeAlias
	for _, a := range r.aliases {
		if !a.IsActive {
			continue
		}
		switch {
		case a.SupplierID == nil:
			out = append(out, a)
		case supplierID != nil && *a.SupplierID == *supplierID:
			out = append(out, a)
		}
	}
	// Supplier-specific rows first, like the SQL ordering.
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].SupplierID != nil, out[j].SupplierID != nil
		if si != sj {
			return si
		}
		return out[i].MatchCount > out[j].MatchCount
	})
	return out, nil
}

func (r *fakeRepo) UpsertAlias(_ context.Context, proto *model.ReceiptCodeAlias) (*model.ReceiptCodeAlias, error) {
	key := aliasKey(proto.ReceiptCode, proto.SupplierID)
	for id, a := range r.aliases {
		if a.IsActive && aliasKey(a.ReceiptCode, a.SupplierID) == key {
			a.InventoryItemID = proto.InventoryItemID
			a.MatchCount++
			a.LastSeen = proto.LastSeen
			a.UpdatedAt = proto.LastSeen
			r.aliases[id] = a
			cp := a
			return &cp, nil
		}
	}
	r.aliases[proto.ID] = *proto
	cp := *proto
	return &cp, nil
}

func (r *fakeRepo) ListAliases(_ context.Context, _ string) ([]dto.AliasView, error) {
	var out []dto.AliasView
	for _, a := range r.aliases {
		if a.IsActive {
			out = append(out, dto.AliasView{ReceiptCodeAlias: a})
		}
	}
	return out, nil
}

func (r *fakeRepo) FindAliasByID(_ context.Context, id string) (*model.ReceiptCodeAlias, error) {
	a, ok := r.aliases[id]
	if !ok {
		return nil, nil
	}
	cp := a
	return &cp, nil
}

func (r *fakeRepo) DeactivateAlias(_ context.Context, id string) error {
	a := r.aliases[id]
	a.IsActive = false
	r.aliases[id] = a
	return nil
}

func (r *fakeRepo) Dashboard(_ context.Context, propertyID string, _ time.Time) (*dto.FinancialDashboard, error) {
	r.dashboardProp = propertyID
	if r.dashboard != nil {
		return r.dashboard, nil
	}
	return &dto.FinancialDashboard{}, nil
}

// fakeOrders stubs only what reconciliation reads; the embedded interface
// covers the rest of the contract.
type fakeOrders struct {
	order.Repository
	orders map[string]model.Order
	items  map[string]model.OrderItem
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[string]model.Order{}, items: map[string]model.OrderItem{}}
}

func (r *fakeOrders) FindByID(_ context.Context, id string) (*model.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := o
	return &cp, nil
}

func (r *fakeOrders) FindItemsByIDs(_ context.Context, ids []string) ([]model.OrderItem, error) {
	var out []model.OrderItem
	for _, id := range ids {
		if it, ok := r.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

type fakeInv struct {
	inventory.Repository
	items map[string]model.InventoryItem
}

func newFakeInv() *fakeInv {
	return &fakeInv{items: map[string]model.InventoryItem{}}
}

func (r *fakeInv) Create(_ context.Context, item *model.InventoryItem) error {
	r.items[item.ID] = *item
	return nil
}

func (r *fakeInv) Update(_ context.Context, item *model.InventoryItem) error {
	r.items[item.ID] = *item
	return nil
}

func (r *fakeInv) FindByID(_ context.Context, id string) (*model.InventoryItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	cp := item
	return &cp, nil
}

func (r *fakeInv) ActiveByProperty(_ context.Context, propertyID string) ([]model.InventoryItem, error) {
	var out []model.InventoryItem
	for _, item := range r.items {
		if item.IsActive && item.PropertyID == propertyID {
			out = append(out, item)
		}
	}
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

func testRef() *fakeRef {
	return &fakeRef{
		properties: map[string]model.Property{
			"prop-1": {BaseModel: model.BaseModel{ID: "prop-1"}, Name: "Bear Camp", Code: "BEAR", IsActive: true},
			"prop-2": {BaseModel: model.BaseModel{ID: "prop-2"}, Name: "Yukon River Camp", Code: "YRC", IsActive: true},
		},
		suppliers: map[string]model.Supplier{
			"sup-1": {BaseModel: model.BaseModel{ID: "sup-1"}, Name: "Sysco", IsActive: true},
		},
		users: map[string]model.User{
			"user-1": {BaseModel: model.BaseModel{ID: "user-1"}, Email: "sam@camp.test", FullName: "Sam P", Role: model.RoleSupervisor},
		},
	}
}

func newTestUseCase(repo *fakeRepo, orders *fakeOrders, inv *fakeInv, ref *fakeRef) *receiptUseCase {
	uc := NewReceiptUseCase(repo, orders, inv, ref,
		config.CatalogConfig{
			Categories: []string{"Produce", "Dairy", "Dry Goods", "Other"},
			Units:      []string{"Each", "Case", "Lb", "Unit"},
		},
		logger.NewNop(),
	)
	return uc.(*receiptUseCase)
}

func seedInvItem(inv *fakeInv, id, propertyID, name string) model.InventoryItem {
	item := model.InventoryItem{
		BaseModel:   model.BaseModel{ID: id, CreatedAt: time.Now(), UpdatedAt: time.Now()},
		PropertyID:  propertyID,
		Name:        name,
		Unit:        "Each",
		IsRecurring: true,
		IsActive:    true,
	}
	inv.items[id] = item
	return item
}

func seedOrder(orders *fakeOrders, id, propertyID string) model.Order {
	o := model.Order{
		BaseModel:   model.BaseModel{ID: id},
		PropertyID:  propertyID,
		OrderNumber: "BEAR-20260820",
		Status:      model.OrderStatusOrdered,
		CreatedBy:   "user-1",
	}
	orders.orders[id] = o
	return o
}

func seedOrderItem(orders *fakeOrders, id, orderID string, invItemID *string) model.OrderItem {
	it := model.OrderItem{
		BaseModel:         model.BaseModel{ID: id},
		OrderID:           orderID,
		InventoryItemID:   invItemID,
		RequestedQuantity: 1,
		Flag:              model.FlagManual,
	}
	orders.items[id] = it
	return it
}

func reviewerActor() model.Actor {
	return model.Actor{UserID: "user-1", Role: model.RoleSupervisor}
}

func workerActor(propertyID string) model.Actor {
	return model.Actor{UserID: "worker-1", Role: model.RoleCampWorker, PropertyID: &propertyID}
}

func f64(v float64) *float64 { return &v }

func sp(v string) *string { return &v }

func TestReconcile_ExtractorHintWins(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedInvItem(inv, "item-1", "prop-1", "Green Onions")
	seedOrder(orders, "ord-1", "prop-1")
	seedOrderItem(orders, "oi-1", "ord-1", sp("item-1"))

	result, err := uc.Reconcile(context.Background(), reviewerActor(), &dto.ExtractionInput{
		OrderID: sp("ord-1"),
		LineItems: []dto.ExtractedLineInput{
			{ItemName: "GRN ONIONS", Quantity: f64(3), UnitPrice: f64(2.5), TotalPrice: f64(7.5), MatchedOrderItemID: sp("oi-1")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.MatchedLines)
	assert.Equal(t, 0, result.AliasMatches)
	assert.Equal(t, 0, result.UnmatchedLines)
	assert.Equal(t, "prop-1", result.Receipt.PropertyID, "property derived from the order")

	line := result.Receipt.LineItems[0]
	require.NotNil(t, line.MatchedInventoryItemID)
	assert.Equal(t, "item-1", *line.MatchedInventoryItemID)

	// The matched price flowed back into the catalog.
	assert.Equal(t, 2.5, *inv.items["item-1"].UnitPrice)

	// And the shorthand was learned for next time.
	require.Len(t, repo.aliases, 1)
	for _, a := range repo.aliases {
		assert.Equal(t, "grn onions", a.ReceiptCode)
		assert.Equal(t, "item-1", a.InventoryItemID)
		assert.Equal(t, 1, a.MatchCount)
	}
}

func TestReconcile_AliasResolvesKnownCode(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedInvItem(inv, "item-1", "prop-1", "Mayonnaise")
	repo.aliases["al-1"] = model.ReceiptCodeAlias{
		BaseModel:       model.BaseModel{ID: "al-1"},
		ReceiptCode:     "mayo 1gal",
		InventoryItemID: "item-1",
		SupplierID:      sp("sup-1"),
		MatchCount:      4,
		IsActive:        true,
	}

	result, err := uc.Reconcile(context.Background(), reviewerActor(), &dto.ExtractionInput{
		PropertyID:   "prop-1",
		SupplierName: sp("Sysco"),
		LineItems: []dto.ExtractedLineInput{
			{ItemName: "MAYO-1GAL", UnitPrice: f64(11.2)},
			{ItemName: "Mystery Crate"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.MatchedLines)
	assert.Equal(t, 1, result.AliasMatches)
	assert.Equal(t, 1, result.UnmatchedLines)

	require.NotNil(t, result.Receipt.SupplierID)
	assert.Equal(t, "sup-1", *result.Receipt.SupplierID)
	require.NotNil(t, result.Receipt.SupplierName)
	assert.Equal(t, "Sysco", *result.Receipt.SupplierName)

	assert.Equal(t, "item-1", *result.Receipt.LineItems[0].MatchedInventoryItemID)
	assert.Nil(t, result.Receipt.LineItems[1].MatchedInventoryItemID)

	// The hit re-trained the alias rather than minting a duplicate.
	require.Len(t, repo.aliases, 1)
	assert.Equal(t, 5, repo.aliases["al-1"].MatchCount)
}

func TestReconcile_SecondReceiptLearnsFromFirst(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedInvItem(inv, "item-1", "prop-1", "Sockeye Salmon")
	seedOrder(orders, "ord-1", "prop-1")
	seedOrderItem(orders, "oi-1", "ord-1", sp("item-1"))

	_, err := uc.Reconcile(context.Background(), reviewerActor(), &dto.ExtractionInput{
		OrderID: sp("ord-1"),
		LineItems: []dto.ExtractedLineInput{
			{ItemName: "SOCK SALMON", MatchedOrderItemID: sp("oi-1")},
		},
	})
	require.NoError(t, err)

	// Same shorthand on a later receipt, no extractor hint this time.
	result, err := uc.Reconcile(context.Background(), reviewerActor(), &dto.ExtractionInput{
		PropertyID: "prop-1",
		LineItems:  []dto.ExtractedLineInput{{ItemName: "Sock Salmon"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.AliasMatches)
	assert.Equal(t, "item-1", *result.Receipt.LineItems[0].MatchedInventoryItemID)

	require.Len(t, repo.aliases, 1)
	for _, a := range repo.aliases {
		assert.Equal(t, 2, a.MatchCount)
	}
}

func TestReconcile_ForeignHintDegradesToUnmatched(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedOrder(orders, "ord-1", "prop-1")
	seedOrder(orders, "ord-2", "prop-1")
	seedOrderItem(orders, "oi-other", "ord-2", sp("item-9"))

	result, err := uc.Reconcile(context.Background(), reviewerActor(), &dto.ExtractionInput{
		OrderID: sp("ord-1"),
		LineItems: []dto.ExtractedLineInput{
			{ItemName: "Paper Towels", MatchedOrderItemID: sp("oi-other")},
		},
	})
	require.NoError(t, err, "a stale hint must not fail the receipt")

	assert.Equal(t, 0, result.MatchedLines)
	assert.Equal(t, 1, result.UnmatchedLines)
	assert.Nil(t, result.Receipt.LineItems[0].MatchedOrderItemID, "the bad hint is dropped")
	assert.Empty(t, repo.aliases)
}

func TestReconcile_AmountChecksAnnotate(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)

	result, err := uc.Reconcile(context.Background(), reviewerActor(), &dto.ExtractionInput{
		PropertyID:      "prop-1",
		Subtotal:        f64(100),
		Tax:             f64(8),
		Total:           f64(120),
		ConfidenceScore: f64(0.9),
		LineItems: []dto.ExtractedLineInput{
			{ItemName: "Flour", TotalPrice: f64(60)},
			{ItemName: "Sugar", TotalPrice: f64(30)},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.ValidationNotes, 2)
	assert.Contains(t, result.ValidationNotes[0], "90.00")
	assert.Contains(t, result.ValidationNotes[1], "does not equal total")

	require.NotNil(t, result.Receipt.ValidationNotes)
	assert.Contains(t, *result.Receipt.ValidationNotes, "; ")
	assert.InDelta(t, 0.7, *result.Receipt.ConfidenceScore, 1e-9, "one penalty per failed check")
}

func TestReconcile_MissingTaxCountsAsZero(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)

	result, err := uc.Reconcile(context.Background(), reviewerActor(), &dto.ExtractionInput{
		PropertyID: "prop-1",
		Subtotal:   f64(100),
		Total:      f64(108),
		LineItems:  []dto.ExtractedLineInput{{ItemName: "Flour", TotalPrice: f64(100)}},
	})
	require.NoError(t, err)

	require.Len(t, result.ValidationNotes, 1)
	assert.Contains(t, result.ValidationNotes[0], "plus tax 0.00")
}

func TestReconcile_CleanAmountsLeaveNoNotes(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)

	result, err := uc.Reconcile(context.Background(), reviewerActor(), &dto.ExtractionInput{
		PropertyID:      "prop-1",
		Subtotal:        f64(90),
		Tax:             f64(7.2),
		Total:           f64(97.2),
		ConfidenceScore: f64(0.9),
		LineItems: []dto.ExtractedLineInput{
			{ItemName: "Flour", TotalPrice: f64(60)},
			{ItemName: "Sugar", TotalPrice: f64(30)},
		},
	})
	require.NoError(t, err)

	assert.Empty(t, result.ValidationNotes)
	assert.Nil(t, result.Receipt.ValidationNotes)
	assert.InDelta(t, 0.9, *result.Receipt.ConfidenceScore, 1e-9)
}

func TestReconcile_OrderPropertyMismatch(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedOrder(orders, "ord-1", "prop-2")

	_, err := uc.Reconcile(context.Background(), reviewerActor(), &dto.ExtractionInput{
		PropertyID: "prop-1",
		OrderID:    sp("ord-1"),
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeValidation, model.CodeOf(err))
}

func TestReconcile_RequiresReviewerRole(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)

	_, err := uc.Reconcile(context.Background(), workerActor("prop-1"), &dto.ExtractionInput{
		PropertyID: "prop-1",
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))
}

func TestGet_PropertyScope(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	repo.receipts["rcpt-1"] = model.Receipt{
		BaseModel:  model.BaseModel{ID: "rcpt-1"},
		PropertyID: "prop-1",
		SupplierID: sp("sup-1"),
		CreatedBy:  "user-1",
	}

	view, err := uc.Get(context.Background(), workerActor("prop-1"), "rcpt-1")
	require.NoError(t, err)
	require.NotNil(t, view.SupplierName)
	assert.Equal(t, "Sysco", *view.SupplierName)
	require.NotNil(t, view.CreatedByName)
	assert.Equal(t, "Sam P", *view.CreatedByName)

	_, err = uc.Get(context.Background(), workerActor("prop-2"), "rcpt-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))
}

func TestList_WorkerForcedToOwnProperty(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	repo.receipts["rcpt-1"] = model.Receipt{BaseModel: model.BaseModel{ID: "rcpt-1"}, PropertyID: "prop-1"}
	repo.receipts["rcpt-2"] = model.Receipt{BaseModel: model.BaseModel{ID: "rcpt-2"}, PropertyID: "prop-2"}

	list, err := uc.List(context.Background(), workerActor("prop-1"), &dto.ReceiptFilters{PropertyID: "prop-2"})
	require.NoError(t, err)
	require.Len(t, list.Receipts, 1)
	assert.Equal(t, "rcpt-1", list.Receipts[0].ID)

	// A worker with no property at all has no legal scope.
	noProp := model.Actor{UserID: "worker-2", Role: model.RoleCampWorker}
	_, err = uc.List(context.Background(), noProp, &dto.ReceiptFilters{})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))
}

func TestUpdate_RelinkRefreshesBothOrders(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedOrder(orders, "ord-1", "prop-1")
	seedOrder(orders, "ord-2", "prop-1")
	repo.receipts["rcpt-1"] = model.Receipt{
		BaseModel:  model.BaseModel{ID: "rcpt-1"},
		PropertyID: "prop-1",
		OrderID:    sp("ord-1"),
	}

	view, err := uc.Update(context.Background(), reviewerActor(), &dto.UpdateReceiptInput{
		ID:      "rcpt-1",
		OrderID: sp("ord-2"),
	})
	require.NoError(t, err)

	assert.Equal(t, "ord-2", *view.OrderID)
	require.NotNil(t, repo.lastPrevOrderID)
	assert.Equal(t, "ord-1", *repo.lastPrevOrderID, "the old order's actual total needs refreshing too")
	assert.False(t, repo.lastReplaceLines)
}

func TestVerify_MarksAndPushesPrices(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedInvItem(inv, "item-1", "prop-1", "Butter")
	repo.receipts["rcpt-1"] = model.Receipt{
		BaseModel:  model.BaseModel{ID: "rcpt-1"},
		PropertyID: "prop-1",
		LineItems: []model.ReceiptLineItem{{
			BaseModel:              model.BaseModel{ID: "ln-1"},
			ReceiptID:              "rcpt-1",
			ItemName:               "BUTTER SOLIDS",
			UnitPrice:              f64(4.75),
			MatchedInventoryItemID: sp("item-1"),
		}},
	}

	view, err := uc.Verify(context.Background(), reviewerActor(), "rcpt-1")
	require.NoError(t, err)

	assert.True(t, view.IsManuallyVerified)
	assert.True(t, repo.receipts["rcpt-1"].IsManuallyVerified)
	assert.Equal(t, 4.75, *inv.items["item-1"].UnitPrice)
}

func TestMatchLine_OrderItemPath(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedInvItem(inv, "item-1", "prop-1", "Green Onions")
	seedOrder(orders, "ord-1", "prop-1")
	seedOrderItem(orders, "oi-1", "ord-1", sp("item-1"))
	repo.receipts["rcpt-1"] = model.Receipt{
		BaseModel:  model.BaseModel{ID: "rcpt-1"},
		PropertyID: "prop-1",
		OrderID:    sp("ord-1"),
		SupplierID: sp("sup-1"),
		LineItems: []model.ReceiptLineItem{{
			BaseModel: model.BaseModel{ID: "ln-1"},
			ReceiptID: "rcpt-1",
			ItemName:  "GRN ONIONS",
			UnitPrice: f64(2.1),
		}},
	}

	view, err := uc.MatchLine(context.Background(), reviewerActor(), &dto.MatchLineInput{
		ReceiptID:   "rcpt-1",
		LineID:      "ln-1",
		OrderItemID: sp("oi-1"),
	})
	require.NoError(t, err)

	line := view.LineItems[0]
	assert.Equal(t, "oi-1", *line.MatchedOrderItemID)
	assert.Equal(t, "item-1", *line.MatchedInventoryItemID)

	assert.Equal(t, 2.1, *inv.items["item-1"].UnitPrice)
	require.Len(t, repo.aliases, 1)
	for _, a := range repo.aliases {
		assert.Equal(t, "grn onions", a.ReceiptCode)
		require.NotNil(t, a.SupplierID)
		assert.Equal(t, "sup-1", *a.SupplierID)
	}
}

func TestMatchLine_RejectsItemOutsideOrder(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedOrder(orders, "ord-1", "prop-1")
	seedOrder(orders, "ord-2", "prop-1")
	seedOrderItem(orders, "oi-other", "ord-2", nil)
	repo.receipts["rcpt-1"] = model.Receipt{
		BaseModel:  model.BaseModel{ID: "rcpt-1"},
		PropertyID: "prop-1",
		OrderID:    sp("ord-1"),
		LineItems:  []model.ReceiptLineItem{{BaseModel: model.BaseModel{ID: "ln-1"}, ReceiptID: "rcpt-1", ItemName: "Something"}},
	}

	_, err := uc.MatchLine(context.Background(), reviewerActor(), &dto.MatchLineInput{
		ReceiptID:   "rcpt-1",
		LineID:      "ln-1",
		OrderItemID: sp("oi-other"),
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeNotPartOfOrder, model.CodeOf(err))
}

func TestMatchLine_InventoryPathChecksProperty(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedInvItem(inv, "item-other", "prop-2", "Foreign Flour")
	repo.receipts["rcpt-1"] = model.Receipt{
		BaseModel:  model.BaseModel{ID: "rcpt-1"},
		PropertyID: "prop-1",
		LineItems:  []model.ReceiptLineItem{{BaseModel: model.BaseModel{ID: "ln-1"}, ReceiptID: "rcpt-1", ItemName: "Flour"}},
	}

	_, err := uc.MatchLine(context.Background(), reviewerActor(), &dto.MatchLineInput{
		ReceiptID:       "rcpt-1",
		LineID:          "ln-1",
		InventoryItemID: sp("item-other"),
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeValidation, model.CodeOf(err))
}

func TestMatchLine_RequiresExactlyOneTarget(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)

	_, err := uc.MatchLine(context.Background(), reviewerActor(), &dto.MatchLineInput{
		ReceiptID:       "rcpt-1",
		LineID:          "ln-1",
		OrderItemID:     sp("oi-1"),
		InventoryItemID: sp("item-1"),
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeValidation, model.CodeOf(err))
}

func TestUpdateLine_TotalChangeShiftsHeader(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	repo.receipts["rcpt-1"] = model.Receipt{
		BaseModel:  model.BaseModel{ID: "rcpt-1"},
		PropertyID: "prop-1",
		Subtotal:   f64(90),
		Total:      f64(95),
		LineItems: []model.ReceiptLineItem{{
			BaseModel:  model.BaseModel{ID: "ln-1"},
			ReceiptID:  "rcpt-1",
			ItemName:   "Flour",
			TotalPrice: f64(20),
		}},
	}

	view, err := uc.UpdateLine(context.Background(), reviewerActor(), &dto.UpdateLineInput{
		ReceiptID:  "rcpt-1",
		LineID:     "ln-1",
		TotalPrice: f64(30),
	})
	require.NoError(t, err)

	assert.Equal(t, 30.0, *view.LineItems[0].TotalPrice)
	assert.Equal(t, 100.0, *view.Subtotal)
	assert.Equal(t, 105.0, *view.Total)
}

func TestDeleteLine_SubtractsFromHeader(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	repo.receipts["rcpt-1"] = model.Receipt{
		BaseModel:  model.BaseModel{ID: "rcpt-1"},
		PropertyID: "prop-1",
		Subtotal:   f64(90),
		Total:      f64(95),
		LineItems: []model.ReceiptLineItem{
			{BaseModel: model.BaseModel{ID: "ln-1"}, ReceiptID: "rcpt-1", ItemName: "Flour", TotalPrice: f64(20)},
			{BaseModel: model.BaseModel{ID: "ln-2"}, ReceiptID: "rcpt-1", ItemName: "Sugar", TotalPrice: f64(70)},
		},
	}

	view, err := uc.DeleteLine(context.Background(), reviewerActor(), "rcpt-1", "ln-1")
	require.NoError(t, err)

	require.Len(t, view.LineItems, 1)
	assert.Equal(t, "ln-2", view.LineItems[0].ID)
	assert.Equal(t, 70.0, *view.Subtotal)
	assert.Equal(t, 75.0, *view.Total)

	require.Len(t, repo.receipts["rcpt-1"].LineItems, 1)
}

func TestAddToInventory_Defaults(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)

	item, err := uc.AddToInventory(context.Background(), reviewerActor(), &dto.AddToInventoryInput{
		PropertyID: "prop-1",
		Name:       "  Hot Sauce ",
		Category:   sp("dry goods"),
		UnitPrice:  f64(3.99),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hot Sauce", item.Name)
	assert.Equal(t, "Dry Goods", *item.Category)
	assert.Equal(t, "Unit", item.Unit)
	assert.Equal(t, 0.0, item.CurrentStock, "promoted items start with zero stock")
	assert.True(t, item.IsRecurring)
	assert.True(t, item.IsActive)
	assert.Contains(t, inv.items, item.ID)
}

func TestAddToInventory_DuplicateName(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	seedInvItem(inv, "item-1", "prop-1", "Hot Sauce")

	_, err := uc.AddToInventory(context.Background(), reviewerActor(), &dto.AddToInventoryInput{
		PropertyID: "prop-1",
		Name:       "hot sauce",
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeConflict, model.CodeOf(err))
}

func TestDeactivateAlias(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)

	err := uc.DeactivateAlias(context.Background(), reviewerActor(), "al-404")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeNotFound, model.CodeOf(err))

	repo.aliases["al-1"] = model.ReceiptCodeAlias{
		BaseModel: model.BaseModel{ID: "al-1"}, ReceiptCode: "mayo", InventoryItemID: "item-1", IsActive: true,
	}
	require.NoError(t, uc.DeactivateAlias(context.Background(), reviewerActor(), "al-1"))
	assert.False(t, repo.aliases["al-1"].IsActive)

	// Deactivating again is a no-op, not an error.
	require.NoError(t, uc.DeactivateAlias(context.Background(), reviewerActor(), "al-1"))
}

func TestDashboard_ReviewerOnly(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	repo.dashboard = &dto.FinancialDashboard{TotalSpentThisMonth: 1234.5}

	_, err := uc.Dashboard(context.Background(), workerActor("prop-1"), "")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))

	dash, err := uc.Dashboard(context.Background(), reviewerActor(), "prop-1")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, dash.TotalSpentThisMonth)
	assert.Equal(t, "prop-1", repo.dashboardProp)

	_, err = uc.Dashboard(context.Background(), reviewerActor(), "prop-404")
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeNotFound, model.CodeOf(err))
}

func TestPendingVerification_ReviewerOnly(t *testing.T) {
	repo, orders, inv, ref := newFakeRepo(), newFakeOrders(), newFakeInv(), testRef()
	uc := newTestUseCase(repo, orders, inv, ref)
	repo.receipts["rcpt-1"] = model.Receipt{
		BaseModel:  model.BaseModel{ID: "rcpt-1", CreatedAt: time.Now().Add(-time.Hour)},
		PropertyID: "prop-1",
	}
	repo.receipts["rcpt-2"] = model.Receipt{
		BaseModel:          model.BaseModel{ID: "rcpt-2", CreatedAt: time.Now()},
		PropertyID:         "prop-2",
		IsManuallyVerified: true,
	}

	_, err := uc.PendingVerification(context.Background(), workerActor("prop-1"))
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeForbidden, model.CodeOf(err))

	views, err := uc.PendingVerification(context.Background(), reviewerActor())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "rcpt-1", views[0].ID)
}
