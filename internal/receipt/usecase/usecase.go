package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/campops/procurement-service/config"
	"github.com/campops/procurement-service/internal/inventory"
	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/order"
	"github.com/campops/procurement-service/internal/receipt"
	"github.com/campops/procurement-service/internal/receipt/dto"
	"github.com/campops/procurement-service/internal/refdata"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type receiptUseCase struct {
	repo    receipt.Repository
	orders  order.Repository
	inv     inventory.Repository
	ref     refdata.Repository
	catalog config.CatalogConfig
	logger  logger.ZapLogger
}

// NewReceiptUseCase builds the receipt reconciliation service.
func NewReceiptUseCase(
	repo receipt.Repository,
	orders order.Repository,
	inv inventory.Repository,
	ref refdata.Repository,
	catalogCfg config.CatalogConfig,
	log logger.ZapLogger,
) receipt.UseCase {
	return &receiptUseCase{
		repo:    repo,
		orders:  orders,
		inv:     inv,
		ref:     ref,
		catalog: catalogCfg,
		logger:  log,
	}
}

func (uc *receiptUseCase) Create(ctx context.Context, actor model.Actor, input *dto.CreateReceiptInput) (*dto.ReceiptView, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}

	if input.OrderID != nil && *input.OrderID != "" {
		ord, err := uc.loadOrder(ctx, *input.OrderID)
		if err != nil {
			return nil, err
		}
		switch {
		case input.PropertyID == "":
			input.PropertyID = ord.PropertyID
		case input.PropertyID != ord.PropertyID:
			return nil, model.ErrValidation("order belongs to a different property")
		}
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

	now := time.Now()
	rec := &model.Receipt{
		BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		PropertyID:  prop.ID,
		OrderID:     normalizeID(input.OrderID),
		SupplierID:  normalizeID(input.SupplierID),
		ReceiptDate: input.ReceiptDate,
		Subtotal:    input.Subtotal,
		Tax:         input.Tax,
		Total:       input.Total,
		ImageURL:    input.ImageURL,
		Notes:       input.Notes,
		CreatedBy:   actor.UserID,
	}
	if err := uc.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	uc.logger.Info("receipt recorded",
		zap.String("receipt_id", rec.ID),
		zap.String("property_id", rec.PropertyID))
	return uc.view(ctx, rec)
}

func (uc *receiptUseCase) Get(ctx context.Context, actor model.Actor, id string) (*dto.ReceiptView, error) {
	rec, err := uc.loadReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessProperty(rec.PropertyID) {
		return nil, model.ErrForbidden("no access to this property")
	}
	return uc.view(ctx, rec)
}

func (uc *receiptUseCase) List(ctx context.Context, actor model.Actor, filters *dto.ReceiptFilters) (*dto.ReceiptList, error) {
	if !actor.Role.CanReview() {
		if actor.PropertyID == nil {
			return nil, model.ErrForbidden("caller has no property scope")
		}
		filters.PropertyID = *actor.PropertyID
	}

	receipts, count, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, err
	}
	views, err := uc.buildViews(ctx, receipts)
	if err != nil {
		return nil, err
	}
	return &dto.ReceiptList{Receipts: views, TotalCount: count}, nil
}

func (uc *receiptUseCase) PendingVerification(ctx context.Context, actor model.Actor) ([]dto.ReceiptView, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	receipts, err := uc.repo.PendingVerification(ctx, "")
	if err != nil {
		return nil, err
	}
	return uc.buildViews(ctx, receipts)
}

func (uc *receiptUseCase) Update(ctx context.Context, actor model.Actor, input *dto.UpdateReceiptInput) (*dto.ReceiptView, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	rec, err := uc.loadReceipt(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	prevOrderID := rec.OrderID

	if input.OrderID != nil && *input.OrderID != "" {
		ord, err := uc.loadOrder(ctx, *input.OrderID)
		if err != nil {
			return nil, err
		}
		if ord.PropertyID != rec.PropertyID {
			return nil, model.ErrValidation("order belongs to a different property")
		}
		rec.OrderID = input.OrderID
	}
	if input.SupplierID != nil && *input.SupplierID != "" {
		if err := uc.requireSupplier(ctx, *input.SupplierID); err != nil {
			return nil, err
		}
		rec.SupplierID = input.SupplierID
	}
	if input.ReceiptDate != nil {
		rec.ReceiptDate = input.ReceiptDate
	}
	if input.Subtotal != nil {
		rec.Subtotal = input.Subtotal
	}
	if input.Tax != nil {
		rec.Tax = input.Tax
	}
	if input.Total != nil {
		rec.Total = input.Total
	}
	if input.ImageURL != nil {
		rec.ImageURL = input.ImageURL
	}
	if input.Notes != nil {
		rec.Notes = input.Notes
	}

	now := time.Now()
	replaceLines := len(input.LineItems) > 0
	if replaceLines {
		rec.LineItems = buildLines(rec.ID, input.LineItems, now)
	}
	rec.UpdatedAt = now

	if err := uc.repo.Update(ctx, rec, replaceLines, prevOrderID); err != nil {
		return nil, err
	}
	if replaceLines {
		uc.writePricesBack(ctx, rec)
	}
	return uc.view(ctx, rec)
}

func (uc *receiptUseCase) Verify(ctx context.Context, actor model.Actor, id string) (*dto.ReceiptView, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	rec, err := uc.loadReceipt(ctx, id)
	if err != nil {
		return nil, err
	}

	rec.IsManuallyVerified = true
	rec.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, rec, false, rec.OrderID); err != nil {
		return nil, err
	}

	// Verified numbers are the trustworthy ones, so push them to the catalog.
	uc.writePricesBack(ctx, rec)

	uc.logger.Info("receipt verified",
		zap.String("receipt_id", rec.ID),
		zap.String("verified_by", actor.UserID))
	return uc.view(ctx, rec)
}

func (uc *receiptUseCase) Delete(ctx context.Context, actor model.Actor, id string) error {
	if !actor.Role.CanReview() {
		return model.ErrForbidden("reviewer role required")
	}
	rec, err := uc.loadReceipt(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, rec); err != nil {
		return err
	}
	uc.logger.Info("receipt deleted", zap.String("receipt_id", rec.ID))
	return nil
}

func (uc *receiptUseCase) ListAliases(ctx context.Context, actor model.Actor, propertyID string) ([]dto.AliasView, error) {
	if propertyID == "" {
		return nil, model.ErrValidation("property_id is required")
	}
	if !actor.CanAccessProperty(propertyID) {
		return nil, model.ErrForbidden("no access to this property")
	}
	return uc.repo.ListAliases(ctx, propertyID)
}

func (uc *receiptUseCase) DeactivateAlias(ctx context.Context, actor model.Actor, id string) error {
	if !actor.Role.CanReview() {
		return model.ErrForbidden("reviewer role required")
	}
	alias, err := uc.repo.FindAliasByID(ctx, id)
	if err != nil {
		return err
	}
	if alias == nil {
		return model.ErrNotFound("alias not found")
	}
	if !alias.IsActive {
		return nil
	}
	return uc.repo.DeactivateAlias(ctx, id)
}

func (uc *receiptUseCase) Dashboard(ctx context.Context, actor model.Actor, propertyID string) (*dto.FinancialDashboard, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	if propertyID != "" {
		if _, err := uc.loadProperty(ctx, propertyID); err != nil {
			return nil, err
		}
	}
	return uc.repo.Dashboard(ctx, propertyID, time.Now())
}

// --- shared helpers ---

func (uc *receiptUseCase) loadReceipt(ctx context.Context, id string) (*model.Receipt, error) {
	rec, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, model.ErrNotFound("receipt not found")
	}
	return rec, nil
}

func (uc *receiptUseCase) loadOrder(ctx context.Context, id string) (*model.Order, error) {
	ord, err := uc.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, model.ErrNotFound("order not found")
	}
	return ord, nil
}

func (uc *receiptUseCase) loadProperty(ctx context.Context, id string) (*model.Property, error) {
	prop, err := uc.ref.PropertyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, model.ErrNotFound("property not found")
	}
	return prop, nil
}

func (uc *receiptUseCase) requireSupplier(ctx context.Context, id string) error {
	sup, err := uc.ref.SupplierByID(ctx, id)
	if err != nil {
		return err
	}
	if sup == nil {
		return model.ErrNotFound("supplier not found")
	}
	return nil
}

func findLine(rec *model.Receipt, lineID string) (*model.ReceiptLineItem, error) {
	for i := range rec.LineItems {
		if rec.LineItems[i].ID == lineID {
			return &rec.LineItems[i], nil
		}
	}
	return nil, model.ErrNotFound("line item not found on this receipt")
}

func buildLines(receiptID string, inputs []dto.ExtractedLineInput, now time.Time) []model.ReceiptLineItem {
	lines := make([]model.ReceiptLineItem, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.ItemName)
		if name == "" {
			name = "Unknown Item"
		}
		lines = append(lines, model.ReceiptLineItem{
			BaseModel:          model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			ReceiptID:          receiptID,
			ItemName:           name,
			Quantity:           in.Quantity,
			UnitPrice:          in.UnitPrice,
			TotalPrice:         in.TotalPrice,
			MatchedOrderItemID: normalizeID(in.MatchedOrderItemID),
		})
	}
	return lines
}

// normalizeID treats empty-string ids as absent.
func normalizeID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}

// --- price writeback and alias training ---

// writePricesBack pushes every matched line's unit price into the catalog;
// the most recent receipt is authoritative pricing. Runs after the receipt
// write committed. Failures are logged and dropped so pricing freshness never
// blocks the receipt workflow.
func (uc *receiptUseCase) writePricesBack(ctx context.Context, rec *model.Receipt) {
	updated := 0
	for i := range rec.LineItems {
		line := &rec.LineItems[i]
		if line.UnitPrice == nil {
			continue
		}
		itemID, err := uc.lineItemTarget(ctx, line)
		if err != nil {
			uc.logger.Warn("price writeback skipped",
				zap.String("line_id", line.ID), zap.Error(err))
			continue
		}
		if itemID == "" {
			continue
		}
		if err := uc.writePrice(ctx, itemID, *line.UnitPrice); err != nil {
			uc.logger.Warn("price writeback failed",
				zap.String("inventory_item_id", itemID), zap.Error(err))
			continue
		}
		updated++
	}
	if updated > 0 {
		uc.logger.Info("catalog prices refreshed from receipt",
			zap.String("receipt_id", rec.ID), zap.Int("items", updated))
	}
}

// lineItemTarget resolves which inventory item a line prices: the direct
// match when present, otherwise through the matched order item.
func (uc *receiptUseCase) lineItemTarget(ctx context.Context, line *model.ReceiptLineItem) (string, error) {
	if line.MatchedInventoryItemID != nil {
		return *line.MatchedInventoryItemID, nil
	}
	if line.MatchedOrderItemID == nil {
		return "", nil
	}
	items, err := uc.orders.FindItemsByIDs(ctx, []string{*line.MatchedOrderItemID})
	if err != nil {
		return "", err
	}
	if len(items) == 0 || items[0].InventoryItemID == nil {
		return "", nil
	}
	return *items[0].InventoryItemID, nil
}

func (uc *receiptUseCase) writePrice(ctx context.Context, itemID string, price float64) error {
	item, err := uc.inv.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	item.UnitPrice = &price
	item.UpdatedAt = time.Now()
	return uc.inv.Update(ctx, item)
}

// --- view assembly ---

func (uc *receiptUseCase) view(ctx context.Context, rec *model.Receipt) (*dto.ReceiptView, error) {
	views, err := uc.buildViews(ctx, []model.Receipt{*rec})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (uc *receiptUseCase) buildViews(ctx context.Context, receipts []model.Receipt) ([]dto.ReceiptView, error) {
	orderNumbers := map[string]string{}
	users := map[string]*model.User{}

	var supIDs []string
	seenSup := map[string]bool{}
	for i := range receipts {
		rec := &receipts[i]
		if rec.OrderID != nil {
			if _, ok := orderNumbers[*rec.OrderID]; !ok {
				ord, err := uc.orders.FindByID(ctx, *rec.OrderID)
				if err != nil {
					return nil, err
				}
				if ord != nil {
					orderNumbers[*rec.OrderID] = ord.OrderNumber
				}
			}
		}
		if rec.SupplierID != nil && !seenSup[*rec.SupplierID] {
			seenSup[*rec.SupplierID] = true
			supIDs = append(supIDs, *rec.SupplierID)
		}
		if rec.CreatedBy != "" {
			if _, ok := users[rec.CreatedBy]; !ok {
				user, err := uc.ref.UserByID(ctx, rec.CreatedBy)
				if err != nil {
					return nil, err
				}
				users[rec.CreatedBy] = user
			}
		}
	}

	supplierNames, err := uc.ref.SupplierNames(ctx, supIDs)
	if err != nil {
		return nil, err
	}

	views := make([]dto.ReceiptView, 0, len(receipts))
	for i := range receipts {
		rec := receipts[i]
		view := dto.ReceiptView{
			Receipt:       rec,
			CreatedByName: displayName(users[rec.CreatedBy]),
		}
		if rec.OrderID != nil {
			if num, ok := orderNumbers[*rec.OrderID]; ok {
				view.OrderNumber = &num
			}
		}
		if rec.SupplierID != nil {
			if name, ok := supplierNames[*rec.SupplierID]; ok {
				view.SupplierName = &name
			}
		}
		views = append(views, view)
	}
	return views, nil
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
