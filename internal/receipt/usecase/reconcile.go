package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/campops/procurement-service/internal/match"
	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/receipt/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// amountTolerance absorbs rounding noise when cross-checking extracted
// amounts. A cent either way is extraction jitter, not a discrepancy.
const amountTolerance = 0.01

// confidencePenalty is subtracted from the extraction confidence for each
// failed amount check, floored at zero.
const confidencePenalty = 0.1

func (uc *receiptUseCase) Reconcile(ctx context.Context, actor model.Actor, input *dto.ExtractionInput) (*dto.ReconcileResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}

	var ord *model.Order
	if input.OrderID != nil && *input.OrderID != "" {
		var err error
		ord, err = uc.loadOrder(ctx, *input.OrderID)
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

	supplier, err := uc.resolveSupplier(ctx, input.SupplierName)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &model.Receipt{
		BaseModel:       model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		PropertyID:      prop.ID,
		OrderID:         normalizeID(input.OrderID),
		ReceiptDate:     input.ReceiptDate,
		Subtotal:        input.Subtotal,
		Tax:             input.Tax,
		Total:           input.Total,
		ImageURL:        input.ImageURL,
		ConfidenceScore: input.ConfidenceScore,
		Notes:           input.Notes,
		CreatedBy:       actor.UserID,
	}
	if supplier != nil {
		rec.SupplierID = &supplier.ID
	}

	notes := validateAmounts(rec, input.LineItems)
	rec.LineItems = buildLines(rec.ID, input.LineItems, now)

	result := &dto.ReconcileResult{ValidationNotes: notes}
	if err := uc.matchLines(ctx, rec, ord, result); err != nil {
		return nil, err
	}

	if err := uc.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	uc.writePricesBack(ctx, rec)
	uc.trainAliases(ctx, rec)

	uc.logger.Info("receipt reconciled",
		zap.String("receipt_id", rec.ID),
		zap.String("property_id", rec.PropertyID),
		zap.Int("matched", result.MatchedLines),
		zap.Int("unmatched", result.UnmatchedLines))

	view, err := uc.view(ctx, rec)
	if err != nil {
		return nil, err
	}
	result.Receipt = *view
	return result, nil
}

// matchLines settles each line: an extractor-supplied order item wins, then
// the alias cache, otherwise the line stays open for manual action.
func (uc *receiptUseCase) matchLines(ctx context.Context, rec *model.Receipt, ord *model.Order, result *dto.ReconcileResult) error {
	aliasTargets, err := uc.aliasTargets(ctx, rec)
	if err != nil {
		return err
	}
	orderItems, err := uc.hintedOrderItems(ctx, rec)
	if err != nil {
		return err
	}

	for i := range rec.LineItems {
		line := &rec.LineItems[i]

		if line.MatchedOrderItemID != nil {
			oi, ok := orderItems[*line.MatchedOrderItemID]
			if ok && (ord == nil || oi.OrderID == ord.ID) {
				line.MatchedInventoryItemID = oi.InventoryItemID
				result.MatchedLines++
				continue
			}
			// Extraction hints are advisory; a stale or foreign id degrades
			// to an unmatched line instead of failing the whole receipt.
			uc.logger.Warn("dropping extractor hint outside the order",
				zap.String("order_item_id", *line.MatchedOrderItemID),
				zap.String("receipt_id", rec.ID))
			line.MatchedOrderItemID = nil
		}

		if itemID, ok := aliasTargets[match.Normalize(line.ItemName)]; ok {
			line.MatchedInventoryItemID = &itemID
			result.MatchedLines++
			result.AliasMatches++
			continue
		}
		result.UnmatchedLines++
	}
	return nil
}

// aliasTargets maps normalized receipt codes onto inventory item ids for the
// receipt's property and supplier. Rows arrive supplier-specific first, so
// the first sighting of a code wins.
func (uc *receiptUseCase) aliasTargets(ctx context.Context, rec *model.Receipt) (map[string]string, error) {
	aliases, err := uc.repo.AliasesForMatching(ctx, rec.PropertyID, rec.SupplierID)
	if err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(aliases))
	for _, a := range aliases {
		code := match.Normalize(a.ReceiptCode)
		if _, ok := targets[code]; !ok {
			targets[code] = a.InventoryItemID
		}
	}
	return targets, nil
}

// hintedOrderItems loads the order items the extractor referenced.
func (uc *receiptUseCase) hintedOrderItems(ctx context.Context, rec *model.Receipt) (map[string]model.OrderItem, error) {
	var ids []string
	seen := map[string]bool{}
	for i := range rec.LineItems {
		if id := rec.LineItems[i].MatchedOrderItemID; id != nil && !seen[*id] {
			seen[*id] = true
			ids = append(ids, *id)
		}
	}
	if len(ids) == 0 {
		return map[string]model.OrderItem{}, nil
	}

	items, err := uc.orders.FindItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.OrderItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return byID, nil
}

// resolveSupplier maps the extractor's free-text supplier onto an active
// supplier row, exact name first, substring second. Unknown names stay
// unset; guessing a supplier is worse than leaving it for the reviewer.
func (uc *receiptUseCase) resolveSupplier(ctx context.Context, name *string) (*model.Supplier, error) {
	if name == nil || strings.TrimSpace(*name) == "" {
		return nil, nil
	}
	sup, err := uc.ref.MatchSupplierByName(ctx, *name)
	if err != nil {
		return nil, err
	}
	if sup == nil {
		uc.logger.Warn("detected supplier matches no active supplier",
			zap.String("supplier_name", *name))
	}
	return sup, nil
}

// validateAmounts cross-checks the extracted amounts against each other.
// Disagreements append a note and degrade the confidence score; they never
// fail the call, since purchasing must not stall on imperfect extraction.
func validateAmounts(rec *model.Receipt, lines []dto.ExtractedLineInput) []string {
	var notes []string

	if rec.Subtotal != nil {
		sum := 0.0
		counted := false
		for _, ln := range lines {
			if ln.TotalPrice != nil {
				sum += *ln.TotalPrice
				counted = true
			}
		}
		if counted && math.Abs(sum-*rec.Subtotal) > amountTolerance {
			notes = append(notes, fmt.Sprintf(
				"line items sum to %.2f but subtotal reads %.2f", sum, *rec.Subtotal))
		}
	}
	if rec.Subtotal != nil && rec.Total != nil {
		tax := 0.0
		if rec.Tax != nil {
			tax = *rec.Tax
		}
		if math.Abs(*rec.Subtotal+tax-*rec.Total) > amountTolerance {
			notes = append(notes, fmt.Sprintf(
				"subtotal %.2f plus tax %.2f does not equal total %.2f",
				*rec.Subtotal, tax, *rec.Total))
		}
	}

	if len(notes) > 0 {
		if rec.ConfidenceScore != nil {
			score := *rec.ConfidenceScore - confidencePenalty*float64(len(notes))
			if score < 0 {
				score = 0
			}
			rec.ConfidenceScore = &score
		}
		joined := strings.Join(notes, "; ")
		rec.ValidationNotes = &joined
	}
	return notes
}

// trainAliases records every matched line in the alias cache so the same
// shorthand resolves automatically on the next receipt. Best effort.
func (uc *receiptUseCase) trainAliases(ctx context.Context, rec *model.Receipt) {
	for i := range rec.LineItems {
		line := &rec.LineItems[i]
		if line.MatchedInventoryItemID == nil {
			continue
		}
		uc.trainAlias(ctx, rec, line)
	}
}

func (uc *receiptUseCase) trainAlias(ctx context.Context, rec *model.Receipt, line *model.ReceiptLineItem) {
	code := match.Normalize(line.ItemName)
	if code == "" || line.MatchedInventoryItemID == nil {
		return
	}
	now := time.Now()
	proto := &model.ReceiptCodeAlias{
		BaseModel:       model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		ReceiptCode:     code,
		InventoryItemID: *line.MatchedInventoryItemID,
		SupplierID:      rec.SupplierID,
		MatchCount:      1,
		LastSeen:        now,
		IsActive:        true,
	}
	if _, err := uc.repo.UpsertAlias(ctx, proto); err != nil {
		uc.logger.Warn("alias training failed",
			zap.String("receipt_code", code), zap.Error(err))
	}
}
