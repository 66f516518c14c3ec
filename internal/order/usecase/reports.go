package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/order/dto"
)

// SupplierPurchaseList flattens approved and ordered orders into a per-supplier
// shopping list for the purchasing run. Unassigned lines group together at the
// bottom.
func (uc *orderUseCase) SupplierPurchaseList(ctx context.Context, actor model.Actor, orderIDs []string, weekOf *time.Time) (*dto.SupplierPurchaseList, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}

	orders, err := uc.repo.PurchaseOrders(ctx, orderIDs, weekOf)
	if err != nil {
		return nil, err
	}

	props := map[string]string{}
	var invIDs []string
	seenInv := map[string]bool{}
	for i := range orders {
		ord := &orders[i]
		if _, ok := props[ord.PropertyID]; !ok {
			props[ord.PropertyID] = uc.propertyName(ctx, ord.PropertyID)
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

	groups := map[string]*dto.SupplierGroup{}
	var groupKeys []string
	list := &dto.SupplierPurchaseList{}
	for i := range orders {
		ord := &orders[i]
		list.OrderIDs = append(list.OrderIDs, ord.ID)
		for _, it := range ord.Items {
			sid := itemSupplierID(&it, catalog)
			group, ok := groups[sid]
			if !ok {
				group = &dto.SupplierGroup{SupplierName: "Unassigned"}
				if sid != "" {
					supplierID := sid
					group.SupplierID = &supplierID
					group.SupplierName = "Unknown Supplier"
					if name, found := supplierNames[sid]; found {
						group.SupplierName = name
					}
				}
				groups[sid] = group
				groupKeys = append(groupKeys, sid)
			}

			item := purchaseItem(&it, ord, catalog, props[ord.PropertyID])
			group.Items = append(group.Items, item)
			group.TotalItems++
			group.TotalValue += item.LineTotal
			list.GrandTotal += item.LineTotal
		}
	}

	sort.SliceStable(groupKeys, func(i, j int) bool {
		a, b := groups[groupKeys[i]], groups[groupKeys[j]]
		// Unassigned sorts last.
		if (a.SupplierID == nil) != (b.SupplierID == nil) {
			return b.SupplierID == nil
		}
		return a.SupplierName < b.SupplierName
	})
	for _, key := range groupKeys {
		list.Suppliers = append(list.Suppliers, *groups[key])
	}
	list.TotalOrders = len(orders)
	return list, nil
}

func purchaseItem(it *model.OrderItem, ord *model.Order, catalog map[string]model.InventoryItem, propertyName string) dto.PurchaseItem {
	item := dto.PurchaseItem{
		OrderItemID:  it.ID,
		ItemName:     "Unknown Item",
		Quantity:     it.FinalQuantity(),
		Unit:         "Unit",
		UnitPrice:    it.UnitPrice,
		LineTotal:    it.LineTotal(),
		OrderID:      ord.ID,
		OrderNumber:  ord.OrderNumber,
		PropertyName: propertyName,
	}

	var inv *model.InventoryItem
	if it.InventoryItemID != nil {
		if cat, ok := catalog[*it.InventoryItemID]; ok {
			inv = &cat
		}
	}
	switch {
	case inv != nil:
		item.ItemName = inv.Name
		item.Category = inv.Category
		item.Brand = inv.Brand
		item.SizeLabel = inv.SizeLabel
		item.ProductNotes = inv.ProductNotes
	case it.CustomItemName != nil && *it.CustomItemName != "":
		item.ItemName = *it.CustomItemName
	}
	switch {
	case it.Unit != nil && *it.Unit != "":
		item.Unit = *it.Unit
	case inv != nil:
		item.Unit = inv.EffectiveOrderUnit()
	}
	return item
}

// SummaryByProperty is the dashboard rollup: pending counts, pipeline value,
// and last activity per property.
func (uc *orderUseCase) SummaryByProperty(ctx context.Context, actor model.Actor) ([]dto.PropertySummary, error) {
	if !actor.Role.CanReview() {
		return nil, model.ErrForbidden("reviewer role required")
	}
	rows, err := uc.repo.SummaryByProperty(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []dto.PropertySummary{}
	}
	return rows, nil
}
