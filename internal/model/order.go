package model

import "time"

type OrderStatus string

const (
	OrderStatusDraft             OrderStatus = "draft"
	OrderStatusSubmitted         OrderStatus = "submitted"
	OrderStatusUnderReview       OrderStatus = "under_review"
	OrderStatusChangesRequested  OrderStatus = "changes_requested"
	OrderStatusApproved          OrderStatus = "approved"
	OrderStatusOrdered           OrderStatus = "ordered"
	OrderStatusPartiallyReceived OrderStatus = "partially_received"
	OrderStatusReceived          OrderStatus = "received"
	OrderStatusCancelled         OrderStatus = "cancelled"
)

// CanTransition is the single source of truth for the order workflow graph.
// Every status write goes through Order.TransitionTo, which consults this;
// nothing else may assign Order.Status.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderStatusDraft:
		return to == OrderStatusSubmitted
	case OrderStatusChangesRequested:
		return to == OrderStatusSubmitted
	case OrderStatusSubmitted:
		switch to {
		case OrderStatusUnderReview, OrderStatusApproved, OrderStatusChangesRequested,
			OrderStatusCancelled, OrderStatusDraft:
			return true
		}
		return false
	case OrderStatusUnderReview:
		switch to {
		case OrderStatusApproved, OrderStatusChangesRequested, OrderStatusCancelled,
			OrderStatusDraft:
			return true
		}
		return false
	case OrderStatusApproved:
		// draft is the withdraw edge.
		return to == OrderStatusOrdered || to == OrderStatusDraft
	case OrderStatusOrdered:
		return to == OrderStatusApproved || to == OrderStatusPartiallyReceived ||
			to == OrderStatusReceived
	case OrderStatusPartiallyReceived:
		return to == OrderStatusPartiallyReceived || to == OrderStatusReceived
	case OrderStatusReceived:
		// Re-finalizing with corrected quantities re-enters the same state.
		return to == OrderStatusReceived
	case OrderStatusCancelled:
		return false
	}
	return false
}

// IsEditable reports whether the requester may mutate the order's item list.
func (s OrderStatus) IsEditable() bool {
	return s == OrderStatusDraft || s == OrderStatusChangesRequested
}

// IsReviewable reports whether a reviewer may act on the order.
func (s OrderStatus) IsReviewable() bool {
	return s == OrderStatusSubmitted || s == OrderStatusUnderReview
}

// IsReceivable reports whether receiving calls may target the order.
func (s OrderStatus) IsReceivable() bool {
	return s == OrderStatusOrdered || s == OrderStatusPartiallyReceived ||
		s == OrderStatusReceived
}

// OrderItemFlag records why a line item ended up on the order.
type OrderItemFlag string

const (
	FlagLowStock       OrderItemFlag = "low_stock"
	FlagTrendSuggested OrderItemFlag = "trend_suggested"
	FlagManual         OrderItemFlag = "manual"
	FlagCustom         OrderItemFlag = "custom"
)

// Order is one purchasing cycle for one property.
type Order struct {
	BaseModel
	PropertyID  string      `db:"property_id" json:"property_id"`
	OrderNumber string      `db:"order_number" json:"order_number"`
	Status      OrderStatus `db:"status" json:"status"`
	WeekOf      *time.Time  `db:"week_of" json:"week_of"`
	Notes       *string     `db:"notes" json:"notes"`
	CreatedBy   string      `db:"created_by" json:"created_by"`

	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at"`
	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewed_at"`
	ReviewedBy  *string    `db:"reviewed_by" json:"reviewed_by"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approved_at"`
	OrderedAt   *time.Time `db:"ordered_at" json:"ordered_at"`
	OrderedBy   *string    `db:"ordered_by" json:"ordered_by"`
	ReceivedAt  *time.Time `db:"received_at" json:"received_at"`

	ReviewerNotes *string `db:"reviewer_notes" json:"reviewer_notes"`

	EstimatedTotal float64  `db:"estimated_total" json:"estimated_total"`
	ActualTotal    *float64 `db:"actual_total" json:"actual_total"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// TransitionTo moves the order along a workflow edge, rejecting anything not
// in the transition table. Same-state re-entry for receiving is legal; all
// timestamps are the caller's responsibility.
func (o *Order) TransitionTo(to OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return ErrPrecondition("order %s cannot go from %s to %s", o.OrderNumber, o.Status, to)
	}
	o.Status = to
	return nil
}

// OrderItem is one line of an order, either linked to a catalog item or
// carrying a free-text custom name.
type OrderItem struct {
	BaseModel
	OrderID               string  `db:"order_id" json:"order_id"`
	InventoryItemID       *string `db:"inventory_item_id" json:"inventory_item_id"`
	CustomItemName        *string `db:"custom_item_name" json:"custom_item_name"`
	CustomItemDescription *string `db:"custom_item_description" json:"custom_item_description"`
	SupplierID            *string `db:"supplier_id" json:"supplier_id"`

	Flag              OrderItemFlag `db:"flag" json:"flag"`
	RequestedQuantity float64       `db:"requested_quantity" json:"requested_quantity"`
	ApprovedQuantity  *float64      `db:"approved_quantity" json:"approved_quantity"`
	ReceivedQuantity  *float64      `db:"received_quantity" json:"received_quantity"`
	Unit              *string       `db:"unit" json:"unit"`
	UnitPrice         *float64      `db:"unit_price" json:"unit_price"`

	CampNotes     *string `db:"camp_notes" json:"camp_notes"`
	ReviewerNotes *string `db:"reviewer_notes" json:"reviewer_notes"`

	IsReceived        bool    `db:"is_received" json:"is_received"`
	HasIssue          bool    `db:"has_issue" json:"has_issue"`
	IssueDescription  *string `db:"issue_description" json:"issue_description"`
	IssuePhotoURL     *string `db:"issue_photo_url" json:"issue_photo_url"`
	ReceivingNotes    *string `db:"receiving_notes" json:"receiving_notes"`
	ShortageDismissed bool    `db:"shortage_dismissed" json:"shortage_dismissed"`
}

// FinalQuantity resolves the quantity that counts: the supervisor's override
// when present, otherwise what was requested.
func (i *OrderItem) FinalQuantity() float64 {
	if i.ApprovedQuantity != nil {
		return *i.ApprovedQuantity
	}
	return i.RequestedQuantity
}

func (i *OrderItem) LineTotal() float64 {
	price := 0.0
	if i.UnitPrice != nil {
		price = *i.UnitPrice
	}
	return i.FinalQuantity() * price
}

// ShortageQuantity is how much of the final quantity never arrived. Only
// meaningful once the order reached a received state.
func (i *OrderItem) ShortageQuantity() float64 {
	received := 0.0
	if i.ReceivedQuantity != nil {
		received = *i.ReceivedQuantity
	}
	gap := i.FinalQuantity() - received
	if gap < 0 {
		return 0
	}
	return gap
}

// OrderItemsTotal sums line totals; it is the only way estimated totals are
// computed.
func OrderItemsTotal(items []OrderItem) float64 {
	total := 0.0
	for idx := range items {
		total += items[idx].LineTotal()
	}
	return total
}
