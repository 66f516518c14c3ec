package dto

import (
	"github.com/campops/procurement-service/internal/model"
)

// ReceiptView decorates a receipt with its resolved display fields.
type ReceiptView struct {
	model.Receipt
	OrderNumber   *string `json:"order_number,omitempty"`
	SupplierName  *string `json:"supplier_name,omitempty"`
	CreatedByName *string `json:"created_by_name,omitempty"`
}

type ReceiptFilters struct {
	PropertyID string
	OrderID    string
	SupplierID string
	Verified   *bool
	Skip       int
	Limit      int
}

type ReceiptList struct {
	Receipts   []ReceiptView `json:"receipts"`
	TotalCount int           `json:"total_count"`
}

// ReconcileResult reports what automatic matching settled and what remains
// for manual review.
type ReconcileResult struct {
	Receipt         ReceiptView `json:"receipt"`
	MatchedLines    int         `json:"matched_lines"`
	AliasMatches    int         `json:"alias_matches"`
	UnmatchedLines  int         `json:"unmatched_lines"`
	ValidationNotes []string    `json:"validation_notes,omitempty"`
}

// AliasView is an alias row joined with its item and supplier names, scanned
// straight from the listing join.
type AliasView struct {
	model.ReceiptCodeAlias
	ItemName     string  `db:"item_name" json:"item_name"`
	SupplierName *string `db:"supplier_name" json:"supplier_name,omitempty"`
}

type SupplierSpending struct {
	SupplierID       string  `db:"supplier_id" json:"supplier_id"`
	SupplierName     string  `db:"supplier_name" json:"supplier_name"`
	TotalSpent       float64 `db:"total_spent" json:"total_spent"`
	ReceiptCount     int     `db:"receipt_count" json:"receipt_count"`
	AvgReceiptAmount float64 `db:"avg_receipt_amount" json:"avg_receipt_amount"`
}

type PropertySpending struct {
	PropertyID   string  `db:"property_id" json:"property_id"`
	PropertyName string  `db:"property_name" json:"property_name"`
	TotalSpent   float64 `db:"total_spent" json:"total_spent"`
	ReceiptCount int     `db:"receipt_count" json:"receipt_count"`
	OrderCount   int     `db:"order_count" json:"order_count"`
}

// PeriodSpending is one month of the spending trend; Period is "YYYY-MM".
type PeriodSpending struct {
	Period       string  `db:"period" json:"period"`
	TotalSpent   float64 `db:"total_spent" json:"total_spent"`
	ReceiptCount int     `db:"receipt_count" json:"receipt_count"`
	OrderCount   int     `db:"order_count" json:"order_count"`
}

type FinancialDashboard struct {
	TotalSpentThisMonth         float64            `json:"total_spent_this_month"`
	TotalSpentThisYear          float64            `json:"total_spent_this_year"`
	PendingOrdersTotal          float64            `json:"pending_orders_total"`
	ReceiptsPendingVerification int                `json:"receipts_pending_verification"`
	SpendingBySupplier          []SupplierSpending `json:"spending_by_supplier"`
	SpendingByProperty          []PropertySpending `json:"spending_by_property"`
	SpendingTrend               []PeriodSpending   `json:"spending_trend"`
}
