package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/receipt/dto"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertReceiptQuery = `
	INSERT INTO receipts (
		id, property_id, order_id, supplier_id, receipt_date, subtotal, tax,
		total, image_url, confidence_score, validation_notes,
		is_manually_verified, notes, created_by, created_at, updated_at
	)
	VALUES (
		:id, :property_id, :order_id, :supplier_id, :receipt_date, :subtotal,
		:tax, :total, :image_url, :confidence_score, :validation_notes,
		:is_manually_verified, :notes, :created_by, :created_at, :updated_at
	)
`

const updateReceiptQuery = `
	UPDATE receipts SET
		order_id = :order_id,
		supplier_id = :supplier_id,
		receipt_date = :receipt_date,
		subtotal = :subtotal,
		tax = :tax,
		total = :total,
		image_url = :image_url,
		confidence_score = :confidence_score,
		validation_notes = :validation_notes,
		is_manually_verified = :is_manually_verified,
		notes = :notes,
		updated_at = :updated_at
	WHERE id = :id
`

const insertLineQuery = `
	INSERT INTO receipt_line_items (
		id, receipt_id, item_name, quantity, unit_price, total_price,
		matched_order_item_id, matched_inventory_item_id, created_at, updated_at
	)
	VALUES (
		:id, :receipt_id, :item_name, :quantity, :unit_price, :total_price,
		:matched_order_item_id, :matched_inventory_item_id, :created_at, :updated_at
	)
`

const updateLineQuery = `
	UPDATE receipt_line_items SET
		item_name = :item_name,
		quantity = :quantity,
		unit_price = :unit_price,
		total_price = :total_price,
		matched_order_item_id = :matched_order_item_id,
		matched_inventory_item_id = :matched_inventory_item_id,
		updated_at = :updated_at
	WHERE id = :id
`

// refreshOrderTotal recomputes the order's actual spend from its receipts.
// Runs inside the same transaction as the receipt mutation that changed it.
func refreshOrderTotal(ctx context.Context, tx *sqlx.Tx, orderID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			actual_total = (SELECT COALESCE(SUM(total), 0) FROM receipts WHERE order_id = $1),
			updated_at = NOW()
		WHERE id = $1`, orderID)
	return err
}

func (r *PGRepository) Create(ctx context.Context, receipt *model.Receipt) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertReceiptQuery, receipt); err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	for i := range receipt.LineItems {
		if _, err := tx.NamedExecContext(ctx, insertLineQuery, &receipt.LineItems[i]); err != nil {
			return fmt.Errorf("failed to insert receipt line: %w", err)
		}
	}
	if receipt.OrderID != nil {
		if err := refreshOrderTotal(ctx, tx, *receipt.OrderID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PGRepository) Update(ctx context.Context, receipt *model.Receipt, replaceLines bool, prevOrderID *string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, updateReceiptQuery, receipt); err != nil {
		return fmt.Errorf("failed to update receipt: %w", err)
	}
	if replaceLines {
		if _, err := tx.ExecContext(ctx, `DELETE FROM receipt_line_items WHERE receipt_id = $1`, receipt.ID); err != nil {
			return err
		}
		for i := range receipt.LineItems {
			if _, err := tx.NamedExecContext(ctx, insertLineQuery, &receipt.LineItems[i]); err != nil {
				return fmt.Errorf("failed to insert receipt line: %w", err)
			}
		}
	}
	if receipt.OrderID != nil {
		if err := refreshOrderTotal(ctx, tx, *receipt.OrderID); err != nil {
			return err
		}
	}
	if prevOrderID != nil && (receipt.OrderID == nil || *prevOrderID != *receipt.OrderID) {
		if err := refreshOrderTotal(ctx, tx, *prevOrderID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PGRepository) Delete(ctx context.Context, receipt *model.Receipt) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM receipt_line_items WHERE receipt_id = $1`, receipt.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM receipts WHERE id = $1`, receipt.ID); err != nil {
		return err
	}
	if receipt.OrderID != nil {
		if err := refreshOrderTotal(ctx, tx, *receipt.OrderID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Receipt, error) {
	var receipt model.Receipt
	err := r.DB.GetContext(ctx, &receipt, `SELECT * FROM receipts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	receipts := []model.Receipt{receipt}
	if err := r.attachLines(ctx, receipts); err != nil {
		return nil, err
	}
	return &receipts[0], nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ReceiptFilters) ([]model.Receipt, int, error) {
	where := "1=1"
	arg := map[string]interface{}{}

	if f.PropertyID != "" {
		where += " AND property_id = :property_id"
		arg["property_id"] = f.PropertyID
	}
	if f.OrderID != "" {
		where += " AND order_id = :order_id"
		arg["order_id"] = f.OrderID
	}
	if f.SupplierID != "" {
		where += " AND supplier_id = :supplier_id"
		arg["supplier_id"] = f.SupplierID
	}
	if f.Verified != nil {
		where += " AND is_manually_verified = :verified"
		arg["verified"] = *f.Verified
	}

	var count int
	query, args, err := bindNamed("SELECT COUNT(*) FROM receipts WHERE "+where, arg, r.DB)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.GetContext(ctx, &count, query, args...); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	arg["skip"] = f.Skip
	arg["limit"] = limit

	var receipts []model.Receipt
	query, args, err = bindNamed(
		"SELECT * FROM receipts WHERE "+where+" ORDER BY created_at DESC OFFSET :skip LIMIT :limit", arg, r.DB)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.SelectContext(ctx, &receipts, query, args...); err != nil {
		return nil, 0, err
	}

	if err := r.attachLines(ctx, receipts); err != nil {
		return nil, 0, err
	}
	return receipts, count, nil
}

func (r *PGRepository) PendingVerification(ctx context.Context, propertyID string) ([]model.Receipt, error) {
	query := `SELECT * FROM receipts WHERE is_manually_verified = false`
	args := []interface{}{}
	if propertyID != "" {
		query += ` AND property_id = $1`
		args = append(args, propertyID)
	}
	query += ` ORDER BY created_at`

	var receipts []model.Receipt
	if err := r.DB.SelectContext(ctx, &receipts, query, args...); err != nil {
		return nil, err
	}
	if err := r.attachLines(ctx, receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *PGRepository) SaveLine(ctx context.Context, receipt *model.Receipt, line *model.ReceiptLineItem) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, updateLineQuery, line); err != nil {
		return fmt.Errorf("failed to update receipt line: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, updateReceiptQuery, receipt); err != nil {
		return fmt.Errorf("failed to update receipt: %w", err)
	}
	if receipt.OrderID != nil {
		if err := refreshOrderTotal(ctx, tx, *receipt.OrderID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PGRepository) DeleteLine(ctx context.Context, receipt *model.Receipt, lineID string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM receipt_line_items WHERE id = $1`, lineID); err != nil {
		return err
	}
	if _, err := tx.NamedExecContext(ctx, updateReceiptQuery, receipt); err != nil {
		return fmt.Errorf("failed to update receipt: %w", err)
	}
	if receipt.OrderID != nil {
		if err := refreshOrderTotal(ctx, tx, *receipt.OrderID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PGRepository) AliasesForMatching(ctx context.Context, propertyID string, supplierID *string) ([]model.ReceiptCodeAlias, error) {
	query := `
		SELECT a.* FROM receipt_code_aliases a
		JOIN inventory_items ii ON ii.id = a.inventory_item_id
		WHERE a.is_active = true AND ii.property_id = $1`
	args := []interface{}{propertyID}
	if supplierID != nil {
		query += ` AND (a.supplier_id = $2 OR a.supplier_id IS NULL)`
		args = append(args, *supplierID)
	} else {
		query += ` AND a.supplier_id IS NULL`
	}
	query += ` ORDER BY (a.supplier_id IS NULL), a.match_count DESC, a.receipt_code`

	var aliases []model.ReceiptCodeAlias
	err := r.DB.SelectContext(ctx, &aliases, query, args...)
	return aliases, err
}

const insertAliasQuery = `
	INSERT INTO receipt_code_aliases (
		id, receipt_code, inventory_item_id, supplier_id, match_count,
		last_seen, is_active, created_at, updated_at
	)
	VALUES (
		:id, :receipt_code, :inventory_item_id, :supplier_id, :match_count,
		:last_seen, :is_active, :created_at, :updated_at
	)
`

func (r *PGRepository) UpsertAlias(ctx context.Context, alias *model.ReceiptCodeAlias) (*model.ReceiptCodeAlias, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var existing model.ReceiptCodeAlias
	err = tx.GetContext(ctx, &existing, `
		SELECT * FROM receipt_code_aliases
		WHERE receipt_code = $1 AND supplier_id IS NOT DISTINCT FROM $2 AND is_active = true
		FOR UPDATE`, alias.ReceiptCode, alias.SupplierID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.NamedExecContext(ctx, insertAliasQuery, alias); err != nil {
			return nil, fmt.Errorf("failed to insert alias: %w", err)
		}
		return alias, tx.Commit()
	case err != nil:
		return nil, err
	}

	existing.InventoryItemID = alias.InventoryItemID
	existing.MatchCount++
	existing.LastSeen = alias.LastSeen
	existing.UpdatedAt = alias.LastSeen
	_, err = tx.NamedExecContext(ctx, `
		UPDATE receipt_code_aliases SET
			inventory_item_id = :inventory_item_id,
			match_count = :match_count,
			last_seen = :last_seen,
			updated_at = :updated_at
		WHERE id = :id`, &existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update alias: %w", err)
	}
	return &existing, tx.Commit()
}

func (r *PGRepository) ListAliases(ctx context.Context, propertyID string) ([]dto.AliasView, error) {
	var aliases []dto.AliasView
	err := r.DB.SelectContext(ctx, &aliases, `
		SELECT a.*, ii.name AS item_name, s.name AS supplier_name
		FROM receipt_code_aliases a
		JOIN inventory_items ii ON ii.id = a.inventory_item_id
		LEFT JOIN suppliers s ON s.id = a.supplier_id
		WHERE a.is_active = true AND ii.property_id = $1
		ORDER BY a.match_count DESC, a.receipt_code`, propertyID)
	return aliases, err
}

func (r *PGRepository) FindAliasByID(ctx context.Context, id string) (*model.ReceiptCodeAlias, error) {
	var alias model.ReceiptCodeAlias
	err := r.DB.GetContext(ctx, &alias, `SELECT * FROM receipt_code_aliases WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &alias, nil
}

func (r *PGRepository) DeactivateAlias(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE receipt_code_aliases SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *PGRepository) attachLines(ctx context.Context, receipts []model.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}

	ids := make([]string, len(receipts))
	for i := range receipts {
		ids[i] = receipts[i].ID
	}
	query, args, err := sqlx.In(
		`SELECT * FROM receipt_line_items WHERE receipt_id IN (?) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	query = r.DB.Rebind(query)

	var lines []model.ReceiptLineItem
	if err := r.DB.SelectContext(ctx, &lines, query, args...); err != nil {
		return err
	}

	byReceipt := make(map[string][]model.ReceiptLineItem, len(receipts))
	for _, ln := range lines {
		byReceipt[ln.ReceiptID] = append(byReceipt[ln.ReceiptID], ln)
	}
	for i := range receipts {
		receipts[i].LineItems = byReceipt[receipts[i].ID]
	}
	return nil
}

// bindNamed runs the named-parameter query through IN expansion and driver
// rebinding so filters can mix scalars and slices.
func bindNamed(query string, arg map[string]interface{}, db *sqlx.DB) (string, []interface{}, error) {
	query, args, err := sqlx.Named(query, arg)
	if err != nil {
		return "", nil, err
	}
	query, args, err = sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(query), args, nil
}

type dashboardTotals struct {
	MonthTotal          float64 `db:"month_total"`
	YearTotal           float64 `db:"year_total"`
	PendingVerification int     `db:"pending_verification"`
}

func (r *PGRepository) Dashboard(ctx context.Context, propertyID string, now time.Time) (*dto.FinancialDashboard, error) {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	trendStart := monthStart.AddDate(0, -5, 0)

	arg := map[string]interface{}{
		"month_start": monthStart,
		"year_start":  yearStart,
		"trend_start": trendStart,
	}
	receiptScope := ""
	orderScope := ""
	if propertyID != "" {
		receiptScope = " AND property_id = :property_id"
		orderScope = " AND property_id = :property_id"
		arg["property_id"] = propertyID
	}

	var totals dashboardTotals
	query, args, err := bindNamed(`
		SELECT
			COALESCE(SUM(total) FILTER (WHERE receipt_date >= :month_start), 0) AS month_total,
			COALESCE(SUM(total) FILTER (WHERE receipt_date >= :year_start), 0) AS year_total,
			COUNT(*) FILTER (WHERE is_manually_verified = false) AS pending_verification
		FROM receipts
		WHERE 1=1`+receiptScope, arg, r.DB)
	if err != nil {
		return nil, err
	}
	if err := r.DB.GetContext(ctx, &totals, query, args...); err != nil {
		return nil, err
	}

	var pendingOrders float64
	query, args, err = bindNamed(`
		SELECT COALESCE(SUM(estimated_total), 0) FROM orders
		WHERE status IN ('submitted', 'under_review', 'approved', 'ordered')`+orderScope, arg, r.DB)
	if err != nil {
		return nil, err
	}
	if err := r.DB.GetContext(ctx, &pendingOrders, query, args...); err != nil {
		return nil, err
	}

	bySupplier := []dto.SupplierSpending{}
	query, args, err = bindNamed(`
		SELECT
			r.supplier_id,
			s.name AS supplier_name,
			COALESCE(SUM(r.total), 0) AS total_spent,
			COUNT(*) AS receipt_count,
			COALESCE(SUM(r.total), 0) / COUNT(*) AS avg_receipt_amount
		FROM receipts r
		JOIN suppliers s ON s.id = r.supplier_id
		WHERE r.receipt_date >= :year_start`+scoped(receiptScope, "r")+`
		GROUP BY r.supplier_id, s.name
		ORDER BY total_spent DESC`, arg, r.DB)
	if err != nil {
		return nil, err
	}
	if err := r.DB.SelectContext(ctx, &bySupplier, query, args...); err != nil {
		return nil, err
	}

	byProperty := []dto.PropertySpending{}
	query, args, err = bindNamed(`
		SELECT
			r.property_id,
			p.name AS property_name,
			COALESCE(SUM(r.total), 0) AS total_spent,
			COUNT(*) AS receipt_count,
			COUNT(DISTINCT r.order_id) AS order_count
		FROM receipts r
		JOIN properties p ON p.id = r.property_id
		WHERE r.receipt_date >= :year_start`+scoped(receiptScope, "r")+`
		GROUP BY r.property_id, p.name
		ORDER BY total_spent DESC`, arg, r.DB)
	if err != nil {
		return nil, err
	}
	if err := r.DB.SelectContext(ctx, &byProperty, query, args...); err != nil {
		return nil, err
	}

	var trendRows []dto.PeriodSpending
	query, args, err = bindNamed(`
		SELECT
			to_char(date_trunc('month', receipt_date), 'YYYY-MM') AS period,
			COALESCE(SUM(total), 0) AS total_spent,
			COUNT(*) AS receipt_count,
			COUNT(DISTINCT order_id) AS order_count
		FROM receipts
		WHERE receipt_date >= :trend_start`+receiptScope+`
		GROUP BY period
		ORDER BY period`, arg, r.DB)
	if err != nil {
		return nil, err
	}
	if err := r.DB.SelectContext(ctx, &trendRows, query, args...); err != nil {
		return nil, err
	}

	return &dto.FinancialDashboard{
		TotalSpentThisMonth:         totals.MonthTotal,
		TotalSpentThisYear:          totals.YearTotal,
		PendingOrdersTotal:          pendingOrders,
		ReceiptsPendingVerification: totals.PendingVerification,
		SpendingBySupplier:          bySupplier,
		SpendingByProperty:          byProperty,
		SpendingTrend:               fillTrend(trendRows, monthStart),
	}, nil
}

// scoped rewrites a bare property filter to use the given table alias.
func scoped(filter, alias string) string {
	if filter == "" {
		return ""
	}
	return " AND " + alias + ".property_id = :property_id"
}

// fillTrend pads the grouped months out to the full six-month window so the
// chart never has gaps.
func fillTrend(rows []dto.PeriodSpending, monthStart time.Time) []dto.PeriodSpending {
	byPeriod := make(map[string]dto.PeriodSpending, len(rows))
	for _, row := range rows {
		byPeriod[row.Period] = row
	}

	trend := make([]dto.PeriodSpending, 0, 6)
	for i := 5; i >= 0; i-- {
		period := monthStart.AddDate(0, -i, 0).Format("2006-01")
		if row, ok := byPeriod[period]; ok {
			trend = append(trend, row)
			continue
		}
		trend = append(trend, dto.PeriodSpending{Period: period})
	}
	return trend
}
