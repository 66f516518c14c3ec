package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/order/dto"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertOrderQuery = `
	INSERT INTO orders (
		id, property_id, order_number, status, week_of, notes, created_by,
		submitted_at, reviewed_at, reviewed_by, approved_at, ordered_at,
		ordered_by, received_at, reviewer_notes, estimated_total, actual_total,
		created_at, updated_at
	)
	VALUES (
		:id, :property_id, :order_number, :status, :week_of, :notes, :created_by,
		:submitted_at, :reviewed_at, :reviewed_by, :approved_at, :ordered_at,
		:ordered_by, :received_at, :reviewer_notes, :estimated_total, :actual_total,
		:created_at, :updated_at
	)
`

const insertOrderItemQuery = `
	INSERT INTO order_items (
		id, order_id, inventory_item_id, custom_item_name, custom_item_description,
		supplier_id, flag, requested_quantity, approved_quantity, received_quantity,
		unit, unit_price, camp_notes, reviewer_notes, is_received, has_issue,
		issue_description, issue_photo_url, receiving_notes, shortage_dismissed,
		created_at, updated_at
	)
	VALUES (
		:id, :order_id, :inventory_item_id, :custom_item_name, :custom_item_description,
		:supplier_id, :flag, :requested_quantity, :approved_quantity, :received_quantity,
		:unit, :unit_price, :camp_notes, :reviewer_notes, :is_received, :has_issue,
		:issue_description, :issue_photo_url, :receiving_notes, :shortage_dismissed,
		:created_at, :updated_at
	)
`

const updateOrderQuery = `
	UPDATE orders SET
		week_of = :week_of,
		notes = :notes,
		status = :status,
		submitted_at = :submitted_at,
		reviewed_at = :reviewed_at,
		reviewed_by = :reviewed_by,
		approved_at = :approved_at,
		ordered_at = :ordered_at,
		ordered_by = :ordered_by,
		received_at = :received_at,
		reviewer_notes = :reviewer_notes,
		estimated_total = :estimated_total,
		actual_total = :actual_total,
		updated_at = :updated_at
	WHERE id = :id
`

const updateOrderItemQuery = `
	UPDATE order_items SET
		inventory_item_id = :inventory_item_id,
		custom_item_name = :custom_item_name,
		custom_item_description = :custom_item_description,
		supplier_id = :supplier_id,
		flag = :flag,
		requested_quantity = :requested_quantity,
		approved_quantity = :approved_quantity,
		received_quantity = :received_quantity,
		unit = :unit,
		unit_price = :unit_price,
		camp_notes = :camp_notes,
		reviewer_notes = :reviewer_notes,
		is_received = :is_received,
		has_issue = :has_issue,
		issue_description = :issue_description,
		issue_photo_url = :issue_photo_url,
		receiving_notes = :receiving_notes,
		shortage_dismissed = :shortage_dismissed,
		updated_at = :updated_at
	WHERE id = :id
`

func (r *PGRepository) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertOrderQuery, order); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	for i := range order.Items {
		if _, err := tx.NamedExecContext(ctx, insertOrderItemQuery, &order.Items[i]); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return tx.Commit()
}

func (r *PGRepository) Update(ctx context.Context, order *model.Order) error {
	_, err := r.DB.NamedExecContext(ctx, updateOrderQuery, order)
	return err
}

func (r *PGRepository) UpdateWithItems(ctx context.Context, order *model.Order) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, updateOrderQuery, order); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	for i := range order.Items {
		if _, err := tx.NamedExecContext(ctx, updateOrderItemQuery, &order.Items[i]); err != nil {
			return fmt.Errorf("failed to update order item: %w", err)
		}
	}
	return tx.Commit()
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.DB.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	orders := []model.Order{order}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.OrderFilters) ([]model.Order, int, error) {
	where := "1=1"
	arg := map[string]interface{}{}

	if f.PropertyID != "" {
		where += " AND property_id = :property_id"
		arg["property_id"] = f.PropertyID
	}
	if len(f.Statuses) > 0 {
		where += " AND status IN (:statuses)"
		arg["statuses"] = f.Statuses
	}
	if f.CreatedBy != "" {
		where += " AND created_by = :created_by"
		arg["created_by"] = f.CreatedBy
	}

	var count int
	query, args, err := bindNamed("SELECT COUNT(*) FROM orders WHERE "+where, arg, r.DB)
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

	var orders []model.Order
	query, args, err = bindNamed(
		"SELECT * FROM orders WHERE "+where+" ORDER BY created_at DESC OFFSET :skip LIMIT :limit", arg, r.DB)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, err
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, count, nil
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

func (r *PGRepository) NumberSequence(ctx context.Context, base string) (int, error) {
	var count int
	err := r.DB.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM orders WHERE order_number = $1 OR order_number LIKE $1 || '-%'`, base)
	return count, err
}

func (r *PGRepository) attachItems(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	query, args, err := sqlx.In(
		`SELECT * FROM order_items WHERE order_id IN (?) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	query = r.DB.Rebind(query)

	var items []model.OrderItem
	if err := r.DB.SelectContext(ctx, &items, query, args...); err != nil {
		return err
	}

	byOrder := make(map[string][]model.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return nil
}

func (r *PGRepository) AddItem(ctx context.Context, order *model.Order, item *model.OrderItem) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertOrderItemQuery, item); err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, updateOrderQuery, order); err != nil {
		return fmt.Errorf("failed to update order totals: %w", err)
	}
	return tx.Commit()
}

func (r *PGRepository) RemoveItem(ctx context.Context, order *model.Order, itemID string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1 AND order_id = $2`, itemID, order.ID); err != nil {
		return fmt.Errorf("failed to delete order item: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, updateOrderQuery, order); err != nil {
		return fmt.Errorf("failed to update order totals: %w", err)
	}
	return tx.Commit()
}

func (r *PGRepository) FindItemsByIDs(ctx context.Context, ids []string) ([]model.OrderItem, error) {
	if len(ids) == 0 {
		return []model.OrderItem{}, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM order_items WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	var items []model.OrderItem
	err = r.DB.SelectContext(ctx, &items, query, args...)
	return items, err
}

const saveReceivingQuery = `
	UPDATE order_items SET
		received_quantity = :received_quantity,
		has_issue = :has_issue,
		issue_description = :issue_description,
		issue_photo_url = :issue_photo_url,
		receiving_notes = :receiving_notes,
		updated_at = :updated_at
	WHERE id = :id
`

func (r *PGRepository) SaveReceivingProgress(ctx context.Context, items []model.OrderItem) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range items {
		if _, err := tx.NamedExecContext(ctx, saveReceivingQuery, &items[i]); err != nil {
			return fmt.Errorf("failed to save receiving progress: %w", err)
		}
	}
	return tx.Commit()
}

const insertMovementQuery = `
	INSERT INTO inventory_stock_movements (
		id, inventory_item_id, property_id, movement_type, quantity_change,
		quantity_before, quantity_after, reference_type, reference_id,
		created_by, created_at
	)
	VALUES (
		:id, :inventory_item_id, :property_id, :movement_type, :quantity_change,
		:quantity_before, :quantity_after, :reference_type, :reference_id,
		:created_by, :created_at
	)
`

const finalizeItemQuery = `
	UPDATE order_items SET
		received_quantity = :received_quantity,
		is_received = :is_received,
		has_issue = :has_issue,
		issue_description = :issue_description,
		issue_photo_url = :issue_photo_url,
		receiving_notes = :receiving_notes,
		updated_at = :updated_at
	WHERE id = :id
`

func (r *PGRepository) FinalizeReceiving(ctx context.Context, order *model.Order, movements []model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, received_at = $2, updated_at = $3 WHERE id = $4`,
		order.Status, order.ReceivedAt, order.UpdatedAt, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	for i := range order.Items {
		if _, err := tx.NamedExecContext(ctx, finalizeItemQuery, &order.Items[i]); err != nil {
			return fmt.Errorf("failed to finalize order item: %w", err)
		}
	}

	for i := range movements {
		m := &movements[i]
		_, err := tx.ExecContext(ctx,
			`UPDATE inventory_items SET current_stock = current_stock + $1, updated_at = $2 WHERE id = $3`,
			m.QuantityChange, m.CreatedAt, m.InventoryItemID)
		if err != nil {
			return fmt.Errorf("failed to apply stock delta: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, insertMovementQuery, m); err != nil {
			return fmt.Errorf("failed to log movement: %w", err)
		}
	}

	return tx.Commit()
}

const shortageRowsQuery = `
	SELECT
		oi.id AS order_item_id,
		o.id AS order_id,
		o.order_number,
		o.created_at AS order_created_at,
		o.week_of,
		o.property_id,
		p.name AS property_name,
		oi.inventory_item_id,
		COALESCE(ii.name, oi.custom_item_name, 'Unknown Item') AS item_name,
		COALESCE(oi.unit, ii.unit) AS unit,
		COALESCE(oi.unit_price, ii.unit_price) AS unit_price,
		COALESCE(oi.supplier_id, ii.supplier_id) AS supplier_id,
		s.name AS supplier_name,
		oi.requested_quantity,
		oi.approved_quantity,
		oi.received_quantity
	FROM order_items oi
	JOIN orders o ON o.id = oi.order_id
	JOIN properties p ON p.id = o.property_id
	LEFT JOIN inventory_items ii ON ii.id = oi.inventory_item_id
	LEFT JOIN suppliers s ON s.id = COALESCE(oi.supplier_id, ii.supplier_id)
	WHERE o.status IN ('partially_received', 'received')
	  AND oi.shortage_dismissed = false
	  AND COALESCE(oi.approved_quantity, oi.requested_quantity) - COALESCE(oi.received_quantity, 0) > 0
`

func (r *PGRepository) ShortageRows(ctx context.Context, propertyID string) ([]dto.ShortageRow, error) {
	query := shortageRowsQuery
	args := []interface{}{}
	if propertyID != "" {
		query += ` AND o.property_id = $1`
		args = append(args, propertyID)
	}
	query += ` ORDER BY o.created_at DESC, oi.created_at`

	var rows []dto.ShortageRow
	err := r.DB.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

func (r *PGRepository) DismissShortages(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		`UPDATE order_items SET shortage_dismissed = true WHERE id IN (?) AND shortage_dismissed = false`, ids)
	if err != nil {
		return 0, err
	}
	query = r.DB.Rebind(query)

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const flaggedItemsQuery = `
	SELECT
		oi.id AS order_item_id,
		COALESCE(ii.name, oi.custom_item_name, 'Unknown Item') AS item_name,
		o.id AS order_id,
		o.order_number,
		o.property_id,
		p.name AS property_name,
		oi.received_quantity,
		oi.approved_quantity,
		oi.issue_description,
		oi.issue_photo_url,
		oi.receiving_notes,
		o.received_at,
		u.full_name AS flagged_by_name
	FROM order_items oi
	JOIN orders o ON o.id = oi.order_id
	JOIN properties p ON p.id = o.property_id
	LEFT JOIN inventory_items ii ON ii.id = oi.inventory_item_id
	LEFT JOIN users u ON u.id = o.created_by
	WHERE oi.has_issue = true AND oi.is_received = true
`

func (r *PGRepository) FlaggedItems(ctx context.Context, propertyID string) ([]dto.FlaggedItemView, error) {
	query := flaggedItemsQuery
	args := []interface{}{}
	if propertyID != "" {
		query += ` AND o.property_id = $1`
		args = append(args, propertyID)
	}
	query += ` ORDER BY oi.updated_at DESC`

	var rows []dto.FlaggedItemView
	err := r.DB.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

const summaryByPropertyQuery = `
	SELECT
		p.id AS property_id,
		p.name AS property_name,
		p.code AS property_code,
		COUNT(o.id) FILTER (
			WHERE o.status IN ('draft', 'submitted', 'under_review', 'approved')
		) AS pending_orders,
		COALESCE(SUM(o.estimated_total) FILTER (
			WHERE o.status IN ('submitted', 'under_review', 'approved')
		), 0) AS total_estimated,
		MAX(o.created_at) AS last_order_date
	FROM properties p
	LEFT JOIN orders o ON o.property_id = p.id
	WHERE p.is_active = true
	GROUP BY p.id, p.name, p.code
	ORDER BY p.name
`

func (r *PGRepository) SummaryByProperty(ctx context.Context) ([]dto.PropertySummary, error) {
	var rows []dto.PropertySummary
	err := r.DB.SelectContext(ctx, &rows, summaryByPropertyQuery)
	return rows, err
}

func (r *PGRepository) PurchaseOrders(ctx context.Context, orderIDs []string, weekOf *time.Time) ([]model.Order, error) {
	query := `SELECT * FROM orders WHERE status IN (?, ?)`
	args := []interface{}{model.OrderStatusApproved, model.OrderStatusOrdered}
	if len(orderIDs) > 0 {
		query += ` AND id IN (?)`
		args = append(args, orderIDs)
	}
	if weekOf != nil {
		query += ` AND week_of::date = ?::date`
		args = append(args, *weekOf)
	}
	query += ` ORDER BY created_at DESC`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	var orders []model.Order
	if err := r.DB.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}
