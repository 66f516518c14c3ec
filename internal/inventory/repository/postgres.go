package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campops/procurement-service/internal/inventory/dto"
	"github.com/campops/procurement-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertItemQuery = `
	INSERT INTO inventory_items (
		id, property_id, name, description, category, subcategory, brand,
		size_label, product_notes, supplier_id, unit, pack_size, pack_unit,
		order_unit, units_per_order_unit, unit_price, par_level,
		order_at_threshold, current_stock, avg_weekly_usage, sort_order,
		is_recurring, is_active, created_at, updated_at
	)
	VALUES (
		:id, :property_id, :name, :description, :category, :subcategory, :brand,
		:size_label, :product_notes, :supplier_id, :unit, :pack_size, :pack_unit,
		:order_unit, :units_per_order_unit, :unit_price, :par_level,
		:order_at_threshold, :current_stock, :avg_weekly_usage, :sort_order,
		:is_recurring, :is_active, :created_at, :updated_at
	)
`

func (r *PGRepository) Create(ctx context.Context, item *model.InventoryItem) error {
	_, err := r.DB.NamedExecContext(ctx, insertItemQuery, item)
	return err
}

func (r *PGRepository) Update(ctx context.Context, item *model.InventoryItem) error {
	query := `
		UPDATE inventory_items SET
			name = :name,
			description = :description,
			category = :category,
			subcategory = :subcategory,
			brand = :brand,
			size_label = :size_label,
			product_notes = :product_notes,
			supplier_id = :supplier_id,
			unit = :unit,
			pack_size = :pack_size,
			pack_unit = :pack_unit,
			order_unit = :order_unit,
			units_per_order_unit = :units_per_order_unit,
			unit_price = :unit_price,
			par_level = :par_level,
			order_at_threshold = :order_at_threshold,
			current_stock = :current_stock,
			avg_weekly_usage = :avg_weekly_usage,
			sort_order = :sort_order,
			is_recurring = :is_recurring,
			is_active = :is_active,
			updated_at = :updated_at
		WHERE id = :id
	`
	_, err := r.DB.NamedExecContext(ctx, query, item)
	return err
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.InventoryItem, error) {
	var item model.InventoryItem
	err := r.DB.GetContext(ctx, &item, `SELECT * FROM inventory_items WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *PGRepository) FindByIDs(ctx context.Context, ids []string) ([]model.InventoryItem, error) {
	if len(ids) == 0 {
		return []model.InventoryItem{}, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM inventory_items WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	var items []model.InventoryItem
	err = r.DB.SelectContext(ctx, &items, query, args...)
	return items, err
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ItemFilters) ([]model.InventoryItem, int, error) {
	var items []model.InventoryItem
	var count int

	conditions := []string{"is_active = true"}
	args := map[string]interface{}{}

	if f.PropertyID != "" {
		conditions = append(conditions, "property_id = :property_id")
		args["property_id"] = f.PropertyID
	}
	if f.Category != "" {
		conditions = append(conditions, "category = :category")
		args["category"] = f.Category
	}
	if f.SupplierID != "" {
		conditions = append(conditions, "supplier_id = :supplier_id")
		args["supplier_id"] = f.SupplierID
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	countQuery := "SELECT count(*) FROM inventory_items" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM inventory_items" + whereClause + " ORDER BY sort_order, category, name"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Skip)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) ActiveByProperty(ctx context.Context, propertyID string) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	err := r.DB.SelectContext(ctx, &items,
		`SELECT * FROM inventory_items WHERE property_id = $1 AND is_active = true ORDER BY name`,
		propertyID)
	return items, err
}

func (r *PGRepository) ListCategories(ctx context.Context, propertyID string) ([]string, error) {
	query := `SELECT DISTINCT category FROM inventory_items WHERE is_active = true AND category IS NOT NULL`
	args := []interface{}{}
	if propertyID != "" {
		query += ` AND property_id = $1`
		args = append(args, propertyID)
	}
	query += ` ORDER BY category`

	var categories []string
	err := r.DB.SelectContext(ctx, &categories, query, args...)
	return categories, err
}

func (r *PGRepository) SearchByName(ctx context.Context, propertyID, search string, limit int) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	err := r.DB.SelectContext(ctx, &items, `
		SELECT * FROM inventory_items
		WHERE property_id = $1 AND is_active = true AND name ILIKE '%' || $2 || '%'
		ORDER BY name
		LIMIT $3
	`, propertyID, search, limit)
	return items, err
}

func (r *PGRepository) CreateCount(ctx context.Context, count *model.InventoryCount) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertCount := `
		INSERT INTO inventory_counts (
			id, property_id, count_date, counted_by, notes, is_finalized,
			created_at, updated_at
		)
		VALUES (
			:id, :property_id, :count_date, :counted_by, :notes, :is_finalized,
			:created_at, :updated_at
		)
	`
	if _, err := tx.NamedExecContext(ctx, insertCount, count); err != nil {
		return fmt.Errorf("failed to insert count: %w", err)
	}

	insertItem := `
		INSERT INTO inventory_count_items (
			id, inventory_count_id, inventory_item_id, quantity, notes,
			confidence, created_at, updated_at
		)
		VALUES (
			:id, :inventory_count_id, :inventory_item_id, :quantity, :notes,
			:confidence, :created_at, :updated_at
		)
	`
	for i := range count.Items {
		if _, err := tx.NamedExecContext(ctx, insertItem, &count.Items[i]); err != nil {
			return fmt.Errorf("failed to insert count item: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PGRepository) FindCountByID(ctx context.Context, id string) (*model.InventoryCount, error) {
	var count model.InventoryCount
	err := r.DB.GetContext(ctx, &count, `SELECT * FROM inventory_counts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	err = r.DB.SelectContext(ctx, &count.Items,
		`SELECT * FROM inventory_count_items WHERE inventory_count_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	return &count, nil
}

func (r *PGRepository) ListCounts(ctx context.Context, propertyID string, skip, limit int) ([]model.InventoryCount, error) {
	query := `SELECT * FROM inventory_counts`
	args := []interface{}{}
	if propertyID != "" {
		query += ` WHERE property_id = $1`
		args = append(args, propertyID)
	}
	query += ` ORDER BY count_date DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, limit, skip)
	}

	var counts []model.InventoryCount
	err := r.DB.SelectContext(ctx, &counts, query, args...)
	return counts, err
}

func (r *PGRepository) FinalizeCountWithStock(ctx context.Context, countID string, finalizedAt time.Time, movements []model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE inventory_counts SET is_finalized = true, updated_at = $1 WHERE id = $2 AND is_finalized = false`,
		finalizedAt, countID)
	if err != nil {
		return fmt.Errorf("failed to finalize count: %w", err)
	}
	// Guard against a concurrent finalize that slipped past the lock.
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrConflict("count already finalized")
	}

	insertMovement := `
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
	for i := range movements {
		m := &movements[i]
		_, err := tx.ExecContext(ctx,
			`UPDATE inventory_items SET current_stock = $1, updated_at = $2 WHERE id = $3`,
			m.QuantityAfter, m.CreatedAt, m.InventoryItemID)
		if err != nil {
			return fmt.Errorf("failed to set stock: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, insertMovement, m); err != nil {
			return fmt.Errorf("failed to log movement: %w", err)
		}
	}

	return tx.Commit()
}
