package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/campops/procurement-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) PropertyByID(ctx context.Context, id string) (*model.Property, error) {
	var prop model.Property
	err := r.DB.GetContext(ctx, &prop, `SELECT * FROM properties WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &prop, nil
}

func (r *PGRepository) SupplierByID(ctx context.Context, id string) (*model.Supplier, error) {
	var sup model.Supplier
	err := r.DB.GetContext(ctx, &sup, `SELECT * FROM suppliers WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sup, nil
}

func (r *PGRepository) SupplierNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := map[string]string{}
	if len(ids) == 0 {
		return names, nil
	}

	query, args, err := sqlx.In(`SELECT id, name FROM suppliers WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	rows, err := r.DB.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (r *PGRepository) MatchSupplierByName(ctx context.Context, name string) (*model.Supplier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	// Exact case-insensitive match before substring, so "Sysco" never lands
	// on "Sysco Alaska" when both exist.
	var sup model.Supplier
	err := r.DB.GetContext(ctx, &sup,
		`SELECT * FROM suppliers WHERE LOWER(name) = LOWER($1) AND is_active = true LIMIT 1`, name)
	if err == nil {
		return &sup, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = r.DB.GetContext(ctx, &sup,
		`SELECT * FROM suppliers WHERE name ILIKE '%' || $1 || '%' AND is_active = true ORDER BY name LIMIT 1`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sup, nil
}

func (r *PGRepository) UserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.DB.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *PGRepository) ListReviewers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.DB.SelectContext(ctx, &users,
		`SELECT * FROM users WHERE role IN ($1, $2) AND is_active = true ORDER BY full_name`,
		model.RoleSupervisor, model.RoleAdmin)
	return users, err
}
