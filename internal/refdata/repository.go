// Package refdata reads the reference rows this service depends on but does
// not manage: properties, suppliers, and users. Their CRUD lives in the admin
// service.
package refdata

import (
	"context"

	"github.com/campops/procurement-service/internal/model"
)

type Repository interface {
	PropertyByID(ctx context.Context, id string) (*model.Property, error)
	SupplierByID(ctx context.Context, id string) (*model.Supplier, error)
	SupplierNames(ctx context.Context, ids []string) (map[string]string, error)
	// MatchSupplierByName resolves a free-text supplier name against active
	// suppliers: exact case-insensitive first, then substring. Nil when
	// nothing fits.
	MatchSupplierByName(ctx context.Context, name string) (*model.Supplier, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
	// ListReviewers returns active supervisors and admins, the audience for
	// workflow notifications.
	ListReviewers(ctx context.Context) ([]model.User, error)
}
