package notification

import (
	"context"

	"github.com/campops/procurement-service/internal/model"
)

type Repository interface {
	CreateBatch(ctx context.Context, rows []model.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	// MarkRead flips only rows owned by userID; foreign ids are silently
	// skipped. Returns the number of rows actually updated.
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	FindByID(ctx context.Context, id string) (*model.Notification, error)
	Delete(ctx context.Context, id string) error
}
