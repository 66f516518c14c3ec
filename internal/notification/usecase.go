package notification

import (
	"context"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/notification/dto"
)

// FlaggedItem is the slice of a receiving issue a notification carries.
type FlaggedItem struct {
	OrderItemID      string
	ItemName         string
	IssueDescription string
}

// Notifier is the write side handed to the order workflows: in-app rows for
// the right audience plus a fire-and-forget email dispatch event. Callers
// invoke it after their transaction commits and log-and-drop any error; a
// failed notification never rolls back the work it announces.
type Notifier interface {
	OrderSubmitted(ctx context.Context, order *model.Order, propertyName, submittedBy string) error
	OrderReviewed(ctx context.Context, order *model.Order, action, reviewedBy string) error
	ItemsFlagged(ctx context.Context, order *model.Order, propertyName string, items []FlaggedItem) error
}

type UseCase interface {
	Notifier

	ListMine(ctx context.Context, userID string, unreadOnly bool, limit int) (*dto.NotificationList, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}
