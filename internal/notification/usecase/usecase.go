package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/notification"
	"github.com/campops/procurement-service/internal/notification/dto"
	"github.com/campops/procurement-service/internal/refdata"
	"github.com/campops/procurement-service/pkg/broker"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type notificationUseCase struct {
	repo     notification.Repository
	ref      refdata.Repository
	producer *broker.KafkaProducer
	logger   logger.ZapLogger
}

// NewNotificationUseCase builds the notification service. producer may be nil
// when Kafka is not configured; email dispatch is then skipped entirely.
func NewNotificationUseCase(
	repo notification.Repository,
	ref refdata.Repository,
	producer *broker.KafkaProducer,
	log logger.ZapLogger,
) notification.UseCase {
	return &notificationUseCase{repo: repo, ref: ref, producer: producer, logger: log}
}

func (uc *notificationUseCase) ListMine(ctx context.Context, userID string, unreadOnly bool, limit int) (*dto.NotificationList, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := uc.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	unread, err := uc.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if rows == nil {
		rows = []model.Notification{}
	}
	return &dto.NotificationList{Notifications: rows, UnreadCount: unread}, nil
}

func (uc *notificationUseCase) UnreadCount(ctx context.Context, userID string) (int, error) {
	return uc.repo.UnreadCount(ctx, userID)
}

func (uc *notificationUseCase) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	return uc.repo.MarkRead(ctx, userID, ids)
}

func (uc *notificationUseCase) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return uc.repo.MarkAllRead(ctx, userID)
}

func (uc *notificationUseCase) Delete(ctx context.Context, userID, id string) error {
	row, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if row == nil {
		return model.ErrNotFound("notification not found")
	}
	if row.UserID != userID {
		return model.ErrForbidden("notification belongs to another user")
	}
	return uc.repo.Delete(ctx, id)
}

func (uc *notificationUseCase) OrderSubmitted(ctx context.Context, order *model.Order, propertyName, submittedBy string) error {
	reviewers, err := uc.ref.ListReviewers(ctx)
	if err != nil {
		return err
	}

	orderID := order.ID
	now := time.Now().UTC()
	rows := make([]model.Notification, 0, len(reviewers))
	emails := make([]string, 0, len(reviewers))
	for _, rv := range reviewers {
		rows = append(rows, model.Notification{
			BaseModel: model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			UserID:    rv.ID,
			Type:      model.NotificationOrderSubmitted,
			Title:     "New Order Submitted",
			Message:   fmt.Sprintf("%s submitted %s for %s", submittedBy, order.OrderNumber, propertyName),
			OrderID:   &orderID,
		})
		if rv.Email != "" {
			emails = append(emails, rv.Email)
		}
	}

	if err := uc.repo.CreateBatch(ctx, rows); err != nil {
		return err
	}

	uc.publishEmail(ctx, dto.EmailEvent{
		EventID:    uuid.New().String(),
		EventType:  dto.EmailEventType,
		Recipients: emails,
		Subject:    fmt.Sprintf("From: %s - New Order Submitted: %s - %s", submittedBy, order.OrderNumber, propertyName),
		Body:       fmt.Sprintf("Order %s for %s is awaiting review.", order.OrderNumber, propertyName),
		OrderID:    &orderID,
		CreatedAt:  now,
	})
	return nil
}

func (uc *notificationUseCase) OrderReviewed(ctx context.Context, order *model.Order, action, reviewedBy string) error {
	creator, err := uc.ref.UserByID(ctx, order.CreatedBy)
	if err != nil {
		return err
	}
	if creator == nil {
		return model.ErrNotFound("order creator %s not found", order.CreatedBy)
	}

	var title, subject string
	switch action {
	case "approve":
		title = "Order Approved"
		subject = fmt.Sprintf("From: %s - Order Approved: %s", reviewedBy, order.OrderNumber)
	case "request_changes":
		title = "Changes Requested"
		subject = fmt.Sprintf("From: %s - Changes Requested: %s", reviewedBy, order.OrderNumber)
	default:
		title = "Order Rejected"
		subject = fmt.Sprintf("From: %s - Order Rejected: %s", reviewedBy, order.OrderNumber)
	}

	orderID := order.ID
	now := time.Now().UTC()
	rows := []model.Notification{{
		BaseModel: model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		UserID:    creator.ID,
		Type:      model.NotificationOrderReviewed,
		Title:     title,
		Message:   fmt.Sprintf("%s reviewed order %s", reviewedBy, order.OrderNumber),
		OrderID:   &orderID,
	}}
	if err := uc.repo.CreateBatch(ctx, rows); err != nil {
		return err
	}

	if creator.Email != "" {
		uc.publishEmail(ctx, dto.EmailEvent{
			EventID:    uuid.New().String(),
			EventType:  dto.EmailEventType,
			Recipients: []string{creator.Email},
			Subject:    subject,
			Body:       fmt.Sprintf("Order %s: %s.", order.OrderNumber, title),
			OrderID:    &orderID,
			CreatedAt:  now,
		})
	}
	return nil
}

func (uc *notificationUseCase) ItemsFlagged(ctx context.Context, order *model.Order, propertyName string, items []notification.FlaggedItem) error {
	if len(items) == 0 {
		return nil
	}

	reviewers, err := uc.ref.ListReviewers(ctx)
	if err != nil {
		return err
	}

	orderID := order.ID
	now := time.Now().UTC()
	rows := make([]model.Notification, 0, len(reviewers)*len(items))
	emails := make([]string, 0, len(reviewers))
	for _, rv := range reviewers {
		for _, it := range items {
			itemID := it.OrderItemID
			rows = append(rows, model.Notification{
				BaseModel:   model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
				UserID:      rv.ID,
				Type:        model.NotificationItemFlagged,
				Title:       fmt.Sprintf("Item Flagged: %s", it.ItemName),
				Message:     fmt.Sprintf("%s: %s", propertyName, it.IssueDescription),
				OrderID:     &orderID,
				OrderItemID: &itemID,
			})
		}
		if rv.Email != "" {
			emails = append(emails, rv.Email)
		}
	}

	if err := uc.repo.CreateBatch(ctx, rows); err != nil {
		return err
	}

	uc.publishEmail(ctx, dto.EmailEvent{
		EventID:    uuid.New().String(),
		EventType:  dto.EmailEventType,
		Recipients: emails,
		Subject:    fmt.Sprintf("Items Flagged: %s - %s", order.OrderNumber, propertyName),
		Body:       fmt.Sprintf("%d item(s) on order %s were flagged with issues during receiving.", len(items), order.OrderNumber),
		OrderID:    &orderID,
		CreatedAt:  now,
	})
	return nil
}

// publishEmail hands the event to Kafka at most once. Publish failures are
// logged and dropped; mail is best-effort by contract.
func (uc *notificationUseCase) publishEmail(ctx context.Context, event dto.EmailEvent) {
	if uc.producer == nil || len(event.Recipients) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		uc.logger.Error("failed to encode email event", zap.Error(err))
		return
	}
	if err := uc.producer.Publish(ctx, []byte(event.EventID), payload); err != nil {
		uc.logger.Error("failed to publish email event", zap.Error(err), zap.String("subject", event.Subject))
	}
}
