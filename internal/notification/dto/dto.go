package dto

import (
	"time"

	"github.com/campops/procurement-service/internal/model"
)

type NotificationList struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unread_count"`
}

type MarkReadInput struct {
	NotificationIDs []string `json:"notification_ids" binding:"required,min=1"`
}

type MarkResult struct {
	Success     bool  `json:"success"`
	MarkedCount int64 `json:"marked_count"`
}

// EmailEvent is the payload published to the notification topic. A downstream
// mailer owns rendering and delivery; this service only announces that mail
// should go out.
type EmailEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	OrderID    *string   `json:"order_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EmailEventType tags every EmailEvent this service emits.
const EmailEventType = "notification.email.requested"
