package model

// NotificationType tags in-app notifications by the workflow event that
// produced them.
type NotificationType string

const (
	NotificationOrderSubmitted NotificationType = "order_submitted"
	NotificationOrderReviewed  NotificationType = "order_reviewed"
	NotificationItemFlagged    NotificationType = "item_flagged"
	NotificationOrderSeeded    NotificationType = "order_seeded"
)

type Notification struct {
	BaseModel
	UserID      string           `db:"user_id" json:"user_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	OrderID     *string          `db:"order_id" json:"order_id"`
	OrderItemID *string          `db:"order_item_id" json:"order_item_id"`
	IsRead      bool             `db:"is_read" json:"is_read"`
}
