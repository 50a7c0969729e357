package models

import "time"

// NotificationRequest is the message producers publish to the intake queue
type NotificationRequest struct {
	Destination string `json:"destination"`
	Body        string `json:"body"`
	Reference   string `json:"reference,omitempty"` // e.g. "inquiries:42"
}

type DeliveryStatus string

const (
	DeliveryFailed DeliveryStatus = "failed"
)

// NotificationLog represents a row in the notification_log table.
// Status holds the provider status string on success, DeliveryFailed otherwise
type NotificationLog struct {
	ID          int64      `db:"id"`
	JobID       string     `db:"job_id"`
	Destination string     `db:"destination"`
	Provider    string     `db:"provider"`
	MessageID   string     `db:"message_id"`
	Status      string     `db:"status"`
	Error       string     `db:"error"`
	Reference   string     `db:"reference"`
	CreatedAt   *time.Time `db:"created_at"`
}
