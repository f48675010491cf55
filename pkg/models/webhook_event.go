package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/database"
)

// WebhookTopic is the provider's event type header value
type WebhookTopic string

const (
	WebhookTopicCreated   WebhookTopic = "bookings/create"
	WebhookTopicUpdated   WebhookTopic = "bookings/update"
	WebhookTopicCancelled WebhookTopic = "bookings/cancel"
)

// WebhookStatus is the recorded outcome of processing a delivery
type WebhookStatus string

const (
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusFailed    WebhookStatus = "failed"
	WebhookStatusIgnored   WebhookStatus = "ignored"
)

// WebhookEvent is one received provider delivery. Rows are append-only.
type WebhookEvent struct {
	ID                uuid.UUID                      `db:"id" json:"id"`
	Topic             string                         `db:"topic" json:"topic"`
	ExternalBookingID string                         `db:"external_booking_id" json:"external_booking_id"`
	Payload           database.JSONB[map[string]any] `db:"payload" json:"payload,omitempty"`
	Status            WebhookStatus                  `db:"status" json:"status"`
	ErrorMessage      *string                        `db:"error_message" json:"error_message,omitempty"`
	CreatedAt         time.Time                      `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
