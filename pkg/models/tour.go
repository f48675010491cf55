package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/database"
)

// PaymentStatus is the simplified payment state derived from the provider payload
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
)

// Tour is the local mirror of one upstream booking
type Tour struct {
	ID                uuid.UUID                      `db:"id" json:"id"`
	ExternalBookingID *string                        `db:"external_booking_id" json:"external_booking_id,omitempty"`
	ConfirmationCode  string                         `db:"confirmation_code" json:"confirmation_code"`
	Title             string                         `db:"title" json:"title"`
	Date              string                         `db:"date" json:"date"` // YYYY-MM-DD
	Time              string                         `db:"time" json:"time"` // HH:MM, or the placeholder when unknown
	DurationMinutes   int                            `db:"duration_minutes" json:"duration_minutes"`
	Participants      int                            `db:"participants" json:"participants"`
	CustomerName      string                         `db:"customer_name" json:"customer_name"`
	CustomerEmail     string                         `db:"customer_email" json:"customer_email"`
	CustomerPhone     string                         `db:"customer_phone" json:"customer_phone"`
	PaymentStatus     PaymentStatus                  `db:"payment_status" json:"payment_status"`
	Amount            float64                        `db:"amount" json:"amount"`
	ExpectedAmount    float64                        `db:"expected_amount" json:"expected_amount"`
	Cancelled         bool                           `db:"cancelled" json:"cancelled"`
	Rescheduled       bool                           `db:"rescheduled" json:"rescheduled"`
	OriginalDate      *string                        `db:"original_date" json:"original_date,omitempty"`
	OriginalTime      *string                        `db:"original_time" json:"original_time,omitempty"`
	RawPayload        database.JSONB[map[string]any] `db:"raw_payload" json:"raw_payload,omitempty"`
	NeedsAssignment   bool                           `db:"needs_assignment" json:"needs_assignment"`
	ResyncRequired    bool                           `db:"resync_required" json:"resync_required"`
	GuideID           *uuid.UUID                     `db:"guide_id" json:"guide_id,omitempty"`
	GroupID           *uuid.UUID                     `db:"group_id" json:"group_id,omitempty"`
	LastSyncedAt      time.Time                      `db:"last_synced_at" json:"last_synced_at"`
	CreatedAt         time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time                      `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Tour) TableName() string {
	return "tours"
}

// PlaceholderTime marks a booking whose start time could not be determined
const PlaceholderTime = "00:00"
