package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncType identifies what kind of pass produced a sync log entry
type SyncType string

const (
	SyncTypeRoutine SyncType = "routine"
	SyncTypeFull    SyncType = "full"
	SyncTypeWebhook SyncType = "webhook"
)

// SyncStatus is the lifecycle state of a sync run
type SyncStatus string

const (
	SyncStatusStarted   SyncStatus = "started"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusPartial   SyncStatus = "partial"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncLog records one synchronization run end to end
type SyncLog struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	SyncType        SyncType   `db:"sync_type" json:"sync_type"`
	Status          SyncStatus `db:"status" json:"status"`
	WindowStart     string     `db:"window_start" json:"window_start"`
	WindowEnd       string     `db:"window_end" json:"window_end"`
	BookingsFound   int        `db:"bookings_found" json:"bookings_found"`
	BookingsCreated int        `db:"bookings_created" json:"bookings_created"`
	BookingsUpdated int        `db:"bookings_updated" json:"bookings_updated"`
	BookingsFailed  int        `db:"bookings_failed" json:"bookings_failed"`
	ErrorSummary    *string    `db:"error_summary" json:"error_summary,omitempty"`
	TriggeredBy     string     `db:"triggered_by" json:"triggered_by"`
	StartedAt       time.Time  `db:"started_at" json:"started_at"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	DurationMs      *int64     `db:"duration_ms" json:"duration_ms,omitempty"`
}

// TableName returns the database table name
func (SyncLog) TableName() string {
	return "sync_logs"
}
