package models

import "time"

// RateLimitCounter is one fixed-window request counter, keyed by caller and
// operation class
type RateLimitCounter struct {
	ClientID        string    `db:"client_id" json:"client_id"`
	Operation       string    `db:"operation" json:"operation"`
	WindowStartedAt time.Time `db:"window_started_at" json:"window_started_at"`
	Count           int       `db:"count" json:"count"`
}

// TableName returns the database table name
func (RateLimitCounter) TableName() string {
	return "rate_limits"
}
