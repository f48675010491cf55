package models

import (
	"time"

	"github.com/google/uuid"
)

// TourGroup is a set of co-departing tours led together, capped by capacity
type TourGroup struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Date              string     `db:"date" json:"date"`
	Time              string     `db:"time" json:"time"`
	Name              string     `db:"name" json:"name"`
	TotalParticipants int        `db:"total_participants" json:"total_participants"`
	ManualMerge       bool       `db:"manual_merge" json:"manual_merge"`
	GuideID           *uuid.UUID `db:"guide_id" json:"guide_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (TourGroup) TableName() string {
	return "tour_groups"
}
