package models

import "time"

// FlockEvent is an entry of the flock-level timeline. Rows mirrored from a
// batch event carry SourceEventID; hand-entered rows leave it nil.
type FlockEvent struct {
	ID            uint      `gorm:"primaryKey"`
	OwnerID       uint      `gorm:"index;not null"`
	ProfileID     *uint     `gorm:"index"`
	Date          time.Time `gorm:"index;not null"`
	Type          string    `gorm:"size:30;not null"`
	Description   string    `gorm:"size:500;not null"`
	Notes         string    `gorm:"size:1000"`
	SourceEventID *uint     `gorm:"index"`
	CreatedAt     time.Time
}
