package models

import "time"

type BatchEventType string

const (
	EventHealthCheck    BatchEventType = "health_check"
	EventVaccination    BatchEventType = "vaccination"
	EventRelocation     BatchEventType = "relocation"
	EventBreeding       BatchEventType = "breeding"
	EventLayingStart    BatchEventType = "laying_start"
	EventProductionNote BatchEventType = "production_note"
	EventBroodingStart  BatchEventType = "brooding_start"
	EventBroodingStop   BatchEventType = "brooding_stop"
	EventFlockLoss      BatchEventType = "flock_loss"
	EventOther          BatchEventType = "other"
)

func (t BatchEventType) Valid() bool {
	switch t {
	case EventHealthCheck, EventVaccination, EventRelocation, EventBreeding,
		EventLayingStart, EventProductionNote, EventBroodingStart, EventBroodingStop,
		EventFlockLoss, EventOther:
		return true
	}
	return false
}

// IsBrooding reports whether events of this type feed the brooding count.
func (t BatchEventType) IsBrooding() bool {
	return t == EventBroodingStart || t == EventBroodingStop
}

type BatchEvent struct {
	ID            uint           `gorm:"primaryKey"`
	BatchID       uint           `gorm:"index;not null"`
	Batch         FlockBatch     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	OwnerID       uint           `gorm:"index;not null"`
	Date          time.Time      `gorm:"index;not null"`
	Type          BatchEventType `gorm:"size:30;index;not null"`
	Description   string         `gorm:"size:500;not null"`
	AffectedCount *int
	Notes         string `gorm:"size:1000"`
	CreatedAt     time.Time
}
