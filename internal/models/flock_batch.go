package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AgeAtAcquisition string

const (
	AgeChick    AgeAtAcquisition = "chick"
	AgeJuvenile AgeAtAcquisition = "juvenile"
	AgeAdult    AgeAtAcquisition = "adult"
)

func (a AgeAtAcquisition) Valid() bool {
	switch a {
	case AgeChick, AgeJuvenile, AgeAdult:
		return true
	}
	return false
}

// FlockBatch is a group of birds acquired together.
// CurrentCount is owned by the mortality ledger and BroodingCount by the
// brooding derivation; neither is written from batch edits.
type FlockBatch struct {
	ID                      uint             `gorm:"primaryKey"`
	OwnerID                 uint             `gorm:"index;not null"`
	BatchName               string           `gorm:"size:100;not null"`
	Breed                   string           `gorm:"size:100;not null"`
	AcquisitionDate         time.Time        `gorm:"index;not null"`
	InitialCount            int              `gorm:"not null"`
	CurrentCount            int              `gorm:"not null"`
	Type                    string           `gorm:"size:50;not null"`
	AgeAtAcquisition        AgeAtAcquisition `gorm:"size:20;not null"`
	ExpectedLayingStartDate *time.Time
	ActualLayingStartDate   *time.Time
	Source                  string          `gorm:"size:100;not null"`
	Cost                    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Notes                   string          `gorm:"size:1000"`
	IsActive                bool            `gorm:"index;not null;default:true"`
	HensCount               int             `gorm:"not null;default:0"`
	RoostersCount           int             `gorm:"not null;default:0"`
	ChicksCount             int             `gorm:"not null;default:0"`
	BroodingCount           int             `gorm:"not null;default:0"`
	Version                 int             `gorm:"not null;default:1"` // bumped on every count mutation
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
