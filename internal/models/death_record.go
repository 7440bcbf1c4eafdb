package models

import "time"

type DeathCause string

const (
	CausePredator DeathCause = "predator"
	CauseDisease  DeathCause = "disease"
	CauseAge      DeathCause = "age"
	CauseInjury   DeathCause = "injury"
	CauseUnknown  DeathCause = "unknown"
	CauseCulled   DeathCause = "culled"
	CauseOther    DeathCause = "other"
)

func (c DeathCause) Valid() bool {
	switch c {
	case CausePredator, CauseDisease, CauseAge, CauseInjury, CauseUnknown, CauseCulled, CauseOther:
		return true
	}
	return false
}

// DeathRecord is one entry of the mortality ledger. Inserting or deleting a
// record moves FlockBatch.CurrentCount by Count in the same transaction.
type DeathRecord struct {
	ID          uint       `gorm:"primaryKey"`
	BatchID     uint       `gorm:"index;not null"`
	Batch       FlockBatch `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	OwnerID     uint       `gorm:"index;not null"`
	Date        time.Time  `gorm:"index;not null"`
	Count       int        `gorm:"not null"`
	Cause       DeathCause `gorm:"size:20;not null"`
	Description string     `gorm:"size:500;not null"`
	Notes       string     `gorm:"size:1000"`
	CreatedAt   time.Time
}
