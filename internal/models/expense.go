package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const ExpenseCategoryBirds = "Birds"

type Expense struct {
	ID            uint            `gorm:"primaryKey"`
	OwnerID       uint            `gorm:"index;not null"`
	Category      string          `gorm:"size:100;index;not null"`
	Description   string          `gorm:"size:255"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Date          time.Time       `gorm:"index;not null"`
	SourceBatchID *uint           `gorm:"index"` // set when projected from a batch purchase
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
