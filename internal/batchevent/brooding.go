package batchevent

import (
	"context"
	"fmt"

	"flockkeeper-backend/internal/batch"
	"flockkeeper-backend/internal/models"

	"gorm.io/gorm"
)

// DeriveBroodingCount folds brooding events in order: starts add their
// affected count, stops subtract it, a missing or zero count means one bird.
// Only the final total is clamped at zero; a running total may dip below
// zero mid-fold and later starts are added to that negative value.
func DeriveBroodingCount(events []models.BatchEvent) int {
	total := 0
	for _, ev := range events {
		n := 1
		if ev.AffectedCount != nil && *ev.AffectedCount > 0 {
			n = *ev.AffectedCount
		}
		switch ev.Type {
		case models.EventBroodingStart:
			total += n
		case models.EventBroodingStop:
			total -= n
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// Recompute re-derives the brooding count of a batch from its event log and
// stores it. Run it inside the transaction that changed the log.
func Recompute(ctx context.Context, tx *gorm.DB, batchID uint) (int, error) {
	var events []models.BatchEvent
	err := tx.WithContext(ctx).
		Where("batch_id = ? AND type IN ?", batchID,
			[]models.BatchEventType{models.EventBroodingStart, models.EventBroodingStop}).
		Order("date ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return 0, fmt.Errorf("load brooding events of batch %d: %w", batchID, err)
	}

	count := DeriveBroodingCount(events)
	if err := batch.SetBroodingCount(ctx, tx, batchID, count); err != nil {
		return 0, err
	}
	return count, nil
}
