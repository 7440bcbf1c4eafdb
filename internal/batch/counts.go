package batch

import (
	"context"
	"errors"
	"fmt"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleBatch means the batch row moved on since it was read.
var ErrStaleBatch = errors.New("batch was modified concurrently")

// FindOwned loads a batch owned by ownerID. Missing and foreign batches are
// both NotFound.
func FindOwned(ctx context.Context, db *gorm.DB, ownerID, batchID uint, activeOnly bool) (models.FlockBatch, error) {
	return findOwned(db.WithContext(ctx), ownerID, batchID, activeOnly)
}

// LockOwned is FindOwned holding the batch row until tx ends, so writers
// deriving state from the batch's logs run one at a time.
func LockOwned(ctx context.Context, tx *gorm.DB, ownerID, batchID uint) (models.FlockBatch, error) {
	return findOwned(tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), ownerID, batchID, false)
}

func findOwned(db *gorm.DB, ownerID, batchID uint, activeOnly bool) (models.FlockBatch, error) {
	var b models.FlockBatch
	q := db.Where("id = ? AND owner_id = ?", batchID, ownerID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b, apperr.NotFound("batch")
		}
		return b, fmt.Errorf("load batch %d: %w", batchID, err)
	}
	return b, nil
}

// AdjustCurrentCount moves the remaining-bird count of b by delta (negative
// removes birds). The write only lands if the row still carries b.Version;
// otherwise it reports a Conflict wrapping ErrStaleBatch.
func AdjustCurrentCount(ctx context.Context, tx *gorm.DB, b models.FlockBatch, delta int) (models.FlockBatch, error) {
	next := b.CurrentCount + delta
	if next < 0 {
		return b, apperr.Validation("count exceeds remaining birds (%d)", b.CurrentCount)
	}
	if next > b.InitialCount {
		return b, apperr.Validation("remaining birds cannot exceed initial count (%d)", b.InitialCount)
	}

	res := tx.WithContext(ctx).Model(&models.FlockBatch{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]any{
			"current_count": next,
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return b, fmt.Errorf("adjust current count of batch %d: %w", b.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return b, apperr.Conflict("batch changed while updating, retry", ErrStaleBatch)
	}

	b.CurrentCount = next
	b.Version++
	return b, nil
}

// SetBroodingCount overwrites the derived brooding count. Callers hold the
// batch row lock (LockOwned), which serialises derivations. The version is
// left alone: it guards current_count only.
func SetBroodingCount(ctx context.Context, tx *gorm.DB, batchID uint, count int) error {
	res := tx.WithContext(ctx).Model(&models.FlockBatch{}).
		Where("id = ?", batchID).
		Update("brooding_count", count)
	if res.Error != nil {
		return fmt.Errorf("set brooding count of batch %d: %w", batchID, res.Error)
	}
	return nil
}
