package mortality

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/audit"
	"flockkeeper-backend/internal/batch"
	"flockkeeper-backend/internal/batchevent"
	"flockkeeper-backend/internal/mirror"
	"flockkeeper-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const companionNote = "Gone but not forgotten"

type CreateDeathRecordRequest struct {
	BatchID     uint   `json:"batch_id"`
	Date        string `json:"date"` // "2025-03-01"
	Count       *int   `json:"count"`
	Cause       string `json:"cause"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
}

type UpdateDeathRecordRequest struct {
	Date        *string `json:"date"`
	Count       *int    `json:"count"`
	Cause       *string `json:"cause"`
	Description *string `json:"description"`
	Notes       *string `json:"notes"`
}

// Service is the mortality ledger. Every ledger write moves the batch's
// remaining count in the same transaction, guarded by the batch version.
type Service struct {
	db     *gorm.DB
	runner *mirror.Runner
	log    *zap.Logger

	recordEvent func(context.Context, *gorm.DB, *models.BatchEvent) error
}

func NewService(db *gorm.DB, runner *mirror.Runner, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, runner: runner, log: log, recordEvent: batchevent.Record}
}

func (s *Service) CreateDeathRecord(ctx context.Context, ownerID uint, req CreateDeathRecordRequest) (models.DeathRecord, error) {
	var missing []string
	if req.BatchID == 0 {
		missing = append(missing, "batch_id")
	}
	if strings.TrimSpace(req.Date) == "" {
		missing = append(missing, "date")
	}
	if req.Count == nil {
		missing = append(missing, "count")
	}
	if strings.TrimSpace(req.Cause) == "" {
		missing = append(missing, "cause")
	}
	if strings.TrimSpace(req.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return models.DeathRecord{}, apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	rec := models.DeathRecord{
		BatchID:     req.BatchID,
		OwnerID:     ownerID,
		Count:       *req.Count,
		Description: strings.TrimSpace(req.Description),
		Notes:       strings.TrimSpace(req.Notes),
	}
	if err := applyCause(&rec, req.Cause); err != nil {
		return models.DeathRecord{}, err
	}
	if err := applyDate(&rec, req.Date); err != nil {
		return models.DeathRecord{}, err
	}
	if rec.Count <= 0 {
		return models.DeathRecord{}, apperr.Validation("count must be greater than 0")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := batch.FindOwned(ctx, tx, ownerID, rec.BatchID, true)
		if err != nil {
			return err
		}
		if rec.Count > b.CurrentCount {
			return apperr.Validation("count (%d) exceeds remaining birds (%d)", rec.Count, b.CurrentCount)
		}
		if err := tx.WithContext(ctx).Omit("Batch").Create(&rec).Error; err != nil {
			return fmt.Errorf("insert death record: %w", err)
		}
		_, err = batch.AdjustCurrentCount(ctx, tx, b, -rec.Count)
		return err
	})
	if err != nil {
		return models.DeathRecord{}, apperr.Wrap("could not record deaths", err)
	}

	s.recordCompanionEvent(ctx, rec)
	s.audit(ctx, audit.LogOptions{
		OwnerID:     ownerID,
		EntityID:    rec.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("%d birds lost (%s)", rec.Count, rec.Cause),
		After:       rec,
	})
	return rec, nil
}

// recordCompanionEvent puts the loss on the batch timeline. Best-effort.
func (s *Service) recordCompanionEvent(ctx context.Context, rec models.DeathRecord) {
	count := rec.Count
	ev := models.BatchEvent{
		BatchID:       rec.BatchID,
		OwnerID:       rec.OwnerID,
		Date:          rec.Date,
		Type:          models.EventFlockLoss,
		Description:   rec.Description,
		AffectedCount: &count,
		Notes:         fmt.Sprintf("%s. Cause: %s", companionNote, rec.Cause),
	}
	s.runner.Do(ctx, "companion_loss_event", func(ctx context.Context) error {
		return s.recordEvent(ctx, s.db, &ev)
	}, zap.Uint("owner_id", rec.OwnerID), zap.Uint("death_record_id", rec.ID))
}

func (s *Service) UpdateDeathRecord(ctx context.Context, ownerID, recordID uint, req UpdateDeathRecordRequest) (models.DeathRecord, error) {
	before, err := s.findOwned(ctx, ownerID, recordID)
	if err != nil {
		return models.DeathRecord{}, err
	}

	rec := before
	changes := map[string]any{}
	if req.Date != nil {
		if err := applyDate(&rec, *req.Date); err != nil {
			return models.DeathRecord{}, err
		}
		changes["date"] = rec.Date
	}
	if req.Cause != nil {
		if err := applyCause(&rec, *req.Cause); err != nil {
			return models.DeathRecord{}, err
		}
		changes["cause"] = rec.Cause
	}
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		if d == "" {
			return models.DeathRecord{}, apperr.Validation("description cannot be empty")
		}
		rec.Description = d
		changes["description"] = d
	}
	if req.Notes != nil {
		rec.Notes = strings.TrimSpace(*req.Notes)
		changes["notes"] = rec.Notes
	}
	delta := 0
	if req.Count != nil {
		if *req.Count <= 0 {
			return models.DeathRecord{}, apperr.Validation("count must be greater than 0")
		}
		delta = *req.Count - before.Count
		rec.Count = *req.Count
		changes["count"] = rec.Count
	}
	if len(changes) == 0 {
		return rec, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := batch.FindOwned(ctx, tx, ownerID, rec.BatchID, false)
		if err != nil {
			return err
		}
		if delta > b.CurrentCount {
			return apperr.Validation("count increase (%d) exceeds remaining birds (%d)", delta, b.CurrentCount)
		}
		if err := tx.WithContext(ctx).Model(&models.DeathRecord{}).
			Where("id = ? AND owner_id = ?", rec.ID, ownerID).
			Updates(changes).Error; err != nil {
			return fmt.Errorf("update death record: %w", err)
		}
		if delta != 0 {
			if _, err := batch.AdjustCurrentCount(ctx, tx, b, -delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.DeathRecord{}, apperr.Wrap("could not update death record", err)
	}

	s.audit(ctx, audit.LogOptions{
		OwnerID:     ownerID,
		EntityID:    rec.ID,
		Action:      models.AuditActionUpdate,
		Description: fmt.Sprintf("death record updated, count %d -> %d", before.Count, rec.Count),
		Before:      before,
		After:       rec,
	})
	return rec, nil
}

// DeleteDeathRecord removes the record and returns its birds to the batch.
func (s *Service) DeleteDeathRecord(ctx context.Context, ownerID, recordID uint) error {
	rec, err := s.findOwned(ctx, ownerID, recordID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := batch.FindOwned(ctx, tx, ownerID, rec.BatchID, false)
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Where("id = ? AND owner_id = ?", rec.ID, ownerID).
			Delete(&models.DeathRecord{}).Error; err != nil {
			return fmt.Errorf("delete death record: %w", err)
		}
		_, err = batch.AdjustCurrentCount(ctx, tx, b, rec.Count)
		return err
	})
	if err != nil {
		return apperr.Wrap("could not delete death record", err)
	}

	s.audit(ctx, audit.LogOptions{
		OwnerID:     ownerID,
		EntityID:    rec.ID,
		Action:      models.AuditActionDelete,
		Description: fmt.Sprintf("death record removed, %d birds restored", rec.Count),
		Before:      rec,
	})
	return nil
}

func (s *Service) GetDeathRecord(ctx context.Context, ownerID, recordID uint) (models.DeathRecord, error) {
	return s.findOwned(ctx, ownerID, recordID)
}

// ListDeathRecords returns the owner's records, newest first, optionally
// for one batch.
func (s *Service) ListDeathRecords(ctx context.Context, ownerID, batchID uint) ([]models.DeathRecord, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if batchID != 0 {
		if _, err := batch.FindOwned(ctx, s.db, ownerID, batchID, false); err != nil {
			return nil, err
		}
		q = q.Where("batch_id = ?", batchID)
	}

	var records []models.DeathRecord
	if err := q.Order("date DESC, id DESC").Find(&records).Error; err != nil {
		return nil, apperr.Internal("could not list death records", err)
	}
	return records, nil
}

func (s *Service) findOwned(ctx context.Context, ownerID, recordID uint) (models.DeathRecord, error) {
	var rec models.DeathRecord
	if err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", recordID, ownerID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rec, apperr.NotFound("death record")
		}
		return rec, apperr.Internal("could not load death record", err)
	}
	return rec, nil
}

func (s *Service) audit(ctx context.Context, opts audit.LogOptions) {
	opts.EntityType = audit.EntityDeathRecord
	if err := audit.WriteLog(ctx, s.db, opts); err != nil {
		s.log.Warn("audit log failed", zap.Uint("death_record_id", opts.EntityID), zap.Error(err))
	}
}

func applyDate(rec *models.DeathRecord, raw string) error {
	d, err := models.ParseDay(raw)
	if err != nil {
		return apperr.Validation("date must be YYYY-MM-DD")
	}
	rec.Date = d
	return nil
}

func applyCause(rec *models.DeathRecord, raw string) error {
	c := models.DeathCause(strings.TrimSpace(raw))
	if !c.Valid() {
		return apperr.Validation("cause must be one of predator, disease, age, injury, unknown, culled, other")
	}
	rec.Cause = c
	return nil
}
