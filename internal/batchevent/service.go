package batchevent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/audit"
	"flockkeeper-backend/internal/batch"
	"flockkeeper-backend/internal/mirror"
	"flockkeeper-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateEventRequest struct {
	BatchID       uint   `json:"batch_id"`
	Date          string `json:"date"` // "2025-03-01"
	Type          string `json:"type"`
	Description   string `json:"description"`
	AffectedCount *int   `json:"affected_count"`
	Notes         string `json:"notes"`
}

type UpdateEventRequest struct {
	Date          *string `json:"date"`
	Type          *string `json:"type"`
	Description   *string `json:"description"`
	AffectedCount *int    `json:"affected_count"`
	Notes         *string `json:"notes"`
}

// Service is the batch event timeline. Brooding events keep the batch's
// brooding count in step within the same transaction; flock timeline
// projections follow after commit and may fail silently.
type Service struct {
	db     *gorm.DB
	mirror *mirror.Mirror
	log    *zap.Logger
}

func NewService(db *gorm.DB, m *mirror.Mirror, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, mirror: m, log: log}
}

func (s *Service) CreateEvent(ctx context.Context, ownerID uint, req CreateEventRequest) (models.BatchEvent, error) {
	var missing []string
	if req.BatchID == 0 {
		missing = append(missing, "batch_id")
	}
	if strings.TrimSpace(req.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(req.Type) == "" {
		missing = append(missing, "type")
	}
	if strings.TrimSpace(req.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return models.BatchEvent{}, apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	ev := models.BatchEvent{
		BatchID:       req.BatchID,
		OwnerID:       ownerID,
		Description:   strings.TrimSpace(req.Description),
		AffectedCount: req.AffectedCount,
		Notes:         strings.TrimSpace(req.Notes),
	}
	if err := applyDate(&ev, req.Date); err != nil {
		return models.BatchEvent{}, err
	}
	if err := applyType(&ev, req.Type); err != nil {
		return models.BatchEvent{}, err
	}
	if err := validateAffected(ev.AffectedCount); err != nil {
		return models.BatchEvent{}, err
	}

	var b models.FlockBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if b, err = batch.LockOwned(ctx, tx, ownerID, req.BatchID); err != nil {
			return err
		}
		if err := Record(ctx, tx, &ev); err != nil {
			return err
		}
		if ev.Type.IsBrooding() {
			if _, err := Recompute(ctx, tx, ev.BatchID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.BatchEvent{}, apperr.Wrap("could not create batch event", err)
	}

	s.mirror.ProjectEvent(ctx, b, ev)
	s.audit(ctx, audit.LogOptions{
		OwnerID:     ownerID,
		EntityID:    ev.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("%s event recorded for batch %s", ev.Type, b.BatchName),
		After:       ev,
	})
	return ev, nil
}

func (s *Service) UpdateEvent(ctx context.Context, ownerID, eventID uint, req UpdateEventRequest) (models.BatchEvent, error) {
	before, err := s.findOwned(ctx, s.db, ownerID, eventID)
	if err != nil {
		return models.BatchEvent{}, err
	}

	ev := before
	changes := map[string]any{}
	if req.Date != nil {
		if err := applyDate(&ev, *req.Date); err != nil {
			return models.BatchEvent{}, err
		}
		changes["date"] = ev.Date
	}
	if req.Type != nil {
		if err := applyType(&ev, *req.Type); err != nil {
			return models.BatchEvent{}, err
		}
		changes["type"] = ev.Type
	}
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		if d == "" {
			return models.BatchEvent{}, apperr.Validation("description cannot be empty")
		}
		ev.Description = d
		changes["description"] = d
	}
	if req.AffectedCount != nil {
		if err := validateAffected(req.AffectedCount); err != nil {
			return models.BatchEvent{}, err
		}
		ev.AffectedCount = req.AffectedCount
		changes["affected_count"] = *req.AffectedCount
	}
	if req.Notes != nil {
		ev.Notes = strings.TrimSpace(*req.Notes)
		changes["notes"] = ev.Notes
	}

	var b models.FlockBatch
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if b, err = batch.LockOwned(ctx, tx, ownerID, ev.BatchID); err != nil {
			return err
		}
		if len(changes) > 0 {
			if err := tx.WithContext(ctx).Model(&models.BatchEvent{}).
				Where("id = ? AND owner_id = ?", ev.ID, ownerID).
				Updates(changes).Error; err != nil {
				return err
			}
		}
		if before.Type.IsBrooding() || ev.Type.IsBrooding() {
			if _, err := Recompute(ctx, tx, ev.BatchID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.BatchEvent{}, apperr.Wrap("could not update batch event", err)
	}

	// appended, not replaced: the earlier projection stays in the flock timeline
	s.mirror.ProjectEvent(ctx, b, ev)
	s.audit(ctx, audit.LogOptions{
		OwnerID:     ownerID,
		EntityID:    ev.ID,
		Action:      models.AuditActionUpdate,
		Description: fmt.Sprintf("%s event updated for batch %s", ev.Type, b.BatchName),
		Before:      before,
		After:       ev,
	})
	return ev, nil
}

func (s *Service) DeleteEvent(ctx context.Context, ownerID, eventID uint) error {
	ev, err := s.findOwned(ctx, s.db, ownerID, eventID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := batch.LockOwned(ctx, tx, ownerID, ev.BatchID); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Where("id = ? AND owner_id = ?", ev.ID, ownerID).
			Delete(&models.BatchEvent{}).Error; err != nil {
			return err
		}
		if ev.Type.IsBrooding() {
			if _, err := Recompute(ctx, tx, ev.BatchID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperr.Wrap("could not delete batch event", err)
	}

	s.mirror.RemoveProjections(ctx, ev)
	s.audit(ctx, audit.LogOptions{
		OwnerID:     ownerID,
		EntityID:    ev.ID,
		Action:      models.AuditActionDelete,
		Description: fmt.Sprintf("%s event deleted", ev.Type),
		Before:      ev,
	})
	return nil
}

func (s *Service) GetEvent(ctx context.Context, ownerID, eventID uint) (models.BatchEvent, error) {
	return s.findOwned(ctx, s.db, ownerID, eventID)
}

// ListEvents returns a batch's timeline in date order.
func (s *Service) ListEvents(ctx context.Context, ownerID, batchID uint) ([]models.BatchEvent, error) {
	if _, err := batch.FindOwned(ctx, s.db, ownerID, batchID, false); err != nil {
		return nil, err
	}
	var events []models.BatchEvent
	if err := s.db.WithContext(ctx).
		Where("batch_id = ? AND owner_id = ?", batchID, ownerID).
		Order("date ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, apperr.Internal("could not list batch events", err)
	}
	return events, nil
}

// Record inserts ev as is, without projections or derivation.
func Record(ctx context.Context, tx *gorm.DB, ev *models.BatchEvent) error {
	if err := tx.WithContext(ctx).Omit("Batch").Create(ev).Error; err != nil {
		return fmt.Errorf("insert batch event: %w", err)
	}
	return nil
}

func (s *Service) findOwned(ctx context.Context, db *gorm.DB, ownerID, eventID uint) (models.BatchEvent, error) {
	var ev models.BatchEvent
	if err := db.WithContext(ctx).Where("id = ? AND owner_id = ?", eventID, ownerID).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ev, apperr.NotFound("batch event")
		}
		return ev, apperr.Internal("could not load batch event", err)
	}
	return ev, nil
}

func (s *Service) audit(ctx context.Context, opts audit.LogOptions) {
	opts.EntityType = audit.EntityBatchEvent
	if err := audit.WriteLog(ctx, s.db, opts); err != nil {
		s.log.Warn("audit log failed", zap.Uint("batch_event_id", opts.EntityID), zap.Error(err))
	}
}

func applyDate(ev *models.BatchEvent, raw string) error {
	d, err := models.ParseDay(raw)
	if err != nil {
		return apperr.Validation("date must be YYYY-MM-DD")
	}
	ev.Date = d
	return nil
}

func applyType(ev *models.BatchEvent, raw string) error {
	t := models.BatchEventType(strings.TrimSpace(raw))
	if !t.Valid() {
		return apperr.Validation("unknown event type %q", raw)
	}
	ev.Type = t
	return nil
}

func validateAffected(n *int) error {
	if n != nil && *n < 0 {
		return apperr.Validation("affected_count cannot be negative")
	}
	return nil
}
