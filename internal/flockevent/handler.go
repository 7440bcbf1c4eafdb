package flockevent

import (
	"context"
	"time"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/auth"
	"flockkeeper-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type FlockEventResponse struct {
	ID            uint   `json:"id"`
	ProfileID     *uint  `json:"profile_id"`
	Date          string `json:"date"`
	Type          string `json:"type"`
	Description   string `json:"description"`
	Notes         string `json:"notes"`
	SourceEventID *uint  `json:"source_event_id"`
	CreatedAt     string `json:"created_at"`
}

// List returns the owner's flock timeline, newest first. Zero bounds are open.
func List(ctx context.Context, db *gorm.DB, ownerID uint, from, to time.Time) ([]models.FlockEvent, error) {
	q := db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if !from.IsZero() {
		q = q.Where("date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", to)
	}

	var events []models.FlockEvent
	if err := q.Order("date DESC, id DESC").Find(&events).Error; err != nil {
		return nil, apperr.Internal("could not list flock events", err)
	}
	return events, nil
}

// GET /api/flock-events?from=2025-01-01&to=2025-06-30
func ListFlockEventsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}

		var from, to time.Time
		if raw := c.Query("from"); raw != "" {
			if from, err = models.ParseDay(raw); err != nil {
				return apperr.Validation("from must be YYYY-MM-DD")
			}
		}
		if raw := c.Query("to"); raw != "" {
			if to, err = models.ParseDay(raw); err != nil {
				return apperr.Validation("to must be YYYY-MM-DD")
			}
		}
		if !from.IsZero() && !to.IsZero() && to.Before(from) {
			return apperr.Validation("to cannot be before from")
		}

		events, err := List(c.UserContext(), db, ownerID, from, to)
		if err != nil {
			return err
		}

		resp := make([]FlockEventResponse, 0, len(events))
		for _, ev := range events {
			resp = append(resp, FlockEventResponse{
				ID:            ev.ID,
				ProfileID:     ev.ProfileID,
				Date:          models.FormatDay(ev.Date),
				Type:          ev.Type,
				Description:   ev.Description,
				Notes:         ev.Notes,
				SourceEventID: ev.SourceEventID,
				CreatedAt:     ev.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return c.JSON(resp)
	}
}
