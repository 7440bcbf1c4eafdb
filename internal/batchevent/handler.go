package batchevent

import (
	"strconv"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/auth"
	"flockkeeper-backend/internal/batch"
	"flockkeeper-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type EventResponse struct {
	ID            uint   `json:"id"`
	BatchID       uint   `json:"batch_id"`
	Date          string `json:"date"`
	Type          string `json:"type"`
	Description   string `json:"description"`
	AffectedCount *int   `json:"affected_count"`
	Notes         string `json:"notes"`
	CreatedAt     string `json:"created_at"`
}

func toResponse(ev models.BatchEvent) EventResponse {
	return EventResponse{
		ID:            ev.ID,
		BatchID:       ev.BatchID,
		Date:          models.FormatDay(ev.Date),
		Type:          string(ev.Type),
		Description:   ev.Description,
		AffectedCount: ev.AffectedCount,
		Notes:         ev.Notes,
		CreatedAt:     ev.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// GET /api/batch-events?batch_id=1
func ListEventsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		batchID, err := strconv.ParseUint(c.Query("batch_id"), 10, 64)
		if err != nil || batchID == 0 {
			return apperr.Validation("batch_id is required")
		}

		events, err := svc.ListEvents(c.UserContext(), ownerID, uint(batchID))
		if err != nil {
			return err
		}

		resp := make([]EventResponse, 0, len(events))
		for _, ev := range events {
			resp = append(resp, toResponse(ev))
		}
		return c.JSON(resp)
	}
}

// GET /api/batch-events/:id
func GetEventHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		id, err := batch.ParamID(c)
		if err != nil {
			return err
		}

		ev, err := svc.GetEvent(c.UserContext(), ownerID, id)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(ev))
	}
}

// POST /api/batch-events
func CreateEventHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}

		var body CreateEventRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		ev, err := svc.CreateEvent(c.UserContext(), ownerID, body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(ev))
	}
}

// PUT /api/batch-events/:id
func UpdateEventHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		id, err := batch.ParamID(c)
		if err != nil {
			return err
		}

		var body UpdateEventRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		ev, err := svc.UpdateEvent(c.UserContext(), ownerID, id, body)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(ev))
	}
}

// DELETE /api/batch-events/:id
func DeleteEventHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		id, err := batch.ParamID(c)
		if err != nil {
			return err
		}

		if err := svc.DeleteEvent(c.UserContext(), ownerID, id); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "batch event deleted"})
	}
}
