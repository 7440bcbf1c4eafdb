package mortality

import (
	"strconv"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/auth"
	"flockkeeper-backend/internal/batch"
	"flockkeeper-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type DeathRecordResponse struct {
	ID          uint   `json:"id"`
	BatchID     uint   `json:"batch_id"`
	Date        string `json:"date"`
	Count       int    `json:"count"`
	Cause       string `json:"cause"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
	CreatedAt   string `json:"created_at"`
}

func toResponse(r models.DeathRecord) DeathRecordResponse {
	return DeathRecordResponse{
		ID:          r.ID,
		BatchID:     r.BatchID,
		Date:        models.FormatDay(r.Date),
		Count:       r.Count,
		Cause:       string(r.Cause),
		Description: r.Description,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// GET /api/death-records?batch_id=1
func ListDeathRecordsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		var batchID uint64
		if raw := c.Query("batch_id"); raw != "" {
			batchID, err = strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return apperr.Validation("invalid batch_id")
			}
		}

		records, err := svc.ListDeathRecords(c.UserContext(), ownerID, uint(batchID))
		if err != nil {
			return err
		}

		resp := make([]DeathRecordResponse, 0, len(records))
		for _, r := range records {
			resp = append(resp, toResponse(r))
		}
		return c.JSON(resp)
	}
}

// GET /api/death-records/:id
func GetDeathRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		id, err := batch.ParamID(c)
		if err != nil {
			return err
		}

		rec, err := svc.GetDeathRecord(c.UserContext(), ownerID, id)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(rec))
	}
}

// POST /api/death-records
func CreateDeathRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}

		var body CreateDeathRecordRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		rec, err := svc.CreateDeathRecord(c.UserContext(), ownerID, body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(rec))
	}
}

// PUT /api/death-records/:id
func UpdateDeathRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		id, err := batch.ParamID(c)
		if err != nil {
			return err
		}

		var body UpdateDeathRecordRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		rec, err := svc.UpdateDeathRecord(c.UserContext(), ownerID, id, body)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(rec))
	}
}

// DELETE /api/death-records/:id
func DeleteDeathRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		id, err := batch.ParamID(c)
		if err != nil {
			return err
		}

		if err := svc.DeleteDeathRecord(c.UserContext(), ownerID, id); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "death record deleted"})
	}
}
