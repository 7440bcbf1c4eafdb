package batch

import (
	"strconv"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/auth"
	"flockkeeper-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type BatchResponse struct {
	ID                      uint            `json:"id"`
	BatchName               string          `json:"batch_name"`
	Breed                   string          `json:"breed"`
	AcquisitionDate         string          `json:"acquisition_date"`
	InitialCount            int             `json:"initial_count"`
	CurrentCount            int             `json:"current_count"`
	Type                    string          `json:"type"`
	AgeAtAcquisition        string          `json:"age_at_acquisition"`
	ExpectedLayingStartDate *string         `json:"expected_laying_start_date"`
	ActualLayingStartDate   *string         `json:"actual_laying_start_date"`
	Source                  string          `json:"source"`
	Cost                    decimal.Decimal `json:"cost"`
	Notes                   string          `json:"notes"`
	IsActive                bool            `json:"is_active"`
	HensCount               int             `json:"hens_count"`
	RoostersCount           int             `json:"roosters_count"`
	ChicksCount             int             `json:"chicks_count"`
	BroodingCount           int             `json:"brooding_count"`
	CreatedAt               string          `json:"created_at"`
	UpdatedAt               string          `json:"updated_at"`
}

func ToResponse(b models.FlockBatch) BatchResponse {
	return BatchResponse{
		ID:                      b.ID,
		BatchName:               b.BatchName,
		Breed:                   b.Breed,
		AcquisitionDate:         models.FormatDay(b.AcquisitionDate),
		InitialCount:            b.InitialCount,
		CurrentCount:            b.CurrentCount,
		Type:                    b.Type,
		AgeAtAcquisition:        string(b.AgeAtAcquisition),
		ExpectedLayingStartDate: models.FormatOptionalDay(b.ExpectedLayingStartDate),
		ActualLayingStartDate:   models.FormatOptionalDay(b.ActualLayingStartDate),
		Source:                  b.Source,
		Cost:                    b.Cost,
		Notes:                   b.Notes,
		IsActive:                b.IsActive,
		HensCount:               b.HensCount,
		RoostersCount:           b.RoostersCount,
		ChicksCount:             b.ChicksCount,
		BroodingCount:           b.BroodingCount,
		CreatedAt:               b.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:               b.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// ParamID reads a positive numeric :id route parameter.
func ParamID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("id is not valid")
	}
	return uint(id), nil
}

// GET /api/batches?include_inactive=true
func ListBatchesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}

		batches, err := svc.List(c.UserContext(), ownerID, !c.QueryBool("include_inactive", false))
		if err != nil {
			return err
		}

		resp := make([]BatchResponse, 0, len(batches))
		for _, b := range batches {
			resp = append(resp, ToResponse(b))
		}
		return c.JSON(resp)
	}
}

// GET /api/batches/:id
func GetBatchHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		id, err := ParamID(c)
		if err != nil {
			return err
		}

		b, err := svc.Get(c.UserContext(), ownerID, id)
		if err != nil {
			return err
		}
		return c.JSON(ToResponse(b))
	}
}

// POST /api/batches
func CreateBatchHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}

		var body CreateBatchRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		b, err := svc.Create(c.UserContext(), ownerID, body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(ToResponse(b))
	}
}

// PUT /api/batches/:id
func UpdateBatchHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		id, err := ParamID(c)
		if err != nil {
			return err
		}

		var body UpdateBatchRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}

		b, err := svc.Update(c.UserContext(), ownerID, id, body)
		if err != nil {
			return err
		}
		return c.JSON(ToResponse(b))
	}
}

// DELETE /api/batches/:id (soft)
func DeactivateBatchHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}
		id, err := ParamID(c)
		if err != nil {
			return err
		}

		if err := svc.Deactivate(c.UserContext(), ownerID, id); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "batch deactivated"})
	}
}
