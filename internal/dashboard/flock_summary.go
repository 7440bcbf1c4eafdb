package dashboard

import (
	"context"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/auth"
	"flockkeeper-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type FlockSummaryResponse struct {
	ActiveBatches int `json:"active_batches"`
	InitialBirds  int `json:"initial_birds"`
	CurrentBirds  int `json:"current_birds"`
	Losses        int `json:"losses"`
	Hens          int `json:"hens"`
	Roosters      int `json:"roosters"`
	Chicks        int `json:"chicks"`
	Brooding      int `json:"brooding"`
}

// FlockSummary adds up the owner's active batches.
func FlockSummary(ctx context.Context, db *gorm.DB, ownerID uint) (FlockSummaryResponse, error) {
	var batches []models.FlockBatch
	if err := db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Find(&batches).Error; err != nil {
		return FlockSummaryResponse{}, apperr.Internal("could not load batches", err)
	}

	var s FlockSummaryResponse
	for _, b := range batches {
		s.ActiveBatches++
		s.InitialBirds += b.InitialCount
		s.CurrentBirds += b.CurrentCount
		s.Hens += b.HensCount
		s.Roosters += b.RoostersCount
		s.Chicks += b.ChicksCount
		s.Brooding += b.BroodingCount
	}
	s.Losses = s.InitialBirds - s.CurrentBirds
	return s, nil
}

// GET /api/dashboard/flock-summary
func FlockSummaryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}

		s, err := FlockSummary(c.UserContext(), db, ownerID)
		if err != nil {
			return err
		}
		return c.JSON(s)
	}
}
