package dashboard

import (
	"context"
	"strconv"
	"time"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/auth"
	"flockkeeper-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MortalityChartPoint struct {
	Label   string         `json:"label"` // bucket start day
	ByCause map[string]int `json:"by_cause"`
	Total   int            `json:"total"`
}

type MortalityChartResponse struct {
	Period     string                `json:"period"` // daily | weekly | monthly
	From       string                `json:"from"`
	To         string                `json:"to"`
	Points     []MortalityChartPoint `json:"points"`
	GrandTotal int                   `json:"grand_total"`
}

// chartWindow returns the first bucket start, the exclusive end, and the
// bucket step for count periods ending today.
func chartWindow(period string, count int, now time.Time) (time.Time, time.Time, func(time.Time) time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case "weekly":
		monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		step := func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
		return monday.AddDate(0, 0, -7*(count-1)), step(monday), step
	case "monthly":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		step := func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
		return first.AddDate(0, -(count - 1), 0), step(first), step
	default:
		step := func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
		return today.AddDate(0, 0, -(count - 1)), step(today), step
	}
}

// MortalityChart buckets the owner's death records into count periods
// ending at now. Empty buckets are kept so charts have a steady x axis.
func MortalityChart(ctx context.Context, db *gorm.DB, ownerID uint, period string, count int, now time.Time) (MortalityChartResponse, error) {
	start, end, step := chartWindow(period, count, now)

	var records []models.DeathRecord
	if err := db.WithContext(ctx).
		Where("owner_id = ? AND date >= ? AND date < ?", ownerID, start, end).
		Order("date ASC").
		Find(&records).Error; err != nil {
		return MortalityChartResponse{}, apperr.Internal("could not load death records", err)
	}

	resp := MortalityChartResponse{
		Period: period,
		From:   models.FormatDay(start),
		To:     models.FormatDay(end.AddDate(0, 0, -1)),
		Points: make([]MortalityChartPoint, 0, count),
	}

	i := 0
	for b := start; b.Before(end); b = step(b) {
		next := step(b)
		point := MortalityChartPoint{Label: models.FormatDay(b), ByCause: map[string]int{}}
		for ; i < len(records) && records[i].Date.Before(next); i++ {
			point.ByCause[string(records[i].Cause)] += records[i].Count
			point.Total += records[i].Count
		}
		resp.GrandTotal += point.Total
		resp.Points = append(resp.Points, point)
	}
	return resp, nil
}

// GET /api/dashboard/mortality-chart?period=weekly&count=8
func MortalityChartHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}

		period := c.Query("period", "daily")
		var count int
		switch period {
		case "weekly":
			count = 8
		case "monthly":
			count = 12
		case "daily":
			count = 7
		default:
			return apperr.Validation("period must be one of daily, weekly, monthly")
		}
		if raw := c.Query("count"); raw != "" {
			count, err = strconv.Atoi(raw)
			if err != nil || count <= 0 || count > 366 {
				return apperr.Validation("count must be between 1 and 366")
			}
		}

		resp, err := MortalityChart(c.UserContext(), db, ownerID, period, count, time.Now())
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}
