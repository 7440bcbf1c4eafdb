package expense

import (
	"strconv"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/auth"
	"flockkeeper-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ExpenseResponse struct {
	ID            uint            `json:"id"`
	Category      string          `json:"category"`
	Date          string          `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	SourceBatchID *uint           `json:"source_batch_id"`
}

type MonthlyExpenseSummaryItem struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

type MonthlyExpenseSummaryResponse struct {
	Year       int                         `json:"year"`
	Month      int                         `json:"month"`
	Items      []MonthlyExpenseSummaryItem `json:"items"`
	GrandTotal decimal.Decimal             `json:"grand_total"`
}

// GET /api/expenses?from=2025-01-01&to=2025-12-31&category=Birds
func ListExpensesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}

		dbq := db.WithContext(c.UserContext()).Model(&models.Expense{}).Where("owner_id = ?", ownerID)

		if raw := c.Query("from"); raw != "" {
			from, err := models.ParseDay(raw)
			if err != nil {
				return apperr.Validation("from must be YYYY-MM-DD")
			}
			dbq = dbq.Where("date >= ?", from)
		}
		if raw := c.Query("to"); raw != "" {
			to, err := models.ParseDay(raw)
			if err != nil {
				return apperr.Validation("to must be YYYY-MM-DD")
			}
			dbq = dbq.Where("date <= ?", to)
		}
		if category := c.Query("category"); category != "" {
			dbq = dbq.Where("category = ?", category)
		}

		var rows []models.Expense
		if err := dbq.Order("date DESC, id DESC").Find(&rows).Error; err != nil {
			return apperr.Internal("could not list expenses", err)
		}

		resp := make([]ExpenseResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, ExpenseResponse{
				ID:            r.ID,
				Category:      r.Category,
				Date:          models.FormatDay(r.Date),
				Amount:        r.Amount,
				Description:   r.Description,
				SourceBatchID: r.SourceBatchID,
			})
		}
		return c.JSON(resp)
	}
}

// GET /api/expenses/summary/monthly?year=2025&month=12
func MonthlyExpenseSummaryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := auth.OwnerID(c)
		if err != nil {
			return err
		}

		year, err := strconv.Atoi(c.Query("year"))
		if err != nil || year < 2000 {
			return apperr.Validation("year is required and must be 2000 or later")
		}
		month, err := strconv.Atoi(c.Query("month"))
		if err != nil || month < 1 || month > 12 {
			return apperr.Validation("month is required and must be 1-12")
		}

		summary, err := MonthlySummary(c.UserContext(), db, ownerID, year, month)
		if err != nil {
			return err
		}
		return c.JSON(summary)
	}
}
