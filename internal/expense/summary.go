package expense

import (
	"context"
	"sort"
	"time"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MonthlySummary totals the owner's expenses of one calendar month per
// category. Sums are done in decimal so cents never drift.
func MonthlySummary(ctx context.Context, db *gorm.DB, ownerID uint, year, month int) (MonthlyExpenseSummaryResponse, error) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)

	var rows []models.Expense
	if err := db.WithContext(ctx).
		Where("owner_id = ? AND date >= ? AND date < ?", ownerID, first, next).
		Find(&rows).Error; err != nil {
		return MonthlyExpenseSummaryResponse{}, apperr.Internal("could not compute expense summary", err)
	}

	byCategory := map[string]*MonthlyExpenseSummaryItem{}
	grand := decimal.Zero
	for _, r := range rows {
		item, ok := byCategory[r.Category]
		if !ok {
			item = &MonthlyExpenseSummaryItem{Category: r.Category, Total: decimal.Zero}
			byCategory[r.Category] = item
		}
		item.Count++
		item.Total = item.Total.Add(r.Amount)
		grand = grand.Add(r.Amount)
	}

	resp := MonthlyExpenseSummaryResponse{
		Year:       year,
		Month:      month,
		Items:      make([]MonthlyExpenseSummaryItem, 0, len(byCategory)),
		GrandTotal: grand,
	}
	for _, item := range byCategory {
		resp.Items = append(resp.Items, *item)
	}
	sort.Slice(resp.Items, func(i, j int) bool { return resp.Items[i].Category < resp.Items[j].Category })
	return resp, nil
}
