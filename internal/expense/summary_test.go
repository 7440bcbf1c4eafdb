package expense

import (
	"context"
	"testing"
	"time"

	"flockkeeper-backend/internal/models"
	"flockkeeper-backend/internal/testutil"

	"github.com/shopspring/decimal"
)

func TestMonthlySummaryTotalsPerCategory(t *testing.T) {
	db := testutil.NewDB(t)
	day := func(m time.Month, d int) time.Time { return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC) }
	seed := []models.Expense{
		{OwnerID: 1, Category: models.ExpenseCategoryBirds, Amount: decimal.RequireFromString("120.10"), Date: day(3, 1)},
		{OwnerID: 1, Category: models.ExpenseCategoryBirds, Amount: decimal.RequireFromString("0.20"), Date: day(3, 31)},
		{OwnerID: 1, Category: "Feed", Amount: decimal.RequireFromString("45.00"), Date: day(3, 15)},
		{OwnerID: 1, Category: "Feed", Amount: decimal.RequireFromString("99.99"), Date: day(4, 1)},
		{OwnerID: 2, Category: "Feed", Amount: decimal.RequireFromString("10.00"), Date: day(3, 2)},
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := MonthlySummary(context.Background(), db, 1, 2025, 3)
	if err != nil {
		t.Fatalf("MonthlySummary: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("items: want=2 got=%d", len(got.Items))
	}
	if got.Items[0].Category != models.ExpenseCategoryBirds || !got.Items[0].Total.Equal(decimal.RequireFromString("120.30")) {
		t.Fatalf("birds: got category=%s total=%s", got.Items[0].Category, got.Items[0].Total)
	}
	if got.Items[0].Count != 2 {
		t.Fatalf("birds count: want=2 got=%d", got.Items[0].Count)
	}
	if !got.Items[1].Total.Equal(decimal.RequireFromString("45")) {
		t.Fatalf("feed total: want=45 got=%s", got.Items[1].Total)
	}
	if !got.GrandTotal.Equal(decimal.RequireFromString("165.30")) {
		t.Fatalf("grand total: want=165.30 got=%s", got.GrandTotal)
	}
}

func TestMonthlySummaryEmptyMonth(t *testing.T) {
	db := testutil.NewDB(t)
	got, err := MonthlySummary(context.Background(), db, 1, 2024, 2)
	if err != nil {
		t.Fatalf("MonthlySummary: %v", err)
	}
	if len(got.Items) != 0 || !got.GrandTotal.IsZero() {
		t.Fatalf("want empty summary got=%+v", got)
	}
}
