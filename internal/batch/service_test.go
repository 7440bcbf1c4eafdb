package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/mirror"
	"flockkeeper-backend/internal/models"
	"flockkeeper-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func newService(t *testing.T, store func(db *gorm.DB) mirror.Store) (*Service, *gorm.DB, *mirror.Runner) {
	t.Helper()
	db := testutil.NewDB(t)
	var st mirror.Store = mirror.NewGormStore(db)
	if store != nil {
		st = store(db)
	}
	runner := mirror.NewRunner(nil, time.Second)
	return NewService(db, mirror.New(st, runner), nil), db, runner
}

func validRequest() CreateBatchRequest {
	return CreateBatchRequest{
		BatchName:        "Spring Reds",
		Breed:            "Rhode Island Red",
		AcquisitionDate:  "2025-03-01",
		InitialCount:     intPtr(10),
		Type:             "layers",
		AgeAtAcquisition: "juvenile",
		Source:           "Hatchery",
		HensCount:        intPtr(8),
		RoostersCount:    intPtr(2),
	}
}

func TestCreateInitialisesDerivedState(t *testing.T) {
	svc, _, _ := newService(t, nil)

	b, err := svc.Create(context.Background(), 1, validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.CurrentCount != 10 {
		t.Fatalf("current count: want=10 got=%d", b.CurrentCount)
	}
	if b.BroodingCount != 0 {
		t.Fatalf("brooding count: want=0 got=%d", b.BroodingCount)
	}
	if !b.IsActive {
		t.Fatalf("expected active batch")
	}
	if !b.Cost.IsZero() {
		t.Fatalf("cost: want=0 got=%s", b.Cost)
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(r *CreateBatchRequest)
	}{
		{"counts do not sum", func(r *CreateBatchRequest) { r.HensCount = intPtr(7); r.ChicksCount = intPtr(0) }},
		{"zero initial count", func(r *CreateBatchRequest) {
			r.InitialCount = intPtr(0)
			r.HensCount = intPtr(0)
			r.RoostersCount = intPtr(0)
		}},
		{"laying before acquisition", func(r *CreateBatchRequest) { r.ActualLayingStartDate = "2025-02-01" }},
		{"missing breed", func(r *CreateBatchRequest) { r.Breed = "  " }},
		{"missing initial count", func(r *CreateBatchRequest) { r.InitialCount = nil }},
		{"bad age", func(r *CreateBatchRequest) { r.AgeAtAcquisition = "ancient" }},
		{"bad date", func(r *CreateBatchRequest) { r.AcquisitionDate = "03/01/2025" }},
		{"negative cost", func(r *CreateBatchRequest) { r.Cost = decPtr(-5) }},
		{"negative hens", func(r *CreateBatchRequest) { r.HensCount = intPtr(-1); r.RoostersCount = intPtr(11) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, db, _ := newService(t, nil)
			req := validRequest()
			tc.mutate(&req)

			_, err := svc.Create(context.Background(), 1, req)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("Create: want validation error got=%v", err)
			}
			var n int64
			db.Model(&models.FlockBatch{}).Count(&n)
			if n != 0 {
				t.Fatalf("batches stored: want=0 got=%d", n)
			}
		})
	}
}

func TestCreateProjectsCostIntoExpenses(t *testing.T) {
	svc, db, runner := newService(t, nil)
	req := validRequest()
	req.Cost = decPtr(150)

	b, err := svc.Create(context.Background(), 1, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	runner.Wait()

	var exps []models.Expense
	if err := db.Find(&exps).Error; err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(exps) != 1 {
		t.Fatalf("expenses: want=1 got=%d", len(exps))
	}
	if exps[0].Category != "Birds" || !exps[0].Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expense: got category=%q amount=%s", exps[0].Category, exps[0].Amount)
	}
	if exps[0].SourceBatchID == nil || *exps[0].SourceBatchID != b.ID {
		t.Fatalf("source batch: want=%d got=%v", b.ID, exps[0].SourceBatchID)
	}
	if !exps[0].Date.Equal(b.AcquisitionDate) {
		t.Fatalf("date: want=%s got=%s", b.AcquisitionDate, exps[0].Date)
	}
}

type brokenLedger struct{ *mirror.GormStore }

func (brokenLedger) InsertExpense(context.Context, *models.Expense) error {
	return errors.New("expense table locked")
}

func TestCreateSurvivesExpenseFailure(t *testing.T) {
	svc, db, runner := newService(t, func(db *gorm.DB) mirror.Store {
		return brokenLedger{mirror.NewGormStore(db)}
	})
	req := validRequest()
	req.Cost = decPtr(150)

	b, err := svc.Create(context.Background(), 1, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	runner.Wait()

	if _, err := svc.Get(context.Background(), 1, b.ID); err != nil {
		t.Fatalf("batch should persist: %v", err)
	}
	var n int64
	db.Model(&models.Expense{}).Count(&n)
	if n != 0 {
		t.Fatalf("expenses: want=0 got=%d", n)
	}
}

func TestUpdateScopedToOwner(t *testing.T) {
	svc, _, _ := newService(t, nil)
	b, err := svc.Create(context.Background(), 1, validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.Update(context.Background(), 2, b.ID, UpdateBatchRequest{Notes: strPtr("mine now")})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Update foreign: want not found got=%v", err)
	}
	_, err = svc.Update(context.Background(), 1, b.ID+100, UpdateBatchRequest{Notes: strPtr("x")})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Update missing: want not found got=%v", err)
	}

	got, err := svc.Update(context.Background(), 1, b.ID, UpdateBatchRequest{
		Notes:     strPtr("moved to the north coop"),
		HensCount: intPtr(7),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Notes != "moved to the north coop" || got.HensCount != 7 {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.CurrentCount != 10 || got.BatchName != "Spring Reds" {
		t.Fatalf("untouched fields changed: %+v", got)
	}
}

func TestUpdateInitialCountCarriesLosses(t *testing.T) {
	svc, db, _ := newService(t, nil)
	b, err := svc.Create(context.Background(), 1, validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// three birds already lost
	if err := db.Model(&models.FlockBatch{}).Where("id = ?", b.ID).Update("current_count", 7).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := svc.Update(context.Background(), 1, b.ID, UpdateBatchRequest{InitialCount: intPtr(12)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.InitialCount != 12 || got.CurrentCount != 9 {
		t.Fatalf("counts: want initial=12 current=9 got initial=%d current=%d", got.InitialCount, got.CurrentCount)
	}

	_, err = svc.Update(context.Background(), 1, b.ID, UpdateBatchRequest{InitialCount: intPtr(2)})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Update below losses: want validation got=%v", err)
	}
}

func TestUpdateRejectsLayingBeforeAcquisition(t *testing.T) {
	svc, _, _ := newService(t, nil)
	b, err := svc.Create(context.Background(), 1, validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = svc.Update(context.Background(), 1, b.ID, UpdateBatchRequest{ActualLayingStartDate: strPtr("2024-12-31")})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Update: want validation got=%v", err)
	}
}

func TestDeactivateIsSoft(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()
	b, err := svc.Create(ctx, 1, validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Deactivate(ctx, 2, b.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Deactivate foreign: want not found got=%v", err)
	}
	if err := svc.Deactivate(ctx, 1, b.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	active, err := svc.List(ctx, 1, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active batches: want=0 got=%d", len(active))
	}
	all, err := svc.List(ctx, 1, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].IsActive {
		t.Fatalf("all batches: want one inactive got=%+v", all)
	}
	if _, err := svc.Get(ctx, 1, b.ID); err != nil {
		t.Fatalf("Get inactive: %v", err)
	}
}

func TestListNewestAcquisitionFirst(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()
	for _, d := range []string{"2024-05-01", "2025-01-15", "2024-11-30"} {
		req := validRequest()
		req.AcquisitionDate = d
		if _, err := svc.Create(ctx, 1, req); err != nil {
			t.Fatalf("Create %s: %v", d, err)
		}
	}
	other := validRequest()
	if _, err := svc.Create(ctx, 2, other); err != nil {
		t.Fatalf("Create other owner: %v", err)
	}

	got, err := svc.List(ctx, 1, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"2025-01-15", "2024-11-30", "2024-05-01"}
	if len(got) != len(want) {
		t.Fatalf("len: want=%d got=%d", len(want), len(got))
	}
	for i, w := range want {
		if d := models.FormatDay(got[i].AcquisitionDate); d != w {
			t.Fatalf("order[%d]: want=%s got=%s", i, w, d)
		}
	}
}

func TestAdjustCurrentCountDetectsStaleVersion(t *testing.T) {
	svc, db, _ := newService(t, nil)
	ctx := context.Background()
	b, err := svc.Create(ctx, 1, validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := AdjustCurrentCount(ctx, db, b, -2)
	if err != nil {
		t.Fatalf("first adjust: %v", err)
	}
	if first.CurrentCount != 8 || first.Version != b.Version+1 {
		t.Fatalf("first adjust: got current=%d version=%d", first.CurrentCount, first.Version)
	}

	// b is now a stale snapshot
	_, err = AdjustCurrentCount(ctx, db, b, -1)
	if !apperr.Is(err, apperr.KindConflict) || !errors.Is(err, ErrStaleBatch) {
		t.Fatalf("stale adjust: want conflict got=%v", err)
	}

	fresh, err := svc.Get(ctx, 1, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.CurrentCount != 8 {
		t.Fatalf("current count: want=8 got=%d", fresh.CurrentCount)
	}
}

func TestAdjustCurrentCountBounds(t *testing.T) {
	svc, db, _ := newService(t, nil)
	ctx := context.Background()
	b, err := svc.Create(ctx, 1, validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := AdjustCurrentCount(ctx, db, b, -11); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("below zero: want validation got=%v", err)
	}
	if _, err := AdjustCurrentCount(ctx, db, b, 1); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("above initial: want validation got=%v", err)
	}
}
