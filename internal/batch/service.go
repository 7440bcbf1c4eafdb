package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flockkeeper-backend/internal/apperr"
	"flockkeeper-backend/internal/audit"
	"flockkeeper-backend/internal/mirror"
	"flockkeeper-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateBatchRequest struct {
	BatchName               string           `json:"batch_name"`
	Breed                   string           `json:"breed"`
	AcquisitionDate         string           `json:"acquisition_date"` // "2025-03-01"
	InitialCount            *int             `json:"initial_count"`
	Type                    string           `json:"type"`
	AgeAtAcquisition        string           `json:"age_at_acquisition"`
	ExpectedLayingStartDate string           `json:"expected_laying_start_date"`
	ActualLayingStartDate   string           `json:"actual_laying_start_date"`
	Source                  string           `json:"source"`
	Cost                    *decimal.Decimal `json:"cost"`
	Notes                   string           `json:"notes"`
	HensCount               *int             `json:"hens_count"`
	RoostersCount           *int             `json:"roosters_count"`
	ChicksCount             *int             `json:"chicks_count"`
}

// UpdateBatchRequest is a partial update; nil fields are left alone. Derived
// counts are not editable here.
type UpdateBatchRequest struct {
	BatchName               *string          `json:"batch_name"`
	Breed                   *string          `json:"breed"`
	AcquisitionDate         *string          `json:"acquisition_date"`
	InitialCount            *int             `json:"initial_count"`
	Type                    *string          `json:"type"`
	AgeAtAcquisition        *string          `json:"age_at_acquisition"`
	ExpectedLayingStartDate *string          `json:"expected_laying_start_date"` // "" clears
	ActualLayingStartDate   *string          `json:"actual_laying_start_date"`   // "" clears
	Source                  *string          `json:"source"`
	Cost                    *decimal.Decimal `json:"cost"`
	Notes                   *string          `json:"notes"`
	HensCount               *int             `json:"hens_count"`
	RoostersCount           *int             `json:"roosters_count"`
	ChicksCount             *int             `json:"chicks_count"`
	IsActive                *bool            `json:"is_active"`
}

// Service is the batch registry.
type Service struct {
	db     *gorm.DB
	mirror *mirror.Mirror
	log    *zap.Logger
}

func NewService(db *gorm.DB, m *mirror.Mirror, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, mirror: m, log: log}
}

func (s *Service) Create(ctx context.Context, ownerID uint, req CreateBatchRequest) (models.FlockBatch, error) {
	b, err := buildBatch(ownerID, req)
	if err != nil {
		return models.FlockBatch{}, err
	}

	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return models.FlockBatch{}, apperr.Internal("could not create batch", err)
	}

	s.audit(ctx, audit.LogOptions{
		OwnerID:     ownerID,
		EntityID:    b.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("Batch %s created with %d birds", b.BatchName, b.InitialCount),
		After:       b,
	})

	// detached: a ledger failure must not undo or delay the batch
	s.mirror.ProjectBatchCost(ctx, b)

	return b, nil
}

func buildBatch(ownerID uint, req CreateBatchRequest) (models.FlockBatch, error) {
	req.BatchName = strings.TrimSpace(req.BatchName)
	req.Breed = strings.TrimSpace(req.Breed)
	req.Type = strings.TrimSpace(req.Type)
	req.Source = strings.TrimSpace(req.Source)

	var missing []string
	for _, f := range []struct {
		name  string
		empty bool
	}{
		{"batch_name", req.BatchName == ""},
		{"breed", req.Breed == ""},
		{"acquisition_date", strings.TrimSpace(req.AcquisitionDate) == ""},
		{"initial_count", req.InitialCount == nil},
		{"type", req.Type == ""},
		{"age_at_acquisition", strings.TrimSpace(req.AgeAtAcquisition) == ""},
		{"source", req.Source == ""},
	} {
		if f.empty {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return models.FlockBatch{}, apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	acquired, err := models.ParseDay(req.AcquisitionDate)
	if err != nil {
		return models.FlockBatch{}, apperr.Validation("acquisition_date must be YYYY-MM-DD")
	}
	expected, err := optionalDay("expected_laying_start_date", req.ExpectedLayingStartDate)
	if err != nil {
		return models.FlockBatch{}, err
	}
	actual, err := optionalDay("actual_laying_start_date", req.ActualLayingStartDate)
	if err != nil {
		return models.FlockBatch{}, err
	}

	age := models.AgeAtAcquisition(strings.TrimSpace(req.AgeAtAcquisition))
	if !age.Valid() {
		return models.FlockBatch{}, apperr.Validation("age_at_acquisition must be one of chick, juvenile, adult")
	}

	cost := decimal.Zero
	if req.Cost != nil {
		cost = *req.Cost
	}

	b := models.FlockBatch{
		OwnerID:                 ownerID,
		BatchName:               req.BatchName,
		Breed:                   req.Breed,
		AcquisitionDate:         acquired,
		InitialCount:            *req.InitialCount,
		CurrentCount:            *req.InitialCount,
		Type:                    req.Type,
		AgeAtAcquisition:        age,
		ExpectedLayingStartDate: expected,
		ActualLayingStartDate:   actual,
		Source:                  req.Source,
		Cost:                    cost,
		Notes:                   strings.TrimSpace(req.Notes),
		IsActive:                true,
		HensCount:               intOrZero(req.HensCount),
		RoostersCount:           intOrZero(req.RoostersCount),
		ChicksCount:             intOrZero(req.ChicksCount),
		BroodingCount:           0,
		Version:                 1,
	}
	if err := validateCounts(b); err != nil {
		return models.FlockBatch{}, err
	}
	if sum := b.HensCount + b.RoostersCount + b.ChicksCount; sum != b.InitialCount {
		return models.FlockBatch{}, apperr.Validation(
			"hens (%d) + roosters (%d) + chicks (%d) = %d must equal initial_count (%d)",
			b.HensCount, b.RoostersCount, b.ChicksCount, sum, b.InitialCount)
	}
	return b, nil
}

// validateCounts checks the invariants shared by create and update.
func validateCounts(b models.FlockBatch) error {
	switch {
	case b.InitialCount <= 0:
		return apperr.Validation("initial_count must be greater than 0")
	case b.HensCount < 0 || b.RoostersCount < 0 || b.ChicksCount < 0:
		return apperr.Validation("hens, roosters and chicks counts cannot be negative")
	case b.Cost.IsNegative():
		return apperr.Validation("cost cannot be negative")
	case b.ActualLayingStartDate != nil && b.ActualLayingStartDate.Before(b.AcquisitionDate):
		return apperr.Validation("actual_laying_start_date cannot be before acquisition_date")
	}
	return nil
}

func (s *Service) Update(ctx context.Context, ownerID, batchID uint, req UpdateBatchRequest) (models.FlockBatch, error) {
	b, err := FindOwned(ctx, s.db, ownerID, batchID, false)
	if err != nil {
		return models.FlockBatch{}, err
	}
	before := b

	changes := map[string]any{}
	setText := func(col string, v *string, dst *string, required bool) error {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		if required && t == "" {
			return apperr.Validation("%s cannot be empty", col)
		}
		*dst = t
		changes[col] = t
		return nil
	}
	for _, f := range []struct {
		col      string
		v        *string
		dst      *string
		required bool
	}{
		{"batch_name", req.BatchName, &b.BatchName, true},
		{"breed", req.Breed, &b.Breed, true},
		{"type", req.Type, &b.Type, true},
		{"source", req.Source, &b.Source, true},
		{"notes", req.Notes, &b.Notes, false},
	} {
		if err := setText(f.col, f.v, f.dst, f.required); err != nil {
			return models.FlockBatch{}, err
		}
	}

	if req.AcquisitionDate != nil {
		d, err := models.ParseDay(*req.AcquisitionDate)
		if err != nil {
			return models.FlockBatch{}, apperr.Validation("acquisition_date must be YYYY-MM-DD")
		}
		b.AcquisitionDate = d
		changes["acquisition_date"] = d
	}
	if req.ExpectedLayingStartDate != nil {
		d, err := optionalDay("expected_laying_start_date", *req.ExpectedLayingStartDate)
		if err != nil {
			return models.FlockBatch{}, err
		}
		b.ExpectedLayingStartDate = d
		changes["expected_laying_start_date"] = d
	}
	if req.ActualLayingStartDate != nil {
		d, err := optionalDay("actual_laying_start_date", *req.ActualLayingStartDate)
		if err != nil {
			return models.FlockBatch{}, err
		}
		b.ActualLayingStartDate = d
		changes["actual_laying_start_date"] = d
	}
	if req.AgeAtAcquisition != nil {
		age := models.AgeAtAcquisition(strings.TrimSpace(*req.AgeAtAcquisition))
		if !age.Valid() {
			return models.FlockBatch{}, apperr.Validation("age_at_acquisition must be one of chick, juvenile, adult")
		}
		b.AgeAtAcquisition = age
		changes["age_at_acquisition"] = age
	}
	if req.Cost != nil {
		b.Cost = *req.Cost
		changes["cost"] = b.Cost
	}
	if req.HensCount != nil {
		b.HensCount = *req.HensCount
		changes["hens_count"] = b.HensCount
	}
	if req.RoostersCount != nil {
		b.RoostersCount = *req.RoostersCount
		changes["roosters_count"] = b.RoostersCount
	}
	if req.ChicksCount != nil {
		b.ChicksCount = *req.ChicksCount
		changes["chicks_count"] = b.ChicksCount
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
		changes["is_active"] = b.IsActive
	}

	// Changing initial_count keeps the recorded losses and moves the
	// remaining count with it, guarded by the version like any count write.
	guarded := false
	if req.InitialCount != nil && *req.InitialCount != b.InitialCount {
		lost := b.InitialCount - b.CurrentCount
		if *req.InitialCount < lost {
			return models.FlockBatch{}, apperr.Validation(
				"initial_count cannot be below the %d birds already recorded as lost", lost)
		}
		b.InitialCount = *req.InitialCount
		b.CurrentCount = b.InitialCount - lost
		changes["initial_count"] = b.InitialCount
		changes["current_count"] = b.CurrentCount
		changes["version"] = gorm.Expr("version + 1")
		guarded = true
	}

	if err := validateCounts(b); err != nil {
		return models.FlockBatch{}, err
	}
	if len(changes) == 0 {
		return b, nil
	}

	q := s.db.WithContext(ctx).Model(&models.FlockBatch{}).Where("id = ? AND owner_id = ?", b.ID, ownerID)
	if guarded {
		q = q.Where("version = ?", before.Version)
	}
	res := q.Updates(changes)
	if res.Error != nil {
		return models.FlockBatch{}, apperr.Internal("could not update batch", res.Error)
	}
	if guarded && res.RowsAffected == 0 {
		return models.FlockBatch{}, apperr.Conflict("batch changed while updating, retry", ErrStaleBatch)
	}

	updated, err := FindOwned(ctx, s.db, ownerID, batchID, false)
	if err != nil {
		return models.FlockBatch{}, err
	}

	s.audit(ctx, audit.LogOptions{
		OwnerID:     ownerID,
		EntityID:    b.ID,
		Action:      models.AuditActionUpdate,
		Description: fmt.Sprintf("Batch %s updated", updated.BatchName),
		Before:      before,
		After:       updated,
	})
	return updated, nil
}

// Deactivate hides the batch from active listings. Events and death
// records stay.
func (s *Service) Deactivate(ctx context.Context, ownerID, batchID uint) error {
	b, err := FindOwned(ctx, s.db, ownerID, batchID, false)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&models.FlockBatch{}).
		Where("id = ? AND owner_id = ?", batchID, ownerID).
		Update("is_active", false).Error; err != nil {
		return apperr.Internal("could not deactivate batch", err)
	}

	after := b
	after.IsActive = false
	s.audit(ctx, audit.LogOptions{
		OwnerID:     ownerID,
		EntityID:    b.ID,
		Action:      models.AuditActionDeactivate,
		Description: fmt.Sprintf("Batch %s deactivated", b.BatchName),
		Before:      b,
		After:       after,
	})
	return nil
}

func (s *Service) Get(ctx context.Context, ownerID, batchID uint) (models.FlockBatch, error) {
	return FindOwned(ctx, s.db, ownerID, batchID, false)
}

// List returns the owner's batches, newest acquisition first.
func (s *Service) List(ctx context.Context, ownerID uint, activeOnly bool) ([]models.FlockBatch, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var batches []models.FlockBatch
	if err := q.Order("acquisition_date DESC, id DESC").Find(&batches).Error; err != nil {
		return nil, apperr.Internal("could not list batches", err)
	}
	return batches, nil
}

func (s *Service) audit(ctx context.Context, opts audit.LogOptions) {
	opts.EntityType = audit.EntityBatch
	if err := audit.WriteLog(ctx, s.db, opts); err != nil {
		s.log.Warn("audit log failed", zap.Uint("batch_id", opts.EntityID), zap.Error(err))
	}
}

func optionalDay(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := models.ParseDay(raw)
	if err != nil {
		return nil, apperr.Validation("%s must be YYYY-MM-DD", field)
	}
	return &d, nil
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
