package mirror

import (
	"context"
	"strings"

	"flockkeeper-backend/internal/models"

	"gorm.io/gorm"
)

// Store is the write surface the mirror needs.
type Store interface {
	InsertFlockEvent(ctx context.Context, ev *models.FlockEvent) error
	DeleteFlockEvents(ctx context.Context, source models.BatchEvent) (int64, error)
	InsertExpense(ctx context.Context, exp *models.Expense) error
}

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) InsertFlockEvent(ctx context.Context, ev *models.FlockEvent) error {
	return s.DB.WithContext(ctx).Create(ev).Error
}

// DeleteFlockEvents removes every projection linked to source. Rows written
// before the link existed are matched on owner, date and a description
// substring; any number of matches, including none, is acceptable.
func (s *GormStore) DeleteFlockEvents(ctx context.Context, source models.BatchEvent) (int64, error) {
	db := s.DB.WithContext(ctx)

	res := db.Where("owner_id = ? AND source_event_id = ?", source.OwnerID, source.ID).
		Delete(&models.FlockEvent{})
	if res.Error != nil {
		return 0, res.Error
	}
	removed := res.RowsAffected

	if strings.TrimSpace(source.Description) == "" {
		return removed, nil
	}
	res = db.Where("owner_id = ? AND source_event_id IS NULL AND date = ? AND description LIKE ? ESCAPE '\\'",
		source.OwnerID, source.Date, "%"+escapeLike(source.Description)+"%").
		Delete(&models.FlockEvent{})
	if res.Error != nil {
		return removed, res.Error
	}
	return removed + res.RowsAffected, nil
}

func (s *GormStore) InsertExpense(ctx context.Context, exp *models.Expense) error {
	return s.DB.WithContext(ctx).Create(exp).Error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
