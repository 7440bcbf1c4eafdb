// Package mirror projects batch activity into the flock-level timeline and
// the expense ledger. Projections are best-effort: they are logged when they
// fail and never reported to the caller.
package mirror

import (
	"context"
	"fmt"

	"flockkeeper-backend/internal/models"

	"go.uber.org/zap"
)

const (
	FlockEventHealthCheck = "health_check"
	FlockEventVaccination = "vaccination"
	FlockEventRelocation  = "relocation"
	FlockEventBreeding    = "breeding"
	FlockEventLayingStart = "laying_start"
	FlockEventProduction  = "production"
	FlockEventBroody      = "broody"
	FlockEventBroodyEnd   = "broody_end"
	FlockEventLoss        = "loss"
	FlockEventOther       = "other"
)

type projection struct {
	flockType string
	template  string // %s is the batch name
}

var projections = map[models.BatchEventType]projection{
	models.EventHealthCheck:    {FlockEventHealthCheck, "Health check for %s batch"},
	models.EventVaccination:    {FlockEventVaccination, "%s batch vaccinated"},
	models.EventRelocation:     {FlockEventRelocation, "%s batch relocated"},
	models.EventBreeding:       {FlockEventBreeding, "Breeding activity in %s batch"},
	models.EventLayingStart:    {FlockEventLayingStart, "%s batch started laying"},
	models.EventProductionNote: {FlockEventProduction, "Production note for %s batch"},
	models.EventBroodingStart:  {FlockEventBroody, "Brooding started in %s batch"},
	models.EventBroodingStop:   {FlockEventBroodyEnd, "Brooding stopped in %s batch"},
	models.EventFlockLoss:      {FlockEventLoss, "Loss recorded in %s batch"},
}

// FlockEventFor renders the flock-level projection of ev. Unmapped types,
// including other, read "{batch}: {description}".
func FlockEventFor(batch models.FlockBatch, ev models.BatchEvent) models.FlockEvent {
	out := models.FlockEvent{
		OwnerID: ev.OwnerID,
		Date:    ev.Date,
		Notes:   ev.Notes,
	}
	if ev.ID != 0 {
		id := ev.ID
		out.SourceEventID = &id
	}

	if p, ok := projections[ev.Type]; ok {
		out.Type = p.flockType
		out.Description = fmt.Sprintf(p.template, batch.BatchName)
		return out
	}
	out.Type = FlockEventOther
	out.Description = fmt.Sprintf("%s: %s", batch.BatchName, ev.Description)
	return out
}

// ExpenseFor renders the purchase expense of a batch; ok is false when the
// batch cost nothing.
func ExpenseFor(batch models.FlockBatch) (models.Expense, bool) {
	if !batch.Cost.IsPositive() {
		return models.Expense{}, false
	}
	id := batch.ID
	return models.Expense{
		OwnerID:       batch.OwnerID,
		Category:      models.ExpenseCategoryBirds,
		Description:   fmt.Sprintf("Purchase of %s batch (%d %s birds)", batch.BatchName, batch.InitialCount, batch.Type),
		Amount:        batch.Cost,
		Date:          batch.AcquisitionDate,
		SourceBatchID: &id,
	}, true
}

type Mirror struct {
	store  Store
	runner *Runner
}

func New(store Store, runner *Runner) *Mirror {
	return &Mirror{store: store, runner: runner}
}

// ProjectEvent appends a flock-level entry for ev. Repeated calls for the
// same event append again; earlier projections are left in place.
func (m *Mirror) ProjectEvent(ctx context.Context, batch models.FlockBatch, ev models.BatchEvent) {
	fe := FlockEventFor(batch, ev)
	m.runner.Do(ctx, "project_flock_event", func(ctx context.Context) error {
		return m.store.InsertFlockEvent(ctx, &fe)
	}, zap.Uint("owner_id", ev.OwnerID), zap.Uint("batch_event_id", ev.ID))
}

// RemoveProjections deletes the flock-level entries mirrored from ev.
func (m *Mirror) RemoveProjections(ctx context.Context, ev models.BatchEvent) {
	m.runner.Do(ctx, "remove_flock_events", func(ctx context.Context) error {
		_, err := m.store.DeleteFlockEvents(ctx, ev)
		return err
	}, zap.Uint("owner_id", ev.OwnerID), zap.Uint("batch_event_id", ev.ID))
}

// ProjectBatchCost records the purchase of batch in the expense ledger on a
// detached goroutine. It is never updated or removed afterwards.
func (m *Mirror) ProjectBatchCost(ctx context.Context, batch models.FlockBatch) {
	exp, ok := ExpenseFor(batch)
	if !ok {
		return
	}
	m.runner.Go(ctx, "project_batch_cost", func(ctx context.Context) error {
		return m.store.InsertExpense(ctx, &exp)
	}, zap.Uint("owner_id", batch.OwnerID), zap.Uint("batch_id", batch.ID))
}
