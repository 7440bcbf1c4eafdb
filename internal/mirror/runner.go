package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Effect is a best-effort write that must never fail the request that
// caused it.
type Effect func(ctx context.Context) error

// Runner executes effects, logging failures instead of returning them.
type Runner struct {
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRunner(log *zap.Logger, timeout time.Duration) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Runner{log: log, timeout: timeout}
}

// Do runs the effect on the caller's goroutine.
func (r *Runner) Do(ctx context.Context, name string, fn Effect, fields ...zap.Field) {
	r.run(ctx, name, fn, fields)
}

// Go runs the effect detached from the caller. The request context's values
// are kept but its cancellation is not; the effect gets its own timeout.
func (r *Runner) Go(ctx context.Context, name string, fn Effect, fields ...zap.Field) {
	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()
		r.run(ctx, name, fn, fields)
	}()
}

// Wait blocks until every effect started with Go has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, name string, fn Effect, fields []zap.Field) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("side effect panicked",
				append(fields, zap.String("effect", name), zap.String("panic", fmt.Sprint(p)))...)
		}
	}()

	if err := fn(ctx); err != nil {
		r.log.Warn("side effect failed",
			append(fields, zap.String("effect", name), zap.Error(err))...)
		return
	}
	r.log.Debug("side effect applied", append(fields, zap.String("effect", name))...)
}
