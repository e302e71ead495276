package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/socialpulse/pkg/logger"
)

// Config parameterizes a periodic runner with a way to enumerate work items
// and a per-item action. Enumerate runs fresh every cycle, and the delay
// funcs are re-evaluated on every use, so configuration changes between
// cycles are picked up without a restart.
type Config[T any] struct {
	Name       string
	CycleDelay func() time.Duration // delay between full cycles
	ItemDelay  func() time.Duration // spacing between items within a cycle
	Enumerate  func(ctx context.Context) ([]T, error)
	Action     func(ctx context.Context, item T) error
	Describe   func(item T) string // optional label for logs
}

// FixedDelay adapts a constant duration to the Config delay funcs
func FixedDelay(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

// Runner drives recurring cycles over enumerated items. A failing item is
// logged and never aborts the rest of the cycle or future cycles; the
// runner holds no state across restarts, so a missed cycle is simply
// skipped.
type Runner[T any] struct {
	cfg Config[T]
	log *logger.Logger
}

// New creates a new periodic runner
func New[T any](cfg Config[T], log *logger.Logger) *Runner[T] {
	if cfg.Describe == nil {
		cfg.Describe = func(item T) string { return fmt.Sprintf("%v", item) }
	}
	if cfg.CycleDelay == nil {
		cfg.CycleDelay = FixedDelay(0)
	}
	if cfg.ItemDelay == nil {
		cfg.ItemDelay = FixedDelay(0)
	}
	wlog := logger.Logger{Logger: log.WithComponent("worker").With().Str("worker", cfg.Name).Logger()}
	return &Runner[T]{
		cfg: cfg,
		log: &wlog,
	}
}

// CycleResult summarizes one cycle
type CycleResult struct {
	Items     int
	Succeeded int
	Failed    int
}

// Run executes cycles until the context is cancelled. Cancellation is
// checked at the top of every cycle and before each item; an in-flight
// action is awaited, never abandoned mid-way.
func (r *Runner[T]) Run(ctx context.Context) error {
	r.log.Info().
		Dur("cycle_delay", r.cfg.CycleDelay()).
		Dur("item_delay", r.cfg.ItemDelay()).
		Msg("Worker started")

	for {
		if err := ctx.Err(); err != nil {
			r.log.Info().Msg("Worker stopped")
			return nil
		}

		result, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info().Msg("Worker stopped")
				return nil
			}
			// Enumeration failed; the next cycle retries from scratch
			r.log.Error().Err(err).Msg("Cycle failed")
		} else if result.Failed > 0 {
			r.log.Warn().
				Int("items", result.Items).
				Int("failed", result.Failed).
				Msg("Cycle completed with failures")
		}

		if !r.sleep(ctx, r.cfg.CycleDelay()) {
			r.log.Info().Msg("Worker stopped")
			return nil
		}
	}
}

// RunOnce executes a single cycle: enumerate, then act on every item in
// sequence with the configured spacing.
func (r *Runner[T]) RunOnce(ctx context.Context) (*CycleResult, error) {
	items, err := r.cfg.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate: %w", err)
	}

	result := &CycleResult{Items: len(items)}
	if len(items) == 0 {
		r.log.Debug().Msg("No items this cycle")
		return result, nil
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if i > 0 && !r.sleep(ctx, r.cfg.ItemDelay()) {
			return result, ctx.Err()
		}

		if err := r.cfg.Action(ctx, item); err != nil {
			// Failure is item-scoped: log and carry on
			r.log.Error().
				Err(err).
				Str("item", r.cfg.Describe(item)).
				Msg("Item failed")
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	return result, nil
}

// sleep waits for d or until cancellation, reporting whether to continue
func (r *Runner[T]) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
