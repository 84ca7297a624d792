package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// Runner drives the coordinator on a fixed interval. Every instance
// runs one; the sweep lock decides which instance actually sweeps.
type Runner struct {
	coordinator *Coordinator
	interval    time.Duration
}

func NewRunner(coordinator *Coordinator, interval time.Duration) *Runner {
	return &Runner{coordinator: coordinator, interval: interval}
}

// Run starts the sweep loop. It blocks until ctx is cancelled. A
// failed sweep is logged and retried on the next tick; partial sweeps
// are safe to repeat.
func (r *Runner) Run(ctx context.Context) {
	ticker := r.coordinator.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			report, err := r.coordinator.RunSweep(ctx)
			if err != nil {
				slog.WarnContext(ctx, "Sweep failed, will retry on next tick",
					"hot_migrated", report.HotMigrated,
					"warm_archived", report.WarmArchived,
					"error", err)
			}
		}
	}
}
