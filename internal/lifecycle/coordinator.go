// Package lifecycle owns tier-transition policy: periodic sweeps that
// migrate aged records hot→warm→cold, additive-before-subtractive.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/metrics"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/platform/correlation"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/platform/retry"
)

// Lock serializes sweeps across instances. At most one sweep owner
// exists at a time; a lost lease aborts the sweep before its next
// destructive step.
type Lock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
}

// Policy holds the age thresholds and paging for sweeps. Thresholds
// are recomputed against record timestamps at sweep time; changing them
// takes effect on the next sweep without rewriting records.
type Policy struct {
	HotRetention  time.Duration
	WarmRetention time.Duration
	PageSize      int
}

// Coordinator implements the record state machine
// Hot → Warm → Cold → (optionally) Deleted.
type Coordinator struct {
	hot    domain.HotStore
	warm   domain.WarmStore
	cold   domain.ColdStore
	lock   Lock
	clock  clockwork.Clock
	policy Policy
	retry  retry.Policy
}

func NewCoordinator(hot domain.HotStore, warm domain.WarmStore, cold domain.ColdStore, lock Lock, clock clockwork.Clock, policy Policy) *Coordinator {
	return &Coordinator{
		hot:    hot,
		warm:   warm,
		cold:   cold,
		lock:   lock,
		clock:  clock,
		policy: policy,
		retry: retry.Policy{
			MaxAttempts:     3,
			InitialBackoff:  500 * time.Millisecond,
			ConflictBackoff: 5 * time.Second,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Retrying migration step", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

func classifyMigration(err error) retry.Action {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return retry.Stop
	case errors.Is(err, domain.ErrMigrationConflict):
		return retry.Conflict
	default:
		return retry.Retry
	}
}

// RunSweep executes one full sweep: hot→warm migration, then warm→cold
// archival. Safe to re-run after a partial failure: records already in
// the destination are re-written idempotently, and sources are only
// trimmed after confirmed destination writes. Duplication is
// acceptable, loss is not.
func (c *Coordinator) RunSweep(ctx context.Context) (domain.SweepReport, error) {
	ctx = correlation.WithID(ctx, correlation.NewID())
	started := c.clock.Now()

	acquired, err := c.lock.TryAcquire(ctx)
	if err != nil {
		metrics.SweepTotal.WithLabelValues("error").Inc()
		return domain.SweepReport{}, fmt.Errorf("sweep lock acquisition failed: %w", err)
	}
	if !acquired {
		slog.InfoContext(ctx, "Sweep skipped, another instance holds the lock")
		metrics.SweepTotal.WithLabelValues("skipped").Inc()
		return domain.SweepReport{Skipped: true}, nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.lock.Release(releaseCtx); err != nil {
			slog.WarnContext(ctx, "Failed to release sweep lock, lease will expire", "error", err)
		}
	}()

	report := domain.SweepReport{}

	migrated, err := c.sweepHotToWarm(ctx)
	report.HotMigrated = migrated
	if err != nil {
		metrics.SweepTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("hot→warm migration failed: %w", err)
	}

	archived, days, err := c.sweepWarmToCold(ctx)
	report.WarmArchived = archived
	report.ArchivedDays = days
	if err != nil {
		metrics.SweepTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("warm→cold archival failed: %w", err)
	}

	report.Duration = c.clock.Since(started)
	metrics.SweepTotal.WithLabelValues("ok").Inc()
	metrics.SweepDuration.Observe(report.Duration.Seconds())
	slog.InfoContext(ctx, "Sweep completed",
		"hot_migrated", report.HotMigrated,
		"warm_archived", report.WarmArchived,
		"duration", report.Duration)
	return report, nil
}

// sweepHotToWarm pages aged hot rows into the warm tier. Each page is
// deleted from the hot durable store only after every record in it is
// confirmed in both warm backends. Cache entries are left to expire.
func (c *Coordinator) sweepHotToWarm(ctx context.Context) (int, error) {
	cutoff := c.clock.Now().Add(-c.policy.HotRetention)
	migrated := 0

	for {
		page, err := c.hot.SelectOlderThan(ctx, cutoff, c.policy.PageSize)
		if err != nil {
			return migrated, err
		}
		if len(page) == 0 {
			return migrated, nil
		}

		ids := make([]int64, len(page))
		for i, stored := range page {
			rec := stored.SentimentRecord
			err := retry.DoVoid(ctx, c.retry, classifyMigration, func() error {
				if err := c.warm.StoreTimeseries(ctx, rec, nil, nil); err != nil {
					return err
				}
				return c.warm.StoreLog(ctx, rec)
			})
			if err != nil {
				// Abort with no hot delete: the page stays hot and the
				// next sweep re-migrates it. Warm may hold duplicates.
				return migrated, err
			}
			ids[i] = stored.ID
		}

		// Confirm we still own the sweep before the destructive step.
		if err := c.lock.Renew(ctx); err != nil {
			return migrated, fmt.Errorf("%w: %v", domain.ErrMigrationConflict, err)
		}

		if err := c.hot.DeleteByIDs(ctx, ids); err != nil {
			return migrated, err
		}
		migrated += len(page)
		metrics.MigratedRecords.WithLabelValues("hot_to_warm").Add(float64(len(page)))

		if len(page) < c.policy.PageSize {
			return migrated, nil
		}
	}
}

// sweepWarmToCold archives aged warm records as immutable day batches,
// then trims the warm tier. The cutoff is truncated to a UTC day start
// so only fully elapsed days ever migrate: archiving part of a day and
// re-archiving the remainder later would overwrite the day's batch with
// the remainder alone. The warm delete runs only after every day batch
// is confirmed in cold storage; a crash in between leaves safe
// duplicates for the query router's precedence rule to resolve.
func (c *Coordinator) sweepWarmToCold(ctx context.Context) (int, []string, error) {
	cutoff := startOfDay(c.clock.Now().Add(-c.policy.WarmRetention))

	aged, err := c.warm.SelectOlderThan(ctx, cutoff)
	if err != nil {
		return 0, nil, err
	}
	if len(aged) == 0 {
		return 0, nil, nil
	}

	byDay := make(map[string][]domain.SentimentRecord)
	for _, rec := range aged {
		day := rec.Timestamp.UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], rec)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		batch := byDay[day]
		dayStart, err := time.Parse("2006-01-02", day)
		if err != nil {
			return 0, nil, fmt.Errorf("malformed batch day %q: %w", day, err)
		}

		err = retry.DoVoid(ctx, c.retry, classifyMigration, func() error {
			return c.cold.Archive(ctx, dayStart, batch)
		})
		if err != nil {
			return 0, nil, err
		}

		if err := c.lock.Renew(ctx); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", domain.ErrMigrationConflict, err)
		}
	}

	// Every day batch is confirmed; trimming the source is now safe.
	if err := c.warm.DeleteOlderThan(ctx, cutoff); err != nil {
		return 0, days, err
	}

	metrics.MigratedRecords.WithLabelValues("warm_to_cold").Add(float64(len(aged)))
	return len(aged), days, nil
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Cleanup deletes cold objects older than daysToKeep. It takes the
// sweep lock first so no in-flight archival references the objects
// being removed.
func (c *Coordinator) Cleanup(ctx context.Context, daysToKeep int) (int, error) {
	acquired, err := c.lock.TryAcquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup lock acquisition failed: %w", err)
	}
	if !acquired {
		return 0, domain.ErrMigrationConflict
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.lock.Release(releaseCtx); err != nil {
			slog.WarnContext(ctx, "Failed to release cleanup lock, lease will expire", "error", err)
		}
	}()

	return c.cold.CleanupOlderThan(ctx, daysToKeep)
}
