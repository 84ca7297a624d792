package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SweepLock implements Redis-based leader election using SETNX with TTL.
// At most one instance runs a lifecycle sweep at a time; concurrent
// sweeps could archive divergent batches for the same day.
type SweepLock struct {
	rdb        *redis.Client
	instanceID string
	lockKey    string
	lockTTL    time.Duration
}

// NewSweepLock creates the sweep mutual-exclusion lock.
// instanceID should be unique per instance (e.g., hostname-PID).
func NewSweepLock(rdb *redis.Client, instanceID string) *SweepLock {
	return &SweepLock{
		rdb:        rdb,
		instanceID: instanceID,
		lockKey:    "lifecycle:sweep:leader",
		lockTTL:    5 * time.Minute,
	}
}

// TryAcquire attempts to become the sweep owner.
// Returns true if this instance acquired the lock, false if another holds it.
func (l *SweepLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.lockKey, l.instanceID, l.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	return ok, nil
}

// Renew extends the lease. Long sweeps call this between migration
// pages; an error means the lock was lost and the sweep must abort
// before its next destructive step.
func (l *SweepLock) Renew(ctx context.Context) error {
	current, err := l.rdb.Get(ctx, l.lockKey).Result()
	if err == redis.Nil {
		return fmt.Errorf("sweep lock lost")
	}
	if err != nil {
		return fmt.Errorf("failed to check sweep lock: %w", err)
	}

	if current != l.instanceID {
		return fmt.Errorf("sweep lock stolen by %s", current)
	}

	ok, err := l.rdb.Expire(ctx, l.lockKey, l.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to renew sweep lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("sweep lock lost during renewal")
	}

	return nil
}

// Release voluntarily releases the lock at the end of a sweep.
func (l *SweepLock) Release(ctx context.Context) error {
	// Delete only if we still hold it (never delete another instance's lock)
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`

	_, err := l.rdb.Eval(ctx, script, []string{l.lockKey}, l.instanceID).Result()
	return err
}
