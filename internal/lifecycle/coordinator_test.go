package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/platform/retry"
)

type mockLock struct {
	mu        sync.Mutex
	available bool
	renewErr  error
	acquires  int
	renews    int
	releases  int
}

func (m *mockLock) TryAcquire(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquires++
	return m.available, nil
}

func (m *mockLock) Renew(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renews++
	return m.renewErr
}

func (m *mockLock) Release(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	return nil
}

func (m *mockLock) acquireCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires
}

type mockHot struct {
	rows      []domain.StoredRecord
	deleted   map[int64]bool
	deleteErr error
}

func (m *mockHot) Put(_ context.Context, _ domain.SentimentRecord) error { return nil }

func (m *mockHot) GetLatest(_ context.Context, _ string) (domain.LatestSentiment, error) {
	return domain.LatestSentiment{}, domain.ErrNotFound
}

func (m *mockHot) Recent(_ context.Context, _ string, _ time.Time) ([]domain.SentimentRecord, error) {
	return nil, nil
}

func (m *mockHot) SelectOlderThan(_ context.Context, cutoff time.Time, limit int) ([]domain.StoredRecord, error) {
	var page []domain.StoredRecord
	for _, row := range m.rows {
		if m.deleted[row.ID] || !row.Timestamp.Before(cutoff) {
			continue
		}
		page = append(page, row)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (m *mockHot) DeleteByIDs(_ context.Context, ids []int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if m.deleted == nil {
		m.deleted = make(map[int64]bool)
	}
	for _, id := range ids {
		m.deleted[id] = true
	}
	return nil
}

func (m *mockHot) remaining() int {
	n := 0
	for _, row := range m.rows {
		if !m.deleted[row.ID] {
			n++
		}
	}
	return n
}

type mockWarm struct {
	series        []domain.SentimentRecord
	logs          []domain.SentimentRecord
	aged          []domain.SentimentRecord
	deletedBefore []time.Time

	seriesFailures int // fail this many StoreTimeseries calls, then succeed
}

func (m *mockWarm) StoreTimeseries(_ context.Context, rec domain.SentimentRecord, _ *int64, _ *float64) error {
	if m.seriesFailures > 0 {
		m.seriesFailures--
		return errors.New("influx write timeout")
	}
	m.series = append(m.series, rec)
	return nil
}

func (m *mockWarm) StoreLog(_ context.Context, rec domain.SentimentRecord) error {
	m.logs = append(m.logs, rec)
	return nil
}

func (m *mockWarm) GetTrend(_ context.Context, _ string, _ time.Duration) ([]domain.TrendPoint, error) {
	return nil, nil
}

func (m *mockWarm) CompareSymbols(_ context.Context, _ []string, _ int) (map[string]float64, error) {
	return nil, nil
}

func (m *mockWarm) SearchPatterns(_ context.Context, _, _ string, _ int) ([]domain.LogDocument, error) {
	return nil, nil
}

func (m *mockWarm) GetDistribution(_ context.Context, _ string, _ int) (domain.Distribution, error) {
	return domain.Distribution{}, nil
}

func (m *mockWarm) LatestPoint(_ context.Context, _ string) (domain.LatestSentiment, error) {
	return domain.LatestSentiment{}, domain.ErrNotFound
}

func (m *mockWarm) SelectOlderThan(_ context.Context, cutoff time.Time) ([]domain.SentimentRecord, error) {
	var out []domain.SentimentRecord
	for _, rec := range m.aged {
		if rec.Timestamp.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockWarm) DeleteOlderThan(_ context.Context, cutoff time.Time) error {
	m.deletedBefore = append(m.deletedBefore, cutoff)
	kept := m.aged[:0]
	for _, rec := range m.aged {
		if !rec.Timestamp.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	m.aged = kept
	return nil
}

type mockCold struct {
	archives map[string][]domain.SentimentRecord

	archiveFailures int
	cleanupDeleted  int
}

func (m *mockCold) Archive(_ context.Context, day time.Time, recs []domain.SentimentRecord) error {
	if m.archiveFailures > 0 {
		m.archiveFailures--
		return errors.New("object storage unavailable")
	}
	if m.archives == nil {
		m.archives = make(map[string][]domain.SentimentRecord)
	}
	m.archives[day.Format("2006-01-02")] = recs
	return nil
}

func (m *mockCold) LoadRange(_ context.Context, _, _ time.Time, _ []string) ([]domain.SentimentRecord, error) {
	return nil, nil
}

func (m *mockCold) BuildTrainingDataset(_ context.Context, _ []string, _ int) (string, error) {
	return "", domain.ErrNotFound
}

func (m *mockCold) ListArchived(_ context.Context, _ string, _ int) ([]domain.ArchivedObject, error) {
	return nil, nil
}

func (m *mockCold) GetStorageStats(_ context.Context) (domain.StorageStats, error) {
	return domain.StorageStats{}, nil
}

func (m *mockCold) CleanupOlderThan(_ context.Context, _ int) (int, error) {
	return m.cleanupDeleted, nil
}

func record(symbol string, ts time.Time) domain.SentimentRecord {
	return domain.SentimentRecord{
		Symbol:     symbol,
		Score:      0.5,
		Label:      domain.LabelPositive,
		Confidence: 0.9,
		Timestamp:  ts,
		SourceText: "earnings beat expectations",
		SourceType: "news",
	}
}

func testCoordinator(hot *mockHot, warm *mockWarm, cold *mockCold, lock *mockLock, clock clockwork.Clock) *Coordinator {
	c := NewCoordinator(hot, warm, cold, lock, clock, Policy{
		HotRetention:  24 * time.Hour,
		WarmRetention: 30 * 24 * time.Hour,
		PageSize:      2,
	})
	c.retry = retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, ConflictBackoff: time.Millisecond}
	return c
}

func TestRunSweep_SkipsWhenLockHeld(t *testing.T) {
	lock := &mockLock{available: false}
	c := testCoordinator(&mockHot{}, &mockWarm{}, &mockCold{}, lock, clockwork.NewFakeClock())

	report, err := c.RunSweep(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, report.HotMigrated)
	assert.Zero(t, lock.releases, "should not release a lock it never held")
}

func TestRunSweep_MigratesAgedHotRecords(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	hot := &mockHot{rows: []domain.StoredRecord{
		{ID: 1, SentimentRecord: record("AAPL", now.Add(-30*time.Hour))},
		{ID: 2, SentimentRecord: record("AAPL", now.Add(-28*time.Hour))},
		{ID: 3, SentimentRecord: record("MSFT", now.Add(-25*time.Hour))},
		{ID: 4, SentimentRecord: record("MSFT", now.Add(-1*time.Hour))}, // still fresh
	}}
	warm := &mockWarm{}
	lock := &mockLock{available: true}
	c := testCoordinator(hot, warm, &mockCold{}, lock, clock)

	report, err := c.RunSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.HotMigrated)
	assert.Len(t, warm.series, 3, "every migrated record lands in the timeseries backend")
	assert.Len(t, warm.logs, 3, "every migrated record lands in the log index")
	assert.Equal(t, 1, hot.remaining(), "fresh record stays hot")
	assert.False(t, hot.deleted[4])
	assert.Equal(t, 1, lock.releases)
}

func TestRunSweep_NoHotDeleteWhenWarmWriteFails(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	hot := &mockHot{rows: []domain.StoredRecord{
		{ID: 1, SentimentRecord: record("AAPL", now.Add(-30*time.Hour))},
	}}
	warm := &mockWarm{seriesFailures: 10} // exhausts all retry attempts
	lock := &mockLock{available: true}
	c := testCoordinator(hot, warm, &mockCold{}, lock, clock)

	report, err := c.RunSweep(context.Background())
	require.Error(t, err)

	assert.Zero(t, report.HotMigrated)
	assert.Equal(t, 1, hot.remaining(), "record must stay hot when migration fails")
	assert.Equal(t, 1, lock.releases, "lock released even on failure")
}

func TestRunSweep_RetriesTransientWarmFailure(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	hot := &mockHot{rows: []domain.StoredRecord{
		{ID: 1, SentimentRecord: record("AAPL", now.Add(-30*time.Hour))},
	}}
	warm := &mockWarm{seriesFailures: 1} // first attempt fails, retry succeeds
	c := testCoordinator(hot, warm, &mockCold{}, &mockLock{available: true}, clock)

	report, err := c.RunSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.HotMigrated)
	assert.Zero(t, hot.remaining())
}

func TestRunSweep_SecondSweepIsNoOp(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	hot := &mockHot{rows: []domain.StoredRecord{
		{ID: 1, SentimentRecord: record("AAPL", now.Add(-30*time.Hour))},
	}}
	warm := &mockWarm{}
	c := testCoordinator(hot, warm, &mockCold{}, &mockLock{available: true}, clock)

	first, err := c.RunSweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.HotMigrated)

	second, err := c.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.HotMigrated, "already-migrated records must not move again")
	assert.Len(t, warm.series, 1)
}

func TestRunSweep_AbortsBeforeDeleteWhenLeaseLost(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	hot := &mockHot{rows: []domain.StoredRecord{
		{ID: 1, SentimentRecord: record("AAPL", now.Add(-30*time.Hour))},
	}}
	lock := &mockLock{available: true, renewErr: errors.New("leader lock lost")}
	c := testCoordinator(hot, &mockWarm{}, &mockCold{}, lock, clock)

	_, err := c.RunSweep(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMigrationConflict)
	assert.Equal(t, 1, hot.remaining(), "destructive step must not run after lease loss")
}

func TestRunSweep_ArchivesWarmRecordsByDay(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	warm := &mockWarm{aged: []domain.SentimentRecord{
		record("AAPL", now.Add(-32*24*time.Hour)),
		record("MSFT", now.Add(-32*24*time.Hour)),
		record("AAPL", now.Add(-31*24*time.Hour)),
	}}
	cold := &mockCold{}
	c := testCoordinator(&mockHot{}, warm, cold, &mockLock{available: true}, clock)

	report, err := c.RunSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.WarmArchived)
	assert.Len(t, report.ArchivedDays, 2)
	assert.Len(t, cold.archives["2024-02-12"], 2)
	assert.Len(t, cold.archives["2024-02-13"], 1)
	require.Len(t, warm.deletedBefore, 1, "warm trim runs exactly once, after archival")
}

func TestRunSweep_ArchivesOnlyFullyElapsedDays(t *testing.T) {
	// Two sweeps whose raw retention cutoff falls in the middle of the
	// same day. Archiving the early record alone and the late record in
	// a later sweep would rewrite the immutable day batch with only the
	// late record, so the whole day must wait until it has fully aged.
	day := time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC)
	early := record("AAPL", day.Add(2*time.Hour))
	late := record("AAPL", day.Add(20*time.Hour))

	clock := clockwork.NewFakeClockAt(day.Add(30*24*time.Hour + 10*time.Hour))
	warm := &mockWarm{aged: []domain.SentimentRecord{early, late}}
	cold := &mockCold{}
	c := testCoordinator(&mockHot{}, warm, cold, &mockLock{available: true}, clock)

	first, err := c.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, first.WarmArchived, "partially elapsed day must not migrate")
	assert.Len(t, warm.aged, 2, "both records stay warm until the day has fully aged")

	clock.Advance(26 * time.Hour)

	second, err := c.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.WarmArchived)

	batch := cold.archives["2024-02-13"]
	require.Len(t, batch, 2, "day batch holds every record of the day")
	assert.Equal(t, early.Timestamp, batch[0].Timestamp)
	assert.Equal(t, late.Timestamp, batch[1].Timestamp)
	assert.Empty(t, warm.aged)
}

func TestRunSweep_NoWarmDeleteWhenArchiveFails(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	warm := &mockWarm{aged: []domain.SentimentRecord{
		record("AAPL", now.Add(-32*24*time.Hour)),
	}}
	cold := &mockCold{archiveFailures: 10}
	c := testCoordinator(&mockHot{}, warm, cold, &mockLock{available: true}, clock)

	_, err := c.RunSweep(context.Background())
	require.Error(t, err)
	assert.Empty(t, warm.deletedBefore, "warm records must survive a failed archival")
}

func TestCleanup_RequiresLock(t *testing.T) {
	cold := &mockCold{cleanupDeleted: 7}

	c := testCoordinator(&mockHot{}, &mockWarm{}, cold, &mockLock{available: false}, clockwork.NewFakeClock())
	_, err := c.Cleanup(context.Background(), 365)
	assert.ErrorIs(t, err, domain.ErrMigrationConflict)

	lock := &mockLock{available: true}
	c = testCoordinator(&mockHot{}, &mockWarm{}, cold, lock, clockwork.NewFakeClock())
	deleted, err := c.Cleanup(context.Background(), 365)
	require.NoError(t, err)
	assert.Equal(t, 7, deleted)
	assert.Equal(t, 1, lock.releases)
}

func TestCleanup_ReleasesLockDespiteCancelledContext(t *testing.T) {
	lock := &mockLock{available: true}
	c := testCoordinator(&mockHot{}, &mockWarm{}, &mockCold{}, lock, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _ = c.Cleanup(ctx, 365)
	assert.Equal(t, 1, lock.releases, "release must outlive the caller's context")
}
