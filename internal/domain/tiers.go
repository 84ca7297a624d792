package domain

import (
	"context"
	"time"
)

// HotStore is authoritative for records younger than the hot retention
// threshold: a durable low-latency store fronted by a short-TTL cache.
type HotStore interface {
	// Put writes to the durable store, then best-effort updates the
	// cache. Durable write success is the success criterion.
	Put(ctx context.Context, rec SentimentRecord) error

	// GetLatest returns the most recent projection for symbol, cache
	// first, falling through to the durable store. ErrNotFound when the
	// symbol has no data at all.
	GetLatest(ctx context.Context, symbol string) (LatestSentiment, error)

	// Recent returns durable rows newer than since, for merging the hot
	// edge of ranged queries.
	Recent(ctx context.Context, symbol string, since time.Time) ([]SentimentRecord, error)

	// SelectOlderThan pages durable rows past the retention cutoff,
	// ordered by id, for lifecycle migration.
	SelectOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]StoredRecord, error)

	// DeleteByIDs removes migrated rows. Only called after the
	// destination tier has confirmed the write.
	DeleteByIDs(ctx context.Context, ids []int64) error
}

// WarmStore is authoritative between the hot and warm retention
// thresholds: a time-series engine for numeric trend queries plus a
// full-text index for pattern search.
type WarmStore interface {
	StoreTimeseries(ctx context.Context, rec SentimentRecord, volume *int64, price *float64) error
	StoreLog(ctx context.Context, rec SentimentRecord) error

	// GetTrend computes tumbling-window mean scores over the lookback,
	// ascending by time. An empty window yields an empty slice.
	GetTrend(ctx context.Context, symbol string, window time.Duration) ([]TrendPoint, error)

	// CompareSymbols returns mean score per symbol over the window.
	// Symbols with no data are omitted, not zero-filled.
	CompareSymbols(ctx context.Context, symbols []string, days int) (map[string]float64, error)

	// SearchPatterns full-text matches source_text for one symbol,
	// newest first, capped at a fixed page size.
	SearchPatterns(ctx context.Context, symbol, query string, days int) ([]LogDocument, error)

	// GetDistribution returns label counts and percentages plus mean
	// confidence over the window.
	GetDistribution(ctx context.Context, symbol string, days int) (Distribution, error)

	// LatestPoint returns the most recent warm point for symbol. Used
	// only by the explicit historical fallback of point lookups.
	LatestPoint(ctx context.Context, symbol string) (LatestSentiment, error)

	// SelectOlderThan reads log documents past the warm retention
	// cutoff for archival into the cold tier.
	SelectOlderThan(ctx context.Context, cutoff time.Time) ([]SentimentRecord, error)

	// DeleteOlderThan removes timeseries points and log documents past
	// the cutoff. Only called after confirmed archival.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

// ColdStore is the unbounded columnar archive, authoritative past the
// warm retention threshold and the substrate for dataset assembly.
// Batches are immutable and keyed by (dataset kind, calendar day).
type ColdStore interface {
	// Archive writes one day's sentiment batch. Re-archiving the same
	// (kind, day) overwrites the prior batch: last-write-wins at day
	// granularity.
	Archive(ctx context.Context, day time.Time, recs []SentimentRecord) error

	// LoadRange concatenates day batches over [start, end], optionally
	// filtered by symbol. Days with no objects contribute nothing.
	LoadRange(ctx context.Context, start, end time.Time, symbols []string) ([]SentimentRecord, error)

	// BuildTrainingDataset joins sentiment, social, and market archives
	// over the window and stores the joined table as a new immutable
	// dataset batch. Returns the dataset's object key.
	BuildTrainingDataset(ctx context.Context, symbols []string, daysBack int) (string, error)

	ListArchived(ctx context.Context, kind string, daysBack int) ([]ArchivedObject, error)
	GetStorageStats(ctx context.Context) (StorageStats, error)

	// CleanupOlderThan irreversibly deletes objects whose last-modified
	// time precedes the cutoff. Returns the number deleted.
	CleanupOlderThan(ctx context.Context, daysToKeep int) (int, error)
}

// Scorer produces a sentiment record shape for a batch of texts about a
// symbol. The store treats scoring as an opaque external collaborator
// and does not validate scoring quality.
type Scorer interface {
	Score(ctx context.Context, symbol string, texts []string) (SentimentRecord, error)
}

// Publisher notifies downstream consumers after a successful ingest.
// Publishing is the caller's responsibility, never the store's.
type Publisher interface {
	PublishSentiment(ctx context.Context, rec SentimentRecord) error
}
