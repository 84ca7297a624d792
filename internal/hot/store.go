// Package hot composes the durable store and the latest-projection
// cache into the hot tier, cache-aside.
package hot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/metrics"
)

// Durable is the low-latency authoritative store for records younger
// than the hot retention threshold.
type Durable interface {
	Insert(ctx context.Context, rec domain.SentimentRecord) error
	Latest(ctx context.Context, symbol string) (domain.LatestSentiment, error)
	Recent(ctx context.Context, symbol string, since time.Time) ([]domain.SentimentRecord, error)
	SelectOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.StoredRecord, error)
	DeleteByIDs(ctx context.Context, ids []int64) error
}

// Cache is the short-TTL projection cache in front of the durable store.
type Cache interface {
	Get(ctx context.Context, symbol string) (domain.LatestSentiment, error)
	Set(ctx context.Context, symbol string, latest domain.LatestSentiment) error
}

// Store implements domain.HotStore.
type Store struct {
	durable Durable
	cache   Cache
}

func NewStore(durable Durable, cache Cache) *Store {
	return &Store{durable: durable, cache: cache}
}

// Put writes to the durable store, then overwrites the cache entry.
// The durable write is the success criterion; a cache write failure
// degrades read latency, not correctness, and is only logged.
func (s *Store) Put(ctx context.Context, rec domain.SentimentRecord) error {
	if err := s.durable.Insert(ctx, rec); err != nil {
		return errors.Join(domain.ErrBackendUnavailable, err)
	}

	latest := domain.LatestSentiment{Score: rec.Score, Label: rec.Label, Confidence: rec.Confidence}
	if err := s.cache.Set(ctx, rec.Symbol, latest); err != nil {
		slog.WarnContext(ctx, "Latest cache write failed, durable write succeeded", "symbol", rec.Symbol, "error", err)
	}

	return nil
}

// GetLatest tries the cache first; a hit short-circuits without
// touching the durable store. On miss or cache failure it queries the
// durable store and repopulates the cache best-effort.
func (s *Store) GetLatest(ctx context.Context, symbol string) (domain.LatestSentiment, error) {
	cached, err := s.cache.Get(ctx, symbol)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	case errors.Is(err, domain.ErrNotFound):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		// Cache outage: fail open to the durable store.
		metrics.CacheLookups.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "Latest cache read failed, falling through to durable store", "symbol", symbol, "error", err)
	}

	latest, err := s.durable.Latest(ctx, symbol)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.LatestSentiment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LatestSentiment{}, errors.Join(domain.ErrBackendUnavailable, err)
	}

	if err := s.cache.Set(ctx, symbol, latest); err != nil {
		slog.DebugContext(ctx, "Latest cache repopulation failed", "symbol", symbol, "error", err)
	}

	return latest, nil
}

// Recent returns durable rows newer than since for the hot edge of
// ranged queries.
func (s *Store) Recent(ctx context.Context, symbol string, since time.Time) ([]domain.SentimentRecord, error) {
	recs, err := s.durable.Recent(ctx, symbol, since)
	if err != nil {
		return nil, errors.Join(domain.ErrBackendUnavailable, err)
	}
	return recs, nil
}

// SelectOlderThan exposes aged rows to the lifecycle sweep.
func (s *Store) SelectOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.StoredRecord, error) {
	return s.durable.SelectOlderThan(ctx, cutoff, limit)
}

// DeleteByIDs removes migrated rows. Cache entries are left to expire
// naturally; their TTL bounds the staleness window.
func (s *Store) DeleteByIDs(ctx context.Context, ids []int64) error {
	return s.durable.DeleteByIDs(ctx, ids)
}
