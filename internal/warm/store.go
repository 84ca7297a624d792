// Package warm implements the mid tier: an InfluxDB time series for
// numeric trend queries plus an OpenSearch index for pattern search.
// Authoritative between the hot and warm retention thresholds.
package warm

import (
	"context"
	"errors"
	"time"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
)

const defaultTrendBucket = time.Hour

// Store implements domain.WarmStore over the two warm backends.
type Store struct {
	series *Timeseries
	logs   *LogIndex
}

func NewStore(series *Timeseries, logs *LogIndex) *Store {
	return &Store{series: series, logs: logs}
}

func (s *Store) StoreTimeseries(ctx context.Context, rec domain.SentimentRecord, volume *int64, price *float64) error {
	if err := s.series.Store(ctx, rec, volume, price); err != nil {
		return errors.Join(domain.ErrBackendUnavailable, err)
	}
	return nil
}

func (s *Store) StoreLog(ctx context.Context, rec domain.SentimentRecord) error {
	if err := s.logs.Store(ctx, rec); err != nil {
		return errors.Join(domain.ErrBackendUnavailable, err)
	}
	return nil
}

func (s *Store) GetTrend(ctx context.Context, symbol string, window time.Duration) ([]domain.TrendPoint, error) {
	return s.series.Trend(ctx, symbol, window, defaultTrendBucket)
}

func (s *Store) CompareSymbols(ctx context.Context, symbols []string, days int) (map[string]float64, error) {
	return s.series.Compare(ctx, symbols, days)
}

func (s *Store) SearchPatterns(ctx context.Context, symbol, query string, days int) ([]domain.LogDocument, error) {
	return s.logs.Search(ctx, symbol, query, days)
}

func (s *Store) GetDistribution(ctx context.Context, symbol string, days int) (domain.Distribution, error) {
	return s.logs.Distribution(ctx, symbol, days)
}

func (s *Store) LatestPoint(ctx context.Context, symbol string) (domain.LatestSentiment, error) {
	return s.series.Latest(ctx, symbol)
}

// SelectOlderThan reads aged log documents for cold archival. The log
// index is the export source: it carries the full record shape, while
// the time series holds only the numeric projection.
func (s *Store) SelectOlderThan(ctx context.Context, cutoff time.Time) ([]domain.SentimentRecord, error) {
	return s.logs.SelectOlderThan(ctx, cutoff)
}

// DeleteOlderThan removes aged data from both warm backends. Only
// called by the lifecycle sweep after confirmed archival; a failure in
// either backend leaves duplicates, never loss.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	if err := s.series.DeleteOlderThan(ctx, cutoff); err != nil {
		return err
	}
	return s.logs.DeleteOlderThan(ctx, cutoff)
}
