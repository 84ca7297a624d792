// Package app is the application layer, the only component that
// references multiple tiers. It orchestrates every use case the HTTP
// surface exposes.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/metrics"
)

const (
	defaultTrendWindow  = 24 * time.Hour
	defaultCompareDays  = 7
	defaultSearchDays   = 30
	maxCompareSymbols   = 20
	defaultDatasetDays  = 90
	defaultCleanupKeeps = 365
)

// TierReader is the read side of the query router.
type TierReader interface {
	GetLatest(ctx context.Context, symbol string) (domain.LatestSentiment, error)
	GetLatestWithFallback(ctx context.Context, symbol string) (domain.LatestSentiment, error)
	GetTrend(ctx context.Context, symbol string, window time.Duration) ([]domain.TrendPoint, error)
	CompareSymbols(ctx context.Context, symbols []string, days int) (map[string]float64, error)
	SearchPatterns(ctx context.Context, symbol, query string, days int) ([]domain.LogDocument, error)
	GetDistribution(ctx context.Context, symbol string, days int) (domain.Distribution, error)
}

// Lifecycle is the sweep-and-cleanup surface of the coordinator.
type Lifecycle interface {
	RunSweep(ctx context.Context) (domain.SweepReport, error)
	Cleanup(ctx context.Context, daysToKeep int) (int, error)
}

type Service struct {
	hot       domain.HotStore
	cold      domain.ColdStore
	reader    TierReader
	lifecycle Lifecycle
}

func NewService(hot domain.HotStore, cold domain.ColdStore, reader TierReader, lifecycle Lifecycle) *Service {
	return &Service{hot: hot, cold: cold, reader: reader, lifecycle: lifecycle}
}

// Ingest validates the record and lands it in the hot tier. The hot
// durable write is the sole success criterion; the sweep migrates the
// record to the warm tier later, and the query router's hot overlay
// serves it to analytical reads in the meantime. Writing warm here as
// well would re-index every record a second time when the sweep runs.
func (s *Service) Ingest(ctx context.Context, rec domain.SentimentRecord) error {
	if err := rec.Validate(); err != nil {
		metrics.IngestTotal.WithLabelValues("rejected").Inc()
		return err
	}

	if err := s.hot.Put(ctx, rec); err != nil {
		metrics.IngestTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("hot tier write failed: %w", err)
	}

	metrics.IngestTotal.WithLabelValues("ok").Inc()
	return nil
}

// GetLatest serves the hot point lookup. withFallback opts in to the
// warm tier's most recent point when the hot tier has nothing.
func (s *Service) GetLatest(ctx context.Context, symbol string, withFallback bool) (domain.LatestSentiment, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return domain.LatestSentiment{}, err
	}
	if withFallback {
		return s.reader.GetLatestWithFallback(ctx, symbol)
	}
	return s.reader.GetLatest(ctx, symbol)
}

func (s *Service) GetTrend(ctx context.Context, symbol string, window time.Duration) ([]domain.TrendPoint, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = defaultTrendWindow
	}
	return s.reader.GetTrend(ctx, symbol, window)
}

func (s *Service) CompareSymbols(ctx context.Context, symbols []string, days int) (map[string]float64, error) {
	if len(symbols) == 0 {
		return nil, &domain.ValidationError{Field: "symbols", Reason: "at least one symbol required"}
	}
	if len(symbols) > maxCompareSymbols {
		return nil, &domain.ValidationError{Field: "symbols", Reason: fmt.Sprintf("at most %d symbols per comparison", maxCompareSymbols)}
	}
	for _, symbol := range symbols {
		if err := domain.ValidateSymbol(symbol); err != nil {
			return nil, err
		}
	}
	if days <= 0 {
		days = defaultCompareDays
	}
	return s.reader.CompareSymbols(ctx, symbols, days)
}

func (s *Service) SearchPatterns(ctx context.Context, symbol, query string, days int) ([]domain.LogDocument, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, &domain.ValidationError{Field: "query", Reason: "search text required"}
	}
	if days <= 0 {
		days = defaultSearchDays
	}
	return s.reader.SearchPatterns(ctx, symbol, query, days)
}

func (s *Service) GetDistribution(ctx context.Context, symbol string, days int) (domain.Distribution, error) {
	if err := domain.ValidateSymbol(symbol); err != nil {
		return domain.Distribution{}, err
	}
	if days <= 0 {
		days = defaultSearchDays
	}
	return s.reader.GetDistribution(ctx, symbol, days)
}

// BuildTrainingDataset joins the cold archives into a new immutable
// dataset object and returns its key.
func (s *Service) BuildTrainingDataset(ctx context.Context, symbols []string, daysBack int) (string, error) {
	for _, symbol := range symbols {
		if err := domain.ValidateSymbol(symbol); err != nil {
			return "", err
		}
	}
	if daysBack <= 0 {
		daysBack = defaultDatasetDays
	}
	return s.cold.BuildTrainingDataset(ctx, symbols, daysBack)
}

// RunLifecycleSweep triggers one sweep outside the periodic schedule.
func (s *Service) RunLifecycleSweep(ctx context.Context) (domain.SweepReport, error) {
	return s.lifecycle.RunSweep(ctx)
}

func (s *Service) Cleanup(ctx context.Context, daysToKeep int) (int, error) {
	if daysToKeep <= 0 {
		daysToKeep = defaultCleanupKeeps
	}
	return s.lifecycle.Cleanup(ctx, daysToKeep)
}

func (s *Service) GetStorageStats(ctx context.Context) (domain.StorageStats, error) {
	return s.cold.GetStorageStats(ctx)
}

func (s *Service) ListArchived(ctx context.Context, kind string, daysBack int) ([]domain.ArchivedObject, error) {
	if daysBack <= 0 {
		daysBack = defaultDatasetDays
	}
	return s.cold.ListArchived(ctx, kind, daysBack)
}

