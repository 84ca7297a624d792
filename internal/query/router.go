// Package query unifies reads across the three tiers. Point lookups
// target the hot tier; ranged queries merge per time bucket with the
// warm tier canonical for historical buckets, the hot tier filling
// buckets the warm tier lacks, and the cold tier filling buckets
// neither has.
package query

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/metrics"
)

const trendBucket = time.Hour

// Retention mirrors the lifecycle thresholds so the router knows which
// tiers can overlap a requested window. Age is recomputed per query.
type Retention struct {
	Hot  time.Duration
	Warm time.Duration
}

type Router struct {
	hot       domain.HotStore
	warm      domain.WarmStore
	cold      domain.ColdStore
	clock     clockwork.Clock
	retention Retention
}

func NewRouter(hot domain.HotStore, warm domain.WarmStore, cold domain.ColdStore, clock clockwork.Clock, retention Retention) *Router {
	return &Router{hot: hot, warm: warm, cold: cold, clock: clock, retention: retention}
}

// GetLatest serves the point lookup from the hot tier only. A
// domain.ErrNotFound here means the symbol has no recent data, which
// callers must not confuse with "no data at all".
func (r *Router) GetLatest(ctx context.Context, symbol string) (domain.LatestSentiment, error) {
	metrics.QueryTotal.WithLabelValues("latest", "hot").Inc()
	return r.hot.GetLatest(ctx, symbol)
}

// GetLatestWithFallback additionally consults the warm tier's most
// recent point when the hot tier has nothing. The fallback is an
// explicit caller opt-in because it can serve data older than the hot
// retention window.
func (r *Router) GetLatestWithFallback(ctx context.Context, symbol string) (domain.LatestSentiment, error) {
	latest, err := r.GetLatest(ctx, symbol)
	if err == nil {
		return latest, nil
	}
	if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrBackendUnavailable) {
		return domain.LatestSentiment{}, err
	}

	metrics.TierFallbacks.Inc()
	metrics.QueryTotal.WithLabelValues("latest", "warm").Inc()
	slog.DebugContext(ctx, "Hot tier miss, falling back to warm point", "symbol", symbol)

	point, warmErr := r.warm.LatestPoint(ctx, symbol)
	if warmErr == nil {
		return point, nil
	}
	if errors.Is(err, domain.ErrBackendUnavailable) && errors.Is(warmErr, domain.ErrBackendUnavailable) {
		return domain.LatestSentiment{}, errors.Join(err, warmErr)
	}
	return domain.LatestSentiment{}, warmErr
}

type bucketTier int

const (
	tierWarm bucketTier = iota // canonical historical aggregate
	tierHot                    // fills buckets warm lacks
	tierCold                   // fills buckets neither hot nor warm has
)

type bucket struct {
	score float64
	tier  bucketTier
}

// GetTrend returns tumbling-window mean scores over the lookback,
// ascending by time, merged across every tier the window overlaps. A
// tier outage drops that tier from the merge; only when no consulted
// tier answered does the call fail.
func (r *Router) GetTrend(ctx context.Context, symbol string, window time.Duration) ([]domain.TrendPoint, error) {
	now := r.clock.Now()
	start := now.Add(-window)
	buckets := make(map[time.Time]bucket)
	var tierErrs []error
	consulted := 0

	consulted++
	metrics.QueryTotal.WithLabelValues("trend", "warm").Inc()
	warmPoints, err := r.warm.GetTrend(ctx, symbol, window)
	if err != nil {
		tierErrs = append(tierErrs, err)
		metrics.TierFallbacks.Inc()
		slog.WarnContext(ctx, "Warm tier unavailable for trend, serving remaining tiers", "symbol", symbol, "error", err)
	}
	for _, p := range warmPoints {
		buckets[p.Time.UTC().Truncate(trendBucket)] = bucket{score: p.Score, tier: tierWarm}
	}

	// The newest edge of any window lies inside the hot retention, so
	// the hot tier always overlays the recent buckets.
	consulted++
	metrics.QueryTotal.WithLabelValues("trend", "hot").Inc()
	hotSince := start
	if hotCutoff := now.Add(-r.retention.Hot); hotCutoff.After(hotSince) {
		hotSince = hotCutoff
	}
	hotRows, err := r.hot.Recent(ctx, symbol, hotSince)
	if err != nil {
		tierErrs = append(tierErrs, err)
		metrics.TierFallbacks.Inc()
		slog.WarnContext(ctx, "Hot tier unavailable for trend, serving remaining tiers", "symbol", symbol, "error", err)
	}
	mergeBuckets(buckets, bucketMeans(hotRows), tierHot)

	// Windows reaching past the warm retention pull cold day batches.
	if warmCutoff := now.Add(-r.retention.Warm); start.Before(warmCutoff) {
		consulted++
		metrics.QueryTotal.WithLabelValues("trend", "cold").Inc()
		coldRows, err := r.cold.LoadRange(ctx, start, warmCutoff, []string{symbol})
		if err != nil {
			tierErrs = append(tierErrs, err)
			metrics.TierFallbacks.Inc()
			slog.WarnContext(ctx, "Cold tier unavailable for trend, serving remaining tiers", "symbol", symbol, "error", err)
		}
		mergeBuckets(buckets, bucketMeans(coldRows), tierCold)
	}

	if len(tierErrs) == consulted {
		return nil, errors.Join(append([]error{domain.ErrBackendUnavailable}, tierErrs...)...)
	}

	points := make([]domain.TrendPoint, 0, len(buckets))
	for ts, b := range buckets {
		if ts.Before(start.Truncate(trendBucket)) {
			continue
		}
		points = append(points, domain.TrendPoint{Time: ts, Score: b.score})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

// CompareSymbols returns mean score per symbol over the window. Warm
// means are canonical; the hot tier contributes symbols the warm tier
// has not seen yet, and the cold tier contributes symbols whose data
// has aged out of both.
func (r *Router) CompareSymbols(ctx context.Context, symbols []string, days int) (map[string]float64, error) {
	now := r.clock.Now()
	window := time.Duration(days) * 24 * time.Hour
	result := make(map[string]float64)
	var tierErrs []error
	consulted := 0

	consulted++
	metrics.QueryTotal.WithLabelValues("compare", "warm").Inc()
	warmMeans, err := r.warm.CompareSymbols(ctx, symbols, days)
	if err != nil {
		tierErrs = append(tierErrs, err)
		metrics.TierFallbacks.Inc()
		slog.WarnContext(ctx, "Warm tier unavailable for compare, serving remaining tiers", "error", err)
	}
	for symbol, mean := range warmMeans {
		result[symbol] = mean
	}

	consulted++
	metrics.QueryTotal.WithLabelValues("compare", "hot").Inc()
	hotSince := now.Add(-window)
	if hotCutoff := now.Add(-r.retention.Hot); hotCutoff.After(hotSince) {
		hotSince = hotCutoff
	}
	hotFailed := false
	for _, symbol := range symbols {
		if _, ok := result[symbol]; ok {
			continue
		}
		rows, err := r.hot.Recent(ctx, symbol, hotSince)
		if err != nil {
			if !hotFailed {
				hotFailed = true
				tierErrs = append(tierErrs, err)
				metrics.TierFallbacks.Inc()
				slog.WarnContext(ctx, "Hot tier unavailable for compare, serving remaining tiers", "error", err)
			}
			continue
		}
		if mean, ok := meanScore(rows); ok {
			result[symbol] = mean
		}
	}

	if warmCutoff := now.Add(-r.retention.Warm); now.Add(-window).Before(warmCutoff) {
		consulted++
		metrics.QueryTotal.WithLabelValues("compare", "cold").Inc()
		missing := missingSymbols(symbols, result)
		if len(missing) > 0 {
			coldRows, err := r.cold.LoadRange(ctx, now.Add(-window), warmCutoff, missing)
			if err != nil {
				tierErrs = append(tierErrs, err)
				metrics.TierFallbacks.Inc()
				slog.WarnContext(ctx, "Cold tier unavailable for compare, serving remaining tiers", "error", err)
			}
			perSymbol := make(map[string][]domain.SentimentRecord)
			for _, rec := range coldRows {
				perSymbol[rec.Symbol] = append(perSymbol[rec.Symbol], rec)
			}
			for symbol, rows := range perSymbol {
				if mean, ok := meanScore(rows); ok {
					result[symbol] = mean
				}
			}
		}
	}

	if len(tierErrs) == consulted {
		return nil, errors.Join(append([]error{domain.ErrBackendUnavailable}, tierErrs...)...)
	}
	return result, nil
}

// SearchPatterns and GetDistribution are warm-only: the log index is
// the single full-text surface, and the hot tier keeps no inverted
// index worth merging.
func (r *Router) SearchPatterns(ctx context.Context, symbol, query string, days int) ([]domain.LogDocument, error) {
	metrics.QueryTotal.WithLabelValues("search", "warm").Inc()
	return r.warm.SearchPatterns(ctx, symbol, query, days)
}

func (r *Router) GetDistribution(ctx context.Context, symbol string, days int) (domain.Distribution, error) {
	metrics.QueryTotal.WithLabelValues("distribution", "warm").Inc()
	return r.warm.GetDistribution(ctx, symbol, days)
}

func bucketMeans(rows []domain.SentimentRecord) map[time.Time]float64 {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, rec := range rows {
		ts := rec.Timestamp.UTC().Truncate(trendBucket)
		sums[ts] += rec.Score
		counts[ts]++
	}
	means := make(map[time.Time]float64, len(sums))
	for ts, sum := range sums {
		means[ts] = sum / float64(counts[ts])
	}
	return means
}

func mergeBuckets(dst map[time.Time]bucket, means map[time.Time]float64, tier bucketTier) {
	for ts, mean := range means {
		if existing, ok := dst[ts]; ok && existing.tier <= tier {
			continue
		}
		dst[ts] = bucket{score: mean, tier: tier}
	}
}

func meanScore(rows []domain.SentimentRecord) (float64, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, rec := range rows {
		sum += rec.Score
	}
	return sum / float64(len(rows)), true
}

func missingSymbols(symbols []string, have map[string]float64) []string {
	var missing []string
	for _, symbol := range symbols {
		if _, ok := have[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}
	return missing
}
