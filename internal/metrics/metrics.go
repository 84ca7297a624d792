// Package metrics defines Prometheus collectors for the tiered store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	// IngestTotal tracks records accepted or rejected at the boundary.
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_ingest_total",
			Help: "Ingested sentiment records by status (ok/invalid/error)",
		},
		[]string{"status"},
	)
)

// Hot tier metrics
var (
	// CacheLookups tracks latest-projection cache hits and misses.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hot_cache_lookups_total",
			Help: "Latest-sentiment cache lookups by outcome (hit/miss/error)",
		},
		[]string{"outcome"},
	)

	// HotOpDuration tracks durable-store operation latency in seconds.
	HotOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hot_store_operation_duration_seconds",
			Help:    "Hot durable store operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Lifecycle metrics
var (
	// SweepTotal counts lifecycle sweeps by result.
	SweepTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_sweep_total",
			Help: "Lifecycle sweeps by result (ok/error/skipped)",
		},
		[]string{"result"},
	)

	// SweepDuration tracks end-to-end sweep duration in seconds.
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lifecycle_sweep_duration_seconds",
			Help:    "Lifecycle sweep duration in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
		},
	)

	// MigratedRecords counts records moved between tiers.
	MigratedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_migrated_records_total",
			Help: "Records migrated between tiers by transition (hot_to_warm/warm_to_cold)",
		},
		[]string{"transition"},
	)
)

// Cold tier metrics
var (
	// ArchiveBytes counts bytes uploaded to the cold archive by kind.
	ArchiveBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cold_archive_bytes_total",
			Help: "Bytes uploaded to cold storage by dataset kind",
		},
		[]string{"kind"},
	)

	// ArchiveObjects counts batch objects written by kind.
	ArchiveObjects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cold_archive_objects_total",
			Help: "Batch objects written to cold storage by dataset kind",
		},
		[]string{"kind"},
	)
)

// Query metrics
var (
	// QueryTotal counts read-path queries by operation and serving tier.
	QueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_total",
			Help: "Read queries by operation and tier that served them",
		},
		[]string{"operation", "tier"},
	)

	// TierFallbacks counts reads that fell back past an unavailable tier.
	TierFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "query_tier_fallbacks_total",
			Help: "Reads served by a fallback tier after a backend failure",
		},
	)
)
