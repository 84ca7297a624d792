package domain

import "time"

// LatestSentiment is the compact projection served by point lookups.
type LatestSentiment struct {
	Score      float64 `json:"score"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// TrendPoint is one tumbling-window bucket of a sentiment trend,
// mean score over the bucket.
type TrendPoint struct {
	Time  time.Time `json:"time"`
	Score float64   `json:"score"`
}

// LogDocument is a searchable sentiment log entry from the warm tier.
type LogDocument struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Score      float64   `json:"sentiment_score"`
	Label      Label     `json:"sentiment_label"`
	SourceText string    `json:"source_text"`
	SourceType string    `json:"source_type"`
	Confidence float64   `json:"confidence"`
	KeyFactors string    `json:"key_factors"`
}

// LabelShare is one label's slice of a sentiment distribution.
type LabelShare struct {
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Distribution maps labels to their share of documents in a window.
// An empty window yields an empty Labels map and zero AvgConfidence.
type Distribution struct {
	Labels        map[Label]LabelShare `json:"labels"`
	AvgConfidence float64              `json:"avg_confidence"`
}

// ArchivedObject describes one batch file in the cold archive.
type ArchivedObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Day          string    `json:"day"`
}

// KindStats aggregates object count and bytes for one dataset kind.
type KindStats struct {
	Count int64 `json:"count"`
	Bytes int64 `json:"bytes"`
}

// StorageStats summarizes the cold archive. Read-only, side-effect-free.
type StorageStats struct {
	TotalObjects int64                `json:"total_objects"`
	TotalBytes   int64                `json:"total_bytes"`
	TotalMB      float64              `json:"total_mb"`
	ByKind       map[string]KindStats `json:"by_kind"`
	Oldest       time.Time            `json:"oldest,omitempty"`
	Newest       time.Time            `json:"newest,omitempty"`
}

// SweepReport summarizes one lifecycle sweep.
type SweepReport struct {
	HotMigrated  int           `json:"hot_migrated"`
	WarmArchived int           `json:"warm_archived"`
	ArchivedDays []string      `json:"archived_days,omitempty"`
	Skipped      bool          `json:"skipped"` // another instance holds the sweep lock
	Duration     time.Duration `json:"duration"`
}

// TrainingRow is one (symbol, day) row of a training dataset: sentiment
// aggregates joined with social engagement and market data. Fields with
// no source data in the window are zero, not omitted.
type TrainingRow struct {
	Symbol         string  `json:"symbol"`
	Day            string  `json:"day"` // YYYY-MM-DD
	ScoreMean      float64 `json:"score_mean"`
	ScoreStd       float64 `json:"score_std"`
	ConfidenceMean float64 `json:"confidence_mean"`
	SampleCount    int64   `json:"sample_count"`
	PostCount      int64   `json:"post_count"`
	RetweetSum     int64   `json:"retweet_sum"`
	LikeSum        int64   `json:"like_sum"`
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	Close          float64 `json:"close"`
	Volume         int64   `json:"volume"`
}
