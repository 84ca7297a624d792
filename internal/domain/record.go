package domain

import (
	"strings"
	"time"
)

// Label classifies a sentiment measurement.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNeutral  Label = "neutral"
	LabelNegative Label = "negative"
)

// ParseLabel normalizes a label string, returning false for unknown values.
func ParseLabel(s string) (Label, bool) {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case LabelPositive:
		return LabelPositive, true
	case LabelNeutral:
		return LabelNeutral, true
	case LabelNegative:
		return LabelNegative, true
	}
	return "", false
}

const maxSymbolLength = 10

// ValidateSymbol checks a ticker symbol against the accepted shape:
// non-empty, uppercase, at most 10 characters.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if len(symbol) > maxSymbolLength {
		return &ValidationError{Field: "symbol", Reason: "must be at most 10 characters"}
	}
	if symbol != strings.ToUpper(symbol) {
		return &ValidationError{Field: "symbol", Reason: "must be uppercase"}
	}
	return nil
}

// SentimentRecord is a single sentiment measurement for a symbol.
// Records are immutable once written: tiers relocate or delete them,
// never edit their fields.
type SentimentRecord struct {
	Symbol     string    `json:"symbol"`
	Score      float64   `json:"score"`
	Label      Label     `json:"label"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`

	// Optional fields, present only for records destined for the
	// searchable log. The numeric time series ignores them.
	SourceText string   `json:"source_text,omitempty"`
	SourceType string   `json:"source_type,omitempty"`
	KeyFactors []string `json:"key_factors,omitempty"`
}

// Validate checks the record against the fixed shape accepted at the
// ingestion boundary. Malformed records must be rejected before they
// reach any tier.
func (r *SentimentRecord) Validate() error {
	if err := ValidateSymbol(r.Symbol); err != nil {
		return err
	}
	if r.Score < -1.0 || r.Score > 1.0 {
		return &ValidationError{Field: "score", Reason: "must be in [-1.0, 1.0]"}
	}
	if _, ok := ParseLabel(string(r.Label)); !ok {
		return &ValidationError{Field: "label", Reason: "must be one of positive, neutral, negative"}
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return &ValidationError{Field: "confidence", Reason: "must be in [0.0, 1.0]"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "must be set"}
	}
	return nil
}

// StoredRecord is a SentimentRecord together with its durable-store row ID.
// The ID exists so lifecycle sweeps can delete exactly the rows they have
// confirmed in the destination tier.
type StoredRecord struct {
	ID int64
	SentimentRecord
}

// SocialPost is an engagement record archived alongside sentiment data.
// Produced by external collectors; the store only archives and joins it.
type SocialPost struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Source    string    `json:"source"`
	Retweets  int64     `json:"retweet_count"`
	Likes     int64     `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
}

// MarketRecord is a daily market snapshot archived for offline joins.
type MarketRecord struct {
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}
