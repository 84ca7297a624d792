package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() SentimentRecord {
	return SentimentRecord{
		Symbol:     "AAPL",
		Score:      0.75,
		Label:      LabelPositive,
		Confidence: 0.9,
		Timestamp:  time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC),
	}
}

func TestSentimentRecord_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*SentimentRecord)
		wantField string
	}{
		{name: "valid", mutate: func(*SentimentRecord) {}},
		{name: "boundary scores ok", mutate: func(r *SentimentRecord) { r.Score = -1.0 }},
		{name: "boundary confidence ok", mutate: func(r *SentimentRecord) { r.Confidence = 1.0 }},
		{name: "empty symbol", mutate: func(r *SentimentRecord) { r.Symbol = "" }, wantField: "symbol"},
		{name: "lowercase symbol", mutate: func(r *SentimentRecord) { r.Symbol = "aapl" }, wantField: "symbol"},
		{name: "symbol too long", mutate: func(r *SentimentRecord) { r.Symbol = "TOOLONGSYMBOL" }, wantField: "symbol"},
		{name: "score above range", mutate: func(r *SentimentRecord) { r.Score = 1.01 }, wantField: "score"},
		{name: "score below range", mutate: func(r *SentimentRecord) { r.Score = -1.5 }, wantField: "score"},
		{name: "unknown label", mutate: func(r *SentimentRecord) { r.Label = "bullish" }, wantField: "label"},
		{name: "empty label", mutate: func(r *SentimentRecord) { r.Label = "" }, wantField: "label"},
		{name: "negative confidence", mutate: func(r *SentimentRecord) { r.Confidence = -0.1 }, wantField: "confidence"},
		{name: "confidence above one", mutate: func(r *SentimentRecord) { r.Confidence = 1.1 }, wantField: "confidence"},
		{name: "zero timestamp", mutate: func(r *SentimentRecord) { r.Timestamp = time.Time{} }, wantField: "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := rec.Validate()

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestParseLabel(t *testing.T) {
	label, ok := ParseLabel("  Positive ")
	assert.True(t, ok)
	assert.Equal(t, LabelPositive, label)

	_, ok = ParseLabel("bullish")
	assert.False(t, ok)

	_, ok = ParseLabel("")
	assert.False(t, ok)
}

func TestValidateSymbol(t *testing.T) {
	assert.NoError(t, ValidateSymbol("BRK.B"))
	assert.Error(t, ValidateSymbol(""))
	assert.Error(t, ValidateSymbol("msft"))
	assert.Error(t, ValidateSymbol("ABCDEFGHIJK"))
}
