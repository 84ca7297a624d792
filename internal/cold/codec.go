package cold

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
)

// Parquet row shapes. Column names are the durable contract other
// offline tools read; renaming one breaks every existing batch.

type sentimentRow struct {
	Symbol     string  `parquet:"symbol,snappy"`
	Score      float64 `parquet:"score"`
	Label      string  `parquet:"label,snappy"`
	Confidence float64 `parquet:"confidence"`
	SourceText string  `parquet:"source_text,optional,snappy"`
	SourceType string  `parquet:"source_type,optional,snappy"`
	KeyFactors string  `parquet:"key_factors,optional,snappy"`
	TsMs       int64   `parquet:"timestamp_ms"`
	ArchivedMs int64   `parquet:"archived_at_ms"`
}

type socialRow struct {
	ID        string `parquet:"id,snappy"`
	Symbol    string `parquet:"symbol,snappy"`
	Text      string `parquet:"text,optional,snappy"`
	Author    string `parquet:"author,optional,snappy"`
	Source    string `parquet:"source,snappy"`
	Retweets  int64  `parquet:"retweet_count"`
	Likes     int64  `parquet:"like_count"`
	CreatedMs int64  `parquet:"created_at_ms"`
}

type marketRow struct {
	Symbol string  `parquet:"symbol,snappy"`
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume int64   `parquet:"volume"`
	TsMs   int64   `parquet:"timestamp_ms"`
}

type trainingRow struct {
	Symbol         string  `parquet:"symbol,snappy"`
	Day            string  `parquet:"day,snappy"`
	ScoreMean      float64 `parquet:"score_mean"`
	ScoreStd       float64 `parquet:"score_std"`
	ConfidenceMean float64 `parquet:"confidence_mean"`
	SampleCount    int64   `parquet:"sample_count"`
	PostCount      int64   `parquet:"post_count"`
	RetweetSum     int64   `parquet:"retweet_sum"`
	LikeSum        int64   `parquet:"like_sum"`
	Open           float64 `parquet:"open"`
	High           float64 `parquet:"high"`
	Low            float64 `parquet:"low"`
	Close          float64 `parquet:"close"`
	Volume         int64   `parquet:"volume"`
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows, parquet.Compression(&parquet.Snappy)); err != nil {
		return nil, fmt.Errorf("failed to encode parquet batch: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeParquet[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode parquet batch: %w", err)
	}
	return rows, nil
}

func toSentimentRow(rec domain.SentimentRecord, archivedAt time.Time) sentimentRow {
	return sentimentRow{
		Symbol:     rec.Symbol,
		Score:      rec.Score,
		Label:      string(rec.Label),
		Confidence: rec.Confidence,
		SourceText: rec.SourceText,
		SourceType: rec.SourceType,
		KeyFactors: strings.Join(rec.KeyFactors, " "),
		TsMs:       rec.Timestamp.UnixMilli(),
		ArchivedMs: archivedAt.UnixMilli(),
	}
}

func fromSentimentRow(row sentimentRow) domain.SentimentRecord {
	var factors []string
	if row.KeyFactors != "" {
		factors = strings.Fields(row.KeyFactors)
	}
	return domain.SentimentRecord{
		Symbol:     row.Symbol,
		Score:      row.Score,
		Label:      domain.Label(row.Label),
		Confidence: row.Confidence,
		SourceText: row.SourceText,
		SourceType: row.SourceType,
		KeyFactors: factors,
		Timestamp:  time.UnixMilli(row.TsMs).UTC(),
	}
}

func toSocialRow(post domain.SocialPost) socialRow {
	return socialRow{
		ID:        post.ID,
		Symbol:    post.Symbol,
		Text:      post.Text,
		Author:    post.Author,
		Source:    post.Source,
		Retweets:  post.Retweets,
		Likes:     post.Likes,
		CreatedMs: post.CreatedAt.UnixMilli(),
	}
}

func fromSocialRow(row socialRow) domain.SocialPost {
	return domain.SocialPost{
		ID:        row.ID,
		Symbol:    row.Symbol,
		Text:      row.Text,
		Author:    row.Author,
		Source:    row.Source,
		Retweets:  row.Retweets,
		Likes:     row.Likes,
		CreatedAt: time.UnixMilli(row.CreatedMs).UTC(),
	}
}

func toMarketRow(rec domain.MarketRecord) marketRow {
	return marketRow{
		Symbol: rec.Symbol,
		Open:   rec.Open,
		High:   rec.High,
		Low:    rec.Low,
		Close:  rec.Close,
		Volume: rec.Volume,
		TsMs:   rec.Timestamp.UnixMilli(),
	}
}

func fromMarketRow(row marketRow) domain.MarketRecord {
	return domain.MarketRecord{
		Symbol:    row.Symbol,
		Open:      row.Open,
		High:      row.High,
		Low:       row.Low,
		Close:     row.Close,
		Volume:    row.Volume,
		Timestamp: time.UnixMilli(row.TsMs).UTC(),
	}
}

func toTrainingRow(r domain.TrainingRow) trainingRow {
	return trainingRow(r)
}
