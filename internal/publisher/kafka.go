// Package publisher notifies downstream consumers after a successful
// ingest. Publishing is the HTTP handler's responsibility, never the
// store's, so a bus outage can not fail a write.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
)

type sentimentEvent struct {
	Symbol     string       `json:"symbol"`
	Score      float64      `json:"score"`
	Label      domain.Label `json:"label"`
	Confidence float64      `json:"confidence"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Kafka publishes sentiment events keyed by symbol, so per-symbol
// ordering is preserved across partitions.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (k *Kafka) PublishSentiment(ctx context.Context, rec domain.SentimentRecord) error {
	payload, err := json.Marshal(sentimentEvent{
		Symbol:     rec.Symbol,
		Score:      rec.Score,
		Label:      rec.Label,
		Confidence: rec.Confidence,
		Timestamp:  rec.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("encoding sentiment event: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Symbol),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publishing sentiment event: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
