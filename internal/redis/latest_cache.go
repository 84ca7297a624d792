package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
)

const latestKeyPrefix = "sent:"

// LatestCache holds the compact (score, label, confidence) projection of
// the most recent record per symbol, with a fixed TTL. Expiry is the
// designed staleness bound: expired entries make reads fall through to
// the durable store.
type LatestCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

// NewLatestCache creates a latest-projection cache with the given TTL.
func NewLatestCache(rdb goredis.Cmdable, ttl time.Duration) *LatestCache {
	return &LatestCache{rdb: rdb, ttl: ttl}
}

// Set writes or overwrites the projection for symbol. The value is the
// compact "score|label|confidence" encoding; the TTL restarts on every
// write.
func (c *LatestCache) Set(ctx context.Context, symbol string, latest domain.LatestSentiment) error {
	value := encodeProjection(latest)
	if err := c.rdb.Set(ctx, latestKey(symbol), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache latest sentiment: %w", err)
	}
	return nil
}

// Get returns the cached projection for symbol. domain.ErrNotFound
// means a miss (absent or expired), any other error a cache failure.
func (c *LatestCache) Get(ctx context.Context, symbol string) (domain.LatestSentiment, error) {
	value, err := c.rdb.Get(ctx, latestKey(symbol)).Result()
	if err == goredis.Nil {
		return domain.LatestSentiment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LatestSentiment{}, fmt.Errorf("cache get failed: %w", err)
	}

	latest, err := decodeProjection(value)
	if err != nil {
		// Corrupt entry: treat as a miss so the durable store answers.
		return domain.LatestSentiment{}, domain.ErrNotFound
	}
	return latest, nil
}

func latestKey(symbol string) string {
	return latestKeyPrefix + symbol
}

func encodeProjection(l domain.LatestSentiment) string {
	return strconv.FormatFloat(l.Score, 'f', -1, 64) + "|" +
		string(l.Label) + "|" +
		strconv.FormatFloat(l.Confidence, 'f', -1, 64)
}

func decodeProjection(value string) (domain.LatestSentiment, error) {
	parts := strings.Split(value, "|")
	if len(parts) != 3 {
		return domain.LatestSentiment{}, fmt.Errorf("malformed cache entry %q", value)
	}

	score, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return domain.LatestSentiment{}, fmt.Errorf("malformed score in cache entry: %w", err)
	}
	confidence, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return domain.LatestSentiment{}, fmt.Errorf("malformed confidence in cache entry: %w", err)
	}

	return domain.LatestSentiment{
		Score:      score,
		Label:      domain.Label(parts[1]),
		Confidence: confidence,
	}, nil
}
