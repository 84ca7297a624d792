package cold

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
)

// BuildTrainingDataset joins sentiment, social, and market archives on
// (symbol, day) over the trailing window and stores the joined table as
// a new immutable dataset batch. The batch name carries a timestamp so
// repeated builds never collide. Returns the dataset's object key.
//
// The join is left-outer from the sentiment/social base toward market
// data; rows with no social or market source keep those columns at
// zero, they are never omitted.
func (s *Store) BuildTrainingDataset(ctx context.Context, symbols []string, daysBack int) (string, error) {
	end := s.clock.Now().UTC()
	start := end.AddDate(0, 0, -daysBack)

	var (
		sentiment []domain.SentimentRecord
		social    []domain.SocialPost
		market    []domain.MarketRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sentiment, err = s.LoadRange(gctx, start, end, symbols)
		return err
	})
	g.Go(func() error {
		var err error
		social, err = s.LoadSocialRange(gctx, start, end, symbols)
		return err
	})
	g.Go(func() error {
		var err error
		market, err = s.LoadMarketRange(gctx, start, end, symbols)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("failed to load archives for dataset: %w", err)
	}

	table := joinFeatures(sentiment, social, market)
	if len(table) == 0 {
		return "", domain.ErrNotFound
	}

	rows := make([]trainingRow, len(table))
	for i, r := range table {
		rows[i] = toTrainingRow(r)
	}

	key := fmt.Sprintf("%s/training_dataset_%s.parquet", KindTraining, end.Format("20060102_150405"))
	meta := map[string]string{
		"symbols":   strings.Join(symbols, ","),
		"days-back": strconv.Itoa(daysBack),
	}
	if err := putBatch(ctx, s.storage, KindTraining, key, rows, meta); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Built training dataset", "key", key, "rows", len(rows), "days_back", daysBack)
	return key, nil
}

type joinKey struct {
	symbol string
	day    string
}

// joinFeatures aggregates each source per (symbol, day) and merges
// them, market last.
func joinFeatures(sentiment []domain.SentimentRecord, social []domain.SocialPost, market []domain.MarketRecord) []domain.TrainingRow {
	rows := make(map[joinKey]*domain.TrainingRow)

	row := func(symbol string, t time.Time) *domain.TrainingRow {
		k := joinKey{symbol: symbol, day: t.UTC().Format("2006-01-02")}
		r, ok := rows[k]
		if !ok {
			r = &domain.TrainingRow{Symbol: k.symbol, Day: k.day}
			rows[k] = r
		}
		return r
	}

	// Sentiment aggregates: mean, population std, mean confidence.
	type scoreAcc struct {
		scores []float64
		conf   float64
	}
	scoresByKey := make(map[joinKey]*scoreAcc)
	for _, rec := range sentiment {
		r := row(rec.Symbol, rec.Timestamp)
		k := joinKey{symbol: r.Symbol, day: r.Day}
		acc, ok := scoresByKey[k]
		if !ok {
			acc = &scoreAcc{}
			scoresByKey[k] = acc
		}
		acc.scores = append(acc.scores, rec.Score)
		acc.conf += rec.Confidence
	}
	for k, acc := range scoresByKey {
		r := rows[k]
		n := float64(len(acc.scores))
		r.SampleCount = int64(len(acc.scores))

		var sum float64
		for _, v := range acc.scores {
			sum += v
		}
		mean := sum / n
		r.ScoreMean = mean
		r.ConfidenceMean = acc.conf / n

		var variance float64
		for _, v := range acc.scores {
			variance += (v - mean) * (v - mean)
		}
		r.ScoreStd = math.Sqrt(variance / n)
	}

	// Social engagement sums.
	for _, post := range social {
		r := row(post.Symbol, post.CreatedAt)
		r.PostCount++
		r.RetweetSum += post.Retweets
		r.LikeSum += post.Likes
	}

	// Market columns join onto existing base rows only; a market day
	// with no sentiment or social base is not a training example.
	marketByKey := make(map[joinKey]domain.MarketRecord)
	for _, rec := range market {
		marketByKey[joinKey{symbol: rec.Symbol, day: rec.Timestamp.UTC().Format("2006-01-02")}] = rec
	}
	for k, r := range rows {
		if m, ok := marketByKey[k]; ok {
			r.Open = m.Open
			r.High = m.High
			r.Low = m.Low
			r.Close = m.Close
			r.Volume = m.Volume
		}
	}

	out := make([]domain.TrainingRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Day < out[j].Day
	})
	return out
}
