package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/metrics"
)

// SentimentRepo stores and reads sentiment rows in the hot durable store.
type SentimentRepo struct {
	pool *pgxpool.Pool
}

func NewSentimentRepo(pool *pgxpool.Pool) *SentimentRepo {
	return &SentimentRepo{pool: pool}
}

// Insert appends a record. Rows are immutable once written.
func (r *SentimentRepo) Insert(ctx context.Context, rec domain.SentimentRecord) error {
	timer := time.Now()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sentiment (symbol, score, label, confidence, source_text, source_type, key_factors, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.Symbol, rec.Score, string(rec.Label), rec.Confidence,
		rec.SourceText, rec.SourceType, strings.Join(rec.KeyFactors, " "), rec.Timestamp)
	metrics.HotOpDuration.WithLabelValues("insert").Observe(time.Since(timer).Seconds())
	if err != nil {
		return fmt.Errorf("failed to insert sentiment row: %w", err)
	}
	return nil
}

// Latest returns the most recent projection for symbol.
func (r *SentimentRepo) Latest(ctx context.Context, symbol string) (domain.LatestSentiment, error) {
	timer := time.Now()
	row := r.pool.QueryRow(ctx,
		`SELECT score, label, confidence FROM sentiment
		 WHERE symbol = $1 ORDER BY ts DESC LIMIT 1`, symbol)

	var latest domain.LatestSentiment
	var label string
	err := row.Scan(&latest.Score, &label, &latest.Confidence)
	metrics.HotOpDuration.WithLabelValues("latest").Observe(time.Since(timer).Seconds())
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LatestSentiment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LatestSentiment{}, fmt.Errorf("failed to query latest sentiment: %w", err)
	}
	latest.Label = domain.Label(label)
	return latest, nil
}

// Recent returns rows for symbol newer than since, ascending by time.
func (r *SentimentRepo) Recent(ctx context.Context, symbol string, since time.Time) ([]domain.SentimentRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT symbol, score, label, confidence, source_text, source_type, key_factors, ts
		 FROM sentiment WHERE symbol = $1 AND ts > $2 ORDER BY ts ASC`, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sentiment: %w", err)
	}
	defer rows.Close()

	var recs []domain.SentimentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recent sentiment: %w", err)
	}
	return recs, nil
}

// SelectOlderThan pages rows past the retention cutoff, ordered by id so
// repeated sweeps walk the table deterministically.
func (r *SentimentRepo) SelectOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.StoredRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, symbol, score, label, confidence, source_text, source_type, key_factors, ts
		 FROM sentiment WHERE ts < $1 ORDER BY id ASC LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select aged sentiment rows: %w", err)
	}
	defer rows.Close()

	var recs []domain.StoredRecord
	for rows.Next() {
		var stored domain.StoredRecord
		var label, keyFactors string
		if err := rows.Scan(&stored.ID, &stored.Symbol, &stored.Score, &label, &stored.Confidence,
			&stored.SourceText, &stored.SourceType, &keyFactors, &stored.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan aged sentiment row: %w", err)
		}
		stored.Label = domain.Label(label)
		stored.KeyFactors = splitFactors(keyFactors)
		recs = append(recs, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aged sentiment rows: %w", err)
	}
	return recs, nil
}

// DeleteByIDs removes rows whose records are confirmed in the warm tier.
func (r *SentimentRepo) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM sentiment WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("failed to delete migrated sentiment rows: %w", err)
	}
	return nil
}

func scanRecord(rows pgx.Rows) (domain.SentimentRecord, error) {
	var rec domain.SentimentRecord
	var label, keyFactors string
	if err := rows.Scan(&rec.Symbol, &rec.Score, &label, &rec.Confidence,
		&rec.SourceText, &rec.SourceType, &keyFactors, &rec.Timestamp); err != nil {
		return domain.SentimentRecord{}, fmt.Errorf("failed to scan sentiment row: %w", err)
	}
	rec.Label = domain.Label(label)
	rec.KeyFactors = splitFactors(keyFactors)
	return rec, nil
}

func splitFactors(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
