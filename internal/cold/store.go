// Package cold implements the unbounded columnar archive: immutable
// day-partitioned parquet batches on S3-compatible object storage.
package cold

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/metrics"
)

// Dataset kinds. The kind is both the path root and the batch filename
// prefix; the layout is a durable contract read by offline tools.
const (
	KindSentiment = "sentiment-data"
	KindSocial    = "social-data"
	KindMarket    = "market-data"
	KindTraining  = "training-datasets"
)

// Store implements domain.ColdStore.
type Store struct {
	storage ObjectStorage
	clock   clockwork.Clock
}

func NewStore(storage ObjectStorage, clock clockwork.Clock) *Store {
	return &Store{storage: storage, clock: clock}
}

// dayPrefix returns the partition prefix for one calendar day:
// {kind}/year={Y}/month={M:02d}/day={D:02d}/
func dayPrefix(kind string, day time.Time) string {
	return fmt.Sprintf("%s/year=%d/month=%02d/day=%02d/", kind, day.Year(), day.Month(), day.Day())
}

// batchKey returns the batch object key for one calendar day:
// {kind}/year={Y}/month={M:02d}/day={D:02d}/{kind}_{YYYYMMDD}.parquet
func batchKey(kind string, day time.Time) string {
	return dayPrefix(kind, day) + fmt.Sprintf("%s_%s.parquet", kind, day.Format("20060102"))
}

// Archive writes one day's sentiment batch as a compressed parquet
// object. Re-archiving the same day overwrites the prior batch:
// last-write-wins at day granularity, so the sweep lock must serialize
// concurrent archivers. An empty batch is a logged no-op.
func (s *Store) Archive(ctx context.Context, day time.Time, recs []domain.SentimentRecord) error {
	if len(recs) == 0 {
		slog.InfoContext(ctx, "No sentiment records to archive", "day", day.Format("2006-01-02"))
		return nil
	}

	archivedAt := s.clock.Now().UTC()
	rows := make([]sentimentRow, len(recs))
	for i, rec := range recs {
		rows[i] = toSentimentRow(rec, archivedAt)
	}

	return putBatch(ctx, s.storage, KindSentiment, batchKey(KindSentiment, day), rows, nil)
}

// ArchiveSocial writes one day's social engagement batch.
func (s *Store) ArchiveSocial(ctx context.Context, day time.Time, posts []domain.SocialPost) error {
	if len(posts) == 0 {
		return nil
	}
	rows := make([]socialRow, len(posts))
	for i, post := range posts {
		post.Text = truncate(post.Text, maxSocialTextLength)
		rows[i] = toSocialRow(post)
	}
	return putBatch(ctx, s.storage, KindSocial, batchKey(KindSocial, day), rows, nil)
}

// ArchiveMarket writes one day's market data batch.
func (s *Store) ArchiveMarket(ctx context.Context, day time.Time, recs []domain.MarketRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]marketRow, len(recs))
	for i, rec := range recs {
		rows[i] = toMarketRow(rec)
	}
	return putBatch(ctx, s.storage, KindMarket, batchKey(KindMarket, day), rows, nil)
}

const maxSocialTextLength = 500

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so a multi-byte character is never
	// cut in half.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func putBatch[T any](ctx context.Context, storage ObjectStorage, kind, key string, rows []T, extraMeta map[string]string) error {
	data, err := encodeParquet(rows)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		"data-type":    kind,
		"record-count": strconv.Itoa(len(rows)),
		"compression":  "snappy",
	}
	for k, v := range extraMeta {
		metadata[k] = v
	}

	if err := storage.Put(ctx, key, data, metadata); err != nil {
		return err
	}

	metrics.ArchiveObjects.WithLabelValues(kind).Inc()
	metrics.ArchiveBytes.WithLabelValues(kind).Add(float64(len(data)))
	slog.InfoContext(ctx, "Archived batch", "key", key, "records", len(rows), "bytes", len(data))
	return nil
}

// LoadRange concatenates sentiment batches over [start, end], optionally
// filtered by symbol. Days with no objects contribute nothing.
func (s *Store) LoadRange(ctx context.Context, start, end time.Time, symbols []string) ([]domain.SentimentRecord, error) {
	rows, err := loadRangeRows[sentimentRow](ctx, s.storage, KindSentiment, start, end)
	if err != nil {
		return nil, err
	}

	filter := symbolSet(symbols)
	var recs []domain.SentimentRecord
	for _, row := range rows {
		if filter != nil && !filter[row.Symbol] {
			continue
		}
		recs = append(recs, fromSentimentRow(row))
	}
	return recs, nil
}

// LoadSocialRange concatenates social batches over [start, end].
func (s *Store) LoadSocialRange(ctx context.Context, start, end time.Time, symbols []string) ([]domain.SocialPost, error) {
	rows, err := loadRangeRows[socialRow](ctx, s.storage, KindSocial, start, end)
	if err != nil {
		return nil, err
	}

	filter := symbolSet(symbols)
	var posts []domain.SocialPost
	for _, row := range rows {
		if filter != nil && !filter[row.Symbol] {
			continue
		}
		posts = append(posts, fromSocialRow(row))
	}
	return posts, nil
}

// LoadMarketRange concatenates market batches over [start, end].
func (s *Store) LoadMarketRange(ctx context.Context, start, end time.Time, symbols []string) ([]domain.MarketRecord, error) {
	rows, err := loadRangeRows[marketRow](ctx, s.storage, KindMarket, start, end)
	if err != nil {
		return nil, err
	}

	filter := symbolSet(symbols)
	var recs []domain.MarketRecord
	for _, row := range rows {
		if filter != nil && !filter[row.Symbol] {
			continue
		}
		recs = append(recs, fromMarketRow(row))
	}
	return recs, nil
}

func loadRangeRows[T any](ctx context.Context, storage ObjectStorage, kind string, start, end time.Time) ([]T, error) {
	var all []T
	for day := startOfDay(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		infos, err := storage.List(ctx, dayPrefix(kind, day))
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			data, err := storage.Get(ctx, info.Key)
			if err != nil {
				return nil, err
			}
			rows, err := decodeParquet[T](data)
			if err != nil {
				return nil, fmt.Errorf("corrupt batch %s: %w", info.Key, err)
			}
			all = append(all, rows...)
		}
	}
	return all, nil
}

func symbolSet(symbols []string) map[string]bool {
	if len(symbols) == 0 {
		return nil
	}
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s] = true
	}
	return set
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ListArchived enumerates batches of one kind over the trailing window.
// Read-only, side-effect-free.
func (s *Store) ListArchived(ctx context.Context, kind string, daysBack int) ([]domain.ArchivedObject, error) {
	end := s.clock.Now().UTC()
	start := end.AddDate(0, 0, -daysBack)

	// Training datasets live under a flat prefix, not day partitions.
	// Window them by upload time instead of walking partition days.
	if kind == KindTraining {
		return s.listFlat(ctx, kind, start)
	}

	var archived []domain.ArchivedObject
	for day := startOfDay(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		infos, err := s.storage.List(ctx, dayPrefix(kind, day))
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			archived = append(archived, domain.ArchivedObject{
				Key:          info.Key,
				Size:         info.Size,
				LastModified: info.LastModified,
				Day:          day.Format("2006-01-02"),
			})
		}
	}
	return archived, nil
}

func (s *Store) listFlat(ctx context.Context, kind string, since time.Time) ([]domain.ArchivedObject, error) {
	infos, err := s.storage.List(ctx, kind+"/")
	if err != nil {
		return nil, err
	}

	var archived []domain.ArchivedObject
	for _, info := range infos {
		if info.LastModified.Before(since) {
			continue
		}
		archived = append(archived, domain.ArchivedObject{
			Key:          info.Key,
			Size:         info.Size,
			LastModified: info.LastModified,
			Day:          info.LastModified.UTC().Format("2006-01-02"),
		})
	}
	return archived, nil
}

// GetStorageStats aggregates size, count, kind breakdown, and the
// oldest/newest object timestamps across the whole archive.
func (s *Store) GetStorageStats(ctx context.Context) (domain.StorageStats, error) {
	infos, err := s.storage.List(ctx, "")
	if err != nil {
		return domain.StorageStats{}, err
	}

	stats := domain.StorageStats{ByKind: make(map[string]domain.KindStats)}
	for _, info := range infos {
		stats.TotalObjects++
		stats.TotalBytes += info.Size

		kind, _, _ := strings.Cut(info.Key, "/")
		ks := stats.ByKind[kind]
		ks.Count++
		ks.Bytes += info.Size
		stats.ByKind[kind] = ks

		if stats.Oldest.IsZero() || info.LastModified.Before(stats.Oldest) {
			stats.Oldest = info.LastModified
		}
		if info.LastModified.After(stats.Newest) {
			stats.Newest = info.LastModified
		}
	}
	stats.TotalMB = float64(stats.TotalBytes) / (1024 * 1024)

	return stats, nil
}

// CleanupOlderThan deletes every object whose last-modified time
// precedes the cutoff. Irreversible; partially completed deletions are
// acceptable since an idempotent re-run removes the remainder.
func (s *Store) CleanupOlderThan(ctx context.Context, daysToKeep int) (int, error) {
	cutoff := s.clock.Now().UTC().AddDate(0, 0, -daysToKeep)

	infos, err := s.storage.List(ctx, "")
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, info := range infos {
		if !info.LastModified.Before(cutoff) {
			continue
		}
		if err := s.storage.Remove(ctx, info.Key); err != nil {
			return deleted, fmt.Errorf("cleanup stopped after %d deletions: %w", deleted, err)
		}
		deleted++
	}

	slog.InfoContext(ctx, "Cleaned up aged archives", "deleted", deleted, "cutoff", cutoff.Format("2006-01-02"))
	return deleted, nil
}
