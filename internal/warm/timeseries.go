package warm

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
)

const sentimentMeasurement = "sentiment"

// Timeseries stores tagged numeric sentiment points in InfluxDB.
// Tags (symbol, label) are queryable dimensions; fields are payload.
type Timeseries struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	query  api.QueryAPI
	delete api.DeleteAPI
	org    string
	bucket string
}

// NewTimeseries creates the InfluxDB-backed timeseries store.
// The measurement is created implicitly on first write; InfluxDB makes
// setup idempotent by construction.
func NewTimeseries(url, token, org, bucket string) *Timeseries {
	client := influxdb2.NewClient(url, token)
	return &Timeseries{
		client: client,
		write:  client.WriteAPIBlocking(org, bucket),
		query:  client.QueryAPI(org),
		delete: client.DeleteAPI(),
		org:    org,
		bucket: bucket,
	}
}

// Close releases the underlying HTTP client.
func (t *Timeseries) Close() {
	t.client.Close()
}

// Store appends one tagged point. Volume and price are optional fields
// carried when the collector provides them.
func (t *Timeseries) Store(ctx context.Context, rec domain.SentimentRecord, volume *int64, price *float64) error {
	fields := map[string]interface{}{
		"score":      rec.Score,
		"confidence": rec.Confidence,
	}
	if volume != nil {
		fields["volume"] = *volume
	}
	if price != nil {
		fields["price"] = *price
	}

	point := influxdb2.NewPoint(sentimentMeasurement,
		map[string]string{
			"symbol": rec.Symbol,
			"label":  string(rec.Label),
		},
		fields,
		rec.Timestamp,
	)

	if err := t.write.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write sentiment point: %w", err)
	}
	return nil
}

// Trend computes tumbling-window mean scores over the lookback,
// ascending by time. Default bucket size is one hour. An empty window
// yields an empty slice, not an error.
func (t *Timeseries) Trend(ctx context.Context, symbol string, window, bucket time.Duration) ([]domain.TrendPoint, error) {
	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%ds)
  |> filter(fn: (r) => r["_measurement"] == %q)
  |> filter(fn: (r) => r["symbol"] == %q)
  |> filter(fn: (r) => r["_field"] == "score")
  |> aggregateWindow(every: %ds, fn: mean, createEmpty: false, timeSrc: "_start")
  |> sort(columns: ["_time"])`,
		t.bucket, int(window.Seconds()), sentimentMeasurement, symbol, int(bucket.Seconds()))

	result, err := t.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("trend query failed: %w", err)
	}

	var points []domain.TrendPoint
	for result.Next() {
		value, ok := result.Record().Value().(float64)
		if !ok {
			continue
		}
		points = append(points, domain.TrendPoint{Time: result.Record().Time(), Score: value})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("trend query iteration failed: %w", err)
	}

	return points, nil
}

// Compare groups scores by symbol over the window and returns the
// arithmetic mean per symbol. Symbols with no data are omitted.
func (t *Timeseries) Compare(ctx context.Context, symbols []string, days int) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	filters := make([]string, len(symbols))
	for i, s := range symbols {
		filters[i] = fmt.Sprintf(`r["symbol"] == %q`, s)
	}

	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dd)
  |> filter(fn: (r) => r["_measurement"] == %q)
  |> filter(fn: (r) => %s)
  |> filter(fn: (r) => r["_field"] == "score")
  |> group(columns: ["symbol"])
  |> mean()`,
		t.bucket, days, sentimentMeasurement, strings.Join(filters, " or "))

	result, err := t.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("comparison query failed: %w", err)
	}

	comparison := make(map[string]float64)
	for result.Next() {
		symbol, _ := result.Record().ValueByKey("symbol").(string)
		value, ok := result.Record().Value().(float64)
		if symbol == "" || !ok {
			continue
		}
		comparison[symbol] = value
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("comparison query iteration failed: %w", err)
	}

	return comparison, nil
}

// Latest returns the most recent point for symbol, for the explicit
// historical fallback of point lookups.
func (t *Timeseries) Latest(ctx context.Context, symbol string) (domain.LatestSentiment, error) {
	flux := fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -30d)
  |> filter(fn: (r) => r["_measurement"] == %q)
  |> filter(fn: (r) => r["symbol"] == %q)
  |> filter(fn: (r) => r["_field"] == "score" or r["_field"] == "confidence")
  |> last()`,
		t.bucket, sentimentMeasurement, symbol)

	result, err := t.query.Query(ctx, flux)
	if err != nil {
		return domain.LatestSentiment{}, fmt.Errorf("latest point query failed: %w", err)
	}

	var latest domain.LatestSentiment
	found := false
	for result.Next() {
		rec := result.Record()
		value, ok := rec.Value().(float64)
		if !ok {
			continue
		}
		switch rec.Field() {
		case "score":
			latest.Score = value
			if label, ok := rec.ValueByKey("label").(string); ok {
				latest.Label = domain.Label(label)
			}
			found = true
		case "confidence":
			latest.Confidence = value
		}
	}
	if err := result.Err(); err != nil {
		return domain.LatestSentiment{}, fmt.Errorf("latest point iteration failed: %w", err)
	}
	if !found {
		return domain.LatestSentiment{}, domain.ErrNotFound
	}

	return latest, nil
}

// DeleteOlderThan drops all sentiment points before cutoff. Only called
// by the lifecycle sweep after confirmed archival.
func (t *Timeseries) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	predicate := fmt.Sprintf(`_measurement=%q`, sentimentMeasurement)
	if err := t.delete.DeleteWithName(ctx, t.org, t.bucket, time.Unix(0, 0), cutoff, predicate); err != nil {
		return fmt.Errorf("failed to delete aged sentiment points: %w", err)
	}
	return nil
}
