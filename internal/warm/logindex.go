package warm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
)

const (
	sentimentLogIndex = "sentiment-logs"
	marketEventIndex  = "market-events"

	// maxTextLength bounds indexed free text. Longer source_text and
	// key_factors are truncated before indexing.
	maxTextLength = 1000

	// searchPageSize caps pattern-search results per query.
	searchPageSize = 100

	// exportPageSize bounds the rows read back per sweep for archival.
	// The sweep cadence keeps the aged backlog below this.
	exportPageSize = 10000
)

var indexMappings = map[string]string{
	sentimentLogIndex: `{
		"mappings": {
			"properties": {
				"symbol":          {"type": "keyword"},
				"timestamp":       {"type": "date"},
				"sentiment_score": {"type": "float"},
				"sentiment_label": {"type": "keyword"},
				"source_text":     {"type": "text", "analyzer": "standard"},
				"source_type":     {"type": "keyword"},
				"confidence":      {"type": "float"},
				"key_factors":     {"type": "text"}
			}
		}
	}`,
	marketEventIndex: `{
		"mappings": {
			"properties": {
				"symbol":       {"type": "keyword"},
				"timestamp":    {"type": "date"},
				"event_type":   {"type": "keyword"},
				"description":  {"type": "text"},
				"impact_score": {"type": "float"}
			}
		}
	}`,
}

// LogIndex stores sentiment log documents in OpenSearch for full-text
// pattern search and label aggregation.
type LogIndex struct {
	client *opensearch.Client
}

// NewLogIndex creates the OpenSearch-backed log index.
func NewLogIndex(url, username, password string) (*LogIndex, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}
	return &LogIndex{client: client}, nil
}

// EnsureIndices creates the sentiment log and market event indices.
// Idempotent: an index that already exists is a no-op, not an error.
func (l *LogIndex) EnsureIndices(ctx context.Context) error {
	for name, mapping := range indexMappings {
		exists, err := l.indexExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		req := opensearchapi.IndicesCreateRequest{Index: name, Body: strings.NewReader(mapping)}
		res, err := req.Do(ctx, l.client)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
		res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("failed to create index %s: %s", name, res.Status())
		}
	}
	return nil
}

func (l *LogIndex) indexExists(ctx context.Context, name string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{name}}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", name, err)
	}
	res.Body.Close()
	return res.StatusCode == 200, nil
}

type logDoc struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Score      float64   `json:"sentiment_score"`
	Label      string    `json:"sentiment_label"`
	SourceText string    `json:"source_text"`
	SourceType string    `json:"source_type"`
	Confidence float64   `json:"confidence"`
	KeyFactors string    `json:"key_factors"`
}

// Store indexes one record as a searchable document. Free-text fields
// are truncated to the index limit first.
func (l *LogIndex) Store(ctx context.Context, rec domain.SentimentRecord) error {
	doc := logDoc{
		Symbol:     rec.Symbol,
		Timestamp:  rec.Timestamp.UTC(),
		Score:      rec.Score,
		Label:      string(rec.Label),
		SourceText: truncate(rec.SourceText, maxTextLength),
		SourceType: rec.SourceType,
		Confidence: rec.Confidence,
		KeyFactors: truncate(strings.Join(rec.KeyFactors, " "), maxTextLength),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode log document: %w", err)
	}

	req := opensearchapi.IndexRequest{Index: sentimentLogIndex, Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return fmt.Errorf("failed to index log document: %w", err)
	}
	res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to index log document: %s", res.Status())
	}
	return nil
}

type searchHit struct {
	Source logDoc `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		SentimentDistribution struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"sentiment_distribution"`
		AvgConfidence struct {
			Value *float64 `json:"value"`
		} `json:"avg_confidence"`
	} `json:"aggregations"`
}

// Search full-text matches source_text for one symbol in the lookback
// window, newest first, capped at the page size.
func (l *LogIndex) Search(ctx context.Context, symbol, queryText string, days int) ([]domain.LogDocument, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"symbol": symbol}},
					map[string]interface{}{"match": map[string]interface{}{"source_text": queryText}},
					map[string]interface{}{"range": map[string]interface{}{
						"timestamp": map[string]interface{}{"gte": fmt.Sprintf("now-%dd", days)},
					}},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"timestamp": map[string]interface{}{"order": "desc"}},
		},
		"size": searchPageSize,
	}

	resp, err := l.search(ctx, query)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.LogDocument, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		docs = append(docs, toDomainDocument(hit.Source))
	}
	return docs, nil
}

// Distribution aggregates label counts plus mean confidence over the
// window. A window with zero documents yields an empty distribution;
// percentages are never computed against a zero total.
func (l *LogIndex) Distribution(ctx context.Context, symbol string, days int) (domain.Distribution, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"symbol": symbol}},
					map[string]interface{}{"range": map[string]interface{}{
						"timestamp": map[string]interface{}{"gte": fmt.Sprintf("now-%dd", days)},
					}},
				},
			},
		},
		"aggs": map[string]interface{}{
			"sentiment_distribution": map[string]interface{}{
				"terms": map[string]interface{}{"field": "sentiment_label", "size": 10},
			},
			"avg_confidence": map[string]interface{}{
				"avg": map[string]interface{}{"field": "confidence"},
			},
		},
		"size": 0,
	}

	resp, err := l.search(ctx, query)
	if err != nil {
		return domain.Distribution{}, err
	}

	dist := domain.Distribution{Labels: make(map[domain.Label]domain.LabelShare)}

	var total int64
	for _, bucket := range resp.Aggregations.SentimentDistribution.Buckets {
		total += bucket.DocCount
	}
	if total == 0 {
		return dist, nil
	}

	for _, bucket := range resp.Aggregations.SentimentDistribution.Buckets {
		dist.Labels[domain.Label(bucket.Key)] = domain.LabelShare{
			Count:      bucket.DocCount,
			Percentage: float64(bucket.DocCount) / float64(total) * 100,
		}
	}
	if resp.Aggregations.AvgConfidence.Value != nil {
		dist.AvgConfidence = *resp.Aggregations.AvgConfidence.Value
	}

	return dist, nil
}

// SelectOlderThan reads documents past the retention cutoff for
// archival, oldest first.
func (l *LogIndex) SelectOlderThan(ctx context.Context, cutoff time.Time) ([]domain.SentimentRecord, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{"lt": cutoff.UTC().Format(time.RFC3339)},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"timestamp": map[string]interface{}{"order": "asc"}},
		},
		"size": exportPageSize,
	}

	resp, err := l.search(ctx, query)
	if err != nil {
		return nil, err
	}

	recs := make([]domain.SentimentRecord, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		recs = append(recs, toDomainRecord(hit.Source))
	}
	return recs, nil
}

// DeleteOlderThan removes documents past the cutoff. Only called after
// confirmed archival.
func (l *LogIndex) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{"lt": cutoff.UTC().Format(time.RFC3339)},
			},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to encode delete query: %w", err)
	}

	req := opensearchapi.DeleteByQueryRequest{Index: []string{sentimentLogIndex}, Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return fmt.Errorf("failed to delete aged log documents: %w", err)
	}
	res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to delete aged log documents: %s", res.Status())
	}
	return nil
}

func (l *LogIndex) search(ctx context.Context, query map[string]interface{}) (*searchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	req := opensearchapi.SearchRequest{Index: []string{sentimentLogIndex}, Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search request failed: %s", res.Status())
	}

	var resp searchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &resp, nil
}

func toDomainDocument(doc logDoc) domain.LogDocument {
	return domain.LogDocument{
		Symbol:     doc.Symbol,
		Timestamp:  doc.Timestamp,
		Score:      doc.Score,
		Label:      domain.Label(doc.Label),
		SourceText: doc.SourceText,
		SourceType: doc.SourceType,
		Confidence: doc.Confidence,
		KeyFactors: doc.KeyFactors,
	}
}

func toDomainRecord(doc logDoc) domain.SentimentRecord {
	var factors []string
	if doc.KeyFactors != "" {
		factors = strings.Fields(doc.KeyFactors)
	}
	return domain.SentimentRecord{
		Symbol:     doc.Symbol,
		Score:      doc.Score,
		Label:      domain.Label(doc.Label),
		Confidence: doc.Confidence,
		Timestamp:  doc.Timestamp,
		SourceText: doc.SourceText,
		SourceType: doc.SourceType,
		KeyFactors: factors,
	}
}

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
