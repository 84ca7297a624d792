package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/config"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/registry"
)

type mockAppService struct {
	mu sync.Mutex

	ingested  []domain.SentimentRecord
	ingestErr error

	latest       domain.LatestSentiment
	latestErr    error
	fallbackUsed bool

	trend    []domain.TrendPoint
	trendErr error

	means map[string]float64

	docs []domain.LogDocument
	dist domain.Distribution

	datasetKey string

	report   domain.SweepReport
	sweepErr error

	cleaned int
	stats   domain.StorageStats
}

func (m *mockAppService) Ingest(_ context.Context, rec domain.SentimentRecord) error {
	if m.ingestErr != nil {
		return m.ingestErr
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.ingested = append(m.ingested, rec)
	m.mu.Unlock()
	return nil
}

func (m *mockAppService) GetLatest(_ context.Context, _ string, withFallback bool) (domain.LatestSentiment, error) {
	m.fallbackUsed = withFallback
	return m.latest, m.latestErr
}

func (m *mockAppService) GetTrend(_ context.Context, _ string, _ time.Duration) ([]domain.TrendPoint, error) {
	return m.trend, m.trendErr
}

func (m *mockAppService) CompareSymbols(_ context.Context, symbols []string, _ int) (map[string]float64, error) {
	for _, symbol := range symbols {
		if err := domain.ValidateSymbol(symbol); err != nil {
			return nil, err
		}
	}
	return m.means, nil
}

func (m *mockAppService) SearchPatterns(_ context.Context, _, query string, _ int) ([]domain.LogDocument, error) {
	if query == "" {
		return nil, &domain.ValidationError{Field: "query", Reason: "search text required"}
	}
	return m.docs, nil
}

func (m *mockAppService) GetDistribution(_ context.Context, _ string, _ int) (domain.Distribution, error) {
	return m.dist, nil
}

func (m *mockAppService) BuildTrainingDataset(_ context.Context, _ []string, _ int) (string, error) {
	return m.datasetKey, nil
}

func (m *mockAppService) RunLifecycleSweep(_ context.Context) (domain.SweepReport, error) {
	return m.report, m.sweepErr
}

func (m *mockAppService) Cleanup(_ context.Context, _ int) (int, error) {
	return m.cleaned, nil
}

func (m *mockAppService) GetStorageStats(_ context.Context) (domain.StorageStats, error) {
	return m.stats, nil
}

func (m *mockAppService) ListArchived(_ context.Context, _ string, _ int) ([]domain.ArchivedObject, error) {
	return nil, nil
}

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.SentimentRecord
}

func (m *mockPublisher) PublishSentiment(_ context.Context, rec domain.SentimentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, rec)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(_ context.Context) error { return p.err }

func newTestServer(app *mockAppService, pub domain.Publisher) *Server {
	cfg := &config.Config{Port: "8080"}
	tools := registry.NewStatic()
	_ = tools.Register("scoring", "analyze_sentiment", "http://scoring:8010/tools/analyze_sentiment")
	return NewServer(cfg, app, pub, tools, map[string]Pinger{"postgres": stubPinger{}, "redis": stubPinger{}})
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echoHeaderContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func TestHandleIngest_Created(t *testing.T) {
	app := &mockAppService{}
	srv := newTestServer(app, nil)

	body := `{"symbol":"aapl","score":0.7,"label":"positive","confidence":0.9,"source_text":"strong guidance","source_type":"news"}`
	rec := doRequest(srv, http.MethodPost, "/api/sentiment", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, app.ingested, 1)
	assert.Equal(t, "AAPL", app.ingested[0].Symbol, "symbol normalized to uppercase")
	assert.False(t, app.ingested[0].Timestamp.IsZero(), "missing timestamp defaults to now")
}

func TestHandleIngest_ValidationMapsTo400(t *testing.T) {
	srv := newTestServer(&mockAppService{}, nil)

	body := `{"symbol":"AAPL","score":1.5,"label":"positive","confidence":0.9}`
	rec := doRequest(srv, http.MethodPost, "/api/sentiment", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation", resp["type"])
}

func TestHandleIngest_BadTimestamp(t *testing.T) {
	srv := newTestServer(&mockAppService{}, nil)

	body := `{"symbol":"AAPL","score":0.5,"label":"positive","confidence":0.9,"timestamp":"yesterday"}`
	rec := doRequest(srv, http.MethodPost, "/api/sentiment", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest_PublishesDownstream(t *testing.T) {
	app := &mockAppService{}
	pub := &mockPublisher{}
	srv := newTestServer(app, pub)

	body := `{"symbol":"AAPL","score":0.7,"label":"positive","confidence":0.9}`
	rec := doRequest(srv, http.MethodPost, "/api/sentiment", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Eventually(t, func() bool { return pub.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandleIngest_UnavailableMapsTo503(t *testing.T) {
	app := &mockAppService{ingestErr: errors.Join(domain.ErrBackendUnavailable, errors.New("connection refused"))}
	srv := newTestServer(app, nil)

	body := `{"symbol":"AAPL","score":0.7,"label":"positive","confidence":0.9}`
	rec := doRequest(srv, http.MethodPost, "/api/sentiment", body)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGetLatest(t *testing.T) {
	app := &mockAppService{latest: domain.LatestSentiment{Score: 0.8, Label: domain.LabelPositive, Confidence: 0.95}}
	srv := newTestServer(app, nil)

	rec := doRequest(srv, http.MethodGet, "/api/sentiment/AAPL/latest", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, app.fallbackUsed)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.8, resp["score"])
}

func TestHandleGetLatest_FallbackOptIn(t *testing.T) {
	app := &mockAppService{}
	srv := newTestServer(app, nil)

	doRequest(srv, http.MethodGet, "/api/sentiment/AAPL/latest?fallback=warm", "")
	assert.True(t, app.fallbackUsed)
}

func TestHandleGetLatest_NotFoundMapsTo404(t *testing.T) {
	app := &mockAppService{latestErr: domain.ErrNotFound}
	srv := newTestServer(app, nil)

	rec := doRequest(srv, http.MethodGet, "/api/sentiment/AAPL/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetTrend_BadWindow(t *testing.T) {
	srv := newTestServer(&mockAppService{}, nil)

	rec := doRequest(srv, http.MethodGet, "/api/sentiment/AAPL/trend?window=lately", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompareSymbols(t *testing.T) {
	app := &mockAppService{means: map[string]float64{"AAPL": 0.4, "MSFT": -0.1}}
	srv := newTestServer(app, nil)

	rec := doRequest(srv, http.MethodGet, "/api/sentiment/compare?symbols=aapl,%20msft&days=7", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Scores map[string]float64 `json:"scores"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Scores, 2)
}

func TestHandleCompareSymbols_MissingParam(t *testing.T) {
	srv := newTestServer(&mockAppService{}, nil)

	rec := doRequest(srv, http.MethodGet, "/api/sentiment/compare", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearch_RequiresQuery(t *testing.T) {
	srv := newTestServer(&mockAppService{}, nil)

	rec := doRequest(srv, http.MethodGet, "/api/sentiment/AAPL/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRunSweep(t *testing.T) {
	app := &mockAppService{report: domain.SweepReport{HotMigrated: 12, WarmArchived: 4, ArchivedDays: []string{"2024-02-12"}}}
	srv := newTestServer(app, nil)

	rec := doRequest(srv, http.MethodPost, "/api/lifecycle/sweep", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(12), resp["hot_migrated"])
}

func TestHandleRunSweep_ConflictMapsTo409(t *testing.T) {
	app := &mockAppService{sweepErr: domain.ErrMigrationConflict}
	srv := newTestServer(app, nil)

	rec := doRequest(srv, http.MethodPost, "/api/lifecycle/sweep", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleBuildDataset(t *testing.T) {
	app := &mockAppService{datasetKey: "training-datasets/training_dataset_20240315_120000.parquet"}
	srv := newTestServer(app, nil)

	rec := doRequest(srv, http.MethodPost, "/api/datasets", `{"symbols":["AAPL"],"days_back":90}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "training_dataset_20240315_120000")
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(&mockAppService{}, nil)

	rec := doRequest(srv, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness_FailingBackend(t *testing.T) {
	cfg := &config.Config{Port: "8080"}
	srv := NewServer(cfg, &mockAppService{}, nil, nil, map[string]Pinger{
		"postgres": stubPinger{err: errors.New("dial tcp refused")},
	})

	rec := doRequest(srv, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres")
}

func TestResolveTool(t *testing.T) {
	srv := newTestServer(&mockAppService{}, nil)

	rec := doRequest(srv, http.MethodGet, "/api/tools/scoring/analyze_sentiment", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "scoring", body["server"])
	assert.Equal(t, "http://scoring:8010/tools/analyze_sentiment", body["url"])

	rec = doRequest(srv, http.MethodGet, "/api/tools/scoring/unknown_tool", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
