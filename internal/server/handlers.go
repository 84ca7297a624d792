package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
	apperrors "github.com/weg-9000/Stock-Sentiment-Agent/internal/errors"
)

const publishTimeout = 10 * time.Second

type ingestRequest struct {
	Symbol     string   `json:"symbol"`
	Score      float64  `json:"score"`
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Timestamp  string   `json:"timestamp"`
	SourceText string   `json:"source_text"`
	SourceType string   `json:"source_type"`
	KeyFactors []string `json:"key_factors"`
}

func (s *Server) handleIngest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return apperrors.ValidationError("timestamp must be RFC3339").WithField("timestamp", req.Timestamp)
		}
		ts = parsed
	}

	rec := domain.SentimentRecord{
		Symbol:     strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Score:      req.Score,
		Label:      domain.Label(req.Label),
		Confidence: req.Confidence,
		Timestamp:  ts,
		SourceText: req.SourceText,
		SourceType: req.SourceType,
		KeyFactors: req.KeyFactors,
	}

	if err := s.app.Ingest(c.Request().Context(), rec); err != nil {
		return err
	}

	// The bus notification is the caller's duty, not the store's, and
	// its failure must not fail an already-durable write.
	if s.publisher != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), publishTimeout)
			defer cancel()
			if err := s.publisher.PublishSentiment(ctx, rec); err != nil {
				slog.WarnContext(ctx, "Downstream publish failed", "symbol", rec.Symbol, "error", err)
			}
		}()
	}

	return c.JSON(http.StatusCreated, map[string]string{"status": "ok", "symbol": rec.Symbol})
}

func (s *Server) handleGetLatest(c echo.Context) error {
	symbol := c.Param("symbol")
	withFallback := c.QueryParam("fallback") == "warm"

	latest, err := s.app.GetLatest(c.Request().Context(), symbol, withFallback)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"symbol":     symbol,
		"score":      latest.Score,
		"label":      latest.Label,
		"confidence": latest.Confidence,
	})
}

func (s *Server) handleGetTrend(c echo.Context) error {
	symbol := c.Param("symbol")

	var window time.Duration
	if raw := c.QueryParam("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return apperrors.ValidationError("window must be a duration such as 48h").WithField("window", raw)
		}
		window = parsed
	}

	points, err := s.app.GetTrend(c.Request().Context(), symbol, window)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"symbol": symbol, "points": points})
}

func (s *Server) handleCompareSymbols(c echo.Context) error {
	raw := c.QueryParam("symbols")
	if raw == "" {
		return apperrors.ValidationError("symbols query parameter required")
	}
	symbols := strings.Split(raw, ",")
	for i := range symbols {
		symbols[i] = strings.ToUpper(strings.TrimSpace(symbols[i]))
	}

	days, err := intQueryParam(c, "days", 0)
	if err != nil {
		return err
	}

	means, err := s.app.CompareSymbols(c.Request().Context(), symbols, days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"days": days, "scores": means})
}

func (s *Server) handleSearchPatterns(c echo.Context) error {
	symbol := c.Param("symbol")
	query := c.QueryParam("q")

	days, err := intQueryParam(c, "days", 0)
	if err != nil {
		return err
	}

	docs, err := s.app.SearchPatterns(c.Request().Context(), symbol, query, days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"symbol": symbol, "results": docs, "count": len(docs)})
}

func (s *Server) handleGetDistribution(c echo.Context) error {
	symbol := c.Param("symbol")

	days, err := intQueryParam(c, "days", 0)
	if err != nil {
		return err
	}

	dist, err := s.app.GetDistribution(c.Request().Context(), symbol, days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"symbol":         symbol,
		"distribution":   dist.Labels,
		"avg_confidence": dist.AvgConfidence,
	})
}

type datasetRequest struct {
	Symbols  []string `json:"symbols"`
	DaysBack int      `json:"days_back"`
}

func (s *Server) handleBuildDataset(c echo.Context) error {
	var req datasetRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}
	for i := range req.Symbols {
		req.Symbols[i] = strings.ToUpper(strings.TrimSpace(req.Symbols[i]))
	}

	key, err := s.app.BuildTrainingDataset(c.Request().Context(), req.Symbols, req.DaysBack)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"dataset_key": key})
}

func (s *Server) handleRunSweep(c echo.Context) error {
	report, err := s.app.RunLifecycleSweep(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"skipped":       report.Skipped,
		"hot_migrated":  report.HotMigrated,
		"warm_archived": report.WarmArchived,
		"archived_days": report.ArchivedDays,
		"duration_ms":   report.Duration.Milliseconds(),
	})
}

type cleanupRequest struct {
	DaysToKeep int `json:"days_to_keep"`
}

func (s *Server) handleCleanup(c echo.Context) error {
	var req cleanupRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}

	deleted, err := s.app.Cleanup(c.Request().Context(), req.DaysToKeep)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted_objects": deleted})
}

func (s *Server) handleStorageStats(c echo.Context) error {
	stats, err := s.app.GetStorageStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleListArchived(c echo.Context) error {
	kind := c.QueryParam("kind")
	if kind == "" {
		return apperrors.ValidationError("kind query parameter required")
	}

	days, err := intQueryParam(c, "days", 0)
	if err != nil {
		return err
	}

	objects, err := s.app.ListArchived(c.Request().Context(), kind, days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"kind": kind, "objects": objects, "count": len(objects)})
}

func (s *Server) handleResolveTool(c echo.Context) error {
	if s.tools == nil {
		return domain.ErrNotFound
	}
	ep, err := s.tools.Resolve(c.Param("server"), c.Param("tool"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"server": ep.Server,
		"tool":   ep.Tool,
		"url":    ep.URL.String(),
	})
}

func intQueryParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.ValidationError(name + " must be an integer").WithField(name, raw)
	}
	return value, nil
}
