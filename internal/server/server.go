// Package server exposes the store's API over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/config"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
	apperrors "github.com/weg-9000/Stock-Sentiment-Agent/internal/errors"
	"github.com/weg-9000/Stock-Sentiment-Agent/internal/registry"
)

// appService is the application surface the HTTP layer drives.
type appService interface {
	Ingest(ctx context.Context, rec domain.SentimentRecord) error
	GetLatest(ctx context.Context, symbol string, withFallback bool) (domain.LatestSentiment, error)
	GetTrend(ctx context.Context, symbol string, window time.Duration) ([]domain.TrendPoint, error)
	CompareSymbols(ctx context.Context, symbols []string, days int) (map[string]float64, error)
	SearchPatterns(ctx context.Context, symbol, query string, days int) ([]domain.LogDocument, error)
	GetDistribution(ctx context.Context, symbol string, days int) (domain.Distribution, error)
	BuildTrainingDataset(ctx context.Context, symbols []string, daysBack int) (string, error)
	RunLifecycleSweep(ctx context.Context) (domain.SweepReport, error)
	Cleanup(ctx context.Context, daysToKeep int) (int, error)
	GetStorageStats(ctx context.Context) (domain.StorageStats, error)
	ListArchived(ctx context.Context, kind string, daysBack int) ([]domain.ArchivedObject, error)
}


// Pinger is the minimal health-check surface of a backend connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       appService
	publisher domain.Publisher
	tools     registry.Registry
	hotChecks map[string]Pinger
	startTime time.Time
}

// NewServer builds the HTTP server. publisher and tools may be nil
// when no downstream bus or collaborator registry is configured.
func NewServer(cfg *config.Config, app appService, publisher domain.Publisher, tools registry.Registry, hotChecks map[string]Pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       app,
		publisher: publisher,
		tools:     tools,
		hotChecks: hotChecks,
		startTime: time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
