package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Ingestion and tier-routed reads
	s.echo.POST("/api/sentiment", s.handleIngest)
	s.echo.GET("/api/sentiment/compare", s.handleCompareSymbols)
	s.echo.GET("/api/sentiment/:symbol/latest", s.handleGetLatest)
	s.echo.GET("/api/sentiment/:symbol/trend", s.handleGetTrend)
	s.echo.GET("/api/sentiment/:symbol/search", s.handleSearchPatterns)
	s.echo.GET("/api/sentiment/:symbol/distribution", s.handleGetDistribution)

	// Collaborator tool discovery
	s.echo.GET("/api/tools/:server/:tool", s.handleResolveTool)

	// Cold tier and lifecycle administration
	s.echo.POST("/api/datasets", s.handleBuildDataset)
	s.echo.POST("/api/lifecycle/sweep", s.handleRunSweep)
	s.echo.POST("/api/lifecycle/cleanup", s.handleCleanup)
	s.echo.GET("/api/storage/stats", s.handleStorageStats)
	s.echo.GET("/api/storage/archives", s.handleListArchived)
}
