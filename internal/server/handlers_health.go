package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// handleReadiness checks the hot tier backends only. Warm and cold
// outages degrade queries but do not make the store unready: ingest
// needs exactly the hot tier.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	for name, check := range s.hotChecks {
		if err := check.Ping(ctx); err != nil {
			return c.JSON(503, map[string]any{
				"status":       "unhealthy",
				"failed_check": name,
				"error":        err.Error(),
			})
		}
	}
	return c.JSON(200, map[string]string{"status": "ready"})
}
