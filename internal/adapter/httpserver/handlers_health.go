package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/version"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second

	checkPassed = "ok"
)

// HealthCheck is a named dependency check used by the startup and readiness endpoints.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type checksResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type livenessResponse struct {
	Status  string  `json:"status"`
	Uptime  float64 `json:"uptime"`
	Version string  `json:"version"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.runChecks(startupCheckTimeout))
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.runChecks(readinessCheckTimeout))
	s.echo.GET("/version", s.handleVersion)
}

// runChecks runs every health check concurrently under timeout and answers 503 when any fails.
func (s *Server) runChecks(timeout time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		results, healthy := s.runHealthChecks(ctx)

		resp := checksResponse{Status: "ready", Checks: results}
		code := http.StatusOK
		if !healthy {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		if err := c.JSON(code, resp); err != nil {
			return fmt.Errorf("failed to write health response: %w", err)
		}
		return nil
	}
}

func (s *Server) runHealthChecks(ctx context.Context) (map[string]string, bool) {
	if len(s.healthChecks) == 0 {
		return nil, true
	}

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(s.healthChecks))
		healthy = true
	)

	// Checks never return errors to the group; a failure must not cancel its siblings.
	var g errgroup.Group
	for _, hc := range s.healthChecks {
		g.Go(func() error {
			outcome := checkPassed
			if err := hc.Check(ctx); err != nil {
				slog.WarnContext(ctx, "Health check failed", "check", hc.Name, "error", err)
				outcome = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			results[hc.Name] = outcome
			if outcome != checkPassed {
				healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, healthy
}

func (s *Server) handleLiveness(c echo.Context) error {
	resp := livenessResponse{
		Status:  "ok",
		Uptime:  s.clock.Since(s.startTime).Seconds(),
		Version: version.Get().Version,
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
