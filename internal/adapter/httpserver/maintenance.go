package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	apperrors "github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

const (
	defaultMaintenanceMessage = "The site is under maintenance. Please check back soon."
	maxMaintenanceMessage     = 500
)

type maintenanceRequest struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

// Paths that stay reachable in maintenance mode.
var maintenanceExemptPrefixes = []string{
	"/health/",
	"/version",
	"/metrics",
	"/auth/",
	"/api/maintenance",
	"/api/sync/status",
	"/ws",
}

func (s *Server) registerMaintenanceRoutes(csrfMiddleware echo.MiddlewareFunc) {
	s.echo.GET("/api/maintenance", s.handleGetMaintenance)
	s.echo.PUT("/api/maintenance", s.handleSetMaintenance, s.requireAdmin, csrfMiddleware)
}

// maintenanceMiddleware answers 503 for non-admin traffic while maintenance mode is on.
// Lookup failures let the request through.
func (s *Server) maintenanceMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if isMaintenanceExempt(c.Request().URL.Path) || s.isAdmin(c) {
			return next(c)
		}

		state, err := s.maintenance.Get(c.Request().Context())
		if err != nil {
			slog.WarnContext(c.Request().Context(), "Maintenance lookup failed, serving request", "error", err)
			return next(c)
		}
		if state.Enabled {
			message := state.Message
			if message == "" {
				message = defaultMaintenanceMessage
			}
			return apperrors.UnavailableError(message)
		}
		return next(c)
	}
}

func isMaintenanceExempt(path string) bool {
	for _, prefix := range maintenanceExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (s *Server) handleGetMaintenance(c echo.Context) error {
	state, err := s.maintenance.Get(c.Request().Context())
	if err != nil {
		return apperrors.ExternalError("failed to read maintenance state", err)
	}
	if err := c.JSON(http.StatusOK, state); err != nil {
		return fmt.Errorf("failed to write maintenance response: %w", err)
	}
	return nil
}

func (s *Server) handleSetMaintenance(c echo.Context) error {
	var req maintenanceRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	message := strings.TrimSpace(req.Message)
	if len(message) > maxMaintenanceMessage {
		return apperrors.ValidationError(fmt.Sprintf("message must be at most %d characters", maxMaintenanceMessage))
	}

	state := domain.MaintenanceState{Enabled: req.Enabled, Message: message, UpdatedAt: s.now()}
	if err := s.maintenance.Set(c.Request().Context(), state); err != nil {
		return apperrors.ExternalError("failed to save maintenance state", err)
	}

	slog.InfoContext(c.Request().Context(), "Maintenance mode updated", "enabled", state.Enabled)
	if err := c.JSON(http.StatusOK, state); err != nil {
		return fmt.Errorf("failed to write maintenance response: %w", err)
	}
	return nil
}
