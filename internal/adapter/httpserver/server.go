package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/metrics"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/config"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/protocol"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/relay"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

type syncRelay interface {
	Serve(ctx context.Context, reg relay.Registration) error
	Stats() (domain.ClientStats, error)
	RecentChanges(limit int) ([]domain.ChangeMessage, error)
	BroadcastChange(msg domain.ChangeMessage, originID string) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	relay       syncRelay
	maintenance domain.MaintenanceStore

	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler

	upgrader     websocket.Upgrader
	sessionStore *sessions.CookieStore
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

// NewServer wires the HTTP surface. httpMetrics and metricsHandler may be nil.
func NewServer(cfg *config.Config, relay syncRelay, maintenance domain.MaintenanceStore, httpMetrics *metrics.HTTPMetrics, metricsHandler http.Handler, healthChecks []HealthCheck) (*Server, error) {
	if relay == nil {
		return nil, fmt.Errorf("sync relay is required")
	}
	if maintenance == nil {
		return nil, fmt.Errorf("maintenance store is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := clockwork.NewRealClock()
	srv := &Server{
		echo:           e,
		config:         cfg,
		relay:          relay,
		maintenance:    maintenance,
		httpMetrics:    httpMetrics,
		metricsHandler: metricsHandler,
		upgrader:       newUpgrader(cfg),
		sessionStore:   setupSessionStore(cfg),
		healthChecks:   healthChecks,
		clock:          clock,
		startTime:      clock.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) now() time.Time {
	return s.clock.Now()
}

// Session keys
const (
	sessionName       = "portfolio-admin"
	sessionKeyAdmin   = "admin"
	sessionKeyLoginAt = "login_at"
)

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return sessionStore
}

func newUpgrader(cfg *config.Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    protocol.Subprotocols(),
		CheckOrigin:     NewCheckOrigin(cfg.AppURL, !cfg.IsProduction()),
	}
}
