package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/memory"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/config"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/relay"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "test-admin-token-0123456789"

// --- Mock implementations ---

type mockRelay struct {
	mu           sync.Mutex
	stats        domain.ClientStats
	statsErr     error
	recent       []domain.ChangeMessage
	recentLimit  int
	broadcasts   []domain.ChangeMessage
	broadcastErr error
	serveFn      func(ctx context.Context, reg relay.Registration) error
}

func (m *mockRelay) Serve(ctx context.Context, reg relay.Registration) error {
	if m.serveFn != nil {
		return m.serveFn(ctx, reg)
	}
	return reg.Conn.Close()
}

func (m *mockRelay) Stats() (domain.ClientStats, error) {
	return m.stats, m.statsErr
}

func (m *mockRelay) RecentChanges(limit int) ([]domain.ChangeMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recentLimit = limit
	return m.recent, nil
}

func (m *mockRelay) BroadcastChange(msg domain.ChangeMessage, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broadcastErr != nil {
		return m.broadcastErr
	}
	m.broadcasts = append(m.broadcasts, msg)
	return nil
}

func (m *mockRelay) published() []domain.ChangeMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChangeMessage(nil), m.broadcasts...)
}

type failingMaintenanceStore struct{ err error }

func (f failingMaintenanceStore) Get(context.Context) (domain.MaintenanceState, error) {
	return domain.MaintenanceState{}, f.err
}

func (f failingMaintenanceStore) Set(context.Context, domain.MaintenanceState) error { return f.err }

// --- Test helpers ---

func newTestServer(t *testing.T, syncRelay syncRelay, opts ...func(*Server)) *Server {
	t.Helper()

	cfg := &config.Config{
		AppEnv:             "test",
		AppURL:             "http://localhost:8080",
		AdminToken:         testAdminToken,
		SessionMaxAge:      time.Hour,
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	}

	store := sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!!"))
	store.Options = &sessions.Options{
		Path:   "/",
		MaxAge: 3600,
	}

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	srv := &Server{
		echo:         echo.New(),
		config:       cfg,
		relay:        syncRelay,
		maintenance:  memory.NewMaintenanceStore(clock),
		upgrader:     newUpgrader(cfg),
		sessionStore: store,
		clock:        clock,
		startTime:    clock.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withMaintenanceStore(store domain.MaintenanceStore) func(*Server) {
	return func(s *Server) {
		s.maintenance = store
	}
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}

// serve runs a request through the full middleware stack.
func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

// adminCookies logs in and returns the session cookies.
func adminCookies(t *testing.T, srv *Server) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(`{"token":"`+testAdminToken+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec.Result().Cookies()
}

func withBearer(req *http.Request) *http.Request {
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+testAdminToken)
	return req
}

func jsonBody(body string) io.Reader {
	return strings.NewReader(body)
}
