package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func decodeChecks(t *testing.T, rec *httptest.ResponseRecorder) checksResponse {
	t.Helper()
	var resp checksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestStartupCheck_AllHealthy(t *testing.T) {
	srv := newTestServer(t, &mockRelay{},
		withHealthChecks(
			HealthCheck{Name: "relay", Check: healthOK},
			HealthCheck{Name: "redis", Check: healthOK},
		),
	)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health/startup", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeChecks(t, rec)
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, map[string]string{"relay": "ok", "redis": "ok"}, resp.Checks)
}

func TestStartupCheck_RedisDown(t *testing.T) {
	srv := newTestServer(t, &mockRelay{},
		withHealthChecks(
			HealthCheck{Name: "relay", Check: healthOK},
			HealthCheck{Name: "redis", Check: healthErr("connection refused")},
		),
	)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health/startup", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeChecks(t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "ok", resp.Checks["relay"])
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}

func TestReadinessCheck_NoChecks(t *testing.T) {
	srv := newTestServer(t, &mockRelay{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestReadinessCheck_ReportsEveryFailure(t *testing.T) {
	srv := newTestServer(t, &mockRelay{},
		withHealthChecks(
			HealthCheck{Name: "relay", Check: healthErr("relay stopped")},
			HealthCheck{Name: "redis", Check: healthErr("circuit breaker open")},
		),
	)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeChecks(t, rec)
	assert.Equal(t, "relay stopped", resp.Checks["relay"])
	assert.Equal(t, "circuit breaker open", resp.Checks["redis"])
}

func TestReadinessCheck_SlowCheckTimesOut(t *testing.T) {
	slow := func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
			return nil
		}
	}
	srv := newTestServer(t, &mockRelay{}, withHealthChecks(HealthCheck{Name: "redis", Check: slow}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	results, healthy := srv.runHealthChecks(ctx)

	assert.False(t, healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), results["redis"])
}

func TestHandleLiveness(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/live", nil), rec)

	srv := newTestServer(t, &mockRelay{})
	srv.clock.(*clockwork.FakeClock).Advance(90 * time.Second)

	require.NoError(t, srv.handleLiveness(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","uptime":90,"version":"dev"}`, rec.Body.String())
}

func TestHandleVersion(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/version", nil), rec)

	srv := newTestServer(t, &mockRelay{})
	require.NoError(t, srv.handleVersion(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"version"`)
	assert.Contains(t, body, `"commit"`)
}
