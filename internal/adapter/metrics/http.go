package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts, latencies and in-flight requests per echo route.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlight        prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	labels := []string{"method", "route", "status_code"}
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, labels),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, labels),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlight)
	return m
}

// unmeasured reports routes kept out of the request metrics: the scrape endpoint, health checks and
// the long-lived /ws upgrade, whose duration is a connection lifetime.
func unmeasured(route string) bool {
	return route == "/metrics" || route == "/ws" || strings.HasPrefix(route, "/health/")
}

// Middleware records metrics for every measured route. Unmatched paths share one "unmatched"
// route label so scanners cannot blow up label cardinality.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if unmeasured(route) {
				return next(c)
			}
			if route == "" {
				route = "unmatched"
			}

			m.InFlight.Inc()
			defer m.InFlight.Dec()

			timer := prometheus.NewTimer(nil)
			err := next(c)
			elapsed := timer.ObserveDuration().Seconds()

			status := strconv.Itoa(responseStatus(c, err))
			method := c.Request().Method
			m.RequestDuration.WithLabelValues(method, route, status).Observe(elapsed)
			m.RequestsTotal.WithLabelValues(method, route, status).Inc()
			return err
		}
	}
}

// responseStatus is the status the client will see. Errors are rendered further out in the
// middleware chain, so an uncommitted response still carries the default 200.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
