package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const breakerComponent = "redis"

// CircuitBreakerHook guards every redis dial, command and pipeline with a circuit breaker so a
// dead redis fails fast instead of stalling the maintenance middleware on each request.
type CircuitBreakerHook struct {
	cb *gobreaker.CircuitBreaker
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook trips after at least 5 requests in a 10s window with a 60% failure rate,
// stays open for 30s and closes again after 3 successful half-open requests.
func NewCircuitBreakerHook(m *metrics.CircuitMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(gobreaker.Settings{
		Name:        breakerComponent,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}, m)
}

func newCircuitBreakerHook(st gobreaker.Settings, m *metrics.CircuitMetrics) *CircuitBreakerHook {
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, goredis.Nil)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		m.Transition(name, to.String(), stateToFloat(to))
	}
	return &CircuitBreakerHook{cb: gobreaker.NewCircuitBreaker(st)}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := h.cb.Execute(func() (any, error) {
			return next(ctx, network, addr)
		})
		if err != nil {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		return conn.(net.Conn), nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		_, err := h.cb.Execute(func() (any, error) {
			return nil, next(ctx, cmd)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("redis circuit breaker open: %w", err)
		}
		// goredis.Nil passes through unchanged.
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		_, err := h.cb.Execute(func() (any, error) {
			return nil, next(ctx, cmds)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("redis circuit breaker open: %w", err)
		}
		return err
	}
}

func (h *CircuitBreakerHook) State() gobreaker.State {
	return h.cb.State()
}

func (h *CircuitBreakerHook) Counts() gobreaker.Counts {
	return h.cb.Counts()
}
