// Package redis holds the redis-backed adapters: the guarded client and the shared maintenance flag.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/metrics"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

var pingPolicy = retry.Policy{
	MaxAttempts: 5,
	Backoff:     retry.Exponential(250 * time.Millisecond),
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Redis ping failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// NewClient connects to redisURL (e.g. "redis://localhost:6379/0") with a circuit breaker
// hook installed, and waits until the server answers a PING.
func NewClient(ctx context.Context, redisURL string, circuit *metrics.CircuitMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	rdb.AddHook(NewCircuitBreakerHook(circuit))

	err = retry.DoVoid(ctx, pingPolicy, func(error) retry.Action { return retry.Retry }, func() error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}
