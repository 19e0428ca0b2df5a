package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/httpserver"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/memory"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/metrics"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/redis"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/config"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/logging"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/version"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/relay"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupMaintenance returns the redis-backed store when REDIS_URL is set, otherwise an
// in-process one. The returned checks are added to the readiness endpoint.
func setupMaintenance(ctx context.Context, cfg *config.Config, clock clockwork.Clock, m *metrics.Set) (domain.MaintenanceStore, *goredis.Client, []httpserver.HealthCheck) {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, maintenance flag is kept in memory")
		return memory.NewMaintenanceStore(clock), nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(connectCtx, cfg.RedisURL, m.Circuit)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	store := redis.NewMaintenanceStore(client, clock, cfg.MaintenanceCacheTTL, m.Cache)
	go store.Subscribe(ctx)

	checks := []httpserver.HealthCheck{{
		Name:  "redis",
		Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}}
	return store, client, checks
}

func relayHealthCheck(r *relay.Relay) httpserver.HealthCheck {
	return httpserver.HealthCheck{
		Name: "relay",
		Check: func(context.Context) error {
			_, err := r.Stats()
			return err
		},
	}
}

func runGracefulShutdown(srv *httpserver.Server, syncRelay *relay.Relay, cancelBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Close sync sockets first; hijacked connections are not drained by echo's Shutdown.
		syncRelay.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelBackground()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	m := metrics.NewSet()

	maintenance, redisClient, checks := setupMaintenance(ctx, cfg, clock, m)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	syncRelay := relay.New(relay.Config{
		QueueCapacity:   cfg.SyncQueueCapacity,
		MaxClients:      cfg.SyncMaxClients,
		IdleTimeout:     cfg.SyncIdleTimeout,
		CleanupInterval: cfg.SyncCleanupInterval,
	}, clock, m.Relay)
	checks = append(checks, relayHealthCheck(syncRelay))

	srv, err := httpserver.NewServer(cfg, syncRelay, maintenance, m.HTTP, m.Handler(), checks)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv, syncRelay, cancelBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
