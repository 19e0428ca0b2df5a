package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/metrics"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	maintenanceKey                 = "portfolio:maintenance"
	maintenanceInvalidationChannel = "portfolio:maintenance:invalidate"
	maintenanceFlight              = "maintenance"
)

// MaintenanceStore keeps the maintenance flag in redis so every instance agrees on it.
// Reads are served from a short-lived in-memory copy; writes publish an invalidation
// that other instances pick up through Subscribe.
type MaintenanceStore struct {
	rdb     *goredis.Client
	clock   clockwork.Clock
	ttl     time.Duration
	metrics *metrics.CacheMetrics
	group   singleflight.Group

	mu        sync.RWMutex
	cached    domain.MaintenanceState
	expiresAt time.Time
	hasCached bool
	// generation changes on every local write or invalidation. A load that straddles one is stale.
	generation uint64
}

var _ domain.MaintenanceStore = (*MaintenanceStore)(nil)

func NewMaintenanceStore(rdb *goredis.Client, clock clockwork.Clock, ttl time.Duration, m *metrics.CacheMetrics) *MaintenanceStore {
	return &MaintenanceStore{
		rdb:     rdb,
		clock:   clock,
		ttl:     ttl,
		metrics: m,
	}
}

func (s *MaintenanceStore) Get(ctx context.Context) (domain.MaintenanceState, error) {
	if state, ok := s.fromMemory(); ok {
		s.metrics.Hit()
		return state, nil
	}
	s.metrics.Miss()

	// Concurrent misses share one redis round trip.
	v, err, _ := s.group.Do(maintenanceFlight, func() (any, error) {
		generation := s.currentGeneration()
		state, err := s.load(ctx)
		if err != nil {
			return domain.MaintenanceState{}, err
		}
		s.rememberLoaded(state, generation)
		return state, nil
	})
	if err != nil {
		return domain.MaintenanceState{}, err
	}
	return v.(domain.MaintenanceState), nil
}

func (s *MaintenanceStore) Set(ctx context.Context, state domain.MaintenanceState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = s.clock.Now()
	}

	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal maintenance state: %w", err)
	}
	if err := s.rdb.Set(ctx, maintenanceKey, encoded, 0).Err(); err != nil {
		return fmt.Errorf("failed to store maintenance state: %w", err)
	}

	s.remember(state)

	if err := s.rdb.Publish(ctx, maintenanceInvalidationChannel, state.UpdatedAt.Format(time.RFC3339Nano)).Err(); err != nil {
		slog.Warn("Failed to publish maintenance invalidation", "error", err)
	}
	return nil
}

// Subscribe drops the in-memory copy whenever any instance publishes a change. It blocks until
// ctx is cancelled or the subscription closes.
func (s *MaintenanceStore) Subscribe(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, maintenanceInvalidationChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok || msg == nil {
				return
			}
			s.invalidate()
			s.metrics.Invalidated()
			slog.Debug("Maintenance cache invalidated via pub/sub", "updated_at", msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (s *MaintenanceStore) load(ctx context.Context) (domain.MaintenanceState, error) {
	data, err := s.rdb.Get(ctx, maintenanceKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.MaintenanceState{}, nil
	}
	if err != nil {
		return domain.MaintenanceState{}, fmt.Errorf("failed to read maintenance state: %w", err)
	}

	var state domain.MaintenanceState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.MaintenanceState{}, fmt.Errorf("failed to decode maintenance state: %w", err)
	}
	return state, nil
}

func (s *MaintenanceStore) fromMemory() (domain.MaintenanceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasCached || !s.clock.Now().Before(s.expiresAt) {
		return domain.MaintenanceState{}, false
	}
	return s.cached, true
}

func (s *MaintenanceStore) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// remember caches a state this instance just wrote.
func (s *MaintenanceStore) remember(state domain.MaintenanceState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.store(state)
}

// rememberLoaded caches a state read from redis unless a write or invalidation happened since
// the read started.
func (s *MaintenanceStore) rememberLoaded(state domain.MaintenanceState, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		return
	}
	s.store(state)
}

func (s *MaintenanceStore) store(state domain.MaintenanceState) {
	s.cached = state
	s.expiresAt = s.clock.Now().Add(s.ttl)
	s.hasCached = true
}

func (s *MaintenanceStore) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.hasCached = false
}
