// Package memory holds in-process adapters used when no Redis is configured.
package memory

import (
	"context"
	"sync"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/jonboulle/clockwork"
)

// MaintenanceStore keeps the maintenance flag in process memory. The flag is lost on restart
// and is not shared between instances.
type MaintenanceStore struct {
	mu    sync.RWMutex
	state domain.MaintenanceState
	clock clockwork.Clock
}

func NewMaintenanceStore(clock clockwork.Clock) *MaintenanceStore {
	return &MaintenanceStore{clock: clock}
}

func (s *MaintenanceStore) Get(_ context.Context) (domain.MaintenanceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

func (s *MaintenanceStore) Set(_ context.Context, state domain.MaintenanceState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = s.clock.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}
