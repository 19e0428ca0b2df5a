package redis

import (
	"testing"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceStore_LoadOverlappingSetIsNotCached(t *testing.T) {
	store := NewMaintenanceStore(nil, clockwork.NewFakeClock(), 5*time.Second, nil)

	// A read starts, a local Set lands, then the read returns the old value.
	generation := store.currentGeneration()
	store.remember(domain.MaintenanceState{Enabled: true, Message: "fresh"})
	store.rememberLoaded(domain.MaintenanceState{}, generation)

	state, ok := store.fromMemory()
	require.True(t, ok)
	assert.True(t, state.Enabled)
	assert.Equal(t, "fresh", state.Message)
}

func TestMaintenanceStore_LoadOverlappingInvalidationIsNotCached(t *testing.T) {
	store := NewMaintenanceStore(nil, clockwork.NewFakeClock(), 5*time.Second, nil)

	generation := store.currentGeneration()
	store.invalidate()
	store.rememberLoaded(domain.MaintenanceState{Enabled: true}, generation)

	_, ok := store.fromMemory()
	assert.False(t, ok)

	// A load that starts after the invalidation is cached normally.
	store.rememberLoaded(domain.MaintenanceState{Message: "current"}, store.currentGeneration())
	state, ok := store.fromMemory()
	require.True(t, ok)
	assert.Equal(t, "current", state.Message)
}
