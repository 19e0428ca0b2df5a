package domain

import (
	"context"
	"time"
)

// MaintenanceState is the site-wide maintenance flag.
type MaintenanceState struct {
	Enabled   bool      `json:"enabled"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MaintenanceStore reads and writes the maintenance flag.
type MaintenanceStore interface {
	Get(ctx context.Context) (MaintenanceState, error)
	Set(ctx context.Context, state MaintenanceState) error
}
