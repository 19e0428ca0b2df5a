package domain

import (
	"fmt"
	"time"
)

// Role tags a connection for its lifetime. It is decided once at connect time.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePreview Role = "preview"
)

// ParseRole maps a role name to a Role. The empty string means preview.
func ParseRole(s string) (Role, error) {
	switch s {
	case "", string(RolePreview):
		return RolePreview, nil
	case string(RoleAdmin):
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// MessageKind is the type discriminator of sync messages.
type MessageKind string

const (
	KindContentChanged        MessageKind = "content_changed"
	KindForceRefresh          MessageKind = "force_refresh"
	KindPing                  MessageKind = "ping"
	KindPong                  MessageKind = "pong"
	KindConnectionEstablished MessageKind = "connection_established"
	KindClientStats           MessageKind = "client_stats"
	KindSyncStatus            MessageKind = "sync_status"
)

// SyncStatusChangeBroadcasted is the only sync_status status the relay emits.
const SyncStatusChangeBroadcasted = "change_broadcasted"

// ChangeMessage is one content-change notification. Messages are never mutated once buffered.
type ChangeMessage struct {
	Kind      MessageKind `json:"kind"`
	Changes   []string    `json:"changes,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Origin    string      `json:"origin,omitempty"`
}

// ClientMetadata is informational data captured when a connection is accepted.
type ClientMetadata struct {
	UserAgent   string    `json:"userAgent,omitempty"`
	RemoteAddr  string    `json:"remoteAddr,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// ClientStats counts registered clients by role.
type ClientStats struct {
	Total      int       `json:"total"`
	Admin      int       `json:"admin"`
	Preview    int       `json:"preview"`
	LastUpdate time.Time `json:"lastUpdate"`
}
