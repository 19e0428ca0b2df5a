package protocol

import (
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
)

// Envelope is the superset of every frame. It is the decode target whenever the frame type
// is not known in advance.
type Envelope struct {
	Type             domain.MessageKind `json:"type"`
	Changes          []string           `json:"changes,omitempty"`
	Timestamp        int64              `json:"timestamp,omitempty"`
	Origin           string             `json:"origin,omitempty"`
	ClientID         string             `json:"clientId,omitempty"`
	Role             domain.Role        `json:"role,omitempty"`
	RecentChanges    []Change           `json:"recentChanges,omitempty"`
	ConnectedClients int                `json:"connectedClients,omitempty"`
	Total            int                `json:"total,omitempty"`
	Admin            int                `json:"admin,omitempty"`
	Preview          int                `json:"preview,omitempty"`
	LastUpdate       int64              `json:"lastUpdate,omitempty"`
	Status           string             `json:"status,omitempty"`
	PreviewClients   int                `json:"previewClients,omitempty"`
}

// Change carries content_changed and force_refresh notifications.
type Change struct {
	Type      domain.MessageKind `json:"type"`
	Changes   []string           `json:"changes,omitempty"`
	Timestamp int64              `json:"timestamp"`
	Origin    string             `json:"origin,omitempty"`
}

type Ping struct {
	Type      domain.MessageKind `json:"type"`
	Timestamp int64              `json:"timestamp"`
}

type Pong struct {
	Type      domain.MessageKind `json:"type"`
	Timestamp int64              `json:"timestamp"`
}

type ConnectionEstablished struct {
	Type             domain.MessageKind `json:"type"`
	ClientID         string             `json:"clientId"`
	Role             domain.Role        `json:"role"`
	RecentChanges    []Change           `json:"recentChanges"`
	ConnectedClients int                `json:"connectedClients"`
}

type ClientStats struct {
	Type       domain.MessageKind `json:"type"`
	Total      int                `json:"total"`
	Admin      int                `json:"admin"`
	Preview    int                `json:"preview"`
	LastUpdate int64              `json:"lastUpdate"`
}

type SyncStatus struct {
	Type           domain.MessageKind `json:"type"`
	Status         string             `json:"status"`
	Timestamp      int64              `json:"timestamp"`
	PreviewClients int                `json:"previewClients"`
	Origin         string             `json:"origin,omitempty"`
}

func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func NewChange(msg domain.ChangeMessage) Change {
	return Change{
		Type:      msg.Kind,
		Changes:   msg.Changes,
		Timestamp: Millis(msg.Timestamp),
		Origin:    msg.Origin,
	}
}

func NewChanges(msgs []domain.ChangeMessage) []Change {
	out := make([]Change, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewChange(m))
	}
	return out
}

func NewClientStats(s domain.ClientStats) ClientStats {
	return ClientStats{
		Type:       domain.KindClientStats,
		Total:      s.Total,
		Admin:      s.Admin,
		Preview:    s.Preview,
		LastUpdate: Millis(s.LastUpdate),
	}
}

// NewSyncStatus acknowledges a broadcast. origin is the id of the client that sent the change,
// empty for server-side broadcasts.
func NewSyncStatus(at time.Time, previewClients int, origin string) SyncStatus {
	return SyncStatus{
		Type:           domain.KindSyncStatus,
		Status:         domain.SyncStatusChangeBroadcasted,
		Timestamp:      Millis(at),
		PreviewClients: previewClients,
		Origin:         origin,
	}
}
