package relay

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/metrics"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/protocol"
)

// recentOnConnect is how many buffered changes a new client receives in connection_established.
const recentOnConnect = 10

var (
	errEmptyChanges = errors.New("content_changed without change ids")
	errUnknownFrame = errors.New("unknown frame type")
)

type clientEntry struct {
	id           string
	role         domain.Role
	metadata     domain.ClientMetadata
	lastActivity time.Time
}

// delivery is one frame addressed to one client.
type delivery struct {
	clientID string
	frame    any
}

// result is everything an event produced besides the state change itself.
type result struct {
	deliveries  []delivery
	evicted     []string
	evictReason string
	broadcast   *domain.ChangeMessage
	previews    int
	rejected    error
}

// Events applied to the relay state. Each carries the time it happened so apply never reads a clock.
type event interface{ isEvent() }

type baseEvent struct{}

func (baseEvent) isEvent() {}

type connectEvent struct {
	baseEvent
	id       string
	role     domain.Role
	metadata domain.ClientMetadata
	at       time.Time
}

type disconnectEvent struct {
	baseEvent
	id string
	at time.Time
}

type activityEvent struct {
	baseEvent
	id string
	at time.Time
}

type inboundEvent struct {
	baseEvent
	id    string
	frame protocol.Envelope
	at    time.Time
}

type broadcastEvent struct {
	baseEvent
	msg    domain.ChangeMessage
	origin string
	at     time.Time
}

type cleanupEvent struct {
	baseEvent
	maxIdle time.Duration
	now     time.Time
}

// state is the client registry plus the change history. It does no I/O; apply mutates it and
// returns the frames the caller must deliver.
type state struct {
	clients    map[string]*clientEntry
	queue      *changeQueue
	maxClients int
}

func newState(queueCapacity, maxClients int) *state {
	return &state{
		clients:    make(map[string]*clientEntry),
		queue:      newChangeQueue(queueCapacity),
		maxClients: maxClients,
	}
}

func (s *state) apply(ev event) result {
	switch e := ev.(type) {
	case connectEvent:
		return s.connect(e)
	case disconnectEvent:
		return s.disconnect(e)
	case activityEvent:
		if !s.touch(e.id, e.at) {
			return result{rejected: domain.ErrClientNotFound}
		}
		return result{}
	case inboundEvent:
		return s.inbound(e)
	case broadcastEvent:
		return s.broadcast(e)
	case cleanupEvent:
		return s.cleanup(e)
	default:
		return result{rejected: fmt.Errorf("unhandled relay event %T", ev)}
	}
}

func (s *state) connect(e connectEvent) result {
	if _, exists := s.clients[e.id]; exists {
		return result{rejected: domain.ErrDuplicateClient}
	}

	var res result
	if s.maxClients > 0 && len(s.clients) >= s.maxClients {
		if victim := s.leastRecentlyActive(); victim != "" {
			delete(s.clients, victim)
			res.evicted = []string{victim}
			res.evictReason = metrics.EvictCapacity
		}
	}

	s.clients[e.id] = &clientEntry{
		id:           e.id,
		role:         e.role,
		metadata:     e.metadata,
		lastActivity: e.at,
	}

	res.deliveries = append(res.deliveries, delivery{
		clientID: e.id,
		frame: protocol.ConnectionEstablished{
			Type:             domain.KindConnectionEstablished,
			ClientID:         e.id,
			Role:             e.role,
			RecentChanges:    protocol.NewChanges(s.queue.recent(recentOnConnect)),
			ConnectedClients: len(s.clients),
		},
	})
	res.deliveries = append(res.deliveries, s.statsToAll(e.at)...)
	return res
}

func (s *state) disconnect(e disconnectEvent) result {
	if _, ok := s.clients[e.id]; !ok {
		return result{}
	}
	delete(s.clients, e.id)
	return result{deliveries: s.statsToAll(e.at)}
}

func (s *state) touch(id string, at time.Time) bool {
	c, ok := s.clients[id]
	if !ok {
		return false
	}
	c.lastActivity = at
	return true
}

func (s *state) inbound(e inboundEvent) result {
	if !s.touch(e.id, e.at) {
		return result{rejected: domain.ErrClientNotFound}
	}

	switch e.frame.Type {
	case domain.KindPing:
		pong := protocol.Pong{Type: domain.KindPong, Timestamp: protocol.Millis(e.at)}
		return result{deliveries: []delivery{{clientID: e.id, frame: pong}}}
	case domain.KindContentChanged:
		if len(e.frame.Changes) == 0 {
			return result{rejected: errEmptyChanges}
		}
		msg := domain.ChangeMessage{Kind: domain.KindContentChanged, Changes: e.frame.Changes}
		return s.broadcast(broadcastEvent{msg: msg, origin: e.id, at: e.at})
	case domain.KindForceRefresh:
		msg := domain.ChangeMessage{Kind: domain.KindForceRefresh}
		return s.broadcast(broadcastEvent{msg: msg, origin: e.id, at: e.at})
	default:
		return result{rejected: fmt.Errorf("%w: %q", errUnknownFrame, e.frame.Type)}
	}
}

func (s *state) broadcast(e broadcastEvent) result {
	msg := e.msg
	if msg.Kind == "" {
		msg.Kind = domain.KindContentChanged
	}
	msg.Changes = slices.Clone(msg.Changes)
	msg.Timestamp = e.at
	msg.Origin = e.origin
	s.queue.push(msg)

	frame := protocol.NewChange(msg)
	res := result{broadcast: &msg}
	for id, c := range s.clients {
		if c.role == domain.RolePreview && id != e.origin {
			res.deliveries = append(res.deliveries, delivery{clientID: id, frame: frame})
			res.previews++
		}
	}

	status := protocol.NewSyncStatus(e.at, res.previews, e.origin)
	for id, c := range s.clients {
		if c.role == domain.RoleAdmin {
			res.deliveries = append(res.deliveries, delivery{clientID: id, frame: status})
		}
	}
	return res
}

// cleanup removes clients whose last activity is strictly older than maxIdle.
func (s *state) cleanup(e cleanupEvent) result {
	cutoff := e.now.Add(-e.maxIdle)

	var res result
	for id, c := range s.clients {
		if c.lastActivity.Before(cutoff) {
			delete(s.clients, id)
			res.evicted = append(res.evicted, id)
		}
	}
	if len(res.evicted) == 0 {
		return res
	}

	slices.Sort(res.evicted)
	res.evictReason = metrics.EvictIdle
	res.deliveries = s.statsToAll(e.now)
	return res
}

func (s *state) stats(at time.Time) domain.ClientStats {
	stats := domain.ClientStats{Total: len(s.clients), LastUpdate: at}
	for _, c := range s.clients {
		if c.role == domain.RoleAdmin {
			stats.Admin++
		} else {
			stats.Preview++
		}
	}
	return stats
}

func (s *state) statsToAll(at time.Time) []delivery {
	frame := protocol.NewClientStats(s.stats(at))
	out := make([]delivery, 0, len(s.clients))
	for id := range s.clients {
		out = append(out, delivery{clientID: id, frame: frame})
	}
	return out
}

func (s *state) leastRecentlyActive() string {
	var oldest *clientEntry
	for _, c := range s.clients {
		if oldest == nil {
			oldest = c
			continue
		}
		if byActivity := c.lastActivity.Compare(oldest.lastActivity); byActivity < 0 || (byActivity == 0 && cmp.Less(c.id, oldest.id)) {
			oldest = c
		}
	}
	if oldest == nil {
		return ""
	}
	return oldest.id
}
