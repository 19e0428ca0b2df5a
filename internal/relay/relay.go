package relay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/adapter/metrics"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultQueueCapacity   = 100
	DefaultMaxClients      = 1000
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultCleanupInterval = 60 * time.Second

	commandTimeout     = 5 * time.Second
	stopTimeout        = 10 * time.Second
	commandChannelSize = 256
)

// Config tunes a Relay. Zero values fall back to the defaults.
type Config struct {
	QueueCapacity   int
	MaxClients      int
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.MaxClients <= 0 {
		c.MaxClients = DefaultMaxClients
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// Registration describes an accepted connection. Role is fixed for the connection's lifetime.
type Registration struct {
	ID       string
	Role     domain.Role
	Metadata domain.ClientMetadata
	Conn     *websocket.Conn
	Codec    protocol.Codec
}

// relayCmd is the command interface for the Relay actor.
type relayCmd interface{ isRelayCmd() }

type baseRelayCmd struct{}

func (baseRelayCmd) isRelayCmd() {}

type addClientCmd struct {
	baseRelayCmd
	registration Registration
	errorChannel chan error
}

type removeClientCmd struct {
	baseRelayCmd
	clientID string
}

type activityCmd struct {
	baseRelayCmd
	clientID string
}

type receiveCmd struct {
	baseRelayCmd
	clientID string
	frame    protocol.Envelope
}

type broadcastCmd struct {
	baseRelayCmd
	message  domain.ChangeMessage
	originID string
}

type recentChangesCmd struct {
	baseRelayCmd
	limit        int
	replyChannel chan []domain.ChangeMessage
}

type cleanupCmd struct {
	baseRelayCmd
	maxIdle      time.Duration
	replyChannel chan []string
}

type statsCmd struct {
	baseRelayCmd
	replyChannel chan domain.ClientStats
}

type stopCmd struct {
	baseRelayCmd
}

// Relay fans content changes out from admin clients to preview clients.
type Relay struct {
	cmdCh       chan relayCmd
	clock       clockwork.Clock
	config      Config
	state       *state
	writers     map[string]*clientWriter
	metrics     *metrics.RelayMetrics
	done        chan struct{}
	doneOnce    sync.Once
	stopOnce    sync.Once
	stopTimeout time.Duration
}

// New starts a relay. m may be nil.
func New(cfg Config, clock clockwork.Clock, m *metrics.RelayMetrics) *Relay {
	cfg = cfg.withDefaults()
	r := &Relay{
		cmdCh:       make(chan relayCmd, commandChannelSize),
		clock:       clock,
		config:      cfg,
		state:       newState(cfg.QueueCapacity, cfg.MaxClients),
		writers:     make(map[string]*clientWriter),
		metrics:     m,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}

	// Tickers are created before the loop starts so a fake clock advanced right after New sees them.
	cleanupTicker := clock.NewTicker(cfg.CleanupInterval)
	depthTicker := clock.NewTicker(time.Second)
	go r.run(cleanupTicker, depthTicker)
	return r
}

// AddClient registers a connection and queues connection_established for it. Registering an
// id twice fails with domain.ErrDuplicateClient.
func (r *Relay) AddClient(reg Registration) error {
	errCh := make(chan error, 1)
	if err := r.send(addClientCmd{registration: reg, errorChannel: errCh}); err != nil {
		return err
	}
	_, err := await(r, errCh, func(err error) error { return err })
	return err
}

// RemoveClient unregisters a client and closes its connection. Unknown ids are ignored.
func (r *Relay) RemoveClient(clientID string) {
	_ = r.send(removeClientCmd{clientID: clientID})
}

// UpdateActivity refreshes a client's last-activity time.
func (r *Relay) UpdateActivity(clientID string) {
	_ = r.send(activityCmd{clientID: clientID})
}

// Receive applies an inbound frame from a registered client.
func (r *Relay) Receive(clientID string, frame protocol.Envelope) {
	_ = r.send(receiveCmd{clientID: clientID, frame: frame})
}

// BroadcastChange buffers msg and delivers it to every preview client except originID.
// Admin clients receive a sync_status acknowledgement.
func (r *Relay) BroadcastChange(msg domain.ChangeMessage, originID string) error {
	return r.send(broadcastCmd{message: msg, originID: originID})
}

// RecentChanges returns up to limit buffered messages, most recent last.
func (r *Relay) RecentChanges(limit int) ([]domain.ChangeMessage, error) {
	replyCh := make(chan []domain.ChangeMessage, 1)
	if err := r.send(recentChangesCmd{limit: limit, replyChannel: replyCh}); err != nil {
		return nil, err
	}
	return await(r, replyCh, func([]domain.ChangeMessage) error { return nil })
}

// CleanupInactiveClients evicts clients idle for longer than maxIdle and returns their ids.
func (r *Relay) CleanupInactiveClients(maxIdle time.Duration) ([]string, error) {
	replyCh := make(chan []string, 1)
	if err := r.send(cleanupCmd{maxIdle: maxIdle, replyChannel: replyCh}); err != nil {
		return nil, err
	}
	return await(r, replyCh, func([]string) error { return nil })
}

// Stats returns the current client counts.
func (r *Relay) Stats() (domain.ClientStats, error) {
	replyCh := make(chan domain.ClientStats, 1)
	if err := r.send(statsCmd{replyChannel: replyCh}); err != nil {
		return domain.ClientStats{}, err
	}
	return await(r, replyCh, func(domain.ClientStats) error { return nil })
}

// Stop closes every connection with a close frame and stops the actor.
// Blocks until the actor goroutine has exited or the stop timeout is reached.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		if err := r.send(stopCmd{}); err != nil {
			return
		}

		timeout := r.clock.NewTimer(r.stopTimeout)
		defer timeout.Stop()

		select {
		case <-r.done:
			slog.Info("Sync relay stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Sync relay stop timeout exceeded, forcing exit", "timeout", r.stopTimeout)
			r.markDone()
		}
	})
}

func (r *Relay) send(cmd relayCmd) error {
	select {
	case <-r.done:
		return domain.ErrRelayStopped
	default:
	}

	select {
	case r.cmdCh <- cmd:
		return nil
	case <-r.done:
		return domain.ErrRelayStopped
	}
}

// await waits for a reply. errOf extracts an error carried in the reply itself.
func await[T any](r *Relay, replyCh <-chan T, errOf func(T) error) (T, error) {
	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	var zero T
	select {
	case v := <-replyCh:
		return v, errOf(v)
	case <-r.done:
		return zero, domain.ErrRelayStopped
	case <-timer.Chan():
		return zero, fmt.Errorf("relay command timed out after %v", commandTimeout)
	}
}

func (r *Relay) markDone() {
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *Relay) run(cleanupTicker, depthTicker clockwork.Ticker) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Sync relay panic recovered", "panic", p)
			r.closeAll("relay failure")
		}
	}()
	defer r.markDone()
	defer cleanupTicker.Stop()
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(r.cmdCh)
			r.metrics.CommandDepth(depth)
			if depth > commandChannelSize*8/10 {
				slog.Warn("Sync relay command channel near capacity", "depth", depth, "capacity", cap(r.cmdCh))
			}

		case <-cleanupTicker.Chan():
			r.handleCleanup(r.config.IdleTimeout)

		case cmd := <-r.cmdCh:
			switch c := cmd.(type) {
			case addClientCmd:
				c.errorChannel <- r.handleAddClient(c.registration)
			case removeClientCmd:
				r.removeClient(c.clientID)
			case activityCmd:
				r.dispatch(activityEvent{id: c.clientID, at: r.clock.Now()})
			case receiveCmd:
				r.handleReceive(c)
			case broadcastCmd:
				r.dispatch(broadcastEvent{msg: c.message, origin: c.originID, at: r.clock.Now()})
			case recentChangesCmd:
				c.replyChannel <- r.state.queue.recent(c.limit)
			case cleanupCmd:
				c.replyChannel <- r.handleCleanup(c.maxIdle)
			case statsCmd:
				c.replyChannel <- r.state.stats(r.clock.Now())
			case stopCmd:
				r.closeAll("server shutting down")
				return
			default:
				slog.Warn("Sync relay received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (r *Relay) handleAddClient(reg Registration) error {
	if reg.Codec == nil {
		reg.Codec = protocol.JSON
	}
	now := r.clock.Now()
	if reg.Metadata.ConnectedAt.IsZero() {
		reg.Metadata.ConnectedAt = now
	}

	res := r.state.apply(connectEvent{id: reg.ID, role: reg.Role, metadata: reg.Metadata, at: now})
	if res.rejected != nil {
		slog.Warn("Rejecting sync client", "client_id", reg.ID, "error", res.rejected)
		return res.rejected
	}

	r.writers[reg.ID] = newClientWriter(reg.ID, reg.Conn, reg.Codec, r.clock)
	r.deliver(res)

	slog.Debug("Sync client registered", "client_id", reg.ID, "role", reg.Role, "total_clients", len(r.state.clients))
	return nil
}

func (r *Relay) removeClient(clientID string) {
	if cw, ok := r.writers[clientID]; ok {
		cw.stop()
		delete(r.writers, clientID)
	}
	if _, ok := r.state.clients[clientID]; !ok {
		return
	}
	r.dispatch(disconnectEvent{id: clientID, at: r.clock.Now()})
	slog.Debug("Sync client unregistered", "client_id", clientID, "remaining_clients", len(r.state.clients))
}

func (r *Relay) handleReceive(c receiveCmd) {
	res := r.dispatch(inboundEvent{id: c.clientID, frame: c.frame, at: r.clock.Now()})
	if res.rejected != nil {
		slog.Warn("Ignoring sync frame", "client_id", c.clientID, "type", c.frame.Type, "error", res.rejected)
	}
}

func (r *Relay) handleCleanup(maxIdle time.Duration) []string {
	res := r.dispatch(cleanupEvent{maxIdle: maxIdle, now: r.clock.Now()})
	if len(res.evicted) > 0 {
		slog.Info("Evicted idle sync clients", "count", len(res.evicted), "max_idle", maxIdle)
	}
	if res.evicted == nil {
		return []string{}
	}
	return res.evicted
}

// dispatch applies ev and performs the resulting I/O.
func (r *Relay) dispatch(ev event) result {
	res := r.state.apply(ev)
	if res.rejected != nil {
		return res
	}
	r.deliver(res)

	if res.broadcast != nil {
		r.metrics.Broadcast(string(res.broadcast.Kind), res.previews, r.state.queue.len())
		slog.Debug("Change broadcast",
			"kind", res.broadcast.Kind,
			"changes", len(res.broadcast.Changes),
			"origin", res.broadcast.Origin,
			"preview_clients", res.previews,
		)
	}
	return res
}

func (r *Relay) deliver(res result) {
	for _, id := range res.evicted {
		if cw, ok := r.writers[id]; ok {
			cw.stopGraceful(closeReason(res.evictReason))
			delete(r.writers, id)
		}
	}
	r.metrics.Evicted(res.evictReason, len(res.evicted))

	var slow []string
	for _, d := range res.deliveries {
		cw, ok := r.writers[d.clientID]
		if !ok {
			continue
		}
		if !cw.enqueue(d.frame) {
			slow = append(slow, d.clientID)
		}
	}

	stats := r.state.stats(r.clock.Now())
	r.metrics.SetClients(stats.Admin, stats.Preview)

	for _, id := range slow {
		slog.Warn("Disconnecting slow sync client", "client_id", id)
		r.metrics.Evicted(metrics.EvictSlow, 1)
		r.removeClient(id)
	}
}

func (r *Relay) closeAll(reason string) {
	for id, cw := range r.writers {
		cw.stopGraceful(reason)
		delete(r.writers, id)
	}
	for id := range r.state.clients {
		delete(r.state.clients, id)
	}
	r.metrics.SetClients(0, 0)
}

func closeReason(evictReason string) string {
	switch evictReason {
	case metrics.EvictIdle:
		return "idle timeout"
	case metrics.EvictCapacity:
		return "relay at capacity"
	default:
		return "evicted"
	}
}
