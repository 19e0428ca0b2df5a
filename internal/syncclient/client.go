package syncclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/retry"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultDebounce   = 500 * time.Millisecond
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultKeepAlive  = 25 * time.Second

	maxRecordedErrors = 5
	dialTimeout       = 15 * time.Second
	writeTimeout      = 5 * time.Second
)

var errNotConnected = errors.New("not connected to relay")

// Config configures a Client. Zero values fall back to the defaults.
type Config struct {
	URL string
	// Role requested from the relay. Defaults to admin.
	Role domain.Role
	// Token is the admin bearer token sent with the handshake.
	Token      string
	Debounce   time.Duration
	MaxRetries int
	RetryDelay time.Duration
	KeepAlive  time.Duration
	Codec      protocol.Codec
	// OnChange is called from the client goroutine for every content_changed or force_refresh
	// frame received. It must not block.
	OnChange func(protocol.Change)
}

func (c Config) withDefaults() Config {
	if c.Role == "" {
		c.Role = domain.RoleAdmin
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.Codec == nil {
		c.Codec = protocol.JSON
	}
	return c
}

// State is a snapshot of the client.
type State struct {
	Connected         bool
	ClientID          string
	ConnectedClients  int
	LastSync          time.Time
	SyncCount         int
	AckCount          int
	HasPendingChanges bool
	RetryCount        int
	Errors            []string
}

type Option func(*Client)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithDialFunc replaces the WebSocket dialer.
func WithDialFunc(dial DialFunc) Option {
	return func(c *Client) { c.dial = dial }
}

// clientCmd is anything the client goroutine processes: public commands and internal events.
type clientCmd interface{ isClientCmd() }

type baseClientCmd struct{}

func (baseClientCmd) isClientCmd() {}

type notifyCmd struct {
	baseClientCmd
	changeID string
	ack      chan struct{}
}

type forceSyncCmd struct {
	baseClientCmd
	ack chan error
}

type reconnectCmd struct {
	baseClientCmd
	ack chan struct{}
}

type stateCmd struct {
	baseClientCmd
	replyChannel chan State
}

type closeCmd struct {
	baseClientCmd
}

type dialResultEvent struct {
	baseClientCmd
	generation int
	conn       Conn
	err        error
}

type frameEvent struct {
	baseClientCmd
	generation int
	frame      protocol.Envelope
}

type connClosedEvent struct {
	baseClientCmd
	generation int
	err        error
}

type retryEvent struct {
	baseClientCmd
	generation int
}

type debounceEvent struct {
	baseClientCmd
	generation int
}

// Client notifies the relay about content changes.
type Client struct {
	config Config
	clock  clockwork.Clock
	dial   DialFunc
	policy retry.Policy
	cmdCh  chan clientCmd
	done   chan struct{}

	// Owned by the run goroutine.
	conn               Conn
	generation         int
	dialing            bool
	closed             bool
	pending            []string
	debounceTimer      clockwork.Timer
	debounceGeneration int
	retryTimer         clockwork.Timer
	state              State
}

// New starts a client and begins connecting immediately.
func New(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		config: cfg,
		clock:  clockwork.NewRealClock(),
		cmdCh:  make(chan clientCmd, 64),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		c.dial = WebSocketDialer(cfg)
	}
	c.policy = retry.Policy{
		MaxAttempts: cfg.MaxRetries,
		Backoff:     retry.Linear(cfg.RetryDelay),
		Clock:       c.clock,
	}

	keepAlive := c.clock.NewTicker(cfg.KeepAlive)
	go c.run(keepAlive)
	return c
}

// NotifyChange adds changeID to the pending batch and restarts the debounce window.
func (c *Client) NotifyChange(changeID string) {
	ack := make(chan struct{})
	if c.post(notifyCmd{changeID: changeID, ack: ack}) {
		c.wait(ack)
	}
}

// ForceSync cancels the debounce window and sends now: the pending batch if there is one,
// otherwise a force_refresh.
func (c *Client) ForceSync() error {
	ack := make(chan error, 1)
	if !c.post(forceSyncCmd{ack: ack}) {
		return errNotConnected
	}
	select {
	case err := <-ack:
		return err
	case <-c.done:
		return errNotConnected
	}
}

// Reconnect drops the current connection, resets the retry budget and dials again.
func (c *Client) Reconnect() {
	ack := make(chan struct{})
	if c.post(reconnectCmd{ack: ack}) {
		c.wait(ack)
	}
}

// State returns a snapshot. After Close it returns the zero State.
func (c *Client) State() State {
	reply := make(chan State, 1)
	if !c.post(stateCmd{replyChannel: reply}) {
		return State{}
	}
	select {
	case s := <-reply:
		return s
	case <-c.done:
		return State{}
	}
}

// Close cancels all timers, closes the connection and stops the client. Pending changes are dropped.
func (c *Client) Close() {
	if c.post(closeCmd{}) {
		<-c.done
	}
}

func (c *Client) post(cmd clientCmd) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.cmdCh <- cmd:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) wait(ack <-chan struct{}) {
	select {
	case <-ack:
	case <-c.done:
	}
}

func (c *Client) run(keepAlive clockwork.Ticker) {
	defer close(c.done)
	defer keepAlive.Stop()

	c.startDial()

	for {
		select {
		case <-keepAlive.Chan():
			c.sendKeepAlive()
		case cmd := <-c.cmdCh:
			switch cmd := cmd.(type) {
			case notifyCmd:
				c.handleNotify(cmd.changeID)
				close(cmd.ack)
			case forceSyncCmd:
				cmd.ack <- c.handleForceSync()
			case reconnectCmd:
				c.handleReconnect()
				close(cmd.ack)
			case stateCmd:
				cmd.replyChannel <- c.snapshot()
			case closeCmd:
				c.handleClose()
				return
			case dialResultEvent:
				c.handleDialResult(cmd)
			case frameEvent:
				if cmd.generation == c.generation {
					c.handleFrame(cmd.frame)
				}
			case connClosedEvent:
				c.handleConnClosed(cmd)
			case retryEvent:
				c.handleRetry(cmd)
			case debounceEvent:
				if cmd.generation == c.debounceGeneration {
					c.debounceTimer = nil
					c.flush()
				}
			default:
				slog.Warn("Sync client received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (c *Client) handleNotify(changeID string) {
	if !slices.Contains(c.pending, changeID) {
		c.pending = append(c.pending, changeID)
	}

	c.stopDebounce()
	generation := c.debounceGeneration
	c.debounceTimer = c.clock.AfterFunc(c.config.Debounce, func() {
		c.post(debounceEvent{generation: generation})
	})
}

func (c *Client) handleForceSync() error {
	c.stopDebounce()
	if c.conn == nil {
		return errNotConnected
	}
	if len(c.pending) > 0 {
		return c.flush()
	}

	refresh := protocol.Change{Type: domain.KindForceRefresh, Timestamp: protocol.Millis(c.clock.Now())}
	if err := c.write(refresh); err != nil {
		c.recordError(err)
		return err
	}
	return nil
}

// stopDebounce cancels the debounce timer and invalidates an already fired one.
func (c *Client) stopDebounce() {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	c.debounceGeneration++
}

// flush sends the pending batch. While disconnected the batch is kept and sent after the next connect.
func (c *Client) flush() error {
	if len(c.pending) == 0 {
		return nil
	}
	if c.conn == nil {
		slog.Debug("Sync client offline, keeping pending changes", "pending", len(c.pending))
		return errNotConnected
	}

	frame := protocol.Change{
		Type:      domain.KindContentChanged,
		Changes:   slices.Clone(c.pending),
		Timestamp: protocol.Millis(c.clock.Now()),
	}
	if err := c.write(frame); err != nil {
		c.recordError(err)
		return err
	}

	slog.Debug("Sync client sent changes", "changes", len(frame.Changes))
	c.pending = nil
	return nil
}

func (c *Client) sendKeepAlive() {
	if c.conn == nil {
		return
	}
	ping := protocol.Ping{Type: domain.KindPing, Timestamp: protocol.Millis(c.clock.Now())}
	if err := c.write(ping); err != nil {
		c.recordError(err)
	}
}

func (c *Client) write(frame any) error {
	data, err := c.config.Codec.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(c.config.Codec.FrameType(), data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *Client) startDial() {
	if c.closed || c.dialing || c.conn != nil {
		return
	}
	c.dialing = true

	generation := c.generation
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()

		conn, err := c.dial(ctx)
		if !c.post(dialResultEvent{generation: generation, conn: conn, err: err}) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (c *Client) handleDialResult(ev dialResultEvent) {
	if ev.generation != c.generation || c.closed {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}
	c.dialing = false

	if ev.err != nil {
		c.recordError(ev.err)
		c.scheduleRetry()
		return
	}

	c.conn = ev.conn
	c.state.Connected = true
	c.state.RetryCount = 0
	c.state.Errors = nil
	slog.Info("Sync client connected", "url", c.config.URL, "role", c.config.Role)

	go c.readLoop(ev.conn, ev.generation)

	if len(c.pending) > 0 && c.debounceTimer == nil {
		_ = c.flush()
	}
}

func (c *Client) readLoop(conn Conn, generation int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.post(connClosedEvent{generation: generation, err: err})
			return
		}

		var frame protocol.Envelope
		if err := c.config.Codec.Decode(data, &frame); err != nil {
			slog.Warn("Sync client received malformed frame", "error", err)
			continue
		}
		if !c.post(frameEvent{generation: generation, frame: frame}) {
			return
		}
	}
}

func (c *Client) handleFrame(frame protocol.Envelope) {
	switch frame.Type {
	case domain.KindConnectionEstablished:
		c.state.ClientID = frame.ClientID
		c.state.ConnectedClients = frame.ConnectedClients
	case domain.KindClientStats:
		c.state.ConnectedClients = frame.Total
	case domain.KindSyncStatus:
		c.state.SyncCount++
		if frame.Origin != "" && frame.Origin == c.state.ClientID {
			c.state.AckCount++
		}
		c.state.LastSync = protocol.FromMillis(frame.Timestamp)
		if c.state.LastSync.IsZero() {
			c.state.LastSync = c.clock.Now()
		}
	case domain.KindContentChanged, domain.KindForceRefresh:
		if c.config.OnChange != nil {
			c.config.OnChange(protocol.Change{Type: frame.Type, Changes: frame.Changes, Timestamp: frame.Timestamp, Origin: frame.Origin})
		}
	case domain.KindPong:
	default:
		slog.Debug("Sync client ignoring frame", "type", frame.Type)
	}
}

func (c *Client) handleConnClosed(ev connClosedEvent) {
	if ev.generation != c.generation || c.conn == nil {
		return
	}

	_ = c.conn.Close()
	c.conn = nil
	c.state.Connected = false

	if !websocket.IsCloseError(ev.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.recordError(fmt.Errorf("connection lost: %w", ev.err))
	} else {
		slog.Info("Sync client connection closed", "error", ev.err)
	}
	c.scheduleRetry()
}

func (c *Client) scheduleRetry() {
	if c.closed || c.retryTimer != nil {
		return
	}
	if c.policy.Exhausted(c.state.RetryCount) {
		slog.Warn("Sync client giving up after retries", "retries", c.state.RetryCount)
		return
	}

	c.state.RetryCount++
	delay := c.policy.Delay(c.state.RetryCount)
	generation := c.generation
	c.retryTimer = c.clock.AfterFunc(delay, func() {
		c.post(retryEvent{generation: generation})
	})
	slog.Info("Sync client reconnecting", "attempt", c.state.RetryCount, "delay", delay)
}

func (c *Client) handleRetry(ev retryEvent) {
	if ev.generation != c.generation {
		return
	}
	c.retryTimer = nil
	c.startDial()
}

func (c *Client) handleReconnect() {
	c.generation++
	c.dropConnection()
	c.state.RetryCount = 0
	c.state.Errors = nil
	c.startDial()
}

func (c *Client) handleClose() {
	c.closed = true
	c.generation++
	c.stopDebounce()
	c.dropConnection()
	c.pending = nil
}

func (c *Client) dropConnection() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.dialing = false
	c.state.Connected = false
}

// recordError keeps the most recent errors, oldest first.
func (c *Client) recordError(err error) {
	slog.Warn("Sync client error", "error", err)
	c.state.Errors = append(c.state.Errors, err.Error())
	if len(c.state.Errors) > maxRecordedErrors {
		c.state.Errors = slices.Clone(c.state.Errors[len(c.state.Errors)-maxRecordedErrors:])
	}
}

func (c *Client) snapshot() State {
	s := c.state
	s.HasPendingChanges = len(c.pending) > 0
	s.Errors = slices.Clone(c.state.Errors)
	return s
}
