package syncclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

var errDialRefused = errors.New("connection refused")

// fakeConn records written frames and replays frames queued with push.
type fakeConn struct {
	writes    chan protocol.Envelope
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		writes:  make(chan protocol.Envelope, 64),
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return websocket.ErrCloseSent
	default:
	}
	var env protocol.Envelope
	if err := protocol.JSON.Decode(data, &env); err != nil {
		return err
	}
	f.writes <- env
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	}
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) push(frame any) {
	data, err := protocol.JSON.Encode(frame)
	if err != nil {
		panic(err)
	}
	f.inbound <- data
}

// drain returns the frames written so far.
func (f *fakeConn) drain() []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case env := <-f.writes:
			out = append(out, env)
		default:
			return out
		}
	}
}

// fakeDialer hands out fakeConns, or fails while failing is set.
type fakeDialer struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	failing  bool
	attempts []time.Time
	conns    []*fakeConn
}

func (d *fakeDialer) dial(context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.attempts = append(d.attempts, d.clock.Now())
	if d.failing {
		return nil, errDialRefused
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) setFailing(failing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing = failing
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.attempts)
}

func (d *fakeDialer) attempt(i int) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts[i]
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}
