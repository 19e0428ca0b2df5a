package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// clientWriter owns all writes to one connection. Frames are queued on a bounded buffer; a full
// buffer means the client cannot keep up.
type clientWriter struct {
	id          string
	connection  *websocket.Conn
	codec       protocol.Codec
	clock       clockwork.Clock
	sendChannel chan any
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newClientWriter(id string, connection *websocket.Conn, codec protocol.Codec, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		id:          id,
		connection:  connection,
		codec:       codec,
		clock:       clock,
		sendChannel: make(chan any, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

// enqueue never blocks. It returns false when the send buffer is full.
func (cw *clientWriter) enqueue(frame any) bool {
	select {
	case cw.sendChannel <- frame:
		return true
	default:
		return false
	}
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case frame := <-cw.sendChannel:
			data, err := cw.codec.Encode(frame)
			if err != nil {
				slog.Error("Failed to encode sync frame", "client_id", cw.id, "error", err)
				continue
			}
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(cw.codec.FrameType(), data); err != nil {
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)

		// The run goroutine must be gone before we write the close frame.
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

// Socket deadlines are wall-clock time regardless of the injected clock.
func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(time.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(time.Now().Add(pongDeadline))
}
