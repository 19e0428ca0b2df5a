package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/protocol"
	"github.com/gorilla/websocket"
)

const maxFrameSize = 64 * 1024

// Serve registers the connection and reads frames from it until the connection fails or ctx
// is done. The client is unregistered before Serve returns. Malformed frames are logged and skipped.
func (r *Relay) Serve(ctx context.Context, reg Registration) error {
	if reg.Codec == nil {
		reg.Codec = protocol.JSON
	}
	if err := r.AddClient(reg); err != nil {
		_ = reg.Conn.Close()
		return fmt.Errorf("register sync client: %w", err)
	}
	defer r.RemoveClient(reg.ID)

	stop := context.AfterFunc(ctx, func() { _ = reg.Conn.Close() })
	defer stop()

	reg.Conn.SetReadLimit(maxFrameSize)
	for {
		_, data, err := reg.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "Sync connection read failed", "client_id", reg.ID, "error", err)
			}
			return nil
		}

		var frame protocol.Envelope
		if err := reg.Codec.Decode(data, &frame); err != nil {
			slog.WarnContext(ctx, "Malformed sync frame", "client_id", reg.ID, "error", err)
			r.metrics.Malformed()
			r.UpdateActivity(reg.ID)
			continue
		}
		r.Receive(reg.ID, frame)
	}
}
