package syncclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

// Conn is the part of *websocket.Conn the client uses.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc opens a connection to the relay.
type DialFunc func(ctx context.Context) (Conn, error)

// WebSocketDialer dials the relay at cfg.URL, offering cfg.Codec's subprotocol and the admin
// bearer token when one is configured.
func WebSocketDialer(cfg Config) DialFunc {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		Subprotocols:     []string{cfg.Codec.Subprotocol()},
	}

	return func(ctx context.Context) (Conn, error) {
		url, err := withRole(cfg.URL, cfg.Role)
		if err != nil {
			return nil, err
		}

		header := http.Header{}
		if cfg.Token != "" {
			header.Set("Authorization", "Bearer "+cfg.Token)
		}

		conn, resp, err := dialer.DialContext(ctx, url, header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dial relay: %w (status %d)", err, resp.StatusCode)
			}
			return nil, fmt.Errorf("dial relay: %w", err)
		}
		return conn, nil
	}
}

func withRole(rawURL string, role domain.Role) (string, error) {
	u, err := parseRelayURL(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("role", string(role))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var _ Conn = (*websocket.Conn)(nil)
