package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RelayStatus is the body of GET /api/sync/status.
type RelayStatus struct {
	Status           string    `json:"status"`
	ConnectedClients int       `json:"connectedClients"`
	Admin            int       `json:"admin"`
	Preview          int       `json:"preview"`
	LastUpdate       time.Time `json:"lastUpdate"`
}

func parseRelayURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return u, nil
	default:
		return nil, fmt.Errorf("relay url must use ws or wss, got %q", u.Scheme)
	}
}

// StatusURL derives the HTTP status endpoint from the relay's WebSocket URL.
func StatusURL(relayURL string) (string, error) {
	u, err := parseRelayURL(relayURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path = "/api/sync/status"
	u.RawQuery = ""
	return u.String(), nil
}

// FetchStatus reads the relay's client counts over HTTP.
func FetchStatus(ctx context.Context, client *http.Client, relayURL string) (RelayStatus, error) {
	statusURL, err := StatusURL(relayURL)
	if err != nil {
		return RelayStatus{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return RelayStatus{}, fmt.Errorf("build status request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return RelayStatus{}, fmt.Errorf("fetch relay status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return RelayStatus{}, fmt.Errorf("fetch relay status: unexpected status %d", resp.StatusCode)
	}

	var status RelayStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return RelayStatus{}, fmt.Errorf("decode relay status: %w", err)
	}
	return status, nil
}
