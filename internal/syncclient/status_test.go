package syncclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "ws://localhost:8080/ws", want: "http://localhost:8080/api/sync/status"},
		{in: "wss://example.com/ws?role=admin", want: "https://example.com/api/sync/status"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := StatusURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusURL_RejectsHTTP(t *testing.T) {
	_, err := StatusURL("http://localhost:8080/ws")
	assert.Error(t, err)
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sync/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","connectedClients":3,"admin":1,"preview":2,"lastUpdate":"2026-03-01T12:00:00Z"}`))
	}))
	defer srv.Close()

	status, err := FetchStatus(context.Background(), srv.Client(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	require.NoError(t, err)
	assert.Equal(t, 3, status.ConnectedClients)
	assert.Equal(t, 2, status.Preview)
}

func TestFetchStatus_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := FetchStatus(context.Background(), srv.Client(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	assert.ErrorContains(t, err, "503")
}

func TestWithRole(t *testing.T) {
	got, err := withRole("ws://localhost:8080/ws?codec=json", "preview")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws?codec=json&role=preview", got)
}
