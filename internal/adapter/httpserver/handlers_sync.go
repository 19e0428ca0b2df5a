package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	apperrors "github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/errors"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/protocol"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/relay"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 1000
	maxChangesPerBatch = 200
	maxChangeIDLength  = 256
)

type publishRequest struct {
	Changes []string `json:"changes"`
}

type statusResponse struct {
	Status           string    `json:"status"`
	ConnectedClients int       `json:"connectedClients"`
	Admin            int       `json:"admin"`
	Preview          int       `json:"preview"`
	LastUpdate       time.Time `json:"lastUpdate"`
}

type recentChangesResponse struct {
	Changes []domain.ChangeMessage `json:"changes"`
}

func (s *Server) registerSyncRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	s.echo.GET("/ws", s.handleSyncSocket)

	api := s.echo.Group("/api/sync")
	api.GET("/status", s.handleSyncStatus)
	api.GET("/changes", s.handleRecentChanges, s.requireAdmin)
	api.POST("/changes", s.handlePublishChanges, rateLimiter, s.requireAdmin, csrfMiddleware)
	api.POST("/refresh", s.handleForceRefresh, rateLimiter, s.requireAdmin, csrfMiddleware)
}

// handleSyncSocket upgrades to a relay connection. The role is preview unless the caller asks for
// admin and holds an admin session or token.
func (s *Server) handleSyncSocket(c echo.Context) error {
	role, err := domain.ParseRole(c.QueryParam("role"))
	if err != nil {
		return apperrors.ValidationError("role must be admin or preview")
	}
	if role == domain.RoleAdmin && !s.isAdmin(c) {
		return apperrors.UnauthorizedError("admin role requires an authenticated session")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already wrote the error response.
		slog.WarnContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	reg := relay.Registration{
		ID:   uuid.NewString(),
		Role: role,
		Metadata: domain.ClientMetadata{
			UserAgent:   c.Request().UserAgent(),
			RemoteAddr:  c.RealIP(),
			ConnectedAt: s.now(),
		},
		Conn:  conn,
		Codec: protocol.ForSubprotocol(conn.Subprotocol()),
	}

	slog.DebugContext(c.Request().Context(), "Sync client connected", "client_id", reg.ID, "role", role, "codec", reg.Codec.Name())
	if err := s.relay.Serve(c.Request().Context(), reg); err != nil {
		slog.WarnContext(c.Request().Context(), "Sync connection rejected", "client_id", reg.ID, "error", err)
	}
	return nil
}

func (s *Server) handleSyncStatus(c echo.Context) error {
	stats, err := s.relay.Stats()
	if err != nil {
		return apperrors.UnavailableError("sync relay unavailable").WithContext("cause", err.Error())
	}

	response := statusResponse{
		Status:           "ok",
		ConnectedClients: stats.Total,
		Admin:            stats.Admin,
		Preview:          stats.Preview,
		LastUpdate:       stats.LastUpdate.UTC(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write status response: %w", err)
	}
	return nil
}

func (s *Server) handleRecentChanges(c echo.Context) error {
	limit := defaultRecentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxRecentLimit {
			return apperrors.ValidationError(fmt.Sprintf("limit must be between 1 and %d", maxRecentLimit))
		}
		limit = parsed
	}

	changes, err := s.relay.RecentChanges(limit)
	if err != nil {
		return apperrors.UnavailableError("sync relay unavailable").WithContext("cause", err.Error())
	}

	if err := c.JSON(http.StatusOK, recentChangesResponse{Changes: changes}); err != nil {
		return fmt.Errorf("failed to write changes response: %w", err)
	}
	return nil
}

func (s *Server) handlePublishChanges(c echo.Context) error {
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	changes, err := normalizeChangeIDs(req.Changes)
	if err != nil {
		return err
	}

	msg := domain.ChangeMessage{Kind: domain.KindContentChanged, Changes: changes}
	return s.broadcast(c, msg)
}

func (s *Server) handleForceRefresh(c echo.Context) error {
	return s.broadcast(c, domain.ChangeMessage{Kind: domain.KindForceRefresh})
}

func (s *Server) broadcast(c echo.Context, msg domain.ChangeMessage) error {
	if err := s.relay.BroadcastChange(msg, ""); err != nil {
		return apperrors.UnavailableError("sync relay unavailable").WithContext("cause", err.Error())
	}

	slog.InfoContext(c.Request().Context(), "Change published", "kind", msg.Kind, "changes", len(msg.Changes))
	if err := c.JSON(http.StatusAccepted, map[string]string{"status": "queued"}); err != nil {
		return fmt.Errorf("failed to write publish response: %w", err)
	}
	return nil
}

// normalizeChangeIDs trims ids, drops duplicates and enforces the batch limits.
func normalizeChangeIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, apperrors.ValidationError("change ids must not be empty")
		}
		if len(id) > maxChangeIDLength {
			return nil, apperrors.ValidationError(fmt.Sprintf("change ids must be at most %d characters", maxChangeIDLength))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	if len(out) == 0 {
		return nil, apperrors.ValidationError("changes is required")
	}
	if len(out) > maxChangesPerBatch {
		return nil, apperrors.ValidationError(fmt.Sprintf("at most %d changes per batch", maxChangesPerBatch))
	}
	return out, nil
}
