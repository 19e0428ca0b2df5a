package httpserver

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Token string `json:"token" form:"token"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	CSRFToken     string `json:"csrfToken,omitempty"`
}

func (s *Server) registerAuthRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	s.echo.POST("/auth/login", s.handleLogin, rateLimiter)
	s.echo.POST("/auth/logout", s.handleLogout, rateLimiter, csrfMiddleware)
	s.echo.GET("/auth/session", s.handleSession, csrfMiddleware)
}

// requireAdmin rejects requests that carry neither an admin session nor the admin bearer token.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.isAdmin(c) {
			return apperrors.UnauthorizedError("admin session required")
		}
		return next(c)
	}
}

// isAdmin checks the Authorization header first, then the session cookie.
// A bearer token that does not match is not rescued by a valid cookie.
func (s *Server) isAdmin(c echo.Context) bool {
	if token, ok := bearerToken(c.Request()); ok {
		return s.tokenMatches(token)
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return false
	}
	admin, _ := session.Values[sessionKeyAdmin].(bool)
	return admin
}

func (s *Server) tokenMatches(token string) bool {
	if s.config.AdminToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminToken)) == 1
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid login request")
	}
	if req.Token == "" {
		return apperrors.ValidationError("token is required")
	}
	if !s.tokenMatches(req.Token) {
		return apperrors.UnauthorizedError("invalid admin token")
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Discarding unreadable session", "error", err)
	}
	session.Values[sessionKeyAdmin] = true
	session.Values[sessionKeyLoginAt] = s.now().Unix()
	if err := session.Save(c.Request(), c.Response()); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	slog.InfoContext(c.Request().Context(), "Admin logged in", "remote_ip", c.RealIP())
	if err := c.JSON(http.StatusOK, sessionResponse{Authenticated: true}); err != nil {
		return fmt.Errorf("failed to write login response: %w", err)
	}
	return nil
}

func (s *Server) handleLogout(c echo.Context) error {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Discarding unreadable session", "error", err)
	}
	session.Values = map[any]any{}
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response()); err != nil {
		return apperrors.InternalError("failed to clear session", err)
	}

	if err := c.JSON(http.StatusOK, sessionResponse{Authenticated: false}); err != nil {
		return fmt.Errorf("failed to write logout response: %w", err)
	}
	return nil
}

// handleSession reports the admin state. Authenticated callers also get the csrf token that
// cookie-based mutations must echo in X-CSRF-Token.
func (s *Server) handleSession(c echo.Context) error {
	resp := sessionResponse{Authenticated: s.isAdmin(c)}
	if resp.Authenticated {
		resp.CSRFToken, _ = c.Get(csrfContextKey).(string)
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write session response: %w", err)
	}
	return nil
}
