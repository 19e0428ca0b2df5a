package httpserver

import (
	"log/slog"
	"net/http"

	apperrors "github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(correlationMiddleware)
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		// The public site embeds its own pages in the preview iframe.
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            63072000, // 2 years; only sent over HTTPS
		HSTSPreloadEnabled:    true,
		ContentSecurityPolicy: "default-src 'self'; frame-ancestors 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(s.maintenanceMiddleware)

	csrfMiddleware := s.setupCSRFMiddleware()
	rateLimiter := newRateLimiter(s.config.RateLimitPerSecond, s.config.RateLimitBurst)

	s.registerHealthRoutes()
	s.registerAuthRoutes(csrfMiddleware, rateLimiter)
	s.registerSyncRoutes(csrfMiddleware, rateLimiter)
	s.registerMaintenanceRoutes(csrfMiddleware)

	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}

const csrfContextKey = "csrf"

// setupCSRFMiddleware guards cookie-authenticated mutations. Bearer requests are skipped since
// browsers never attach the Authorization header on their own.
func (s *Server) setupCSRFMiddleware() echo.MiddlewareFunc {
	maxAge := int(s.config.SessionMaxAge.Seconds())

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper: func(c echo.Context) bool {
			_, ok := bearerToken(c.Request())
			return ok
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return apperrors.ForbiddenError("invalid or missing csrf token")
		},
		ContextKey:     csrfContextKey,
		TokenLookup:    "form:csrf_token,header:X-CSRF-Token",
		CookieName:     "csrf_token",
		CookiePath:     "/",
		CookieMaxAge:   maxAge,
		CookieHTTPOnly: true,
		CookieSecure:   s.config.IsProduction(),
		CookieSameSite: http.SameSiteStrictMode,
	})
}
