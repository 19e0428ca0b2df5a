package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	rateLimiterExpiry = 5 * time.Minute
	rateLimitedType   = apperrors.ErrorType("rate_limited")
)

// newRateLimiter limits requests per client IP with a token bucket.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	retryAfter := retryAfterSeconds(ratePerSecond)

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			slog.WarnContext(c.Request().Context(), "Rate limit exceeded", "remote_ip", identifier, "path", c.Request().URL.Path)
			c.Response().Header().Set("Retry-After", retryAfter)
			return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error: "rate limit exceeded",
				Type:  rateLimitedType,
			})
		},
	})
}

func retryAfterSeconds(ratePerSecond float64) string {
	if ratePerSecond <= 0 {
		return "60"
	}
	seconds := int(1/ratePerSecond + 0.999)
	return strconv.Itoa(max(seconds, 1))
}
