package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/correlation"
	apperrors "github.com/MehmetSalihK/portfolioadmin-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

// correlationMiddleware tags the request context with the caller's X-Request-ID, or a fresh id,
// and echoes it back on the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.HeaderName))
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.HeaderName, id)
		return next(c)
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var structuredErr *apperrors.Error
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				structuredErr = WrapHTTPError(httpErr)
			} else {
				structuredErr = apperrors.AsStructuredError(err)
			}
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeUnauthorized:
		slog.WarnContext(ctx, "Unauthorized", append(attrs, "remote_ip", c.RealIP())...)
	case apperrors.TypeForbidden:
		slog.WarnContext(ctx, "Forbidden", append(attrs, "remote_ip", c.RealIP())...)
	case apperrors.TypeUnavailable:
		slog.DebugContext(ctx, "Unavailable", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

// WrapHTTPError converts an echo.HTTPError into a structured error.
func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := "internal server error"
	if httpErr.Message != nil {
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}

	var errType apperrors.ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest:
		errType = apperrors.TypeValidation
	case http.StatusUnauthorized:
		errType = apperrors.TypeUnauthorized
	case http.StatusForbidden:
		errType = apperrors.TypeForbidden
	case http.StatusNotFound:
		errType = apperrors.TypeNotFound
	case http.StatusConflict:
		errType = apperrors.TypeConflict
	case http.StatusServiceUnavailable:
		errType = apperrors.TypeUnavailable
	case http.StatusBadGateway:
		errType = apperrors.TypeExternal
	default:
		errType = apperrors.TypeInternal
	}

	err := &apperrors.Error{
		Type:    errType,
		Message: message,
		Context: make(map[string]any),
	}

	if httpErr.Internal != nil {
		err.Cause = httpErr.Internal
	}

	return err
}
