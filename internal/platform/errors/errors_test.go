package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := ValidationError("changes must not be empty")

	assert.Equal(t, TypeValidation, err.Type)
	assert.Equal(t, "changes must not be empty", err.Message)
	assert.Nil(t, err.Cause)
	assert.NotNil(t, err.Context)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Contains(t, err.Error(), "validation")
	assert.Contains(t, err.Error(), "changes must not be empty")
}

func TestUnauthorizedError(t *testing.T) {
	err := UnauthorizedError("admin session required")

	assert.Equal(t, TypeUnauthorized, err.Type)
	assert.Equal(t, http.StatusUnauthorized, err.HTTPStatus())
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestForbiddenError(t *testing.T) {
	err := ForbiddenError("invalid or missing csrf token")

	assert.Equal(t, TypeForbidden, err.Type)
	assert.Equal(t, http.StatusForbidden, err.HTTPStatus())
	assert.Contains(t, err.Error(), "forbidden")
}

func TestUnavailableError(t *testing.T) {
	err := UnavailableError("site under maintenance")

	assert.Equal(t, TypeUnavailable, err.Type)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
	assert.Contains(t, err.Error(), "site under maintenance")
}

func TestInternalError(t *testing.T) {
	cause := fmt.Errorf("relay stopped")
	err := InternalError("failed to read stats", cause)

	assert.Equal(t, TypeInternal, err.Type)
	assert.Equal(t, cause, err.Cause)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.Contains(t, err.Error(), "failed to read stats")
	assert.Contains(t, err.Error(), "relay stopped")
}

func TestInternalErrorWithoutCause(t *testing.T) {
	err := InternalError("something went wrong", nil)

	assert.Nil(t, err.Cause)
	assert.NotContains(t, err.Error(), "<nil>")
}

func TestExternalError(t *testing.T) {
	cause := fmt.Errorf("redis: connection refused")
	err := ExternalError("failed to read maintenance flag", cause)

	assert.Equal(t, TypeExternal, err.Type)
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWithContextChaining(t *testing.T) {
	err := ValidationError("invalid limit").
		WithContext("param", "limit").
		WithContext("value", "-1")

	assert.Len(t, err.Context, 2)
	assert.Equal(t, "limit", err.Context["param"])
	assert.Equal(t, "-1", err.Context["value"])
}

func TestWithContextNilMap(t *testing.T) {
	err := &Error{Type: TypeValidation, Message: "test"}

	err = err.WithContext("key", "value")

	assert.Equal(t, "value", err.Context["key"])
}

func TestToResponse(t *testing.T) {
	err := ValidationError("too many changes").WithContext("max", 200)

	resp := err.ToResponse()

	assert.Equal(t, "too many changes", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, 200, resp.Context["max"])
}

func TestUnwrapAndIs(t *testing.T) {
	root := fmt.Errorf("root")
	err := InternalError("wrapped", root)

	assert.Equal(t, root, errors.Unwrap(err))
	assert.True(t, errors.Is(err, root))
	assert.Nil(t, errors.Unwrap(ValidationError("test")))
}

func TestAsStructuredError(t *testing.T) {
	t.Run("structured error passes through", func(t *testing.T) {
		original := ForbiddenError("invalid csrf token")
		assert.Same(t, original, AsStructuredError(original))
	})

	t.Run("wrapped structured error is found", func(t *testing.T) {
		wrapped := fmt.Errorf("handler: %w", UnauthorizedError("no session"))
		result := AsStructuredError(wrapped)
		require.NotNil(t, result)
		assert.Equal(t, TypeUnauthorized, result.Type)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		original := fmt.Errorf("boom")
		result := AsStructuredError(original)
		assert.Equal(t, TypeInternal, result.Type)
		assert.Equal(t, "internal server error", result.Message)
		assert.Equal(t, original, result.Cause)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})
}

func TestHTTPStatusAllTypes(t *testing.T) {
	tests := []struct {
		errorType  ErrorType
		wantStatus int
	}{
		{TypeValidation, http.StatusBadRequest},
		{TypeUnauthorized, http.StatusUnauthorized},
		{TypeForbidden, http.StatusForbidden},
		{TypeNotFound, http.StatusNotFound},
		{TypeConflict, http.StatusConflict},
		{TypeUnavailable, http.StatusServiceUnavailable},
		{TypeInternal, http.StatusInternalServerError},
		{TypeExternal, http.StatusBadGateway},
		{ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			err := &Error{Type: tt.errorType}
			assert.Equal(t, tt.wantStatus, err.HTTPStatus())
		})
	}
}
