package apperror_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m-proto/loginpage/internal/pkg/apperror"
)

func TestValidationError(t *testing.T) {
	err := apperror.ValidationError("Invalid email", "Enter a valid email address")

	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "Invalid request", err.Title)
	assert.Contains(t, err.Detail, "email")
	assert.Contains(t, err.Type, "validation")
}

func TestInvalidCodeError(t *testing.T) {
	err := apperror.InvalidCodeError()

	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Contains(t, err.Type, "invalid-code")
}

func TestAuthenticationError(t *testing.T) {
	err := apperror.AuthenticationError("Rejected", "Contact support")

	assert.Equal(t, http.StatusUnauthorized, err.Status)
	assert.Equal(t, "Authentication failed", err.Title)
}

func TestUpstreamErrors(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, apperror.BadGatewayError("x", "y").Status)
	assert.Equal(t, http.StatusGatewayTimeout, apperror.GatewayTimeoutError("x", "y").Status)
	assert.Equal(t, http.StatusServiceUnavailable, apperror.ServiceUnavailableError("x", "y").Status)
}

func TestErrorWithErrors(t *testing.T) {
	fieldErrors := map[string]string{
		"email": "invalid",
		"code":  "required",
	}
	err := apperror.ValidationError("Several errors", "Fix the fields").
		WithErrors(fieldErrors)

	assert.Equal(t, 2, len(err.Errors))
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("redis connection failed")
	err := apperror.InternalError("Storage failure", "Try again later").WithError(inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "redis connection failed")
}

func TestNotFoundError(t *testing.T) {
	err := apperror.NotFoundError("invitation")

	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Contains(t, err.Detail, "invitation")
}
