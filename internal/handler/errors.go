package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/m-proto/loginpage/internal/domain"
	"github.com/m-proto/loginpage/internal/pkg/apperror"
	"github.com/m-proto/loginpage/internal/pkg/response"
)

// problemFor maps domain failures to problem documents. Upstream details stay in the logs.
func problemFor(err error) *apperror.AppError {
	var unavailable *domain.UpstreamUnavailableError

	var appErr *apperror.AppError
	switch {
	case errors.Is(err, domain.ErrNotInvited):
		appErr = apperror.AuthorizationError(
			"This email is not allowed to use this service",
			"Contact the administrator to request an invitation",
		)
	case errors.Is(err, domain.ErrInvalidOrExpiredCode):
		appErr = apperror.InvalidCodeError()
	case errors.Is(err, domain.ErrNotificationDeliveryFailed):
		appErr = apperror.InternalError(
			"The verification email could not be sent",
			"Try again later",
		)
	case errors.Is(err, domain.ErrUpstreamAuth):
		appErr = apperror.AuthenticationError(
			"The identity provider refused to issue tokens",
			"Contact the administrator",
		)
	case errors.As(err, &unavailable) && unavailable.Timeout:
		appErr = apperror.GatewayTimeoutError(
			"The identity provider did not answer in time",
			"Request a new code and try again",
		)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		appErr = apperror.BadGatewayError(
			"The identity provider is unreachable",
			"Request a new code and try again",
		)
	case errors.Is(err, domain.ErrStorage):
		appErr = apperror.InternalError(
			"Verification codes are temporarily unavailable",
			"Try again later",
		)
	default:
		appErr = apperror.InternalError("Unexpected error", "Try again later")
	}
	return appErr.WithError(err)
}

func writeError(c *gin.Context, err error) {
	c.Error(err)
	response.Error(c, problemFor(err))
}

func validationFailed(c *gin.Context, err error, fields map[string]string) {
	c.Error(err)
	response.Error(c, apperror.ValidationError(
		"The request body is invalid",
		"Check the submitted fields",
	).WithErrors(fields))
}
