package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/m-proto/loginpage/internal/domain"
	"github.com/m-proto/loginpage/internal/pkg/apperror"
	"github.com/m-proto/loginpage/internal/pkg/response"
)

// CodePeeker reads a live code without consuming it
type CodePeeker interface {
	Peek(ctx context.Context, subject string) (string, bool, error)
}

// OTPDebugHandler exposes pending codes to operators. Only mounted when otp.debug_peek is on.
type OTPDebugHandler struct {
	peeker CodePeeker
}

func NewOTPDebugHandler(peeker CodePeeker) *OTPDebugHandler {
	return &OTPDebugHandler{peeker: peeker}
}

// Peek handles GET /admin/otp/:email
func (h *OTPDebugHandler) Peek(c *gin.Context) {
	email := domain.NormalizeSubject(c.Param("email"))

	code, found, err := h.peeker.Peek(c.Request.Context(), email)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		response.Error(c, apperror.NotFoundError("pending code"))
		return
	}
	response.Success(c, gin.H{"email": email, "code": code})
}
