package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/m-proto/loginpage/internal/pkg/response"
	"github.com/m-proto/loginpage/internal/service/auth"
)

type AuthHandler struct {
	authService *auth.Service
}

func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func requestMeta(c *gin.Context) auth.RequestMeta {
	return auth.RequestMeta{
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// SendOTP handles POST /auth/send-otp
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req auth.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err, map[string]string{
			"email": "A valid email address is required",
		})
		return
	}

	if err := h.authService.SendOTP(c.Request.Context(), req.Email, requestMeta(c)); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"ok":      true,
		"message": fmt.Sprintf("Verification code sent to %s", req.Email),
	})
}

// VerifyOTP handles POST /auth/verify-otp. On success the IdP token
// response is written back byte for byte.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req auth.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err, map[string]string{
			"email": "A valid email address is required",
			"code":  "The verification code is required",
		})
		return
	}

	bundle, err := h.authService.VerifyOTP(c.Request.Context(), req.Email, req.Code, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.RawJSON(c, 200, bundle)
}
