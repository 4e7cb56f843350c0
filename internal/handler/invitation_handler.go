package handler

import (
	"context"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/m-proto/loginpage/internal/pkg/apperror"
	"github.com/m-proto/loginpage/internal/pkg/response"
)

// InvitationManager edits the allow-list
type InvitationManager interface {
	Add(ctx context.Context, email string) (bool, error)
	Remove(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

type InvitationHandler struct {
	invitations InvitationManager
}

func NewInvitationHandler(invitations InvitationManager) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type addInvitationRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
}

// List handles GET /admin/invitations
func (h *InvitationHandler) List(c *gin.Context) {
	emails, err := h.invitations.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		response.Error(c, apperror.InternalError("The invitation list could not be read", "Try again later").WithError(err))
		return
	}
	response.Success(c, gin.H{"invited_emails": emails})
}

// Add handles POST /admin/invitations
func (h *InvitationHandler) Add(c *gin.Context) {
	var req addInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err, map[string]string{"email": "A valid email address is required"})
		return
	}

	added, err := h.invitations.Add(c.Request.Context(), req.Email)
	if err != nil {
		c.Error(err)
		response.Error(c, apperror.InternalError("The invitation could not be saved", "Try again later").WithError(err))
		return
	}

	body := gin.H{"email": req.Email, "added": added}
	if added {
		response.Created(c, body)
		return
	}
	response.Success(c, body)
}

// Remove handles DELETE /admin/invitations/:email
func (h *InvitationHandler) Remove(c *gin.Context) {
	email := strings.TrimSpace(c.Param("email"))
	if _, err := mail.ParseAddress(email); err != nil {
		validationFailed(c, err, map[string]string{"email": "A valid email address is required"})
		return
	}

	removed, err := h.invitations.Remove(c.Request.Context(), email)
	if err != nil {
		c.Error(err)
		response.Error(c, apperror.InternalError("The invitation could not be removed", "Try again later").WithError(err))
		return
	}
	if !removed {
		response.Error(c, apperror.NotFoundError("invitation"))
		return
	}
	response.NoContent(c)
}
