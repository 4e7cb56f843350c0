package auth

import (
	"context"
	"encoding/json"

	"github.com/m-proto/loginpage/internal/repository"
)

// OTPManager issues and consumes one-time codes
type OTPManager interface {
	Issue(ctx context.Context, subject string) (string, error)
	Verify(ctx context.Context, subject, code string) (bool, error)
	DiscardIfCode(ctx context.Context, subject, code string) (bool, error)
}

// InvitationGate checks the allow-list
type InvitationGate interface {
	IsAllowed(ctx context.Context, email string) bool
}

// Notifier delivers a code to its owner out of band
type Notifier interface {
	SendCode(ctx context.Context, email, code string) error
}

// CredentialExchanger turns a verified email into an IdP credential bundle
type CredentialExchanger interface {
	Exchange(ctx context.Context, email string) (json.RawMessage, error)
}

// AuditLogger records protocol events
type AuditLogger interface {
	LogEvent(ctx context.Context, event repository.AuditEvent) error
}
