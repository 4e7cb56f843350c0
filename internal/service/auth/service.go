package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m-proto/loginpage/internal/domain"
	"github.com/m-proto/loginpage/internal/repository"
)

// RequestMeta describes the caller for audit purposes
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}

// Service runs the two-phase passwordless protocol: send a code, then trade
// the code for IdP credentials.
type Service struct {
	gate      InvitationGate
	otp       OTPManager
	notifier  Notifier
	exchanger CredentialExchanger
	audit     AuditLogger
}

func NewService(gate InvitationGate, otp OTPManager, notifier Notifier, exchanger CredentialExchanger) *Service {
	return &Service{
		gate:      gate,
		otp:       otp,
		notifier:  notifier,
		exchanger: exchanger,
	}
}

// WithAudit enables the audit trail
func (s *Service) WithAudit(audit AuditLogger) *Service {
	s.audit = audit
	return s
}

type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
	Code  string `json:"code" binding:"required,max=32"`
}

// SendOTP issues a code for an invited email and dispatches it.
// Uninvited emails never get a code generated or stored.
func (s *Service) SendOTP(ctx context.Context, email string, meta RequestMeta) error {
	subject := domain.NormalizeSubject(email)

	if !s.gate.IsAllowed(ctx, subject) {
		slog.Info("OTP requested for uninvited email",
			slog.String("email", subject),
			slog.String("client_ip", meta.ClientIP),
		)
		return domain.ErrNotInvited
	}

	code, err := s.otp.Issue(ctx, subject)
	if err != nil {
		return err
	}

	if err := s.notifier.SendCode(ctx, subject, code); err != nil {
		// Nobody received this code. A newer one from a concurrent send stays.
		if _, discardErr := s.otp.DiscardIfCode(ctx, subject, code); discardErr != nil {
			slog.Error("Failed to discard undelivered OTP",
				slog.String("email", subject),
				slog.Any("error", discardErr),
			)
		}
		s.logAudit(ctx, repository.AuditEvent{
			EventType:     repository.ActionOTPSendFailed,
			ActorEmail:    subject,
			ClientIP:      meta.ClientIP,
			UserAgent:     meta.UserAgent,
			FailureReason: "delivery_failed",
		})
		return fmt.Errorf("%w: %v", domain.ErrNotificationDeliveryFailed, err)
	}

	s.logAudit(ctx, repository.AuditEvent{
		EventType:  repository.ActionOTPIssued,
		ActorEmail: subject,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		Success:    true,
	})
	return nil
}

// VerifyOTP consumes the code, re-checks the invitation and exchanges the
// email for IdP credentials. The bundle is returned exactly as the IdP sent it.
func (s *Service) VerifyOTP(ctx context.Context, email, code string, meta RequestMeta) (json.RawMessage, error) {
	subject := domain.NormalizeSubject(email)

	ok, err := s.otp.Verify(ctx, subject, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logAudit(ctx, repository.AuditEvent{
			EventType:     repository.ActionOTPVerifyFailed,
			ActorEmail:    subject,
			ClientIP:      meta.ClientIP,
			UserAgent:     meta.UserAgent,
			FailureReason: "invalid_or_expired_code",
		})
		return nil, domain.ErrInvalidOrExpiredCode
	}

	s.logAudit(ctx, repository.AuditEvent{
		EventType:  repository.ActionOTPVerified,
		ActorEmail: subject,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		Success:    true,
	})

	// Invitations can be revoked between issuance and verification
	if !s.gate.IsAllowed(ctx, subject) {
		slog.Warn("Invitation revoked before verification completed",
			slog.String("email", subject),
		)
		s.logAudit(ctx, repository.AuditEvent{
			EventType:     repository.ActionInvitationRevokedAtVerify,
			ActorEmail:    subject,
			ClientIP:      meta.ClientIP,
			UserAgent:     meta.UserAgent,
			FailureReason: "not_invited",
		})
		return nil, domain.ErrNotInvited
	}

	bundle, err := s.exchanger.Exchange(ctx, subject)
	if err != nil {
		event := repository.AuditEvent{
			EventType:     repository.ActionTokenExchangeFailed,
			ActorEmail:    subject,
			ClientIP:      meta.ClientIP,
			UserAgent:     meta.UserAgent,
			FailureReason: "upstream_unavailable",
		}
		var authErr *domain.UpstreamAuthError
		if errors.As(err, &authErr) {
			event.FailureReason = "upstream_rejected"
			event.Metadata = map[string]any{"upstream_status": authErr.Status}
		}
		s.logAudit(ctx, event)
		return nil, err
	}

	s.logAudit(ctx, repository.AuditEvent{
		EventType:  repository.ActionTokenExchangeSuccess,
		ActorEmail: subject,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		Success:    true,
	})
	return bundle, nil
}

// logAudit never fails the request
func (s *Service) logAudit(ctx context.Context, event repository.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn("Failed to write audit event",
			slog.String("event", event.EventType),
			slog.Any("error", err),
		)
	}
}
