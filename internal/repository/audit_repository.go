package repository

import (
	"context"
	"encoding/json"
	"net/netip"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Audit actions recorded by the OTP protocol
const (
	ActionOTPIssued                 = "otp_issued"
	ActionOTPSendFailed             = "otp_send_failed"
	ActionOTPVerifyFailed           = "otp_verify_failed"
	ActionOTPVerified               = "otp_verified"
	ActionInvitationRevokedAtVerify = "invitation_revoked_at_verify"
	ActionTokenExchangeFailed       = "token_exchange_failed"
	ActionTokenExchangeSuccess      = "token_exchange_success"
)

// AuditEvent represents a protocol event worth keeping
type AuditEvent struct {
	EventType     string         // otp_issued, otp_verify_failed, etc.
	ActorEmail    string         // normalised subject
	ClientIP      string         // Client IP address
	UserAgent     string         // Browser/client UA
	Success       bool           // Event succeeded?
	FailureReason string         // Reason for failure (if any)
	Metadata      map[string]any // Additional data (upstream status, etc.)
}

type AuditEntry struct {
	ID         int64
	Action     string
	ActorEmail string
	Details    map[string]any
	CreatedAt  time.Time
}

// AuditRepository defines audit logging operations
type AuditRepository interface {
	LogEvent(ctx context.Context, event AuditEvent) error
	ListByEmail(ctx context.Context, email string, limit int32) ([]AuditEntry, error)
}

type auditRepository struct {
	db Querier
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db Querier) AuditRepository {
	return &auditRepository{db: db}
}

// LogEvent logs a generic audit event
func (r *auditRepository) LogEvent(ctx context.Context, event AuditEvent) error {
	details := map[string]any{
		"success": event.Success,
	}
	if event.FailureReason != "" {
		details["failure_reason"] = event.FailureReason
	}
	// Merge metadata
	for k, v := range event.Metadata {
		details[k] = v
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	var clientIPAddr *netip.Addr
	if ip, err := netip.ParseAddr(event.ClientIP); err == nil {
		clientIPAddr = &ip
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO audit_logs (action, actor_email, details, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.EventType,
		pgtype.Text{String: event.ActorEmail, Valid: event.ActorEmail != ""},
		detailsJSON,
		clientIPAddr,
		pgtype.Text{String: event.UserAgent, Valid: event.UserAgent != ""},
	)
	return err
}

func (r *auditRepository) ListByEmail(ctx context.Context, email string, limit int32) ([]AuditEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, action, coalesce(actor_email, ''), details, created_at
		   FROM audit_logs
		  WHERE actor_email = $1
		  ORDER BY created_at DESC, id DESC
		  LIMIT $2`,
		email, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var raw []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorEmail, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &e.Details); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
