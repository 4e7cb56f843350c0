package otp

import (
	"context"
	"time"

	"github.com/m-proto/loginpage/internal/domain"
)

// Store is the key-value-with-TTL backend holding at most one record per subject.
// Implementations must treat a record as absent once now is past its ExpiresAt,
// whether or not it has been physically purged.
type Store interface {
	// Put stores rec, replacing any prior record for the same subject
	Put(ctx context.Context, rec domain.OTPRecord) error

	// Get returns the live record for subject or domain.ErrNotFound
	Get(ctx context.Context, subject string, now time.Time) (*domain.OTPRecord, error)

	// Consume atomically compares code against the live record and deletes it on match.
	// maxAttempts <= 0 disables the attempt limit.
	Consume(ctx context.Context, subject, code string, now time.Time, maxAttempts int) (domain.ConsumeOutcome, error)

	// Delete removes the record for subject; deleting a missing record is not an error
	Delete(ctx context.Context, subject string) error

	// DeleteIfCode removes the record for subject only while it still holds code.
	// It reports whether a record was removed.
	DeleteIfCode(ctx context.Context, subject, code string) (bool, error)
}

// CodeGenerator produces the secret codes
type CodeGenerator interface {
	Generate() (string, error)
}
