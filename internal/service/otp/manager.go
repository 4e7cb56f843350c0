package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-proto/loginpage/internal/domain"
	"github.com/m-proto/loginpage/internal/infrastructure/otpcode"
)

const (
	DefaultTTL          = 5 * time.Minute
	DefaultStoreTimeout = 2 * time.Second
)

// Config tunes the OTP manager
type Config struct {
	TTL          time.Duration
	MaxAttempts  int // 0 disables the per-code attempt limit
	StoreTimeout time.Duration
	CodeLength   int // when set, malformed codes are rejected without a store lookup
}

// Manager owns generation, time-bounded storage and single-use verification of codes.
type Manager struct {
	store        Store
	generator    CodeGenerator
	ttl          time.Duration
	maxAttempts  int
	storeTimeout time.Duration
	codeLength   int
	now          func() time.Time
}

// NewManager creates an OTP manager over store
func NewManager(store Store, generator CodeGenerator, cfg Config) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	return &Manager{
		store:        store,
		generator:    generator,
		ttl:          ttl,
		maxAttempts:  cfg.MaxAttempts,
		storeTimeout: storeTimeout,
		codeLength:   cfg.CodeLength,
		now:          time.Now,
	}
}

// WithClock replaces the time source (for testing)
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TTL returns how long an issued code stays valid
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// storeContext detaches store calls from caller cancellation: once a state
// transition starts it must complete even if the client disconnects.
func (m *Manager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.storeTimeout)
}

// Issue generates a new code for subject, replacing any prior one, and returns it.
func (m *Manager) Issue(ctx context.Context, subject string) (string, error) {
	subject = domain.NormalizeSubject(subject)

	code, err := m.generator.Generate()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	rec := domain.NewOTPRecord(subject, code, m.now(), m.ttl)

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	if err := m.store.Put(storeCtx, rec); err != nil {
		otpStoreErrorsTotal.WithLabelValues("put").Inc()
		return "", &domain.StorageError{Op: "put", Err: err}
	}

	otpIssuedTotal.Inc()
	slog.Debug("OTP issued",
		slog.String("subject", subject),
		slog.Time("expires_at", rec.ExpiresAt),
	)
	return code, nil
}

// Verify consumes the code for subject if it matches a live record.
// At most one concurrent caller can observe true for a given code.
func (m *Manager) Verify(ctx context.Context, subject, code string) (bool, error) {
	subject = domain.NormalizeSubject(subject)
	if code == "" || (m.codeLength > 0 && !otpcode.IsCodeFormat(code, m.codeLength)) {
		otpVerifyTotal.WithLabelValues(domain.ConsumeAbsent.String()).Inc()
		return false, nil
	}

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	outcome, err := m.store.Consume(storeCtx, subject, code, m.now(), m.maxAttempts)
	if err != nil {
		otpStoreErrorsTotal.WithLabelValues("consume").Inc()
		return false, &domain.StorageError{Op: "consume", Err: err}
	}

	otpVerifyTotal.WithLabelValues(outcome.String()).Inc()
	if outcome == domain.ConsumeExhausted {
		slog.Warn("OTP discarded after too many failed attempts",
			slog.String("subject", subject),
			slog.Int("max_attempts", m.maxAttempts),
		)
	}
	return outcome == domain.ConsumeMatched, nil
}

// Peek returns the live code for subject without consuming it.
func (m *Manager) Peek(ctx context.Context, subject string) (string, bool, error) {
	subject = domain.NormalizeSubject(subject)

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	rec, err := m.store.Get(storeCtx, subject, m.now())
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		otpStoreErrorsTotal.WithLabelValues("get").Inc()
		return "", false, &domain.StorageError{Op: "get", Err: err}
	}
	return rec.Code, true, nil
}

// Discard removes any code for subject. It is idempotent.
func (m *Manager) Discard(ctx context.Context, subject string) error {
	subject = domain.NormalizeSubject(subject)

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	if err := m.store.Delete(storeCtx, subject); err != nil {
		otpStoreErrorsTotal.WithLabelValues("delete").Inc()
		return &domain.StorageError{Op: "delete", Err: err}
	}
	return nil
}

// DiscardIfCode removes the record for subject only if it still holds code,
// leaving a newer code issued by a concurrent request untouched.
func (m *Manager) DiscardIfCode(ctx context.Context, subject, code string) (bool, error) {
	subject = domain.NormalizeSubject(subject)

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	removed, err := m.store.DeleteIfCode(storeCtx, subject, code)
	if err != nil {
		otpStoreErrorsTotal.WithLabelValues("delete").Inc()
		return false, &domain.StorageError{Op: "delete", Err: err}
	}
	return removed, nil
}
