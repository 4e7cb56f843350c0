package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInvited is returned when an email is not on the invitation allow-list
	ErrNotInvited = errors.New("email is not invited")

	// ErrInvalidOrExpiredCode covers wrong, expired, replaced and already consumed codes alike
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")

	// ErrNotificationDeliveryFailed indicates the code could not be dispatched
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")

	// ErrUpstreamAuth indicates the identity provider rejected the token request
	ErrUpstreamAuth = errors.New("identity provider rejected token exchange")

	// ErrUpstreamUnavailable indicates the identity provider could not be reached
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")

	// ErrStorage indicates the OTP store backend failed
	ErrStorage = errors.New("otp storage failure")

	// ErrNotFound is returned by OTP stores when no live record exists
	ErrNotFound = errors.New("otp record not found")
)

// UpstreamAuthError carries the identity provider's status for a rejected exchange.
// It is never retryable: a rejection after a valid OTP means misconfiguration
// or an IdP-side policy decision.
type UpstreamAuthError struct {
	Status    int
	Retryable bool
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("identity provider rejected token exchange (status %d)", e.Status)
}

func (e *UpstreamAuthError) Is(target error) bool {
	return target == ErrUpstreamAuth
}

// UpstreamUnavailableError wraps transport failures talking to the identity provider.
type UpstreamUnavailableError struct {
	Timeout bool
	Err     error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("identity provider timed out: %v", e.Err)
	}
	return fmt.Sprintf("identity provider unavailable: %v", e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Err
}

func (e *UpstreamUnavailableError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// StorageError wraps an OTP store backend failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("otp store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
