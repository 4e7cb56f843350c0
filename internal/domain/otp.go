package domain

import (
	"strings"
	"time"
)

// OTPRecord is the live one-time code issued for a subject.
type OTPRecord struct {
	Subject   string    `json:"subject"`
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// NewOTPRecord builds a record for subject valid for ttl from now.
func NewOTPRecord(subject, code string, now time.Time, ttl time.Duration) OTPRecord {
	return OTPRecord{
		Subject:   subject,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// ExpiredAt reports whether the record is logically absent at t.
// A record is still valid at exactly ExpiresAt.
func (r OTPRecord) ExpiredAt(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// NormalizeSubject lower-cases and trims an email so it can key an OTP record.
func NormalizeSubject(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ConsumeOutcome is the result of an atomic compare-and-consume on an OTP store.
type ConsumeOutcome int

const (
	// ConsumeAbsent means no live record existed (missing, expired or already consumed)
	ConsumeAbsent ConsumeOutcome = iota
	// ConsumeMatched means the code matched and the record was deleted
	ConsumeMatched
	// ConsumeMismatch means the code was wrong and the record is still live
	ConsumeMismatch
	// ConsumeExhausted means the code was wrong and the attempt limit discarded the record
	ConsumeExhausted
)

func (o ConsumeOutcome) String() string {
	switch o {
	case ConsumeMatched:
		return "matched"
	case ConsumeMismatch:
		return "mismatch"
	case ConsumeExhausted:
		return "exhausted"
	default:
		return "absent"
	}
}
