package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m-proto/loginpage/internal/domain"
)

// DefaultOTPKeyPrefix namespaces OTP records
const DefaultOTPKeyPrefix = "otp:"

// Hash fields of an OTP record
const (
	fieldCode      = "code"
	fieldIssuedAt  = "issued_at"  // unix ms
	fieldExpiresAt = "expires_at" // unix ms
	fieldAttempts  = "attempts"
)

// consumeScript compares and deletes in one step so that exactly one
// concurrent caller can consume a code.
// KEYS[1] record key; ARGV[1] code; ARGV[2] now (unix ms); ARGV[3] max attempts.
// Returns 0 absent, 1 matched, 2 mismatch, 3 exhausted.
var consumeScript = redis.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if not code then
  return 0
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if expires and expires < tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return 0
end
if code == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
local max = tonumber(ARGV[3])
if max > 0 and attempts >= max then
  redis.call('DEL', KEYS[1])
  return 3
end
return 2
`)

// deleteIfCodeScript removes the record only while it still holds ARGV[1].
// KEYS[1] record key. Returns 1 when deleted.
var deleteIfCodeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'code') == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// OTPStore keeps OTP records as Redis hashes expiring at the record's ExpiresAt
type OTPStore struct {
	client *Client
	prefix string
}

// NewOTPStore creates a Redis-backed OTP store
func NewOTPStore(client *Client, prefix string) *OTPStore {
	if prefix == "" {
		prefix = DefaultOTPKeyPrefix
	}
	return &OTPStore{client: client, prefix: prefix}
}

// OTPKey generates the key for a subject's OTP record
func (s *OTPStore) OTPKey(subject string) string {
	return s.prefix + subject
}

// Put replaces the record for rec.Subject
func (s *OTPStore) Put(ctx context.Context, rec domain.OTPRecord) error {
	key := s.OTPKey(rec.Subject)
	_, err := s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldCode, rec.Code,
			fieldIssuedAt, rec.IssuedAt.UnixMilli(),
			fieldExpiresAt, rec.ExpiresAt.UnixMilli(),
			fieldAttempts, rec.Attempts,
		)
		pipe.PExpireAt(ctx, key, rec.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

// Get returns the live record for subject or domain.ErrNotFound
func (s *OTPStore) Get(ctx context.Context, subject string, now time.Time) (*domain.OTPRecord, error) {
	fields, err := s.client.rdb.HGetAll(ctx, s.OTPKey(subject)).Result()
	if err != nil {
		return nil, fmt.Errorf("get otp: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}

	rec, err := decodeRecord(subject, fields)
	if err != nil {
		return nil, err
	}
	if rec.ExpiredAt(now) {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// Consume atomically checks code against the live record and deletes it on match
func (s *OTPStore) Consume(ctx context.Context, subject, code string, now time.Time, maxAttempts int) (domain.ConsumeOutcome, error) {
	res, err := consumeScript.Run(ctx, s.client.rdb,
		[]string{s.OTPKey(subject)},
		code, now.UnixMilli(), maxAttempts,
	).Int()
	if err != nil {
		return domain.ConsumeAbsent, fmt.Errorf("consume otp: %w", err)
	}

	switch res {
	case 0:
		return domain.ConsumeAbsent, nil
	case 1:
		return domain.ConsumeMatched, nil
	case 2:
		return domain.ConsumeMismatch, nil
	case 3:
		return domain.ConsumeExhausted, nil
	default:
		return domain.ConsumeAbsent, fmt.Errorf("consume otp: unexpected script result %d", res)
	}
}

// Delete removes the record for subject
func (s *OTPStore) Delete(ctx context.Context, subject string) error {
	if err := s.client.rdb.Del(ctx, s.OTPKey(subject)).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// DeleteIfCode removes the record for subject if its code is still code
func (s *OTPStore) DeleteIfCode(ctx context.Context, subject, code string) (bool, error) {
	n, err := deleteIfCodeScript.Run(ctx, s.client.rdb, []string{s.OTPKey(subject)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("delete otp: %w", err)
	}
	return n == 1, nil
}

func decodeRecord(subject string, fields map[string]string) (*domain.OTPRecord, error) {
	code, ok := fields[fieldCode]
	if !ok {
		return nil, errors.New("otp record missing code")
	}
	issued, err := strconv.ParseInt(fields[fieldIssuedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp record issued_at: %w", err)
	}
	expires, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp record expires_at: %w", err)
	}
	attempts := 0
	if raw, ok := fields[fieldAttempts]; ok {
		attempts, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("otp record attempts: %w", err)
		}
	}

	return &domain.OTPRecord{
		Subject:   subject,
		Code:      code,
		IssuedAt:  time.UnixMilli(issued),
		ExpiresAt: time.UnixMilli(expires),
		Attempts:  attempts,
	}, nil
}
