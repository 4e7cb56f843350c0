package otp

import (
	"context"
	"crypto/subtle"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/m-proto/loginpage/internal/domain"
)

const memoryShardCount = 32

// MemoryStore is an in-process Store. Records are spread over shards so that
// subjects hashing to different shards never contend; expiry is checked on
// every access, the janitor only reclaims memory.
type MemoryStore struct {
	shards [memoryShardCount]*memoryShard
}

type memoryShard struct {
	mu      sync.Mutex
	records map[string]domain.OTPRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &memoryShard{records: make(map[string]domain.OTPRecord)}
	}
	return s
}

func (s *MemoryStore) shard(subject string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(subject))
	return s.shards[h.Sum32()%memoryShardCount]
}

func (s *MemoryStore) Put(_ context.Context, rec domain.OTPRecord) error {
	sh := s.shard(rec.Subject)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.records[rec.Subject] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, subject string, now time.Time) (*domain.OTPRecord, error) {
	sh := s.shard(subject)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[subject]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if rec.ExpiredAt(now) {
		delete(sh.records, subject)
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Consume(_ context.Context, subject, code string, now time.Time, maxAttempts int) (domain.ConsumeOutcome, error) {
	sh := s.shard(subject)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[subject]
	if !ok {
		return domain.ConsumeAbsent, nil
	}
	if rec.ExpiredAt(now) {
		delete(sh.records, subject)
		return domain.ConsumeAbsent, nil
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) == 1 {
		delete(sh.records, subject)
		return domain.ConsumeMatched, nil
	}

	rec.Attempts++
	if maxAttempts > 0 && rec.Attempts >= maxAttempts {
		delete(sh.records, subject)
		return domain.ConsumeExhausted, nil
	}
	sh.records[subject] = rec
	return domain.ConsumeMismatch, nil
}

func (s *MemoryStore) Delete(_ context.Context, subject string) error {
	sh := s.shard(subject)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.records, subject)
	return nil
}

func (s *MemoryStore) DeleteIfCode(_ context.Context, subject, code string) (bool, error) {
	sh := s.shard(subject)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[subject]
	if !ok || subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return false, nil
	}
	delete(sh.records, subject)
	return true, nil
}

// Len returns the number of physically stored records, expired ones included
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}

// Sweep removes records expired at now and returns how many were removed
func (s *MemoryStore) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for subject, rec := range sh.records {
			if rec.ExpiredAt(now) {
				delete(sh.records, subject)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// StartJanitor sweeps expired records every interval until ctx is done
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := s.Sweep(now); n > 0 {
					slog.Debug("OTP janitor swept expired records", slog.Int("removed", n))
				}
			}
		}
	}()
}
