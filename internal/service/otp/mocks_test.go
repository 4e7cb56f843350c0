package otp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/m-proto/loginpage/internal/domain"
)

var errBackendDown = errors.New("backend down")

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceGenerator returns the configured codes in order, then repeats the last one
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	next  int
	err   error
}

func (g *sequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	code := g.codes[g.next]
	if g.next < len(g.codes)-1 {
		g.next++
	}
	return code, nil
}

// MockStore implements Store with testify/mock for failure injection
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Put(ctx context.Context, rec domain.OTPRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, subject string, now time.Time) (*domain.OTPRecord, error) {
	args := m.Called(ctx, subject, now)
	if rec, ok := args.Get(0).(*domain.OTPRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Consume(ctx context.Context, subject, code string, now time.Time, maxAttempts int) (domain.ConsumeOutcome, error) {
	args := m.Called(ctx, subject, code, now, maxAttempts)
	return args.Get(0).(domain.ConsumeOutcome), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, subject string) error {
	args := m.Called(ctx, subject)
	return args.Error(0)
}

func (m *MockStore) DeleteIfCode(ctx context.Context, subject, code string) (bool, error) {
	args := m.Called(ctx, subject, code)
	return args.Bool(0), args.Error(1)
}
