package exchange_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/m-proto/loginpage/internal/service/exchange"
)

func TestBreaker_StateTransitions(t *testing.T) {
	now := time.Unix(1700000000, 0)
	var transitions []string

	b := exchange.NewBreaker(exchange.BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(from, to exchange.BreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	}).WithClock(func() time.Time { return now })

	assert.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, exchange.StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, exchange.StateOpen, b.State())
	assert.False(t, b.Allow())

	now = now.Add(31 * time.Second)
	assert.True(t, b.Allow(), "probe admitted after reset timeout")
	assert.Equal(t, exchange.StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "only one probe while half-open")

	b.RecordFailure()
	assert.Equal(t, exchange.StateOpen, b.State())

	now = now.Add(31 * time.Second)
	assert.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, exchange.StateClosed, b.State())
	assert.True(t, b.Allow())

	assert.Equal(t, []string{
		"closed->open",
		"open->half_open",
		"half_open->open",
		"open->half_open",
		"half_open->closed",
	}, transitions)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := exchange.NewBreaker(exchange.BreakerConfig{FailureThreshold: 2})

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.Equal(t, exchange.StateClosed, b.State())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", exchange.StateClosed.String())
	assert.Equal(t, "open", exchange.StateOpen.String())
	assert.Equal(t, "half_open", exchange.StateHalfOpen.String())
	assert.Equal(t, "unknown", exchange.BreakerState(42).String())
}

func TestBreaker_ReleaseFreesProbe(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := exchange.NewBreaker(exchange.BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second}).
		WithClock(func() time.Time { return now })

	b.RecordFailure()
	now = now.Add(2 * time.Second)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	b.Release()
	assert.Equal(t, exchange.StateHalfOpen, b.State())
	assert.True(t, b.Allow())
}
