package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m-proto/loginpage/internal/domain"
	"github.com/m-proto/loginpage/internal/infrastructure/keycloak"
)

var (
	exchangeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_exchange_total",
		Help: "Token exchanges against the identity provider by result",
	}, []string{"result"})

	exchangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "token_exchange_duration_seconds",
		Help:    "Latency of identity provider token exchanges",
		Buckets: prometheus.DefBuckets,
	})
)

// ErrCircuitOpen is returned without contacting the identity provider while the breaker is open
var ErrCircuitOpen = errors.New("identity provider circuit open")

// TokenIssuer obtains a credential bundle for a subject from the identity provider
type TokenIssuer interface {
	ExchangeSubject(ctx context.Context, subject string) (json.RawMessage, error)
}

// Service converts a verified email into an IdP credential bundle
type Service struct {
	issuer  TokenIssuer
	breaker *Breaker
}

func NewService(issuer TokenIssuer) *Service {
	return &Service{issuer: issuer}
}

// WithBreaker fails fast while the identity provider is known to be down
func (s *Service) WithBreaker(b *Breaker) *Service {
	s.breaker = b
	return s
}

// Exchange returns the IdP's token response for email, unmodified.
// Failures are reported as *domain.UpstreamAuthError or *domain.UpstreamUnavailableError;
// upstream bodies are only logged.
func (s *Service) Exchange(ctx context.Context, email string) (json.RawMessage, error) {
	if s.breaker != nil && !s.breaker.Allow() {
		exchangeTotal.WithLabelValues("circuit_open").Inc()
		slog.Warn("Identity provider circuit open, skipping token exchange",
			slog.String("email", email),
		)
		return nil, &domain.UpstreamUnavailableError{Err: ErrCircuitOpen}
	}

	start := time.Now()
	bundle, err := s.issuer.ExchangeSubject(ctx, domain.NormalizeSubject(email))
	exchangeDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		s.recordOutcome(true)
		exchangeTotal.WithLabelValues("success").Inc()
		return bundle, nil
	}

	var tokenErr *keycloak.TokenError
	switch {
	case errors.As(err, &tokenErr):
		// The IdP answered, so it is up
		s.recordOutcome(true)
		exchangeTotal.WithLabelValues("rejected").Inc()
		slog.Error("Identity provider rejected token exchange",
			slog.String("email", email),
			slog.Int("status", tokenErr.StatusCode),
			slog.String("body", tokenErr.Body),
		)
		return nil, &domain.UpstreamAuthError{Status: tokenErr.StatusCode, Retryable: false}

	case errors.Is(err, keycloak.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		s.recordOutcome(false)
		exchangeTotal.WithLabelValues("timeout").Inc()
		slog.Error("Identity provider timed out",
			slog.String("email", email),
			slog.Any("error", err),
		)
		return nil, &domain.UpstreamUnavailableError{Timeout: true, Err: err}

	default:
		// A caller that hung up says nothing about the IdP
		if ctx.Err() == nil {
			s.recordOutcome(false)
		} else if s.breaker != nil {
			s.breaker.Release()
		}
		exchangeTotal.WithLabelValues("unavailable").Inc()
		slog.Error("Identity provider unreachable",
			slog.String("email", email),
			slog.Any("error", err),
		)
		return nil, &domain.UpstreamUnavailableError{Err: err}
	}
}

func (s *Service) recordOutcome(upstreamUp bool) {
	if s.breaker == nil {
		return
	}
	if upstreamUp {
		s.breaker.RecordSuccess()
		return
	}
	s.breaker.RecordFailure()
}
