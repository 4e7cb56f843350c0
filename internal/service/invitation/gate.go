package invitation

import (
	"context"
	"log/slog"
	"strings"
)

// Source is an invitation allow-list backend
type Source interface {
	Contains(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, email string) (bool, error)
	Remove(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// Gate decides whether an email may take part in the OTP protocol.
// It never mutates the list and fails closed: any backend error denies.
type Gate struct {
	source Source
}

func NewGate(source Source) *Gate {
	return &Gate{source: source}
}

// IsAllowed reports whether email is on the allow-list, ignoring case
func (g *Gate) IsAllowed(ctx context.Context, email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}

	ok, err := g.source.Contains(ctx, email)
	if err != nil {
		slog.Warn("Invitation list unavailable, denying",
			slog.String("email", email),
			slog.Any("error", err),
		)
		return false
	}
	return ok
}

// Add invites email. It reports false if the email was already invited.
func (g *Gate) Add(ctx context.Context, email string) (bool, error) {
	return g.source.Add(ctx, strings.TrimSpace(email))
}

// Remove revokes an invitation. It reports false if the email was not invited.
func (g *Gate) Remove(ctx context.Context, email string) (bool, error) {
	return g.source.Remove(ctx, strings.TrimSpace(email))
}

func (g *Gate) List(ctx context.Context) ([]string, error) {
	return g.source.List(ctx)
}
