package repository

import (
	"context"
	"fmt"
	"strings"
)

// InvitationRepository stores the allow-list in the invitations table.
// Emails keep the case they were added with; lookups are case-insensitive.
type InvitationRepository struct {
	db Querier
}

func NewInvitationRepository(db Querier) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func (r *InvitationRepository) Contains(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invitations WHERE lower(email) = lower($1))`,
		strings.TrimSpace(email),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query invitation: %w", err)
	}
	return exists, nil
}

// Add inserts email unless an entry differing only by case exists.
// It reports whether a row was inserted.
func (r *InvitationRepository) Add(ctx context.Context, email string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO invitations (email) VALUES ($1) ON CONFLICT DO NOTHING`,
		strings.TrimSpace(email),
	)
	if err != nil {
		return false, fmt.Errorf("insert invitation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *InvitationRepository) Remove(ctx context.Context, email string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM invitations WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email),
	)
	if err != nil {
		return false, fmt.Errorf("delete invitation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *InvitationRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT email FROM invitations ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	emails := []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
