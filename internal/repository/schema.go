package repository

var schema = []string{
	`CREATE TABLE IF NOT EXISTS invitations (
		email      TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS invitations_email_lower_idx ON invitations (lower(email))`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id          BIGSERIAL PRIMARY KEY,
		action      TEXT NOT NULL,
		actor_email TEXT,
		details     JSONB NOT NULL DEFAULT '{}'::jsonb,
		ip_address  INET,
		user_agent  TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_actor_email_idx ON audit_logs (actor_email, created_at DESC)`,
}
