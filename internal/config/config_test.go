package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-proto/loginpage/internal/config"
)

func TestLoadConfig_RequiresClientSecret(t *testing.T) {
	t.Setenv("KEYCLOAK_CLIENT_SECRET", "")
	t.Setenv("OTPB_KEYCLOAK_CLIENT_SECRET", "")

	_, err := config.Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "KEYCLOAK_CLIENT_SECRET")
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("KEYCLOAK_CLIENT_SECRET", "test-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "test-secret", cfg.Keycloak.ClientSecret)
	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, config.StoreMemory, cfg.OTP.Store)
	assert.Equal(t, 0, cfg.OTP.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Keycloak.Timeout)
	assert.Equal(t, "dummy-password", cfg.Keycloak.SubjectPassword)
	assert.Equal(t, config.InvitationFile, cfg.Invitation.Backend)
	assert.Equal(t, config.MailConsole, cfg.Mail.Provider)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("KEYCLOAK_CLIENT_SECRET", "test-secret")
	t.Setenv("OTPB_OTP_TTL", "90s")
	t.Setenv("OTPB_OTP_LENGTH", "8")
	t.Setenv("OTPB_OTP_STORE", "redis")
	t.Setenv("REDIS_PASSWORD", "redis-pass")
	t.Setenv("OTPB_KEYCLOAK_REALM", "prod")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.OTP.TTL)
	assert.Equal(t, 8, cfg.OTP.Length)
	assert.Equal(t, config.StoreRedis, cfg.OTP.Store)
	assert.Equal(t, "redis-pass", cfg.Redis.Password)
	assert.Equal(t, "prod", cfg.Keycloak.Realm)
}

func validConfig() config.Config {
	return config.Config{
		OTP:        config.OTPConfig{Length: 6, TTL: 5 * time.Minute, Store: config.StoreMemory},
		Keycloak:   config.KeycloakConfig{BaseURL: "http://kc:8080", Realm: "r", ClientSecret: "s"},
		Invitation: config.InvitationConfig{Backend: config.InvitationFile, File: "invited.json"},
		Mail:       config.MailConfig{Provider: config.MailConsole},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"valid", func(c *config.Config) {}, ""},
		{"code too short", func(c *config.Config) { c.OTP.Length = 3 }, "otp.length"},
		{"code too long", func(c *config.Config) { c.OTP.Length = 11 }, "otp.length"},
		{"zero ttl", func(c *config.Config) { c.OTP.TTL = 0 }, "otp.ttl"},
		{"negative attempts", func(c *config.Config) { c.OTP.MaxAttempts = -1 }, "otp.max_attempts"},
		{"unknown store", func(c *config.Config) { c.OTP.Store = "memcached" }, "otp.store"},
		{"redis without host", func(c *config.Config) { c.OTP.Store = config.StoreRedis }, "redis.host"},
		{"postgres invitations without db", func(c *config.Config) { c.Invitation.Backend = config.InvitationPostgres }, "database.host"},
		{"unknown invitation backend", func(c *config.Config) { c.Invitation.Backend = "ldap" }, "invitation.backend"},
		{"smtp without from", func(c *config.Config) {
			c.Mail.Provider = config.MailSMTP
			c.Mail.SMTP.Host = "smtp.example.com"
		}, "mail.from"},
		{"ses without from", func(c *config.Config) { c.Mail.Provider = config.MailSES }, "mail.from"},
		{"unknown mail provider", func(c *config.Config) { c.Mail.Provider = "pigeon" }, "mail.provider"},
		{"missing realm without token endpoint", func(c *config.Config) { c.Keycloak.Realm = "" }, "keycloak.base_url"},
		{"token endpoint override", func(c *config.Config) {
			c.Keycloak.Realm = ""
			c.Keycloak.TokenEndpoint = "http://kc/token"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DefaultsSSLMode(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = "db"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "require", cfg.Database.SSLMode)
}

func TestKeycloakConfig_URLs(t *testing.T) {
	cfg := config.KeycloakConfig{BaseURL: "http://localhost:8080/", Realm: "myrealm"}

	assert.Equal(t, "http://localhost:8080/realms/myrealm", cfg.IssuerURL())
	assert.Equal(t, "http://localhost:8080/realms/myrealm/protocol/openid-connect/token", cfg.TokenURL())

	cfg.TokenEndpoint = "https://idp.example.com/token"
	assert.Equal(t, "https://idp.example.com/token", cfg.TokenURL())
}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Name:     "loginpage",
		User:     "app_user",
		Password: "secret",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "sslmode=require")
	assert.Contains(t, dsn, "postgres://app_user:")
	assert.Contains(t, dsn, "@localhost:5432/loginpage")
}

func TestDSN_WithSSLRootCert(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:        "localhost",
		Port:        5432,
		Name:        "loginpage",
		User:        "app_user",
		Password:    "secret",
		SSLMode:     "verify-full",
		SSLRootCert: "/etc/ssl/certs/ca.crt",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "sslmode=verify-full")
	assert.Contains(t, dsn, "sslrootcert=/etc/ssl/certs/ca.crt")
}
