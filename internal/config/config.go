package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	OTP        OTPConfig        `mapstructure:"otp"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Keycloak   KeycloakConfig   `mapstructure:"keycloak"`
	Invitation InvitationConfig `mapstructure:"invitation"`
	Mail       MailConfig       `mapstructure:"mail"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Security   SecurityConfig   `mapstructure:"security"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	HTTPS           bool          `mapstructure:"https"`
}

// Store backends for OTP records
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type OTPConfig struct {
	Length          int           `mapstructure:"length"`
	TTL             time.Duration `mapstructure:"ttl"`
	Store           string        `mapstructure:"store"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	MaxAttempts     int           `mapstructure:"max_attempts"` // 0 = unlimited
	StoreTimeout    time.Duration `mapstructure:"store_timeout"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
	DebugPeek       bool          `mapstructure:"debug_peek"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	PoolSize int    `mapstructure:"pool_size"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	SSLRootCert     string        `mapstructure:"ssl_root_cert"`
}

// Enabled reports whether a database is configured at all
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

type KeycloakConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Realm           string        `mapstructure:"realm"`
	ClientID        string        `mapstructure:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret"`
	SubjectPassword string        `mapstructure:"subject_password"` // shared placeholder, not a secret
	TokenEndpoint   string        `mapstructure:"token_endpoint"`   // overrides the derived token URL
	Discovery       bool          `mapstructure:"discovery"`
	Scopes          []string      `mapstructure:"scopes"`
	Timeout         time.Duration `mapstructure:"timeout"`

	// BreakerThreshold of 0 disables the circuit breaker
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerReset     time.Duration `mapstructure:"breaker_reset"`
}

// IssuerURL returns the realm issuer, e.g. http://localhost:8080/realms/myrealm
func (c *KeycloakConfig) IssuerURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/realms/" + c.Realm
}

// TokenURL returns the realm's token endpoint
func (c *KeycloakConfig) TokenURL() string {
	if c.TokenEndpoint != "" {
		return c.TokenEndpoint
	}
	return c.IssuerURL() + "/protocol/openid-connect/token"
}

// Invitation list backends
const (
	InvitationFile     = "file"
	InvitationPostgres = "postgres"
)

type InvitationConfig struct {
	Backend string `mapstructure:"backend"`
	File    string `mapstructure:"file"`
}

// Mail providers
const (
	MailSMTP    = "smtp"
	MailSES     = "ses"
	MailConsole = "console"
)

type MailConfig struct {
	Provider string        `mapstructure:"provider"`
	From     string        `mapstructure:"from"`
	FromName string        `mapstructure:"from_name"`
	Subject  string        `mapstructure:"subject"`
	Timeout  time.Duration `mapstructure:"timeout"`
	SMTP     SMTPConfig    `mapstructure:"smtp"`
	SES      SESConfig     `mapstructure:"ses"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	StartTLS bool   `mapstructure:"starttls"`
}

type SESConfig struct {
	Region string `mapstructure:"region"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type SecurityConfig struct {
	InternalServiceSecret string `mapstructure:"internal_service_secret"` // HMAC secret for /admin service tokens
}

type AlertsConfig struct {
	WebhookURL string `mapstructure:"webhook_url"` // empty logs alerts instead
	Source     string `mapstructure:"source"`
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/otp-bridge/")

	v.SetEnvPrefix("OTPB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("database.password", "OTPB_DATABASE_PASSWORD", "DB_PASSWORD")
	v.BindEnv("redis.password", "OTPB_REDIS_PASSWORD", "REDIS_PASSWORD")
	v.BindEnv("keycloak.client_secret", "OTPB_KEYCLOAK_CLIENT_SECRET", "KEYCLOAK_CLIENT_SECRET")
	v.BindEnv("mail.smtp.password", "OTPB_MAIL_SMTP_PASSWORD", "SMTP_PASSWORD")
	v.BindEnv("security.internal_service_secret", "OTPB_SECURITY_INTERNAL_SERVICE_SECRET", "INTERNAL_SERVICE_SECRET")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("otp.length", 6)
	v.SetDefault("otp.ttl", 5*time.Minute)
	v.SetDefault("otp.store", StoreMemory)
	v.SetDefault("otp.key_prefix", "otp:")
	v.SetDefault("otp.max_attempts", 0)
	v.SetDefault("otp.store_timeout", 2*time.Second)
	v.SetDefault("otp.janitor_interval", time.Minute)
	v.SetDefault("otp.debug_peek", false)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.ssl_mode", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("keycloak.base_url", "http://localhost:8080")
	v.SetDefault("keycloak.realm", "myrealm")
	v.SetDefault("keycloak.client_id", "app-backend")
	v.SetDefault("keycloak.subject_password", "dummy-password")
	v.SetDefault("keycloak.token_endpoint", "")
	v.SetDefault("keycloak.discovery", false)
	v.SetDefault("keycloak.scopes", []string{"openid"})
	v.SetDefault("keycloak.timeout", 5*time.Second)
	v.SetDefault("keycloak.breaker_threshold", 0)
	v.SetDefault("keycloak.breaker_reset", 30*time.Second)

	v.SetDefault("invitation.backend", InvitationFile)
	v.SetDefault("invitation.file", "data/invited_users.json")

	v.SetDefault("mail.provider", MailConsole)
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.from_name", "LogPages")
	v.SetDefault("mail.subject", "Your verification code")
	v.SetDefault("mail.timeout", 10*time.Second)
	v.SetDefault("mail.smtp.host", "smtp.gmail.com")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.starttls", true)
	v.SetDefault("mail.ses.region", "us-east-1")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("alerts.webhook_url", "")
	v.SetDefault("alerts.source", "otp-bridge")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.max_age", 600)
}

// Validate checks required settings and backend combinations
func (c *Config) Validate() error {
	// CRITICAL: Validate required credentials
	if c.Keycloak.ClientSecret == "" {
		return fmt.Errorf("KEYCLOAK_CLIENT_SECRET environment variable is required")
	}
	if c.Keycloak.BaseURL == "" || c.Keycloak.Realm == "" {
		if c.Keycloak.TokenEndpoint == "" {
			return fmt.Errorf("keycloak.base_url and keycloak.realm are required")
		}
	}

	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("otp.length must be between 4 and 10, got %d", c.OTP.Length)
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("otp.ttl must be positive")
	}
	if c.OTP.MaxAttempts < 0 {
		return fmt.Errorf("otp.max_attempts must not be negative")
	}

	switch c.OTP.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("redis.host is required when otp.store is %q", StoreRedis)
		}
	default:
		return fmt.Errorf("unknown otp.store %q", c.OTP.Store)
	}

	switch c.Invitation.Backend {
	case InvitationFile:
		if c.Invitation.File == "" {
			return fmt.Errorf("invitation.file is required when invitation.backend is %q", InvitationFile)
		}
	case InvitationPostgres:
		if !c.Database.Enabled() {
			return fmt.Errorf("database.host is required when invitation.backend is %q", InvitationPostgres)
		}
	default:
		return fmt.Errorf("unknown invitation.backend %q", c.Invitation.Backend)
	}

	switch c.Mail.Provider {
	case MailConsole:
	case MailSMTP:
		if c.Mail.SMTP.Host == "" || c.Mail.From == "" {
			return fmt.Errorf("mail.smtp.host and mail.from are required for the smtp provider")
		}
	case MailSES:
		if c.Mail.From == "" {
			return fmt.Errorf("mail.from is required for the ses provider")
		}
	default:
		return fmt.Errorf("unknown mail.provider %q", c.Mail.Provider)
	}

	// Default SSL mode
	if c.Database.Enabled() && c.Database.SSLMode == "" {
		c.Database.SSLMode = "require"
	}

	return nil
}

// DSN returns PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
	if c.SSLRootCert != "" {
		dsn += "&sslrootcert=" + c.SSLRootCert
	}
	return dsn
}
