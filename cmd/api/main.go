package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/m-proto/loginpage/internal/config"
	"github.com/m-proto/loginpage/internal/handler"
	"github.com/m-proto/loginpage/internal/infrastructure/alert"
	"github.com/m-proto/loginpage/internal/infrastructure/keycloak"
	"github.com/m-proto/loginpage/internal/infrastructure/mailer"
	"github.com/m-proto/loginpage/internal/infrastructure/otpcode"
	infraRedis "github.com/m-proto/loginpage/internal/infrastructure/redis"
	"github.com/m-proto/loginpage/internal/repository"
	"github.com/m-proto/loginpage/internal/service/auth"
	"github.com/m-proto/loginpage/internal/service/exchange"
	"github.com/m-proto/loginpage/internal/service/invitation"
	"github.com/m-proto/loginpage/internal/service/otp"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	slog.Info("Starting LogPages OTP API...")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Logging))
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		slog.Error("Zap logger init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer zapLogger.Sync()

	checks := map[string]handler.HealthChecker{}

	// Postgres is optional: invitation backend and audit trail
	var db *repository.DB
	if cfg.Database.Enabled() {
		db, err = repository.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Database connection failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("Database schema setup failed", slog.Any("error", err))
			os.Exit(1)
		}
		checks["database"] = db
	}

	store, closeStore, err := newOTPStore(ctx, cfg, checks)
	if err != nil {
		slog.Error("OTP store init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	generator, err := otpcode.NewGenerator(cfg.OTP.Length)
	if err != nil {
		slog.Error("OTP generator init failed", slog.Any("error", err))
		os.Exit(1)
	}

	otpManager := otp.NewManager(store, generator, otp.Config{
		TTL:          cfg.OTP.TTL,
		MaxAttempts:  cfg.OTP.MaxAttempts,
		StoreTimeout: cfg.OTP.StoreTimeout,
		CodeLength:   generator.Length(),
	})
	slog.Info("OTP manager initialized",
		slog.String("store", cfg.OTP.Store),
		slog.Duration("ttl", otpManager.TTL()),
		slog.Int("max_attempts", cfg.OTP.MaxAttempts))

	var source invitation.Source
	location := "table invitations"
	switch cfg.Invitation.Backend {
	case config.InvitationPostgres:
		source = repository.NewInvitationRepository(db.Pool)
	default:
		fileStore := invitation.NewFileStore(cfg.Invitation.File)
		location = fileStore.Path()
		source = fileStore
	}
	gate := invitation.NewGate(source)
	slog.Info("Invitation gate initialized",
		slog.String("backend", cfg.Invitation.Backend),
		slog.String("location", location))

	transport, err := newMailTransport(ctx, cfg.Mail, zapLogger)
	if err != nil {
		slog.Error("Mail transport init failed", slog.Any("error", err))
		os.Exit(1)
	}
	otpMailer := mailer.NewOTPMailer(transport, mailer.Config{
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
		Subject:  cfg.Mail.Subject,
		CodeTTL:  otpManager.TTL(),
		Timeout:  cfg.Mail.Timeout,
	}, zapLogger.Named("mailer"))

	keycloakClient, err := keycloak.NewClient(ctx, cfg.Keycloak)
	if err != nil {
		slog.Error("Keycloak client init failed", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.Keycloak.Discovery {
		checks["keycloak"] = keycloakClient
	}
	slog.Info("Keycloak client ready", slog.String("token_url", keycloakClient.TokenURL()))

	exchanger := exchange.NewService(keycloakClient)
	if cfg.Keycloak.BreakerThreshold > 0 {
		notifier := newAlertNotifier(cfg.Alerts, zapLogger.Named("alert"))
		exchanger.WithBreaker(exchange.NewBreaker(exchange.BreakerConfig{
			FailureThreshold: cfg.Keycloak.BreakerThreshold,
			ResetTimeout:     cfg.Keycloak.BreakerReset,
			OnStateChange: func(from, to exchange.BreakerState) {
				slog.Warn("Keycloak circuit breaker state changed",
					slog.String("from", from.String()),
					slog.String("to", to.String()))
				// called under the breaker lock
				go sendBreakerAlert(notifier, from, to)
			},
		}))
	}

	authService := auth.NewService(gate, otpManager, otpMailer, exchanger)
	if db != nil {
		authService.WithAudit(repository.NewAuditRepository(db.Pool))
	}

	handlers := handler.Handlers{
		Health:      handler.NewHealthHandler(checks),
		Auth:        handler.NewAuthHandler(authService),
		Invitations: handler.NewInvitationHandler(gate),
	}
	if cfg.OTP.DebugPeek {
		slog.Warn("OTP peek endpoint enabled; do not use in production")
		handlers.OTPDebug = handler.NewOTPDebugHandler(otpManager)
	}

	router := handler.NewRouter(cfg, handlers)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("Server starting", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", slog.Any("error", err))
	}
	slog.Info("Server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newOTPStore builds the configured store and registers its readiness check
func newOTPStore(ctx context.Context, cfg *config.Config, checks map[string]handler.HealthChecker) (otp.Store, func(), error) {
	if cfg.OTP.Store == config.StoreRedis {
		redisClient, err := infraRedis.NewClient(infraRedis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Redis connected", slog.String("host", cfg.Redis.Host))
		checks["redis"] = handler.HealthCheckFunc(redisClient.Ping)
		return infraRedis.NewOTPStore(redisClient, cfg.OTP.KeyPrefix), func() { redisClient.Close() }, nil
	}

	store := otp.NewMemoryStore()
	store.StartJanitor(ctx, cfg.OTP.JanitorInterval)
	return store, func() {}, nil
}

func newMailTransport(ctx context.Context, cfg config.MailConfig, logger *zap.Logger) (mailer.Transport, error) {
	switch cfg.Provider {
	case config.MailSMTP:
		return mailer.NewSMTPTransport(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			StartTLS: cfg.SMTP.StartTLS,
		}), nil
	case config.MailSES:
		return mailer.NewSESTransportFromRegion(ctx, cfg.SES.Region)
	default:
		slog.Warn("Console mail transport in use; codes are written to the log")
		return mailer.NewConsoleTransport(logger.Named("console-mail")), nil
	}
}

func newAlertNotifier(cfg config.AlertsConfig, logger *zap.Logger) alert.Notifier {
	if cfg.WebhookURL == "" {
		return alert.NewLogNotifier(logger)
	}
	return alert.NewWebhookNotifier(cfg.WebhookURL, cfg.Source, logger)
}

func sendBreakerAlert(n alert.Notifier, from, to exchange.BreakerState) {
	a := alert.Alert{
		Level:   alert.LevelInfo,
		Title:   "Keycloak circuit " + to.String(),
		Message: fmt.Sprintf("Token exchange circuit moved from %s to %s", from, to),
	}
	switch to {
	case exchange.StateOpen:
		a.Level = alert.LevelCritical
		a.Message += "; verify-otp answers 502 until the identity provider recovers"
	case exchange.StateHalfOpen:
		a.Level = alert.LevelWarning
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.Send(ctx, a); err != nil {
		slog.Debug("Breaker alert not delivered", slog.Any("error", err))
	}
}
