package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Message is a rendered email ready for a transport
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Transport delivers a rendered message
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

type Config struct {
	From     string
	FromName string
	Subject  string
	CodeTTL  time.Duration
	Timeout  time.Duration
}

// OTPMailer renders verification emails and hands them to a transport
type OTPMailer struct {
	transport Transport
	templates *Templates
	cfg       Config
	logger    *zap.Logger
}

// NewOTPMailer creates a mailer sending through transport
func NewOTPMailer(transport Transport, cfg Config, logger *zap.Logger) *OTPMailer {
	if cfg.Subject == "" {
		cfg.Subject = "Your verification code"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &OTPMailer{
		transport: transport,
		templates: DefaultTemplates(),
		cfg:       cfg,
		logger:    logger,
	}
}

// SendCode delivers code to email. A nil error means the transport accepted the message.
func (m *OTPMailer) SendCode(ctx context.Context, email, code string) error {
	text, html, err := m.templates.Render(TemplateData{
		Code:          code,
		ValidMinutes:  validMinutes(m.cfg.CodeTTL),
		SenderName:    m.cfg.FromName,
		RecipientAddr: email,
	})
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	err = m.transport.Deliver(ctx, Message{
		From:     m.cfg.From,
		FromName: m.cfg.FromName,
		To:       email,
		Subject:  m.cfg.Subject,
		TextBody: text,
		HTMLBody: html,
	})
	if err != nil {
		m.logger.Error("Failed to send OTP email",
			zap.String("to", email),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("OTP email sent", zap.String("to", email))
	return nil
}

func validMinutes(ttl time.Duration) int {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}
