package mailer

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleTransport logs messages instead of sending them. Development only:
// the log line contains the code.
type ConsoleTransport struct {
	logger *zap.Logger
}

func NewConsoleTransport(logger *zap.Logger) *ConsoleTransport {
	return &ConsoleTransport{logger: logger}
}

func (t *ConsoleTransport) Deliver(ctx context.Context, msg Message) error {
	t.logger.Warn("Email (console transport)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.TextBody))
	return nil
}
