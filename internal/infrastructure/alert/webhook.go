package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Alert is an operator notification, e.g. the identity provider going away
type Alert struct {
	Level   Level
	Title   string
	Message string
}

type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// WebhookNotifier posts alerts as JSON to a chat/incident webhook
type WebhookNotifier struct {
	url        string
	source     string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

func NewWebhookNotifier(url, source string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		source:     source,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

func (n *WebhookNotifier) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(map[string]string{
		"level":     string(a.Level),
		"title":     a.Title,
		"message":   a.Message,
		"source":    n.source,
		"timestamp": n.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("Alert webhook failed", zap.String("title", a.Title), zap.Error(err))
		return fmt.Errorf("send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Error("Alert webhook rejected", zap.String("title", a.Title), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info("Alert sent", zap.String("title", a.Title), zap.String("level", string(a.Level)))
	return nil
}

// LogNotifier only logs. Used when no webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, a Alert) error {
	n.logger.Warn("Alert",
		zap.String("level", string(a.Level)),
		zap.String("title", a.Title),
		zap.String("message", a.Message))
	return nil
}
