// Package notify delivers end-of-pipeline notifications. The log notifier
// writes a structured log line; the webhook notifier posts JSON to a
// configured URL.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vidscribe/vidscribe/internal/config"
	"github.com/vidscribe/vidscribe/internal/jsoncodec"
	"github.com/vidscribe/vidscribe/internal/logging"
)

// Notification describes a finished pipeline run for one video.
type Notification struct {
	VideoID   string    `json:"video_id"`
	UserID    string    `json:"user_id"`
	SummaryID string    `json:"summary_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// New builds the notifier selected by configuration.
func New(cfg *config.Config, logger logging.ServiceLogger) (Notifier, error) {
	switch cfg.Notify.Channel {
	case "", "log":
		return &LogNotifier{logger: logger}, nil
	case "webhook":
		return NewWebhookNotifier(cfg.Notify.WebhookURL)
	default:
		return nil, fmt.Errorf("vidscribe: unknown notify channel %q", cfg.Notify.Channel)
	}
}

// LogNotifier records notifications in the service log.
type LogNotifier struct {
	logger logging.ServiceLogger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger logging.ServiceLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info("pipeline finished", logging.LogFields{
		"video_id":   n.VideoID,
		"user_id":    n.UserID,
		"summary_id": n.SummaryID,
		"outcome":    n.Outcome,
		"detail":     n.Detail,
	})
	return nil
}

// WebhookNotifier posts notifications as JSON.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier validates the target URL.
func NewWebhookNotifier(url string) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("vidscribe: webhook URL is required")
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := jsoncodec.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("call webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
