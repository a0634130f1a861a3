// Package webhook delivers notifications as JSON POSTs to per-user URLs.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/notifications"
)

const (
	defaultTimeout = 10 * time.Second
	eventName      = "incident.escalated"

	// SignatureHeader carries the hex HMAC-SHA256 of the body when a signing
	// secret is configured.
	SignatureHeader = "X-Oncall-Signature"
)

// Config holds webhook sender configuration. The URL itself comes from the
// user's notification config.
type Config struct {
	SigningSecret string
	Timeout       time.Duration
}

// Sender implements notifications.Sender for outgoing webhooks.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new webhook sender.
func NewSender(config Config) *Sender {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeWebhook
}

type payload struct {
	Event      string `json:"event"`
	IncidentID string `json:"incident_id"`
	Urgency    string `json:"urgency,omitempty"`
	Level      int    `json:"level,omitempty"`
	Subject    string `json:"subject"`
	Text       string `json:"text"`
}

// Send posts the notification to notification.To.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	webhookURL := notification.To
	if webhookURL == "" {
		return notifications.NewNonRetryableError(fmt.Errorf("webhook URL is empty"))
	}

	level, _ := strconv.Atoi(notification.Data["level"])
	body, err := json.Marshal(payload{
		Event:      eventName,
		IncidentID: notification.IncidentID,
		Urgency:    notification.Data["urgency"],
		Level:      level,
		Subject:    notification.Subject,
		Text:       notification.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return notifications.NewNonRetryableError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.SigningSecret != "" {
		req.Header.Set(SignatureHeader, Sign(s.config.SigningSecret, body))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return notifications.NewRetryableError(fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, webhookURL)
}

// Sign returns the signature value for a body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.Code, e.Body)
}

func (s *Sender) handleResponse(resp *http.Response, webhookURL string) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return notifications.NewRetryableError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Debug("webhook delivered", "webhook", maskURL(webhookURL), "status", resp.StatusCode)
		return nil
	}

	statusErr := &StatusError{Code: resp.StatusCode, Body: string(raw)}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return notifications.NewRetryableError(statusErr)
	}
	return notifications.NewNonRetryableError(statusErr)
}

// maskURL hides part of the URL for logging.
func maskURL(url string) string {
	if len(url) > 40 {
		return url[:20] + "..." + url[len(url)-10:]
	}
	return url
}
