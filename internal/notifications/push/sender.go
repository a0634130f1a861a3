// Package push delivers notifications to mobile devices through an
// FCM-compatible HTTP endpoint.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/notifications"
	"golang.org/x/time/rate"
)

const (
	defaultEndpoint  = "https://fcm.googleapis.com/fcm/send"
	defaultTimeout   = 10 * time.Second
	defaultRateLimit = 50
)

// Config holds push sender configuration.
type Config struct {
	Endpoint  string
	ServerKey string
	Timeout   time.Duration
	// RateLimit is the maximum number of requests per second.
	RateLimit int
}

// Sender implements notifications.Sender for push notifications.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new push sender.
func NewSender(config Config) (*Sender, error) {
	if config.ServerKey == "" {
		return nil, errors.New("push server key is required")
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit),
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypePush
}

type message struct {
	To           string            `json:"to"`
	Priority     string            `json:"priority"`
	Notification messageBody       `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type messageBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

type response struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

// Send pushes the notification to the device token in notification.To.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if notification.To == "" {
		return notifications.NewNonRetryableError(errors.New("device token is empty"))
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return notifications.NewRetryableError(fmt.Errorf("rate limit wait: %w", err))
	}

	msg := message{
		To:       notification.To,
		Priority: "normal",
		Notification: messageBody{
			Title: notification.Subject,
			Body:  notification.Body,
		},
		Data: notification.Data,
	}
	if notification.Data["urgency"] == string(domain.UrgencyHigh) {
		msg.Priority = "high"
		msg.Notification.Sound = "default"
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return notifications.NewNonRetryableError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.config.ServerKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return notifications.NewRetryableError(fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp)
}

func handleResponse(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return notifications.NewRetryableError(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return notifications.NewNonRetryableError(fmt.Errorf("push endpoint rejected credentials: status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return notifications.NewRetryableError(fmt.Errorf("push endpoint unavailable: status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return notifications.NewNonRetryableError(fmt.Errorf("push endpoint returned %d: %s", resp.StatusCode, string(raw)))
	}

	var result response
	if err := json.Unmarshal(raw, &result); err != nil {
		return notifications.NewRetryableError(fmt.Errorf("decode response: %w", err))
	}
	if result.Failure == 0 {
		return nil
	}

	reason := "unknown"
	if len(result.Results) > 0 && result.Results[0].Error != "" {
		reason = result.Results[0].Error
	}
	err = fmt.Errorf("push rejected: %s", reason)
	switch reason {
	case "Unavailable", "InternalServerError", "DeviceMessageRateExceeded":
		return notifications.NewRetryableError(err)
	default:
		return notifications.NewNonRetryableError(err)
	}
}
