// Package slack delivers chat notifications through the Slack Web API.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/notifications"
	"github.com/slack-go/slack"
)

const headerLimit = 150

// Config holds Slack sender configuration.
type Config struct {
	BotToken string
	// APIURL overrides the Slack Web API base URL. Must end with "/".
	APIURL string
}

// Sender implements notifications.Sender for Slack.
type Sender struct {
	client *slack.Client
}

// NewSender creates a new Slack sender.
func NewSender(config Config) (*Sender, error) {
	if config.BotToken == "" {
		return nil, errors.New("slack bot token is required")
	}

	var opts []slack.Option
	if config.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(config.APIURL))
	}

	return &Sender{client: slack.New(config.BotToken, opts...)}, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeChat
}

// Send posts the notification to the channel or DM id in notification.To.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if notification.To == "" {
		return notifications.NewNonRetryableError(errors.New("chat id is empty"))
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, truncate(notification.Subject, headerLimit), false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, notification.Body, false, false), nil, nil),
	}

	channelID, ts, err := s.client.PostMessageContext(ctx, notification.To,
		slack.MsgOptionText(notification.Subject, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return classify(err)
	}

	slog.Debug("slack message sent", "channel", channelID, "ts", ts)
	return nil
}

var transientErrors = map[string]bool{
	"internal_error":      true,
	"fatal_error":         true,
	"service_unavailable": true,
	"request_timeout":     true,
	"ratelimited":         true,
}

func classify(err error) error {
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return notifications.NewRetryableError(fmt.Errorf("slack rate limited, retry after %s: %w", rateLimited.RetryAfter, err))
	}

	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		if statusErr.Code >= 500 {
			return notifications.NewRetryableError(fmt.Errorf("slack unavailable: %w", err))
		}
		return notifications.NewNonRetryableError(fmt.Errorf("slack request rejected: %w", err))
	}

	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		if transientErrors[apiErr.Err] {
			return notifications.NewRetryableError(fmt.Errorf("slack api error: %w", err))
		}
		return notifications.NewNonRetryableError(fmt.Errorf("slack api error: %w", err))
	}

	return notifications.NewRetryableError(fmt.Errorf("post message: %w", err))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
