// Package notifications delivers escalation notices to responders over
// push, chat and webhook channels.
package notifications

import (
	"context"

	"github.com/bissquit/oncall-garden/internal/domain"
)

// Notification is a rendered message addressed to one channel target.
type Notification struct {
	To         string
	Subject    string
	Body       string
	IncidentID string
	Data       map[string]string
}

// Sender delivers notifications over a single channel.
type Sender interface {
	Type() domain.ChannelType
	Send(ctx context.Context, notification Notification) error
}
