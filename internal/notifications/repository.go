package notifications

import (
	"context"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
)

// Repository defines the interface for notifications data access.
type Repository interface {
	// GetNotificationConfig returns ErrConfigNotFound for users without
	// any delivery targets.
	GetNotificationConfig(ctx context.Context, userID string) (*domain.NotificationConfig, error)
	RecordDeliveries(ctx context.Context, attempts []DeliveryAttempt) error
}

// DeliveryAttempt is the persisted record of one channel send.
type DeliveryAttempt struct {
	ID          string
	IncidentID  string
	UserID      string
	Channel     domain.ChannelType
	Outcome     Outcome
	Error       string
	Retryable   bool
	Duration    time.Duration
	AttemptedAt time.Time
}
