package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the per-channel circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns default circuit breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

type breakerSender struct {
	Sender
	cb *gobreaker.CircuitBreaker
}

// WithBreaker wraps a sender so a channel provider that keeps failing is
// short-circuited instead of holding every attempt until its timeout.
// Permanent errors (bad per-user target) do not count against the breaker.
func WithBreaker(s Sender, cfg BreakerConfig) Sender {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = DefaultBreakerConfig().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        string(s.Type()),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("notification circuit breaker state changed",
				"channel_type", name,
				"from", from.String(),
				"to", to.String(),
			)
			breakerState.WithLabelValues(name).Set(float64(to))
		},
	}

	return &breakerSender{Sender: s, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerSender) Send(ctx context.Context, n Notification) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.Sender.Send(ctx, n)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return NewRetryableError(fmt.Errorf("%s channel unavailable: %w", b.Type(), err))
	}
	return err
}
