package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/pkg/ctxlog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAttemptTimeout = 10 * time.Second
	defaultConcurrency    = 8
	recordTimeout         = 5 * time.Second
)

// DispatcherConfig tunes delivery fan-out.
type DispatcherConfig struct {
	AttemptTimeout time.Duration
	Concurrency    int
}

// Dispatcher fans a payload out to every channel of every target user.
type Dispatcher struct {
	config   DispatcherConfig
	repo     Repository
	renderer *Renderer
	senders  map[domain.ChannelType]Sender
	now      func() time.Time
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(config DispatcherConfig, repo Repository, renderer *Renderer, senders ...Sender) *Dispatcher {
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = defaultAttemptTimeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}

	senderMap := make(map[domain.ChannelType]Sender)
	for _, s := range senders {
		senderMap[s.Type()] = s
	}
	return &Dispatcher{
		config:   config,
		repo:     repo,
		renderer: renderer,
		senders:  senderMap,
		now:      time.Now,
	}
}

// DispatchInput contains data for dispatching notifications.
type DispatchInput struct {
	IncidentID string
	UserIDs    []string
	// Channels restricts delivery; empty means every channel.
	Channels []domain.ChannelType
	Payload  Payload
}

type job struct {
	attempt      *DeliveryAttempt
	sender       Sender
	notification Notification
}

// Dispatch delivers the payload and returns one report entry per user and
// channel. Channels are attempted independently; a failing channel never
// prevents another from being tried. Nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, input DispatchInput) DeliveryReport {
	logger := ctxlog.FromContext(ctx).With("incident_id", input.IncidentID)

	channels := input.Channels
	if len(channels) == 0 {
		channels = domain.AllChannelTypes
	}

	report := DeliveryReport{IncidentID: input.IncidentID}
	var jobs []job

	seen := make(map[string]bool, len(input.UserIDs))
	for _, userID := range input.UserIDs {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true

		cfg, err := d.repo.GetNotificationConfig(ctx, userID)
		if err != nil {
			outcome := OutcomeFailed
			if errors.Is(err, ErrConfigNotFound) {
				outcome = OutcomeSkipped
			} else {
				logger.Error("failed to load notification config", "user_id", userID, "error", err)
			}
			for _, ch := range channels {
				report.Deliveries = append(report.Deliveries, d.newAttempt(input.IncidentID, userID, ch, outcome, err.Error()))
			}
			continue
		}

		for _, ch := range channels {
			sender, ok := d.senders[ch]
			if !ok {
				report.Deliveries = append(report.Deliveries, d.newAttempt(input.IncidentID, userID, ch, OutcomeSkipped, "channel disabled"))
				continue
			}
			target := cfg.Target(ch)
			if target == "" {
				report.Deliveries = append(report.Deliveries, d.newAttempt(input.IncidentID, userID, ch, OutcomeSkipped, "channel not configured"))
				continue
			}

			subject, body, err := d.renderer.Render(ch, input.Payload)
			if err != nil {
				logger.Error("failed to render notification", "channel_type", ch, "error", err)
				report.Deliveries = append(report.Deliveries, d.newAttempt(input.IncidentID, userID, ch, OutcomeFailed, err.Error()))
				continue
			}

			report.Deliveries = append(report.Deliveries, d.newAttempt(input.IncidentID, userID, ch, "", ""))
			jobs = append(jobs, job{
				sender: sender,
				notification: Notification{
					To:         target,
					Subject:    subject,
					Body:       body,
					IncidentID: input.IncidentID,
					Data: map[string]string{
						"incident_id": input.IncidentID,
						"urgency":     input.Payload.Incident.Urgency,
						"level":       strconv.Itoa(input.Payload.Escalation.Level),
					},
				},
			})
		}
	}

	// Attempts are addressed by index so jobs can fill them in concurrently.
	pending := 0
	for i := range report.Deliveries {
		if report.Deliveries[i].Outcome == "" {
			jobs[pending].attempt = &report.Deliveries[i]
			pending++
		}
	}

	var g errgroup.Group
	g.SetLimit(d.config.Concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			d.send(ctx, j)
			return nil
		})
	}
	_ = g.Wait()

	for _, a := range report.Deliveries {
		recordDelivery(a.Channel, a.Outcome)
		if a.Outcome == OutcomeFailed {
			logger.Warn("notification delivery failed",
				"user_id", a.UserID,
				"channel_type", a.Channel,
				"retryable", a.Retryable,
				"error", a.Error,
			)
		}
	}
	if unreached := report.UnreachedUsers(); len(unreached) > 0 && report.Count(OutcomeSent) == 0 {
		logger.Error("no notification reached any target user", "user_ids", unreached)
	}

	if len(report.Deliveries) > 0 {
		// The log is written even when the tick deadline ran out during sends.
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		if err := d.repo.RecordDeliveries(recordCtx, report.Deliveries); err != nil {
			logger.Error("failed to record delivery attempts", "error", err)
		}
	}

	return report
}

func (d *Dispatcher) send(ctx context.Context, j job) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
	defer cancel()

	start := d.now()
	defer func() {
		if r := recover(); r != nil {
			j.attempt.Duration = d.now().Sub(start)
			j.attempt.AttemptedAt = start
			j.attempt.Outcome = OutcomeFailed
			j.attempt.Error = fmt.Sprintf("sender panic: %v", r)
			j.attempt.Retryable = false
			ctxlog.FromContext(ctx).Error("notification sender panicked",
				"channel_type", j.attempt.Channel,
				"user_id", j.attempt.UserID,
				"panic", r,
			)
		}
	}()

	err := j.sender.Send(attemptCtx, j.notification)
	j.attempt.Duration = d.now().Sub(start)
	j.attempt.AttemptedAt = start
	recordDeliveryDuration(j.attempt.Channel, j.attempt.Duration)

	if err != nil {
		j.attempt.Outcome = OutcomeFailed
		j.attempt.Error = err.Error()
		j.attempt.Retryable = IsRetryable(err)
		return
	}
	j.attempt.Outcome = OutcomeSent
}

func (d *Dispatcher) newAttempt(incidentID, userID string, ch domain.ChannelType, outcome Outcome, reason string) DeliveryAttempt {
	return DeliveryAttempt{
		ID:          uuid.NewString(),
		IncidentID:  incidentID,
		UserID:      userID,
		Channel:     ch,
		Outcome:     outcome,
		Error:       reason,
		AttemptedAt: d.now(),
	}
}
