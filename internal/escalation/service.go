package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/notifications"
	"github.com/bissquit/oncall-garden/internal/pkg/clock"
	"github.com/bissquit/oncall-garden/internal/pkg/ctxlog"
)

// Escalation reasons recorded on timeline events.
const (
	ReasonTimeout = "timeout_elapsed"
	ReasonManual  = "manual_escalation"
	ReasonChain   = "chain_exhausted"
)

// Notifier delivers escalation notices.
type Notifier interface {
	Dispatch(ctx context.Context, input notifications.DispatchInput) notifications.DeliveryReport
}

// Result is the outcome of processing one incident.
type Result string

// Processing results.
const (
	ResultNone      Result = "none"
	ResultAdvanced  Result = "advanced"
	ResultCompleted Result = "completed"
	ResultConflict  Result = "conflict"
)

// ServiceConfig configures the escalation service.
type ServiceConfig struct {
	// BaseURL is used to build incident links in notifications.
	BaseURL string
}

// Service applies escalation decisions and the manual incident actions.
type Service struct {
	config   ServiceConfig
	store    Store
	targets  *targetResolver
	notifier Notifier
	clock    clock.Clock
}

// NewService creates a new escalation service. A nil notifier disables
// delivery; levels still advance and are recorded.
func NewService(config ServiceConfig, store Store, schedules ScheduleResolver, notifier Notifier, c clock.Clock) *Service {
	if c == nil {
		c = clock.System()
	}
	return &Service{
		config:   config,
		store:    store,
		targets:  &targetResolver{store: store, schedules: schedules},
		notifier: notifier,
		clock:    c,
	}
}

// ProcessIncident evaluates the incident at now and applies the decision.
func (s *Service) ProcessIncident(ctx context.Context, inc *domain.Incident, now time.Time) (Result, error) {
	if inc.EscalationPolicyID == nil {
		return ResultNone, nil
	}

	policy, err := s.store.GetEscalationPolicy(ctx, *inc.EscalationPolicyID)
	if err != nil {
		return ResultNone, fmt.Errorf("get escalation policy: %w", err)
	}
	if !policy.IsContiguous() {
		return ResultNone, ErrInvalidPolicy
	}

	action := NextEscalationAction(inc, policy, now)
	switch action.Kind {
	case ActionAdvance:
		return s.advance(ctx, inc, policy, action.Level, now, ReasonTimeout, nil)
	case ActionComplete:
		return s.complete(ctx, inc, now)
	default:
		return ResultNone, nil
	}
}

// AcknowledgeIncident stops escalation of a triggered incident.
func (s *Service) AcknowledgeIncident(ctx context.Context, id, by string) (*domain.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inc.Status {
	case domain.IncidentStatusResolved:
		return nil, ErrAlreadyResolved
	case domain.IncidentStatusAcknowledged:
		return nil, ErrAlreadyAcknowledged
	}

	return s.changeStatus(ctx, inc, domain.IncidentStatusAcknowledged, domain.IncidentEventAcknowledged, by)
}

// ResolveIncident closes an incident. Resolved incidents never escalate again.
func (s *Service) ResolveIncident(ctx context.Context, id, by string) (*domain.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Status == domain.IncidentStatusResolved {
		return nil, ErrAlreadyResolved
	}

	return s.changeStatus(ctx, inc, domain.IncidentStatusResolved, domain.IncidentEventResolved, by)
}

func (s *Service) changeStatus(ctx context.Context, inc *domain.Incident, status domain.IncidentStatus, eventType domain.IncidentEventType, by string) (*domain.Incident, error) {
	now := s.clock.Now()
	event := domain.IncidentEvent{
		IncidentID: inc.ID,
		EventType:  eventType,
		EventData: map[string]any{
			"previous_status":  string(inc.Status),
			"escalation_level": inc.CurrentEscalationLevel,
		},
		CreatedBy: stringPtr(by),
		CreatedAt: now,
	}

	err := s.store.UpdateIncidentStatus(ctx, StatusUpdate{
		IncidentID: inc.ID,
		From:       inc.Status,
		Status:     status,
		By:         by,
		At:         now,
	}, event)
	if err != nil {
		if errors.Is(err, ErrEscalationConflict) {
			return nil, s.explainConflict(ctx, inc.ID, err)
		}
		return nil, fmt.Errorf("update incident status: %w", err)
	}

	ctxlog.FromContext(ctx).Info("incident status changed",
		"incident_id", inc.ID,
		"status", status,
		"by", by,
	)
	return s.store.GetIncident(ctx, inc.ID)
}

// explainConflict maps a lost write to the typed error of the state that won.
func (s *Service) explainConflict(ctx context.Context, id string, conflict error) error {
	current, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return conflict
	}
	switch current.Status {
	case domain.IncidentStatusResolved:
		return ErrAlreadyResolved
	case domain.IncidentStatusAcknowledged:
		return ErrAlreadyAcknowledged
	}
	return conflict
}

// EscalateNow advances the incident exactly one level, ignoring the delay.
func (s *Service) EscalateNow(ctx context.Context, id, by string) (*domain.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inc.Status {
	case domain.IncidentStatusResolved:
		return nil, ErrAlreadyResolved
	case domain.IncidentStatusAcknowledged:
		return nil, ErrAlreadyAcknowledged
	}
	if inc.EscalationPolicyID == nil {
		return nil, ErrNoEscalationPolicy
	}
	if inc.EscalationStatus == domain.EscalationStatusCompleted {
		return nil, ErrPolicyExhausted
	}

	policy, err := s.store.GetEscalationPolicy(ctx, *inc.EscalationPolicyID)
	if err != nil {
		return nil, fmt.Errorf("get escalation policy: %w", err)
	}
	next, ok := policy.Level(inc.CurrentEscalationLevel + 1)
	if !ok {
		return nil, ErrPolicyExhausted
	}

	result, err := s.advance(ctx, inc, policy, next, s.clock.Now(), ReasonManual, &by)
	if err != nil {
		return nil, err
	}
	if result == ResultConflict {
		return nil, s.explainConflict(ctx, inc.ID, ErrEscalationConflict)
	}
	return s.store.GetIncident(ctx, inc.ID)
}

func (s *Service) advance(ctx context.Context, inc *domain.Incident, policy *domain.EscalationPolicy, level domain.EscalationLevel, now time.Time, reason string, by *string) (Result, error) {
	logger := ctxlog.FromContext(ctx).With("incident_id", inc.ID, "level", level.LevelNumber)

	target, err := s.targets.resolve(ctx, level, now)
	if err != nil {
		return ResultNone, fmt.Errorf("resolve level %d target: %w", level.LevelNumber, err)
	}

	data := map[string]any{
		"escalation_level": level.LevelNumber,
		"target_type":      string(target.Type),
		"target_id":        target.ID,
		"target_name":      target.Name,
		"user_ids":         target.UserIDs,
		"reason":           reason,
	}
	if by != nil {
		data["escalated_by"] = *by
	}
	if target.Problem != nil {
		data["resolution_error"] = target.Problem.Error()
		logger.Warn("escalation target resolved to no responder",
			"target_type", target.Type,
			"target_id", target.ID,
			"error", target.Problem,
		)
	}

	update := EscalationUpdate{
		IncidentID:       inc.ID,
		Expected:         SnapshotOf(inc),
		Level:            level.LevelNumber,
		EscalationStatus: domain.EscalationStatusEscalating,
		LastEscalatedAt:  &now,
	}
	if len(target.UserIDs) == 1 {
		assignee := target.UserIDs[0]
		update.AssignedTo = &assignee
		data["assigned_to"] = assignee
	}

	event := domain.IncidentEvent{
		IncidentID: inc.ID,
		EventType:  domain.IncidentEventEscalated,
		EventData:  data,
		CreatedBy:  by,
		CreatedAt:  now,
	}
	if err := s.store.UpdateIncidentEscalation(ctx, update, event); err != nil {
		if errors.Is(err, ErrEscalationConflict) {
			logger.Debug("escalation dropped, incident changed concurrently")
			return ResultConflict, nil
		}
		return ResultNone, fmt.Errorf("update incident escalation: %w", err)
	}
	recordEscalation(reason)
	logger.Info("incident escalated",
		"target_type", target.Type,
		"target_id", target.ID,
		"users", len(target.UserIDs),
		"reason", reason,
	)

	if s.notifier != nil && len(target.UserIDs) > 0 {
		s.notify(ctx, inc, policy, level, target, now, reason)
	}
	return ResultAdvanced, nil
}

// notify runs after the escalation is committed. Delivery outcomes are
// recorded but never undo the level change.
func (s *Service) notify(ctx context.Context, inc *domain.Incident, policy *domain.EscalationPolicy, level domain.EscalationLevel, target Target, now time.Time, reason string) {
	payload := notifications.NewEscalatedPayload(notifications.EscalationInput{
		Incident:   inc,
		Level:      level.LevelNumber,
		MaxLevel:   policy.MaxLevel(),
		TargetType: target.Type,
		TargetName: target.Name,
		Reason:     reason,
		BaseURL:    s.config.BaseURL,
		At:         now,
	})

	report := s.notifier.Dispatch(ctx, notifications.DispatchInput{
		IncidentID: inc.ID,
		UserIDs:    target.UserIDs,
		Channels:   level.Channels,
		Payload:    payload,
	})

	data := report.Summary()
	data["escalation_level"] = level.LevelNumber
	if err := s.store.AppendIncidentEvent(ctx, domain.IncidentEvent{
		IncidentID: inc.ID,
		EventType:  domain.IncidentEventNotified,
		EventData:  data,
		CreatedAt:  s.clock.Now(),
	}); err != nil {
		ctxlog.FromContext(ctx).Error("failed to record notification event", "incident_id", inc.ID, "error", err)
	}
}

func (s *Service) complete(ctx context.Context, inc *domain.Incident, now time.Time) (Result, error) {
	data := map[string]any{
		"final_level": inc.CurrentEscalationLevel,
		"reason":      ReasonChain,
	}
	if inc.AssignedTo != nil {
		data["final_assignee"] = *inc.AssignedTo
	}

	err := s.store.UpdateIncidentEscalation(ctx, EscalationUpdate{
		IncidentID:       inc.ID,
		Expected:         SnapshotOf(inc),
		Level:            inc.CurrentEscalationLevel,
		EscalationStatus: domain.EscalationStatusCompleted,
		LastEscalatedAt:  inc.LastEscalatedAt,
	}, domain.IncidentEvent{
		IncidentID: inc.ID,
		EventType:  domain.IncidentEventEscalationCompleted,
		EventData:  data,
		CreatedAt:  now,
	})
	if err != nil {
		if errors.Is(err, ErrEscalationConflict) {
			ctxlog.FromContext(ctx).Debug("completion dropped, incident changed concurrently", "incident_id", inc.ID)
			return ResultConflict, nil
		}
		return ResultNone, fmt.Errorf("complete escalation: %w", err)
	}

	ctxlog.FromContext(ctx).Info("escalation chain exhausted", "incident_id", inc.ID, "final_level", inc.CurrentEscalationLevel)
	return ResultCompleted, nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
