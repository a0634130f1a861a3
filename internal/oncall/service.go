package oncall

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/oncall-garden/internal/pkg/clock"
	"github.com/bissquit/oncall-garden/internal/rotation"
)

// Service resolves stored schedules through the rotation package.
type Service struct {
	repo  Repository
	clock clock.Clock
}

// NewService creates a new on-call service.
func NewService(repo Repository, c clock.Clock) *Service {
	if c == nil {
		c = clock.System()
	}
	return &Service{repo: repo, clock: c}
}

// Resolution is the responder of a stored schedule at an instant.
type Resolution struct {
	ScheduleID   string    `json:"schedule_id"`
	ScheduleName string    `json:"schedule_name"`
	At           time.Time `json:"at"`
	rotation.OnCall
}

// ResolveAt returns who is on call for the schedule at the instant.
func (s *Service) ResolveAt(ctx context.Context, scheduleID string, at time.Time) (Resolution, error) {
	schedule, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return Resolution{}, err
	}
	if !schedule.IsActive {
		return Resolution{}, ErrScheduleInactive
	}

	overrides, err := s.repo.GetActiveOverrides(ctx, scheduleID, at, at)
	if err != nil {
		return Resolution{}, fmt.Errorf("get overrides: %w", err)
	}

	onCall, err := rotation.ResolveOnCall(schedule, overrides, at)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		ScheduleID:   schedule.ID,
		ScheduleName: schedule.Name,
		At:           at,
		OnCall:       onCall,
	}, nil
}

// ResolveCurrentOnCall returns who is on call right now.
func (s *Service) ResolveCurrentOnCall(ctx context.Context, scheduleID string) (Resolution, error) {
	return s.ResolveAt(ctx, scheduleID, s.clock.Now())
}

// PreviewRotation expands the next shifts of a schedule starting at from.
// A zero from means now.
func (s *Service) PreviewRotation(ctx context.Context, scheduleID string, from time.Time, shifts int) ([]rotation.Segment, error) {
	schedule, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = s.clock.Now()
	}

	// The first pass only determines the window to load overrides for.
	base, err := rotation.Preview(schedule, nil, from, shifts)
	if err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return base, nil
	}

	overrides, err := s.repo.GetActiveOverrides(ctx, scheduleID, base[0].Start, base[len(base)-1].End)
	if err != nil {
		return nil, fmt.Errorf("get overrides: %w", err)
	}
	if len(overrides) == 0 {
		return base, nil
	}

	return rotation.Preview(schedule, overrides, from, shifts)
}
