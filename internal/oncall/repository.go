// Package oncall answers who is on call for stored schedules.
package oncall

import (
	"context"
	"errors"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
)

// Repository errors.
var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrScheduleInactive = errors.New("schedule is inactive")
)

// Repository defines the interface for schedule data access.
type Repository interface {
	GetSchedule(ctx context.Context, id string) (*domain.Schedule, error)
	// GetActiveOverrides returns overrides of the schedule that intersect
	// [from, to].
	GetActiveOverrides(ctx context.Context, scheduleID string, from, to time.Time) ([]domain.ScheduleOverride, error)
}
