package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/oncall"
	"github.com/bissquit/oncall-garden/internal/rotation"
)

var (
	errUserInactive   = errors.New("user is inactive")
	errGroupEmpty     = errors.New("group has no active members")
	errUnknownTarget  = errors.New("unknown target type")
	errNoOnCallMember = errors.New("schedule resolved to no user")
)

// ScheduleResolver resolves who is on call for a stored schedule.
type ScheduleResolver interface {
	ResolveAt(ctx context.Context, scheduleID string, at time.Time) (oncall.Resolution, error)
}

// Target is the resolved set of users for an escalation level.
type Target struct {
	Type    domain.TargetType
	ID      string
	Name    string
	UserIDs []string
	// Problem is set when the level is misconfigured and resolves to nobody.
	Problem error
}

type targetResolver struct {
	store     Store
	schedules ScheduleResolver
}

// resolve returns the users of an escalation level. Misconfiguration is
// reported through Target.Problem; only transient failures return an error.
func (r *targetResolver) resolve(ctx context.Context, level domain.EscalationLevel, at time.Time) (Target, error) {
	t := Target{Type: level.TargetType, ID: level.TargetID, Name: level.TargetID}

	var err error
	switch level.TargetType {
	case domain.TargetTypeUser:
		err = r.resolveUser(ctx, &t)
	case domain.TargetTypeSchedule:
		err = r.resolveSchedule(ctx, &t, at)
	case domain.TargetTypeGroup:
		err = r.resolveGroup(ctx, &t)
	default:
		err = fmt.Errorf("%w: %q", errUnknownTarget, level.TargetType)
	}

	if err != nil {
		if !isConfigProblem(err) {
			return Target{}, err
		}
		t.Problem = err
		t.UserIDs = nil
	}
	return t, nil
}

func (r *targetResolver) resolveUser(ctx context.Context, t *Target) error {
	user, err := r.store.GetUser(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Name = user.Name
	if !user.IsActive {
		return errUserInactive
	}
	t.UserIDs = []string{user.ID}
	return nil
}

func (r *targetResolver) resolveSchedule(ctx context.Context, t *Target, at time.Time) error {
	res, err := r.schedules.ResolveAt(ctx, t.ID, at)
	if err != nil {
		return err
	}
	if res.ScheduleName != "" {
		t.Name = res.ScheduleName
	}
	if res.UserID == "" {
		return errNoOnCallMember
	}
	t.UserIDs = []string{res.UserID}
	return nil
}

func (r *targetResolver) resolveGroup(ctx context.Context, t *Target) error {
	group, err := r.store.GetGroup(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Name = group.Name
	t.UserIDs = group.ActiveMembers()
	if len(t.UserIDs) == 0 {
		return errGroupEmpty
	}
	return nil
}

func isConfigProblem(err error) bool {
	return rotation.IsResolutionError(err) ||
		errors.Is(err, oncall.ErrScheduleNotFound) ||
		errors.Is(err, oncall.ErrScheduleInactive) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, errUserInactive) ||
		errors.Is(err, errGroupEmpty) ||
		errors.Is(err, errUnknownTarget) ||
		errors.Is(err, errNoOnCallMember)
}
