// Package rotation computes who is on call for a schedule at a given instant.
//
// Every function here is pure: callers pass the instant explicitly and the
// package never reads the clock. Shift boundaries are calendar days in the
// schedule's time zone, so a shift keeps its handoff wall-clock time across
// daylight saving changes.
package rotation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
)

// OnCall is the outcome of resolving a schedule at an instant.
type OnCall struct {
	UserID     string                   `json:"user_id"`
	ShiftIndex int                      `json:"shift_index"`
	ShiftStart time.Time                `json:"shift_start"`
	ShiftEnd   time.Time                `json:"shift_end"`
	Override   *domain.ScheduleOverride `json:"override,omitempty"`
}

// ResolveOnCall returns the responder for the schedule at the given instant.
// An override covering the instant always wins over the rotation; among
// overlapping overrides the most recently created one is used.
func ResolveOnCall(schedule *domain.Schedule, overrides []domain.ScheduleOverride, at time.Time) (OnCall, error) {
	r, err := newRotation(schedule)
	if err != nil {
		return OnCall{}, err
	}

	if o := pickOverride(overrides, at); o != nil {
		result := OnCall{UserID: o.UserID, ShiftIndex: -1, Override: o}
		if !at.Before(r.start) {
			k := r.shiftAt(at)
			result.ShiftIndex = k
			result.ShiftStart = r.boundary(k)
			result.ShiftEnd = r.boundary(k + 1)
		}
		return result, nil
	}

	if at.Before(r.start) {
		return OnCall{}, fmt.Errorf("%w: starts at %s", ErrNotYetActive, r.start.Format(time.RFC3339))
	}

	k := r.shiftAt(at)
	return OnCall{
		UserID:     r.member(k),
		ShiftIndex: k,
		ShiftStart: r.boundary(k),
		ShiftEnd:   r.boundary(k + 1),
	}, nil
}

type rotation struct {
	members []string
	days    int
	loc     *time.Location
	start   time.Time

	year  int
	month time.Month
	day   int

	hour, minute, second, nsec int
}

func newRotation(s *domain.Schedule) (*rotation, error) {
	if len(s.Members) == 0 {
		return nil, ErrNoMembers
	}

	days := s.ShiftLength.Days()
	if days == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidShiftLength, s.ShiftLength)
	}

	loc := time.UTC
	if s.TimeZone != "" {
		var err error
		loc, err = time.LoadLocation(s.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimeZone, s.TimeZone)
		}
	}

	start := s.StartAt.In(loc)
	r := &rotation{
		members: s.Members,
		days:    days,
		loc:     loc,
		start:   start,
		hour:    start.Hour(),
		minute:  start.Minute(),
		second:  start.Second(),
		nsec:    start.Nanosecond(),
	}
	r.year, r.month, r.day = start.Date()

	if s.HandoffTime != "" {
		h, m, err := parseClock(s.HandoffTime)
		if err != nil {
			return nil, err
		}
		r.hour, r.minute, r.second, r.nsec = h, m, 0, 0
	}

	return r, nil
}

// boundary returns the start of shift k. Shift 0 begins at the schedule
// start; every later shift begins at the handoff clock time k*days calendar
// days after the start date.
func (r *rotation) boundary(k int) time.Time {
	if k <= 0 {
		return r.start
	}
	return time.Date(r.year, r.month, r.day+k*r.days, r.hour, r.minute, r.second, r.nsec, r.loc)
}

// shiftAt returns the index of the shift containing at. at must not precede
// the start.
func (r *rotation) shiftAt(at time.Time) int {
	nominal := time.Duration(r.days) * 24 * time.Hour
	k := int(at.Sub(r.start) / nominal)
	if k < 0 {
		k = 0
	}
	for k > 0 && r.boundary(k).After(at) {
		k--
	}
	for !r.boundary(k + 1).After(at) {
		k++
	}
	return k
}

func (r *rotation) member(k int) string {
	return r.members[k%len(r.members)]
}

func parseClock(s string) (int, int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidHandoffTime, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 || len(hh) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidHandoffTime, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidHandoffTime, s)
	}
	return h, m, nil
}

// pickOverride returns the override in effect at the instant, or nil.
// Ties on creation time go to the greatest id so the choice is stable.
func pickOverride(overrides []domain.ScheduleOverride, at time.Time) *domain.ScheduleOverride {
	var winner *domain.ScheduleOverride
	for i := range overrides {
		o := &overrides[i]
		if o.UserID == "" || !o.Covers(at) {
			continue
		}
		if winner == nil || newer(o, winner) {
			winner = o
		}
	}
	if winner == nil {
		return nil
	}
	picked := *winner
	return &picked
}

func newer(a, b *domain.ScheduleOverride) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
