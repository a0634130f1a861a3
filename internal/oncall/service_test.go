package oncall

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/pkg/clock"
	"github.com/bissquit/oncall-garden/internal/rotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	schedules map[string]*domain.Schedule
	overrides []domain.ScheduleOverride
	err       error

	lastFrom, lastTo time.Time
}

func (m *mockRepository) GetSchedule(_ context.Context, id string) (*domain.Schedule, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return s, nil
}

func (m *mockRepository) GetActiveOverrides(_ context.Context, scheduleID string, from, to time.Time) ([]domain.ScheduleOverride, error) {
	m.lastFrom, m.lastTo = from, to
	var out []domain.ScheduleOverride
	for _, o := range m.overrides {
		if o.ScheduleID == scheduleID && !o.StartTime.After(to) && o.EndTime.After(from) {
			out = append(out, o)
		}
	}
	return out, nil
}

func utc(y int, m time.Month, d, hh int) time.Time {
	return time.Date(y, m, d, hh, 0, 0, 0, time.UTC)
}

func newRepo() *mockRepository {
	return &mockRepository{schedules: map[string]*domain.Schedule{
		"s1": {
			ID:          "s1",
			Members:     []string{"alice", "bob", "carol"},
			ShiftLength: domain.ShiftLengthOneWeek,
			StartAt:     utc(2024, 1, 1, 0),
			IsActive:    true,
		},
		"off": {
			ID:          "off",
			Members:     []string{"alice"},
			ShiftLength: domain.ShiftLengthOneDay,
			StartAt:     utc(2024, 1, 1, 0),
			IsActive:    false,
		},
	}}
}

func TestService_ResolveCurrentOnCall(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, clock.NewFake(utc(2024, 1, 9, 12)))

	got, err := svc.ResolveCurrentOnCall(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.UserID)
	assert.Equal(t, utc(2024, 1, 9, 12), repo.lastFrom)
}

func TestService_ResolveAt_Override(t *testing.T) {
	repo := newRepo()
	repo.overrides = []domain.ScheduleOverride{{
		ID: "o1", ScheduleID: "s1", UserID: "dave",
		StartTime: utc(2024, 1, 9, 0), EndTime: utc(2024, 1, 10, 0),
	}}
	svc := NewService(repo, nil)

	got, err := svc.ResolveAt(context.Background(), "s1", utc(2024, 1, 9, 12))
	require.NoError(t, err)
	assert.Equal(t, "dave", got.UserID)
}

func TestService_ResolveAt_Errors(t *testing.T) {
	svc := NewService(newRepo(), nil)

	_, err := svc.ResolveAt(context.Background(), "missing", utc(2024, 1, 9, 12))
	assert.ErrorIs(t, err, ErrScheduleNotFound)

	_, err = svc.ResolveAt(context.Background(), "off", utc(2024, 1, 9, 12))
	assert.ErrorIs(t, err, ErrScheduleInactive)

	_, err = svc.ResolveAt(context.Background(), "s1", utc(2023, 1, 9, 12))
	assert.ErrorIs(t, err, rotation.ErrNotYetActive)

	boom := errors.New("boom")
	_, err = NewService(&mockRepository{err: boom}, nil).ResolveAt(context.Background(), "s1", utc(2024, 1, 9, 12))
	assert.ErrorIs(t, err, boom)
}

func TestService_PreviewRotation_LoadsOverridesForWindow(t *testing.T) {
	repo := newRepo()
	repo.overrides = []domain.ScheduleOverride{{
		ID: "o1", ScheduleID: "s1", UserID: "dave",
		StartTime: utc(2024, 1, 16, 0), EndTime: utc(2024, 1, 17, 0),
	}}
	svc := NewService(repo, clock.NewFake(utc(2024, 1, 9, 12)))

	segments, err := svc.PreviewRotation(context.Background(), "s1", time.Time{}, 2)
	require.NoError(t, err)

	assert.Equal(t, utc(2024, 1, 8, 0), repo.lastFrom)
	assert.Equal(t, utc(2024, 1, 22, 0), repo.lastTo)

	users := make([]string, 0, len(segments))
	for _, s := range segments {
		users = append(users, s.UserID)
	}
	assert.Equal(t, []string{"bob", "carol", "dave", "carol"}, users)
}
