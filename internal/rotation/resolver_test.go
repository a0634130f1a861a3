package rotation

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func weeklySchedule() *domain.Schedule {
	return &domain.Schedule{
		ID:          "sched-1",
		Members:     []string{"alice", "bob", "carol"},
		ShiftLength: domain.ShiftLengthOneWeek,
		StartAt:     date(2024, 1, 1, 0, 0),
		TimeZone:    "UTC",
		IsActive:    true,
	}
}

func TestResolveOnCall_WeeklyRotation(t *testing.T) {
	s := weeklySchedule()

	tests := []struct {
		name  string
		at    time.Time
		user  string
		shift int
	}{
		{"start instant", date(2024, 1, 1, 0, 0), "alice", 0},
		{"end of first week", date(2024, 1, 7, 23, 59), "alice", 0},
		{"second week", date(2024, 1, 8, 0, 0), "bob", 1},
		{"third week", date(2024, 1, 15, 0, 0), "carol", 2},
		{"wraps around", date(2024, 1, 22, 0, 0), "alice", 3},
		{"far future", date(2024, 2, 26, 12, 0), "carol", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOnCall(s, nil, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.user, got.UserID)
			assert.Equal(t, tt.shift, got.ShiftIndex)
			assert.Nil(t, got.Override)
		})
	}
}

func TestResolveOnCall_IsDeterministic(t *testing.T) {
	s := weeklySchedule()
	at := date(2024, 2, 14, 17, 30)

	first, err := ResolveOnCall(s, nil, at)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ResolveOnCall(s, nil, at)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolveOnCall_ShiftBounds(t *testing.T) {
	got, err := ResolveOnCall(weeklySchedule(), nil, date(2024, 1, 10, 3, 0))
	require.NoError(t, err)

	assert.Equal(t, date(2024, 1, 8, 0, 0), got.ShiftStart)
	assert.Equal(t, date(2024, 1, 15, 0, 0), got.ShiftEnd)
}

func TestResolveOnCall_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *domain.Schedule)
		at      time.Time
		wantErr error
	}{
		{
			name:    "before start",
			mutate:  func(_ *domain.Schedule) {},
			at:      date(2023, 12, 31, 23, 59),
			wantErr: ErrNotYetActive,
		},
		{
			name:    "no members",
			mutate:  func(s *domain.Schedule) { s.Members = nil },
			at:      date(2024, 1, 2, 0, 0),
			wantErr: ErrNoMembers,
		},
		{
			name:    "unknown shift length",
			mutate:  func(s *domain.Schedule) { s.ShiftLength = "fortnightly" },
			at:      date(2024, 1, 2, 0, 0),
			wantErr: ErrInvalidShiftLength,
		},
		{
			name:    "malformed handoff",
			mutate:  func(s *domain.Schedule) { s.HandoffTime = "25:00" },
			at:      date(2024, 1, 2, 0, 0),
			wantErr: ErrInvalidHandoffTime,
		},
		{
			name:    "handoff without colon",
			mutate:  func(s *domain.Schedule) { s.HandoffTime = "0900" },
			at:      date(2024, 1, 2, 0, 0),
			wantErr: ErrInvalidHandoffTime,
		},
		{
			name:    "unknown time zone",
			mutate:  func(s *domain.Schedule) { s.TimeZone = "Mars/Olympus" },
			at:      date(2024, 1, 2, 0, 0),
			wantErr: ErrInvalidTimeZone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := weeklySchedule()
			tt.mutate(s)

			_, err := ResolveOnCall(s, nil, tt.at)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsResolutionError(err))
		})
	}
}

func TestResolveOnCall_HandoffTime(t *testing.T) {
	s := &domain.Schedule{
		Members:     []string{"alice", "bob"},
		ShiftLength: domain.ShiftLengthOneDay,
		StartAt:     date(2024, 1, 1, 0, 0),
		HandoffTime: "09:00",
	}

	tests := []struct {
		at   time.Time
		user string
	}{
		{date(2024, 1, 1, 8, 0), "alice"},
		{date(2024, 1, 2, 8, 59), "alice"},
		{date(2024, 1, 2, 9, 0), "bob"},
		{date(2024, 1, 3, 8, 59), "bob"},
		{date(2024, 1, 3, 9, 0), "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.at.Format(time.RFC3339), func(t *testing.T) {
			got, err := ResolveOnCall(s, nil, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.user, got.UserID)
		})
	}
}

func TestResolveOnCall_HandoffKeepsWallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	s := &domain.Schedule{
		Members:     []string{"alice", "bob"},
		ShiftLength: domain.ShiftLengthOneDay,
		StartAt:     time.Date(2024, 3, 29, 9, 0, 0, 0, berlin),
		HandoffTime: "09:00",
		TimeZone:    "Europe/Berlin",
	}

	// Clocks move forward on 2024-03-31, so 09:00 local is 07:00 UTC.
	before, err := ResolveOnCall(s, nil, date(2024, 3, 31, 6, 59))
	require.NoError(t, err)
	assert.Equal(t, "bob", before.UserID)

	after, err := ResolveOnCall(s, nil, date(2024, 3, 31, 7, 0))
	require.NoError(t, err)
	assert.Equal(t, "alice", after.UserID)
	assert.Equal(t, 2, after.ShiftIndex)
}

func TestResolveOnCall_MonthlyShiftIsThirtyDays(t *testing.T) {
	s := weeklySchedule()
	s.ShiftLength = domain.ShiftLengthOneMonth

	got, err := ResolveOnCall(s, nil, date(2024, 1, 30, 23, 59))
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)

	got, err = ResolveOnCall(s, nil, date(2024, 1, 31, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "bob", got.UserID)
}

func TestResolveOnCall_OverridePrecedence(t *testing.T) {
	s := weeklySchedule()
	overrides := []domain.ScheduleOverride{{
		ID:        "o1",
		UserID:    "dave",
		StartTime: date(2024, 1, 3, 0, 0),
		EndTime:   date(2024, 1, 4, 0, 0),
		CreatedAt: date(2024, 1, 1, 12, 0),
	}}

	got, err := ResolveOnCall(s, overrides, date(2024, 1, 3, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, "dave", got.UserID)
	require.NotNil(t, got.Override)
	assert.Equal(t, "o1", got.Override.ID)
	assert.Equal(t, 0, got.ShiftIndex)

	got, err = ResolveOnCall(s, overrides, date(2024, 1, 4, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Nil(t, got.Override)
}

func TestResolveOnCall_LatestCreatedOverrideWins(t *testing.T) {
	s := weeklySchedule()
	overrides := []domain.ScheduleOverride{
		{
			ID:        "o1",
			UserID:    "xavier",
			StartTime: date(2024, 1, 3, 0, 0),
			EndTime:   date(2024, 1, 6, 0, 0),
			CreatedAt: date(2024, 1, 1, 0, 0),
		},
		{
			ID:        "o2",
			UserID:    "yolanda",
			StartTime: date(2024, 1, 4, 0, 0),
			EndTime:   date(2024, 1, 5, 0, 0),
			CreatedAt: date(2024, 1, 2, 0, 0),
		},
	}

	got, err := ResolveOnCall(s, overrides, date(2024, 1, 4, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, "yolanda", got.UserID)

	got, err = ResolveOnCall(s, overrides, date(2024, 1, 3, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, "xavier", got.UserID)

	overrides[1].CreatedAt = overrides[0].CreatedAt
	got, err = ResolveOnCall(s, overrides, date(2024, 1, 4, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, "yolanda", got.UserID, "ties go to the greater id")
}

func TestResolveOnCall_OverrideBeforeStart(t *testing.T) {
	s := weeklySchedule()
	overrides := []domain.ScheduleOverride{{
		ID:        "early",
		UserID:    "dave",
		StartTime: date(2023, 12, 30, 0, 0),
		EndTime:   date(2024, 1, 2, 0, 0),
	}}

	got, err := ResolveOnCall(s, overrides, date(2023, 12, 31, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "dave", got.UserID)
	assert.Equal(t, -1, got.ShiftIndex)
}
