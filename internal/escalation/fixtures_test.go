package escalation

import (
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/pkg/clock"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// twoLevelPolicy notifies alice after 5 minutes and the on-call of the
// primary schedule 10 minutes later.
func twoLevelPolicy() *domain.EscalationPolicy {
	return &domain.EscalationPolicy{
		ID:   "p1",
		Name: "Default",
		Levels: []domain.EscalationLevel{
			{LevelNumber: 1, TargetType: domain.TargetTypeUser, TargetID: "alice", DelayMinutes: 5},
			{LevelNumber: 2, TargetType: domain.TargetTypeSchedule, TargetID: "primary", DelayMinutes: 10},
		},
	}
}

func triggered(id string) *domain.Incident {
	return &domain.Incident{
		ID:                 id,
		Title:              "Database down",
		Status:             domain.IncidentStatusTriggered,
		Urgency:            domain.UrgencyHigh,
		EscalationPolicyID: strPtr("p1"),
		EscalationStatus:   domain.EscalationStatusPending,
		CreatedAt:          t0,
		UpdatedAt:          t0,
	}
}

type testEnv struct {
	store     *mockStore
	schedules *fakeSchedules
	notifier  *fakeNotifier
	clock     *clock.Fake
	service   *Service
}

func newTestEnv() *testEnv {
	store := newMockStore()
	store.policies["p1"] = twoLevelPolicy()
	store.users["alice"] = &domain.User{ID: "alice", Name: "Alice", IsActive: true}
	store.users["mallory"] = &domain.User{ID: "mallory", Name: "Mallory", IsActive: false}
	store.groups["dba"] = &domain.Group{ID: "dba", Name: "DBA", Members: []domain.GroupMember{
		{UserID: "dave", IsActive: true},
		{UserID: "erin", IsActive: true},
		{UserID: "frank", IsActive: false},
	}}

	env := &testEnv{
		store:     store,
		schedules: &fakeSchedules{onCall: map[string]string{"primary": "bob"}},
		notifier:  &fakeNotifier{},
		clock:     clock.NewFake(t0),
	}
	env.service = NewService(ServiceConfig{BaseURL: "https://oncall.example.com"}, store, env.schedules, env.notifier, env.clock)
	return env
}
