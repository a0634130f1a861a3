//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// resetIncidents clears incident state so worker ticks only see the
// incidents created by the current test.
func resetIncidents(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), `TRUNCATE incidents CASCADE`)
	require.NoError(t, err)
}

func createUser(t *testing.T, name string, active bool) *domain.User {
	t.Helper()
	u := &domain.User{
		Name:     name,
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Role:     domain.RoleResponder,
		IsActive: active,
	}
	require.NoError(t, incidentStore.CreateUser(context.Background(), u))
	return u
}

func createWebhookUser(t *testing.T, name, url string) *domain.User {
	t.Helper()
	u := createUser(t, name, true)
	require.NoError(t, notificationsStore.UpsertNotificationConfig(context.Background(), &domain.NotificationConfig{
		UserID:     u.ID,
		WebhookURL: url,
	}))
	return u
}

func createGroup(t *testing.T, name string, members ...domain.GroupMember) *domain.Group {
	t.Helper()
	g := &domain.Group{Name: name, Members: members}
	require.NoError(t, incidentStore.CreateGroup(context.Background(), g))
	return g
}

func createSchedule(t *testing.T, start time.Time, length domain.ShiftLength, members ...string) *domain.Schedule {
	t.Helper()
	s := &domain.Schedule{
		Name:        "Primary",
		Members:     members,
		ShiftLength: length,
		StartAt:     start,
		TimeZone:    "UTC",
		IsActive:    true,
	}
	require.NoError(t, scheduleStore.CreateSchedule(context.Background(), s))
	return s
}

func createPolicy(t *testing.T, levels ...domain.EscalationLevel) *domain.EscalationPolicy {
	t.Helper()
	for i := range levels {
		levels[i].LevelNumber = i + 1
	}
	p := &domain.EscalationPolicy{Name: "Checkout", Levels: levels}
	require.NoError(t, incidentStore.CreateEscalationPolicy(context.Background(), p))
	return p
}

func userLevel(userID string, delayMinutes int) domain.EscalationLevel {
	return domain.EscalationLevel{TargetType: domain.TargetTypeUser, TargetID: userID, DelayMinutes: delayMinutes}
}

func scheduleLevel(scheduleID string, delayMinutes int) domain.EscalationLevel {
	return domain.EscalationLevel{TargetType: domain.TargetTypeSchedule, TargetID: scheduleID, DelayMinutes: delayMinutes}
}

func createIncident(t *testing.T, policy *domain.EscalationPolicy) *domain.Incident {
	t.Helper()
	inc := &domain.Incident{
		Title:   "Checkout latency above SLO",
		Urgency: domain.UrgencyHigh,
	}
	if policy != nil {
		inc.EscalationPolicyID = &policy.ID
	}
	require.NoError(t, incidentStore.CreateIncident(context.Background(), inc))
	return inc
}

func getIncident(t *testing.T, id string) *domain.Incident {
	t.Helper()
	inc, err := incidentStore.GetIncident(context.Background(), id)
	require.NoError(t, err)
	return inc
}

func eventTypes(t *testing.T, incidentID string) []domain.IncidentEventType {
	t.Helper()
	events, err := incidentStore.ListIncidentEvents(context.Background(), incidentID)
	require.NoError(t, err)
	types := make([]domain.IncidentEventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	return types
}

func authenticatedClient(t *testing.T, user *domain.User) *testutil.Client {
	t.Helper()
	client := newTestClient(t)
	client.AuthenticateAs(t, testTokens, user.ID, domain.RoleResponder)
	return client
}
