package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/notifications"
	"github.com/bissquit/oncall-garden/internal/oncall"
	"github.com/bissquit/oncall-garden/internal/rotation"
)

type mockStore struct {
	mu        sync.Mutex
	incidents map[string]*domain.Incident
	policies  map[string]*domain.EscalationPolicy
	users     map[string]*domain.User
	groups    map[string]*domain.Group
	events    []domain.IncidentEvent

	openErr   error
	policyErr error
	// beforeUpdate and beforeStatus run inside the conditional writes before
	// the compare-and-swap check, to simulate a concurrent writer.
	beforeUpdate func(inc *domain.Incident)
	beforeStatus func(inc *domain.Incident)
}

func newMockStore() *mockStore {
	return &mockStore{
		incidents: make(map[string]*domain.Incident),
		policies:  make(map[string]*domain.EscalationPolicy),
		users:     make(map[string]*domain.User),
		groups:    make(map[string]*domain.Group),
	}
}

func (m *mockStore) addIncident(inc *domain.Incident) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inc
	m.incidents[inc.ID] = &cp
}

func (m *mockStore) incident(id string) *domain.Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.incidents[id]
	return &cp
}

func (m *mockStore) eventsOf(id string, eventType domain.IncidentEventType) []domain.IncidentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IncidentEvent
	for _, e := range m.events {
		if e.IncidentID == id && e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockStore) GetOpenIncidents(_ context.Context, filter OpenIncidentFilter) ([]*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	var out []*domain.Incident
	for _, inc := range m.incidents {
		if inc.Status == domain.IncidentStatusTriggered && inc.EscalationStatus != domain.EscalationStatusCompleted {
			cp := *inc
			out = append(out, &cp)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockStore) GetIncident(_ context.Context, id string) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	cp := *inc
	return &cp, nil
}

func (m *mockStore) GetEscalationPolicy(_ context.Context, id string) (*domain.EscalationPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.policyErr != nil {
		return nil, m.policyErr
	}
	p, ok := m.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	return p, nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *mockStore) GetGroup(_ context.Context, id string) (*domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

func (m *mockStore) matches(inc *domain.Incident, s Snapshot) bool {
	if inc.Status != s.Status || inc.CurrentEscalationLevel != s.Level {
		return false
	}
	if inc.LastEscalatedAt == nil || s.LastEscalatedAt == nil {
		return inc.LastEscalatedAt == nil && s.LastEscalatedAt == nil
	}
	return inc.LastEscalatedAt.Equal(*s.LastEscalatedAt)
}

func (m *mockStore) UpdateIncidentEscalation(_ context.Context, update EscalationUpdate, events ...domain.IncidentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[update.IncidentID]
	if !ok {
		return ErrIncidentNotFound
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(inc)
	}
	if !m.matches(inc, update.Expected) {
		return ErrEscalationConflict
	}
	inc.CurrentEscalationLevel = update.Level
	inc.EscalationStatus = update.EscalationStatus
	inc.LastEscalatedAt = update.LastEscalatedAt
	if update.AssignedTo != nil {
		inc.AssignedTo = update.AssignedTo
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *mockStore) UpdateIncidentStatus(_ context.Context, update StatusUpdate, events ...domain.IncidentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[update.IncidentID]
	if !ok {
		return ErrIncidentNotFound
	}
	if m.beforeStatus != nil {
		m.beforeStatus(inc)
	}
	if inc.Status != update.From {
		return ErrEscalationConflict
	}
	by, at := update.By, update.At
	inc.Status = update.Status
	inc.EscalationStatus = domain.EscalationStatusCompleted
	switch update.Status {
	case domain.IncidentStatusAcknowledged:
		inc.AcknowledgedBy, inc.AcknowledgedAt = &by, &at
	case domain.IncidentStatusResolved:
		inc.ResolvedBy, inc.ResolvedAt = &by, &at
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *mockStore) AppendIncidentEvent(_ context.Context, event domain.IncidentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type fakeSchedules struct {
	onCall map[string]string
	err    error
}

func (f *fakeSchedules) ResolveAt(_ context.Context, id string, at time.Time) (oncall.Resolution, error) {
	if f.err != nil {
		return oncall.Resolution{}, f.err
	}
	user, ok := f.onCall[id]
	if !ok {
		return oncall.Resolution{}, oncall.ErrScheduleNotFound
	}
	return oncall.Resolution{
		ScheduleID:   id,
		ScheduleName: "Primary " + id,
		At:           at,
		OnCall:       rotation.OnCall{UserID: user},
	}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifications.DispatchInput
}

func (f *fakeNotifier) Dispatch(_ context.Context, in notifications.DispatchInput) notifications.DeliveryReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)

	report := notifications.DeliveryReport{IncidentID: in.IncidentID}
	for _, u := range in.UserIDs {
		report.Deliveries = append(report.Deliveries, notifications.DeliveryAttempt{
			IncidentID: in.IncidentID,
			UserID:     u,
			Channel:    domain.ChannelTypePush,
			Outcome:    notifications.OutcomeSent,
		})
	}
	return report
}

func (f *fakeNotifier) dispatched() []notifications.DispatchInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifications.DispatchInput(nil), f.calls...)
}
