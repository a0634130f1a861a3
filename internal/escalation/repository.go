// Package escalation walks unacknowledged incidents through their
// escalation policies and notifies the responders of each level.
package escalation

import (
	"context"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
)

// Store is the incident state the escalation engine reads and writes.
type Store interface {
	// GetOpenIncidents lists triggered incidents whose escalation is not
	// completed, oldest first.
	GetOpenIncidents(ctx context.Context, filter OpenIncidentFilter) ([]*domain.Incident, error)
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	GetEscalationPolicy(ctx context.Context, id string) (*domain.EscalationPolicy, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetGroup(ctx context.Context, id string) (*domain.Group, error)

	// UpdateIncidentEscalation applies the update only when the stored
	// incident still matches update.Expected, and appends events in the same
	// transaction. Returns ErrEscalationConflict when nothing matched and
	// ErrIncidentNotFound when the incident does not exist.
	UpdateIncidentEscalation(ctx context.Context, update EscalationUpdate, events ...domain.IncidentEvent) error
	// UpdateIncidentStatus moves an incident to acknowledged or resolved
	// while it is still in update.From. Level changes do not conflict.
	UpdateIncidentStatus(ctx context.Context, update StatusUpdate, events ...domain.IncidentEvent) error
	AppendIncidentEvent(ctx context.Context, event domain.IncidentEvent) error
}

// OpenIncidentFilter limits GetOpenIncidents.
type OpenIncidentFilter struct {
	Limit int
}

// Snapshot is the part of an incident a conditional write is checked against.
type Snapshot struct {
	Status          domain.IncidentStatus
	Level           int
	LastEscalatedAt *time.Time
}

// SnapshotOf captures the compare-and-swap fields of an incident.
func SnapshotOf(inc *domain.Incident) Snapshot {
	return Snapshot{
		Status:          inc.Status,
		Level:           inc.CurrentEscalationLevel,
		LastEscalatedAt: inc.LastEscalatedAt,
	}
}

// EscalationUpdate describes a level change or chain completion.
type EscalationUpdate struct {
	IncidentID       string
	Expected         Snapshot
	Level            int
	EscalationStatus domain.EscalationStatus
	LastEscalatedAt  *time.Time
	// AssignedTo replaces the assignee when non-nil.
	AssignedTo *string
}

// StatusUpdate describes an acknowledge or resolve transition. It applies
// only while the incident is still in status From.
type StatusUpdate struct {
	IncidentID string
	From       domain.IncidentStatus
	Status     domain.IncidentStatus
	By         string
	At         time.Time
}
