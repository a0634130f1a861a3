// Package domain contains the core types shared by the escalation engine.
package domain

import "time"

// IncidentStatus represents the lifecycle status of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusTriggered    IncidentStatus = "triggered"
	IncidentStatusAcknowledged IncidentStatus = "acknowledged"
	IncidentStatusResolved     IncidentStatus = "resolved"
)

// Urgency represents how urgently an incident needs attention.
type Urgency string

// Urgency levels.
const (
	UrgencyLow  Urgency = "low"
	UrgencyHigh Urgency = "high"
)

// EscalationStatus tracks progress through the escalation chain.
type EscalationStatus string

// Escalation statuses.
const (
	EscalationStatusPending    EscalationStatus = "pending"
	EscalationStatusEscalating EscalationStatus = "escalating"
	EscalationStatusCompleted  EscalationStatus = "completed"
)

// Incident is a live problem that needs a responder.
type Incident struct {
	ID                     string           `json:"id"`
	Title                  string           `json:"title"`
	Description            string           `json:"description"`
	Status                 IncidentStatus   `json:"status"`
	Urgency                Urgency          `json:"urgency"`
	ServiceID              *string          `json:"service_id"`
	EscalationPolicyID     *string          `json:"escalation_policy_id"`
	CurrentEscalationLevel int              `json:"current_escalation_level"`
	EscalationStatus       EscalationStatus `json:"escalation_status"`
	LastEscalatedAt        *time.Time       `json:"last_escalated_at"`
	AssignedTo             *string          `json:"assigned_to"`
	AcknowledgedBy         *string          `json:"acknowledged_by"`
	AcknowledgedAt         *time.Time       `json:"acknowledged_at"`
	ResolvedBy             *string          `json:"resolved_by"`
	ResolvedAt             *time.Time       `json:"resolved_at"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// IsValid checks if the status is a known incident status.
func (s IncidentStatus) IsValid() bool {
	return s == IncidentStatusTriggered || s == IncidentStatusAcknowledged || s == IncidentStatusResolved
}

// IsValid checks if the urgency is known.
func (u Urgency) IsValid() bool {
	return u == UrgencyLow || u == UrgencyHigh
}

// IsOpen reports whether the incident still needs a responder to act.
func (i *Incident) IsOpen() bool {
	return i.Status == IncidentStatusTriggered
}

// EscalationAnchor returns the instant the current escalation wait started:
// the last escalation, or creation before the first one.
func (i *Incident) EscalationAnchor() time.Time {
	if i.LastEscalatedAt != nil {
		return *i.LastEscalatedAt
	}
	return i.CreatedAt
}
