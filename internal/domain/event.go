package domain

import "time"

// IncidentEventType names an entry in an incident timeline.
type IncidentEventType string

// Incident timeline event types.
const (
	IncidentEventEscalated           IncidentEventType = "escalated"
	IncidentEventEscalationCompleted IncidentEventType = "escalation_completed"
	IncidentEventAcknowledged        IncidentEventType = "acknowledged"
	IncidentEventResolved            IncidentEventType = "resolved"
	IncidentEventNotified            IncidentEventType = "notified"
)

// IncidentEvent is an append-only timeline entry.
type IncidentEvent struct {
	ID         string            `json:"id"`
	IncidentID string            `json:"incident_id"`
	EventType  IncidentEventType `json:"event_type"`
	EventData  map[string]any    `json:"event_data"`
	CreatedBy  *string           `json:"created_by"`
	CreatedAt  time.Time         `json:"created_at"`
}
