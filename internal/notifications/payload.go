package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
)

// MessageType defines the type of notification.
type MessageType string

// Message types.
const (
	MessageTypeEscalated MessageType = "escalated"
)

// Payload contains data for rendering a notification.
type Payload struct {
	MessageType MessageType    `json:"message_type"`
	Incident    IncidentData   `json:"incident"`
	Escalation  EscalationData `json:"escalation"`
	IncidentURL string         `json:"incident_url,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// IncidentData contains incident information for notification.
type IncidentData struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Urgency     string    `json:"urgency"`
	CreatedAt   time.Time `json:"created_at"`
}

// EscalationData describes the escalation step that triggered the notice.
type EscalationData struct {
	Level      int    `json:"level"`
	MaxLevel   int    `json:"max_level"`
	TargetType string `json:"target_type"`
	TargetName string `json:"target_name"`
	Reason     string `json:"reason"`
}

// EscalationInput holds the values for NewEscalatedPayload.
type EscalationInput struct {
	Incident   *domain.Incident
	Level      int
	MaxLevel   int
	TargetType domain.TargetType
	TargetName string
	Reason     string
	BaseURL    string
	At         time.Time
}

// NewEscalatedPayload builds the payload sent when an incident reaches a level.
func NewEscalatedPayload(in EscalationInput) Payload {
	p := Payload{
		MessageType: MessageTypeEscalated,
		Incident: IncidentData{
			ID:          in.Incident.ID,
			Title:       in.Incident.Title,
			Description: in.Incident.Description,
			Status:      string(in.Incident.Status),
			Urgency:     string(in.Incident.Urgency),
			CreatedAt:   in.Incident.CreatedAt,
		},
		Escalation: EscalationData{
			Level:      in.Level,
			MaxLevel:   in.MaxLevel,
			TargetType: string(in.TargetType),
			TargetName: in.TargetName,
			Reason:     in.Reason,
		},
		GeneratedAt: in.At,
	}
	if in.BaseURL != "" {
		p.IncidentURL = fmt.Sprintf("%s/incidents/%s", strings.TrimRight(in.BaseURL, "/"), in.Incident.ID)
	}
	return p
}
