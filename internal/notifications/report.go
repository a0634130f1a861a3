package notifications

import "github.com/bissquit/oncall-garden/internal/domain"

// Outcome is the result of one channel delivery.
type Outcome string

// Delivery outcomes.
const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// DeliveryReport lists the outcome of every (user, channel) pair of a dispatch.
type DeliveryReport struct {
	IncidentID string
	Deliveries []DeliveryAttempt
}

// Outcome returns the outcome for a user and channel, or "" if the pair was
// not part of the dispatch.
func (r DeliveryReport) Outcome(userID string, ch domain.ChannelType) Outcome {
	for _, d := range r.Deliveries {
		if d.UserID == userID && d.Channel == ch {
			return d.Outcome
		}
	}
	return ""
}

// Count returns how many deliveries ended with the outcome.
func (r DeliveryReport) Count(o Outcome) int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Outcome == o {
			n++
		}
	}
	return n
}

// UnreachedUsers returns users that were not sent anything on any channel.
func (r DeliveryReport) UnreachedUsers() []string {
	reached := make(map[string]bool)
	var order []string
	for _, d := range r.Deliveries {
		if _, seen := reached[d.UserID]; !seen {
			order = append(order, d.UserID)
			reached[d.UserID] = false
		}
		if d.Outcome == OutcomeSent {
			reached[d.UserID] = true
		}
	}

	var out []string
	for _, id := range order {
		if !reached[id] {
			out = append(out, id)
		}
	}
	return out
}

// Summary returns a compact form suitable for a timeline event.
func (r DeliveryReport) Summary() map[string]any {
	channels := make([]map[string]string, 0, len(r.Deliveries))
	for _, d := range r.Deliveries {
		entry := map[string]string{
			"user_id": d.UserID,
			"channel": string(d.Channel),
			"outcome": string(d.Outcome),
		}
		if d.Error != "" {
			entry["error"] = d.Error
		}
		channels = append(channels, entry)
	}
	return map[string]any{
		"sent":       r.Count(OutcomeSent),
		"failed":     r.Count(OutcomeFailed),
		"skipped":    r.Count(OutcomeSkipped),
		"deliveries": channels,
	}
}
