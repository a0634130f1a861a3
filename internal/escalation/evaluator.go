package escalation

import (
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
)

// ActionKind is what the evaluator decided for an incident.
type ActionKind int

// Action kinds.
const (
	ActionNone ActionKind = iota
	ActionAdvance
	ActionComplete
)

func (k ActionKind) String() string {
	switch k {
	case ActionAdvance:
		return "advance"
	case ActionComplete:
		return "complete"
	default:
		return "none"
	}
}

// Action is the next step for an incident.
type Action struct {
	Kind ActionKind
	// Level is the level to fire for ActionAdvance.
	Level domain.EscalationLevel
	// Due is when the pending level becomes eligible, for ActionNone on an
	// incident that is still waiting.
	Due time.Time
}

// NextEscalationAction decides whether the incident should move to its next
// level at now. It never reads the clock.
//
// Level N fires once the incident has stayed unacknowledged for level N's
// delay, counted from the previous escalation (or from creation before the
// first one). When the last level has fired the following evaluation
// completes the chain.
func NextEscalationAction(inc *domain.Incident, policy *domain.EscalationPolicy, now time.Time) Action {
	if inc.Status != domain.IncidentStatusTriggered {
		return Action{Kind: ActionNone}
	}
	if inc.EscalationStatus == domain.EscalationStatusCompleted {
		return Action{Kind: ActionNone}
	}
	if policy == nil || len(policy.Levels) == 0 {
		return Action{Kind: ActionNone}
	}

	next, ok := policy.Level(inc.CurrentEscalationLevel + 1)
	if !ok {
		return Action{Kind: ActionComplete}
	}

	due := inc.EscalationAnchor().Add(next.Delay())
	if now.Before(due) {
		return Action{Kind: ActionNone, Due: due}
	}
	return Action{Kind: ActionAdvance, Level: next}
}
