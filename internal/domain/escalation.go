package domain

import "time"

// TargetType identifies what an escalation level notifies.
type TargetType string

// Escalation target types.
const (
	TargetTypeUser     TargetType = "user"
	TargetTypeSchedule TargetType = "schedule"
	TargetTypeGroup    TargetType = "group"
)

// IsValid checks if the target type is known.
func (t TargetType) IsValid() bool {
	return t == TargetTypeUser || t == TargetTypeSchedule || t == TargetTypeGroup
}

// EscalationPolicy is an ordered chain of escalation levels.
type EscalationPolicy struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Levels      []EscalationLevel `json:"levels"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// EscalationLevel is one step of a policy. DelayMinutes is how long an
// incident stays unacknowledged before this level fires.
type EscalationLevel struct {
	LevelNumber  int           `json:"level_number"`
	TargetType   TargetType    `json:"target_type"`
	TargetID     string        `json:"target_id"`
	DelayMinutes int           `json:"delay_minutes"`
	Channels     []ChannelType `json:"channels,omitempty"`
}

// Delay returns the level delay as a duration.
func (l EscalationLevel) Delay() time.Duration {
	return time.Duration(l.DelayMinutes) * time.Minute
}

// MaxLevel returns the highest level number of the policy.
func (p *EscalationPolicy) MaxLevel() int {
	return len(p.Levels)
}

// Level returns the level with the given 1-based number.
func (p *EscalationPolicy) Level(number int) (EscalationLevel, bool) {
	for _, l := range p.Levels {
		if l.LevelNumber == number {
			return l, true
		}
	}
	return EscalationLevel{}, false
}

// IsContiguous reports whether level numbers run 1..n without gaps.
func (p *EscalationPolicy) IsContiguous() bool {
	for i, l := range p.Levels {
		if l.LevelNumber != i+1 {
			return false
		}
	}
	return true
}
