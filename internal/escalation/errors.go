package escalation

import "errors"

// Store errors.
var (
	ErrIncidentNotFound   = errors.New("incident not found")
	ErrPolicyNotFound     = errors.New("escalation policy not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrGroupNotFound      = errors.New("group not found")
	// ErrEscalationConflict is returned when the incident changed between
	// read and write.
	ErrEscalationConflict = errors.New("incident was modified concurrently")
)

// Action errors.
var (
	ErrAlreadyResolved     = errors.New("incident already resolved")
	ErrAlreadyAcknowledged = errors.New("incident already acknowledged")
	ErrPolicyExhausted     = errors.New("escalation policy exhausted")
	ErrNoEscalationPolicy  = errors.New("incident has no escalation policy")
	ErrInvalidPolicy       = errors.New("escalation policy levels are not contiguous")
)
