package rotation

import "errors"

// Resolution errors. All of them describe a schedule that cannot produce a
// responder; none are transient.
var (
	ErrNotYetActive       = errors.New("schedule not yet active")
	ErrNoMembers          = errors.New("schedule has no members")
	ErrInvalidShiftLength = errors.New("invalid shift length")
	ErrInvalidHandoffTime = errors.New("invalid handoff time")
	ErrInvalidTimeZone    = errors.New("invalid time zone")
)

// IsResolutionError reports whether err is one of the resolution errors.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrNotYetActive) ||
		errors.Is(err, ErrNoMembers) ||
		errors.Is(err, ErrInvalidShiftLength) ||
		errors.Is(err, ErrInvalidHandoffTime) ||
		errors.Is(err, ErrInvalidTimeZone)
}
