package domain

import "time"

// ShiftLength is the duration of one rotation shift.
type ShiftLength string

// Supported shift lengths.
const (
	ShiftLengthOneDay   ShiftLength = "one_day"
	ShiftLengthOneWeek  ShiftLength = "one_week"
	ShiftLengthTwoWeeks ShiftLength = "two_weeks"
	ShiftLengthOneMonth ShiftLength = "one_month"
)

// Days returns the number of calendar days in a shift, or 0 if unknown.
func (s ShiftLength) Days() int {
	switch s {
	case ShiftLengthOneDay:
		return 1
	case ShiftLengthOneWeek:
		return 7
	case ShiftLengthTwoWeeks:
		return 14
	case ShiftLengthOneMonth:
		return 30
	}
	return 0
}

// IsValid checks if the shift length is supported.
func (s ShiftLength) IsValid() bool {
	return s.Days() > 0
}

// Schedule is a rotation of members through fixed-length shifts.
type Schedule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Members     []string    `json:"members"`
	ShiftLength ShiftLength `json:"shift_length"`
	StartAt     time.Time   `json:"start_at"`
	HandoffTime string      `json:"handoff_time,omitempty"`
	TimeZone    string      `json:"time_zone"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ScheduleOverride replaces the rotation responder for a time window.
type ScheduleOverride struct {
	ID         string    `json:"id"`
	ScheduleID string    `json:"schedule_id"`
	UserID     string    `json:"user_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	CreatedAt  time.Time `json:"created_at"`
}

// Covers reports whether the override is in effect at the instant.
func (o ScheduleOverride) Covers(at time.Time) bool {
	return !at.Before(o.StartTime) && at.Before(o.EndTime)
}
