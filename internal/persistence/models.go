package persistence

import "time"

// StatusPresent is the only attendance status recorded.
const StatusPresent = "present"

// Person is an attendee that can be identified by a scanner token.
type Person struct {
	ID          string
	DisplayName string
	// BiometricToken holds the token digest, never the raw scanner value.
	BiometricToken     *string
	EnrolledSessionIDs []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RecurrenceRule is a weekly time window belonging to a session.
type RecurrenceRule struct {
	Day      string
	Start    string
	End      string
	Location string
}

// Session is a scheduled class or meeting that persons enroll in.
type Session struct {
	ID                string
	Name              string
	Owner             string
	Rules             []RecurrenceRule
	EnrolledPersonIDs []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AttendanceFact is an immutable record of a person being present for a session.
type AttendanceFact struct {
	ID         string
	PersonID   string
	SessionID  string
	RecordedAt time.Time
	Status     string
}

// RecordedOn returns the calendar date of the fact in the location it was recorded in.
func (f AttendanceFact) RecordedOn() string {
	return f.RecordedAt.Format(time.DateOnly)
}
