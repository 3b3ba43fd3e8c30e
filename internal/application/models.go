package application

import (
	"time"

	"github.com/example/scan-attendance/internal/recurrence"
)

// Attendance statuses. Facts are only ever recorded as present; absent is
// derived in reports.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// RecordMode tells how an attendance fact was produced.
type RecordMode string

const (
	// ModeScan marks facts produced by resolving a scanner token.
	ModeScan RecordMode = "scan"
	// ModeManual marks facts recorded by an operator for an explicit session.
	ModeManual RecordMode = "manual"
)

// Person is an attendee known to the roster.
type Person struct {
	ID          string
	DisplayName string
	// BiometricToken is the digest of the scanner token, if one is assigned.
	BiometricToken     *string
	EnrolledSessionIDs []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RecurrenceRule is a weekly time window of a session.
type RecurrenceRule struct {
	Day      string
	Start    string
	End      string
	Location string
}

func (r RecurrenceRule) toRule() recurrence.Rule {
	return recurrence.Rule{Day: r.Day, Start: r.Start, End: r.End, Location: r.Location}
}

// Session is a scheduled class or meeting.
type Session struct {
	ID                string
	Name              string
	Owner             string
	Rules             []RecurrenceRule
	EnrolledPersonIDs []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AttendanceFact records that a person was present for a session at Timestamp.
type AttendanceFact struct {
	ID        string
	PersonID  string
	SessionID string
	Timestamp time.Time
	Status    string
}

// Confirmation is returned after a fact has been persisted.
type Confirmation struct {
	Fact        AttendanceFact
	PersonName  string
	SessionName string
	Mode        RecordMode
}

// RecordParams identifies a scan. A nil Timestamp means now.
type RecordParams struct {
	Token     string
	Timestamp *string
}

// ManualParams identifies an operator recorded attendance. A nil Timestamp means now.
type ManualParams struct {
	PersonID  string
	SessionID string
	Timestamp *string
}

// Resolution is the outcome of resolving a person against the schedule at a moment.
type Resolution struct {
	Person  Person
	Session *Session
	At      time.Time
}

// ReportEntry is one enrolled person's row in a daily report.
type ReportEntry struct {
	PersonID    string
	DisplayName string
	Status      string
	// RecordedAt is the earliest fact of the day, if any.
	RecordedAt *time.Time
}

// Report is the attendance of a session on a single date.
type Report struct {
	SessionID   string
	SessionName string
	Date        string
	Total       int
	Present     int
	Absent      int
	Entries     []ReportEntry
}

// SessionSummary is a person's attendance in one enrolled session.
type SessionSummary struct {
	SessionID    string
	SessionName  string
	TotalDays    int
	AttendedDays int
	Percentage   int
}

// Summary is the attendance of a person across every enrolled session.
type Summary struct {
	PersonID    string
	DisplayName string
	Sessions    []SessionSummary
}

// CreatePersonInput captures caller provided person fields.
type CreatePersonInput struct {
	ID          string
	DisplayName string
	Token       *string
}

// CreateSessionInput captures caller provided session fields.
type CreateSessionInput struct {
	ID    string
	Name  string
	Owner string
	Rules []RecurrenceRule
}

// UpdateSessionInput lists the session fields to change. Nil fields are kept.
// A non-nil, empty Rules removes every rule.
type UpdateSessionInput struct {
	Name  *string
	Owner *string
	Rules []RecurrenceRule
}
