package persistence

import "context"

// PersonRepository exposes CRUD operations for persons.
type PersonRepository interface {
	CreatePerson(ctx context.Context, person Person) error
	// UpdatePerson replaces the display name and token. Enrollments are left untouched.
	UpdatePerson(ctx context.Context, person Person) error
	GetPerson(ctx context.Context, id string) (Person, error)
	GetPersonByToken(ctx context.Context, token string) (Person, error)
	ListPersons(ctx context.Context) ([]Person, error)
	// DeletePerson removes the person and every enrollment reference to it.
	DeletePerson(ctx context.Context, id string) error
}

// SessionRepository exposes CRUD operations for sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	// UpdateSession replaces name, owner and rules. Enrollments are left untouched.
	UpdateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	// DeleteSession removes the session and every enrollment reference to it.
	DeleteSession(ctx context.Context, id string) error
}

// EnrollmentRepository maintains both sides of the person/session relation.
type EnrollmentRepository interface {
	// Enroll appends the pair to both enrollment lists atomically. Enrolling an
	// existing pair is a no-op. Missing records yield ErrNotFound.
	Enroll(ctx context.Context, personID, sessionID string) error
}

// FactRepository stores attendance facts. Facts are never updated or deleted.
type FactRepository interface {
	SaveFact(ctx context.Context, fact AttendanceFact) error
	// ListFactsForSessionOnDate returns facts in insertion order. date is YYYY-MM-DD.
	ListFactsForSessionOnDate(ctx context.Context, sessionID, date string) ([]AttendanceFact, error)
	ListFactsForPerson(ctx context.Context, personID string) ([]AttendanceFact, error)
}

// Store groups every repository a backend provides.
type Store interface {
	PersonRepository
	SessionRepository
	EnrollmentRepository
	FactRepository
	Close() error
}
