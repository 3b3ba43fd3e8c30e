package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/scan-attendance/internal/persistence"
)

// PersonRepository captures the person persistence operations needed by the roster.
type PersonRepository interface {
	CreatePerson(ctx context.Context, person Person) (Person, error)
	UpdatePerson(ctx context.Context, person Person) (Person, error)
	GetPerson(ctx context.Context, id string) (Person, error)
	GetPersonByToken(ctx context.Context, token string) (Person, error)
	ListPersons(ctx context.Context) ([]Person, error)
	DeletePerson(ctx context.Context, id string) error
}

// SessionRepository captures the session persistence operations needed by the roster.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// EnrollmentRepository links persons and sessions.
type EnrollmentRepository interface {
	Enroll(ctx context.Context, personID, sessionID string) error
}

// RosterService manages persons, sessions, enrollments and token assignment.
type RosterService struct {
	persons     PersonRepository
	sessions    SessionRepository
	enrollments EnrollmentRepository
	digester    TokenDigester
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRosterService constructs a roster service with the provided dependencies.
func NewRosterService(persons PersonRepository, sessions SessionRepository, enrollments EnrollmentRepository, digester TokenDigester, idGenerator func() string, now func() time.Time) *RosterService {
	return NewRosterServiceWithLogger(persons, sessions, enrollments, digester, idGenerator, now, nil)
}

// NewRosterServiceWithLogger constructs a roster service with a specified logger.
func NewRosterServiceWithLogger(persons PersonRepository, sessions SessionRepository, enrollments EnrollmentRepository, digester TokenDigester, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RosterService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RosterService{
		persons:     persons,
		sessions:    sessions,
		enrollments: enrollments,
		digester:    digester,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *RosterService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RosterService", operation, attrs...)
}

func (s *RosterService) configured() error {
	if s == nil || s.persons == nil || s.sessions == nil || s.enrollments == nil {
		return fmt.Errorf("roster service not configured")
	}
	return nil
}

// CreatePerson validates input and persists a new person. When a token is
// supplied it is digested and must not be held by anyone else.
func (s *RosterService) CreatePerson(ctx context.Context, input CreatePersonInput) (person Person, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreatePerson")
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to create person", err)
			return
		}
		logger.With("person_id", person.ID).InfoContext(ctx, "person created")
	}()

	vErr := &ValidationError{}
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		vErr.add("display_name", "display name is required")
	}
	if input.Token != nil && strings.TrimSpace(*input.Token) == "" {
		vErr.add("token", "token must not be blank")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	person = Person{
		ID:          strings.TrimSpace(input.ID),
		DisplayName: name,
		CreatedAt:   s.now(),
	}
	if person.ID == "" {
		person.ID = s.idGenerator()
	}
	person.UpdatedAt = person.CreatedAt

	if input.Token != nil {
		var digest string
		digest, err = s.claimToken(ctx, person.ID, *input.Token)
		if err != nil {
			return
		}
		person.BiometricToken = &digest
	}

	person, err = s.persons.CreatePerson(ctx, person)
	if err != nil {
		err = mapPersonRepoError("CreatePerson", err)
		return
	}
	return
}

// CreateSession validates input, including every recurrence rule, and persists a new session.
func (s *RosterService) CreateSession(ctx context.Context, input CreateSessionInput) (session Session, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateSession")
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to create session", err)
			return
		}
		logger.With("session_id", session.ID, "rule_count", len(session.Rules)).InfoContext(ctx, "session created")
	}()

	vErr := &ValidationError{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var rules []RecurrenceRule
	if rules, err = normalizeRules(input.Rules); err != nil {
		return
	}

	session = Session{
		ID:        strings.TrimSpace(input.ID),
		Name:      name,
		Owner:     strings.TrimSpace(input.Owner),
		Rules:     rules,
		CreatedAt: s.now(),
	}
	if session.ID == "" {
		session.ID = s.idGenerator()
	}
	session.UpdatedAt = session.CreatedAt

	session, err = s.sessions.CreateSession(ctx, session)
	if err != nil {
		err = mapSessionRepoError("CreateSession", err)
		return
	}
	return
}

// Enroll links a person and a session on both sides. Enrolling twice is a no-op.
func (s *RosterService) Enroll(ctx context.Context, personID, sessionID string) (err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Enroll", "person_id", personID, "session_id", sessionID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to enroll person", err)
			return
		}
		logger.InfoContext(ctx, "person enrolled")
	}()

	if _, err = s.persons.GetPerson(ctx, personID); err != nil {
		err = mapPersonLookupError("GetPerson", err)
		return
	}
	if _, err = s.sessions.GetSession(ctx, sessionID); err != nil {
		err = mapSessionLookupError("GetSession", err)
		return
	}

	if err = s.enrollments.Enroll(ctx, personID, sessionID); err != nil {
		if isNotFound(err) {
			// Removed between the checks and the write.
			if _, lookupErr := s.persons.GetPerson(ctx, personID); lookupErr != nil {
				err = mapPersonLookupError("GetPerson", lookupErr)
				return
			}
			err = ErrSessionNotFound
			return
		}
		err = repositoryError("Enroll", err)
	}
	return
}

// UpdateSession applies the non-nil fields of input to an existing session.
// Enrollments and recorded facts are kept.
func (s *RosterService) UpdateSession(ctx context.Context, id string, input UpdateSessionInput) (session Session, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateSession", "session_id", id)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to update session", err)
			return
		}
		logger.With("rule_count", len(session.Rules)).InfoContext(ctx, "session updated")
	}()

	session, err = s.sessions.GetSession(ctx, id)
	if err != nil {
		err = mapSessionLookupError("GetSession", err)
		return
	}

	if input.Name != nil {
		session.Name = strings.TrimSpace(*input.Name)
		if session.Name == "" {
			vErr := &ValidationError{}
			vErr.add("name", "name is required")
			err = vErr
			return
		}
	}
	if input.Owner != nil {
		session.Owner = strings.TrimSpace(*input.Owner)
	}
	if input.Rules != nil {
		if session.Rules, err = normalizeRules(input.Rules); err != nil {
			return
		}
	}

	session.UpdatedAt = s.now()
	session, err = s.sessions.UpdateSession(ctx, session)
	if err != nil {
		err = mapSessionRepoError("UpdateSession", err)
		return
	}
	return
}

// RenamePerson changes the display name of a person.
func (s *RosterService) RenamePerson(ctx context.Context, personID, displayName string) (person Person, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "RenamePerson", "person_id", personID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to rename person", err)
			return
		}
		logger.InfoContext(ctx, "person renamed")
	}()

	name := strings.TrimSpace(displayName)
	if name == "" {
		vErr := &ValidationError{}
		vErr.add("display_name", "display name is required")
		err = vErr
		return
	}

	person, err = s.persons.GetPerson(ctx, personID)
	if err != nil {
		err = mapPersonLookupError("GetPerson", err)
		return
	}

	person.DisplayName = name
	person.UpdatedAt = s.now()
	person, err = s.persons.UpdatePerson(ctx, person)
	if err != nil {
		err = mapPersonRepoError("UpdatePerson", err)
		return
	}
	return
}

// AssignToken digests token and assigns it to the person, replacing any previous token.
func (s *RosterService) AssignToken(ctx context.Context, personID, token string) (person Person, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "AssignToken", "person_id", personID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to assign token", err)
			return
		}
		logger.InfoContext(ctx, "token assigned")
	}()

	if strings.TrimSpace(token) == "" {
		vErr := &ValidationError{}
		vErr.add("token", "token is required")
		err = vErr
		return
	}

	person, err = s.persons.GetPerson(ctx, personID)
	if err != nil {
		err = mapPersonLookupError("GetPerson", err)
		return
	}

	var digest string
	digest, err = s.claimToken(ctx, person.ID, token)
	if err != nil {
		return
	}

	person.BiometricToken = &digest
	person.UpdatedAt = s.now()
	person, err = s.persons.UpdatePerson(ctx, person)
	if err != nil {
		err = mapPersonRepoError("UpdatePerson", err)
		return
	}
	return
}

// ClearToken removes the person's token so scans no longer identify them.
func (s *RosterService) ClearToken(ctx context.Context, personID string) (person Person, err error) {
	if err = s.configured(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ClearToken", "person_id", personID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to clear token", err)
			return
		}
		logger.InfoContext(ctx, "token cleared")
	}()

	person, err = s.persons.GetPerson(ctx, personID)
	if err != nil {
		err = mapPersonLookupError("GetPerson", err)
		return
	}
	if person.BiometricToken == nil {
		return
	}

	person.BiometricToken = nil
	person.UpdatedAt = s.now()
	person, err = s.persons.UpdatePerson(ctx, person)
	if err != nil {
		err = mapPersonRepoError("UpdatePerson", err)
		return
	}
	return
}

// GetPerson returns a person by id.
func (s *RosterService) GetPerson(ctx context.Context, id string) (Person, error) {
	if err := s.configured(); err != nil {
		return Person{}, err
	}
	person, err := s.persons.GetPerson(ctx, id)
	if err != nil {
		return Person{}, mapPersonLookupError("GetPerson", err)
	}
	return person, nil
}

// GetSession returns a session by id.
func (s *RosterService) GetSession(ctx context.Context, id string) (Session, error) {
	if err := s.configured(); err != nil {
		return Session{}, err
	}
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return Session{}, mapSessionLookupError("GetSession", err)
	}
	return session, nil
}

// ListPersons returns every person in creation order.
func (s *RosterService) ListPersons(ctx context.Context) ([]Person, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	persons, err := s.persons.ListPersons(ctx)
	if err != nil {
		return nil, repositoryError("ListPersons", err)
	}
	return persons, nil
}

// ListSessions returns every session in creation order.
func (s *RosterService) ListSessions(ctx context.Context) ([]Session, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListSessions(ctx)
	if err != nil {
		return nil, repositoryError("ListSessions", err)
	}
	return sessions, nil
}

// DeletePerson removes the person and their enrollments. Recorded facts are kept.
func (s *RosterService) DeletePerson(ctx context.Context, id string) error {
	if err := s.configured(); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "DeletePerson", "person_id", id)
	if err := s.persons.DeletePerson(ctx, id); err != nil {
		err = mapPersonLookupError("DeletePerson", err)
		logFailure(ctx, logger, "failed to delete person", err)
		return err
	}

	logger.InfoContext(ctx, "person deleted")
	return nil
}

// DeleteSession removes the session and its enrollments. Recorded facts are kept.
func (s *RosterService) DeleteSession(ctx context.Context, id string) error {
	if err := s.configured(); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "DeleteSession", "session_id", id)
	if err := s.sessions.DeleteSession(ctx, id); err != nil {
		err = mapSessionLookupError("DeleteSession", err)
		logFailure(ctx, logger, "failed to delete session", err)
		return err
	}

	logger.InfoContext(ctx, "session deleted")
	return nil
}

// claimToken digests token and fails when a different person already holds it.
func (s *RosterService) claimToken(ctx context.Context, personID, token string) (string, error) {
	digest := strings.TrimSpace(token)
	if s.digester != nil {
		var err error
		digest, err = s.digester.Digest(token)
		if err != nil {
			vErr := &ValidationError{}
			vErr.add("token", err.Error())
			return "", vErr
		}
	}

	holder, err := s.persons.GetPersonByToken(ctx, digest)
	switch {
	case err == nil:
		if holder.ID != personID {
			return "", fmt.Errorf("%w: held by %s", ErrDuplicateBiometricToken, holder.ID)
		}
	case isNotFound(err):
	default:
		return "", repositoryError("GetPersonByToken", err)
	}
	return digest, nil
}

// normalizeRules trims every rule and rejects any the window evaluator cannot parse.
func normalizeRules(input []RecurrenceRule) ([]RecurrenceRule, error) {
	rules := make([]RecurrenceRule, 0, len(input))
	for idx, rule := range input {
		normalized := RecurrenceRule{
			Day:      strings.TrimSpace(rule.Day),
			Start:    strings.TrimSpace(rule.Start),
			End:      strings.TrimSpace(rule.End),
			Location: strings.TrimSpace(rule.Location),
		}
		if _, err := normalized.toRule().Parse(); err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", ErrInvalidRecurrenceRule, idx, err)
		}
		rules = append(rules, normalized)
	}
	return rules, nil
}

func mapPersonRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFound(err):
		return ErrPersonNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		if op == "UpdatePerson" {
			return ErrDuplicateBiometricToken
		}
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("person", err.Error())
		return vErr
	}
	return repositoryError(op, err)
}

func mapSessionRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFound(err):
		return ErrSessionNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("session", err.Error())
		return vErr
	}
	return repositoryError(op, err)
}
