// Package memory provides a mutex guarded, process local implementation of
// the persistence repositories.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/example/scan-attendance/internal/persistence"
)

// Storage keeps every record in maps guarded by a single lock.
type Storage struct {
	mu       sync.RWMutex
	persons  map[string]persistence.Person
	sessions map[string]persistence.Session
	facts    []persistence.AttendanceFact
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		persons:  make(map[string]persistence.Person),
		sessions: make(map[string]persistence.Session),
	}
}

// Close is a no-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- PersonRepository implementation ---

// CreatePerson stores a new person. Enrollment lists are managed by Enroll and ignored here.
func (s *Storage) CreatePerson(ctx context.Context, person persistence.Person) error {
	if err := validatePerson(person); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.persons[person.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.ensureUniqueTokenLocked(person.ID, person.BiometricToken); err != nil {
		return err
	}

	stored := clonePerson(person)
	stored.EnrolledSessionIDs = []string{}
	s.persons[person.ID] = stored
	return nil
}

// UpdatePerson replaces the display name and token of an existing person.
func (s *Storage) UpdatePerson(ctx context.Context, person persistence.Person) error {
	if err := validatePerson(person); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.persons[person.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueTokenLocked(person.ID, person.BiometricToken); err != nil {
		return err
	}

	updated := clonePerson(person)
	updated.EnrolledSessionIDs = existing.EnrolledSessionIDs
	updated.CreatedAt = existing.CreatedAt
	s.persons[person.ID] = updated
	return nil
}

// GetPerson retrieves a person by ID.
func (s *Storage) GetPerson(ctx context.Context, id string) (persistence.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	person, ok := s.persons[id]
	if !ok {
		return persistence.Person{}, persistence.ErrNotFound
	}
	return clonePerson(person), nil
}

// GetPersonByToken retrieves the person holding token.
func (s *Storage) GetPersonByToken(ctx context.Context, token string) (persistence.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token == "" {
		return persistence.Person{}, persistence.ErrNotFound
	}
	for _, person := range s.persons {
		if person.BiometricToken != nil && *person.BiometricToken == token {
			return clonePerson(person), nil
		}
	}
	return persistence.Person{}, persistence.ErrNotFound
}

// ListPersons returns all persons ordered by CreatedAt ascending.
func (s *Storage) ListPersons(ctx context.Context) ([]persistence.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	persons := make([]persistence.Person, 0, len(s.persons))
	for _, person := range s.persons {
		persons = append(persons, clonePerson(person))
	}
	sort.Slice(persons, func(i, j int) bool {
		if persons[i].CreatedAt.Equal(persons[j].CreatedAt) {
			return persons[i].ID < persons[j].ID
		}
		return persons[i].CreatedAt.Before(persons[j].CreatedAt)
	})
	return persons, nil
}

// DeletePerson removes a person and its enrollment references. Facts are kept.
func (s *Storage) DeletePerson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.persons[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.persons, id)

	for sessionID, session := range s.sessions {
		updated := removeString(session.EnrolledPersonIDs, id)
		if len(updated) != len(session.EnrolledPersonIDs) {
			session.EnrolledPersonIDs = updated
			s.sessions[sessionID] = session
		}
	}
	return nil
}

func (s *Storage) ensureUniqueTokenLocked(id string, token *string) error {
	if token == nil {
		return nil
	}
	for _, existing := range s.persons {
		if existing.ID == id || existing.BiometricToken == nil {
			continue
		}
		if *existing.BiometricToken == *token {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- SessionRepository implementation ---

// CreateSession stores a new session. Enrollment lists are managed by Enroll and ignored here.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return persistence.ErrDuplicate
	}

	stored := cloneSession(session)
	stored.EnrolledPersonIDs = []string{}
	s.sessions[session.ID] = stored
	return nil
}

// UpdateSession replaces name, owner and rules of an existing session.
func (s *Storage) UpdateSession(ctx context.Context, session persistence.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[session.ID]
	if !ok {
		return persistence.ErrNotFound
	}

	updated := cloneSession(session)
	updated.EnrolledPersonIDs = existing.EnrolledPersonIDs
	updated.CreatedAt = existing.CreatedAt
	s.sessions[session.ID] = updated
	return nil
}

// GetSession retrieves a session by ID.
func (s *Storage) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// ListSessions returns all sessions ordered by CreatedAt ascending.
func (s *Storage) ListSessions(ctx context.Context) ([]persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]persistence.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, cloneSession(session))
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// DeleteSession removes a session and its enrollment references. Facts are kept.
func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.sessions, id)

	for personID, person := range s.persons {
		updated := removeString(person.EnrolledSessionIDs, id)
		if len(updated) != len(person.EnrolledSessionIDs) {
			person.EnrolledSessionIDs = updated
			s.persons[personID] = person
		}
	}
	return nil
}

// --- EnrollmentRepository implementation ---

// Enroll links a person and a session on both sides under one lock.
func (s *Storage) Enroll(ctx context.Context, personID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	person, ok := s.persons[personID]
	if !ok {
		return persistence.ErrNotFound
	}
	session, ok := s.sessions[sessionID]
	if !ok {
		return persistence.ErrNotFound
	}

	if !slices.Contains(person.EnrolledSessionIDs, sessionID) {
		person.EnrolledSessionIDs = append(slices.Clone(person.EnrolledSessionIDs), sessionID)
		s.persons[personID] = person
	}
	if !slices.Contains(session.EnrolledPersonIDs, personID) {
		session.EnrolledPersonIDs = append(slices.Clone(session.EnrolledPersonIDs), personID)
		s.sessions[sessionID] = session
	}
	return nil
}

// --- FactRepository implementation ---

// SaveFact appends a fact. Facts never reference-check persons or sessions.
func (s *Storage) SaveFact(ctx context.Context, fact persistence.AttendanceFact) error {
	if strings.TrimSpace(fact.ID) == "" || fact.PersonID == "" || fact.SessionID == "" || fact.RecordedAt.IsZero() {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.facts {
		if existing.ID == fact.ID {
			return persistence.ErrDuplicate
		}
	}
	s.facts = append(s.facts, fact)
	return nil
}

// ListFactsForSessionOnDate returns the session's facts recorded on date in insertion order.
func (s *Storage) ListFactsForSessionOnDate(ctx context.Context, sessionID, date string) ([]persistence.AttendanceFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts := make([]persistence.AttendanceFact, 0)
	for _, fact := range s.facts {
		if fact.SessionID == sessionID && fact.RecordedOn() == date {
			facts = append(facts, fact)
		}
	}
	return facts, nil
}

// ListFactsForPerson returns the person's facts in insertion order.
func (s *Storage) ListFactsForPerson(ctx context.Context, personID string) ([]persistence.AttendanceFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts := make([]persistence.AttendanceFact, 0)
	for _, fact := range s.facts {
		if fact.PersonID == personID {
			facts = append(facts, fact)
		}
	}
	return facts, nil
}

func validatePerson(person persistence.Person) error {
	if strings.TrimSpace(person.ID) == "" || strings.TrimSpace(person.DisplayName) == "" {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func validateSession(session persistence.Session) error {
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func clonePerson(person persistence.Person) persistence.Person {
	var token *string
	if person.BiometricToken != nil {
		copy := *person.BiometricToken
		token = &copy
	}

	return persistence.Person{
		ID:                 person.ID,
		DisplayName:        person.DisplayName,
		BiometricToken:     token,
		EnrolledSessionIDs: slices.Clone(person.EnrolledSessionIDs),
		CreatedAt:          person.CreatedAt,
		UpdatedAt:          person.UpdatedAt,
	}
}

func cloneSession(session persistence.Session) persistence.Session {
	return persistence.Session{
		ID:                session.ID,
		Name:              session.Name,
		Owner:             session.Owner,
		Rules:             slices.Clone(session.Rules),
		EnrolledPersonIDs: slices.Clone(session.EnrolledPersonIDs),
		CreatedAt:         session.CreatedAt,
		UpdatedAt:         session.UpdatedAt,
	}
}

func removeString(values []string, target string) []string {
	if len(values) == 0 {
		return values
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v != target {
			result = append(result, v)
		}
	}
	return result
}
