package application

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/example/scan-attendance/internal/persistence"
)

// fakeStore is a map backed implementation of every collaborator interface.
type fakeStore struct {
	mu       sync.Mutex
	persons  map[string]Person
	sessions map[string]Session
	facts    []AttendanceFact

	personErr  error
	sessionErr error
	saveErr    error
	listErr    error
	enrollErr  error

	sessionCalls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		persons:  make(map[string]Person),
		sessions: make(map[string]Session),
	}
}

func (f *fakeStore) addPerson(p Person) Person {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persons[p.ID] = p
	return p
}

func (f *fakeStore) addSession(s Session) Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return s
}

func (f *fakeStore) GetPerson(ctx context.Context, id string) (Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.personErr != nil {
		return Person{}, f.personErr
	}
	p, ok := f.persons[id]
	if !ok {
		return Person{}, persistence.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetPersonByToken(ctx context.Context, token string) (Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.personErr != nil {
		return Person{}, f.personErr
	}
	for _, p := range f.persons {
		if p.BiometricToken != nil && *p.BiometricToken == token {
			return p, nil
		}
	}
	return Person{}, persistence.ErrNotFound
}

func (f *fakeStore) CreatePerson(ctx context.Context, p Person) (Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.persons[p.ID]; ok {
		return Person{}, persistence.ErrDuplicate
	}
	f.persons[p.ID] = p
	return p, nil
}

func (f *fakeStore) UpdatePerson(ctx context.Context, p Person) (Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.persons[p.ID]; !ok {
		return Person{}, persistence.ErrNotFound
	}
	f.persons[p.ID] = p
	return p, nil
}

func (f *fakeStore) ListPersons(ctx context.Context) ([]Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Person, 0, len(f.persons))
	for _, p := range f.persons {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Person) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

func (f *fakeStore) DeletePerson(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.persons[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.persons, id)
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls = append(f.sessionCalls, id)
	if f.sessionErr != nil {
		return Session{}, f.sessionErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) CreateSession(ctx context.Context, s Session) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.ID]; ok {
		return Session{}, persistence.ErrDuplicate
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) UpdateSession(ctx context.Context, s Session) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.sessions[s.ID]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	s.EnrolledPersonIDs = existing.EnrolledPersonIDs
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) ListSessions(ctx context.Context) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) Enroll(ctx context.Context, personID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enrollErr != nil {
		return f.enrollErr
	}
	p, ok := f.persons[personID]
	if !ok {
		return persistence.ErrNotFound
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return persistence.ErrNotFound
	}
	if !slices.Contains(p.EnrolledSessionIDs, sessionID) {
		p.EnrolledSessionIDs = append(slices.Clone(p.EnrolledSessionIDs), sessionID)
		f.persons[personID] = p
	}
	if !slices.Contains(s.EnrolledPersonIDs, personID) {
		s.EnrolledPersonIDs = append(slices.Clone(s.EnrolledPersonIDs), personID)
		f.sessions[sessionID] = s
	}
	return nil
}

func (f *fakeStore) SaveFact(ctx context.Context, fact AttendanceFact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.facts = append(f.facts, fact)
	return nil
}

func (f *fakeStore) ListFactsForSessionOnDate(ctx context.Context, sessionID, date string) ([]AttendanceFact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []AttendanceFact
	for _, fact := range f.facts {
		if fact.SessionID == sessionID && fact.Timestamp.Format(DateLayout) == date {
			out = append(out, fact)
		}
	}
	return out, nil
}

func (f *fakeStore) ListFactsForPerson(ctx context.Context, personID string) ([]AttendanceFact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []AttendanceFact
	for _, fact := range f.facts {
		if fact.PersonID == personID {
			out = append(out, fact)
		}
	}
	return out, nil
}

// prefixDigester marks digests so tests can tell them apart from raw tokens.
type prefixDigester struct{}

func (prefixDigester) Digest(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return "digest:" + token, nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	recorded []RecordMode
	failed   []string
	resolves int
}

func (m *recordingMetrics) AttendanceRecorded(mode RecordMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, mode)
}

func (m *recordingMetrics) AttendanceFailed(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, kind)
}

func (m *recordingMetrics) ResolveObserved(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolves++
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedClock(at time.Time) Clock {
	return Clock{Now: func() time.Time { return at }, Location: at.Location()}
}

func strPtr(v string) *string {
	return &v
}

// mathSession repeats on Monday and Wednesday mornings.
func mathSession() Session {
	return Session{
		ID:    "math",
		Name:  "Mathematics 101",
		Owner: "Dr. Smith",
		Rules: []RecurrenceRule{
			{Day: "Monday", Start: "09:00", End: "11:00", Location: "A101"},
			{Day: "Wednesday", Start: "09:00", End: "11:00", Location: "A101"},
		},
	}
}
