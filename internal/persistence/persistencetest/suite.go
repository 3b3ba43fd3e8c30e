// Package persistencetest holds the behavioural contract every persistence
// backend must satisfy. Backends run it from their own test files.
package persistencetest

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/example/scan-attendance/internal/persistence"
)

// StoreSuite exercises a persistence.Store produced by Open for every test.
type StoreSuite struct {
	suite.Suite
	// Open returns a fresh, empty store.
	Open func() (persistence.Store, error)

	store persistence.Store
	ctx   context.Context
	base  time.Time
}

func (s *StoreSuite) SetupTest() {
	store, err := s.Open()
	s.Require().NoError(err)
	s.store = store
	s.ctx = context.Background()
	s.base = time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *StoreSuite) person(id, name string) persistence.Person {
	return persistence.Person{ID: id, DisplayName: name, CreatedAt: s.base, UpdatedAt: s.base}
}

func (s *StoreSuite) session(id, name string, rules ...persistence.RecurrenceRule) persistence.Session {
	return persistence.Session{ID: id, Name: name, Owner: "Dr. Smith", Rules: rules, CreatedAt: s.base, UpdatedAt: s.base}
}

func (s *StoreSuite) fact(id, personID, sessionID string, at time.Time) persistence.AttendanceFact {
	return persistence.AttendanceFact{ID: id, PersonID: personID, SessionID: sessionID, RecordedAt: at, Status: persistence.StatusPresent}
}

func token(v string) *string {
	return &v
}

// TestPersonLifecycle verifies create, read, update and delete of persons.
func (s *StoreSuite) TestPersonLifecycle() {
	s.Run("creates and reads a person", func() {
		p := s.person("p-1", "John Doe")
		p.BiometricToken = token("digest-1")
		s.Require().NoError(s.store.CreatePerson(s.ctx, p))

		got, err := s.store.GetPerson(s.ctx, "p-1")
		s.Require().NoError(err)
		s.Equal("John Doe", got.DisplayName)
		s.Require().NotNil(got.BiometricToken)
		s.Equal("digest-1", *got.BiometricToken)
		s.Empty(got.EnrolledSessionIDs)
		s.True(got.CreatedAt.Equal(s.base))
	})

	s.Run("rejects duplicate id", func() {
		err := s.store.CreatePerson(s.ctx, s.person("p-1", "Someone Else"))
		s.ErrorIs(err, persistence.ErrDuplicate)
	})

	s.Run("rejects missing display name", func() {
		err := s.store.CreatePerson(s.ctx, s.person("p-2", " "))
		s.ErrorIs(err, persistence.ErrConstraintViolation)
	})

	s.Run("updates name and clears token", func() {
		p := s.person("p-1", "Johnny Doe")
		p.UpdatedAt = s.base.Add(time.Hour)
		s.Require().NoError(s.store.UpdatePerson(s.ctx, p))

		got, err := s.store.GetPerson(s.ctx, "p-1")
		s.Require().NoError(err)
		s.Equal("Johnny Doe", got.DisplayName)
		s.Nil(got.BiometricToken)
	})

	s.Run("reports missing records", func() {
		_, err := s.store.GetPerson(s.ctx, "missing")
		s.ErrorIs(err, persistence.ErrNotFound)
		s.ErrorIs(s.store.UpdatePerson(s.ctx, s.person("missing", "X")), persistence.ErrNotFound)
		s.ErrorIs(s.store.DeletePerson(s.ctx, "missing"), persistence.ErrNotFound)
	})

	s.Run("deletes a person", func() {
		s.Require().NoError(s.store.DeletePerson(s.ctx, "p-1"))
		_, err := s.store.GetPerson(s.ctx, "p-1")
		s.ErrorIs(err, persistence.ErrNotFound)
	})
}

// TestTokenLookup verifies token uniqueness and lookup by token.
func (s *StoreSuite) TestTokenLookup() {
	a := s.person("p-a", "Alice")
	a.BiometricToken = token("digest-a")
	s.Require().NoError(s.store.CreatePerson(s.ctx, a))

	b := s.person("p-b", "Bob")
	b.BiometricToken = token("digest-a")
	s.ErrorIs(s.store.CreatePerson(s.ctx, b), persistence.ErrDuplicate)

	b.BiometricToken = nil
	s.Require().NoError(s.store.CreatePerson(s.ctx, b))
	b.BiometricToken = token("digest-a")
	s.ErrorIs(s.store.UpdatePerson(s.ctx, b), persistence.ErrDuplicate)

	// Reassigning a person's own token is not a conflict.
	s.Require().NoError(s.store.UpdatePerson(s.ctx, a))

	got, err := s.store.GetPersonByToken(s.ctx, "digest-a")
	s.Require().NoError(err)
	s.Equal("p-a", got.ID)

	_, err = s.store.GetPersonByToken(s.ctx, "digest-unknown")
	s.ErrorIs(err, persistence.ErrNotFound)
}

// TestListOrdering verifies lists are ordered by creation time.
func (s *StoreSuite) TestListOrdering() {
	for i, name := range []string{"Charlie", "Alice", "Bob"} {
		p := s.person(fmt.Sprintf("p-%d", i), name)
		p.CreatedAt = s.base.Add(time.Duration(i) * time.Minute)
		s.Require().NoError(s.store.CreatePerson(s.ctx, p))

		sess := s.session(fmt.Sprintf("s-%d", i), name+" 101")
		sess.CreatedAt = s.base.Add(time.Duration(-i) * time.Minute)
		s.Require().NoError(s.store.CreateSession(s.ctx, sess))
	}

	persons, err := s.store.ListPersons(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(persons, 3)
	s.Equal([]string{"p-0", "p-1", "p-2"}, []string{persons[0].ID, persons[1].ID, persons[2].ID})

	sessions, err := s.store.ListSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(sessions, 3)
	s.Equal([]string{"s-2", "s-1", "s-0"}, []string{sessions[0].ID, sessions[1].ID, sessions[2].ID})
}

// TestSessionRulesRoundTrip verifies rules keep their order and content.
func (s *StoreSuite) TestSessionRulesRoundTrip() {
	rules := []persistence.RecurrenceRule{
		{Day: "Wednesday", Start: "09:00", End: "11:00", Location: "A101"},
		{Day: "Monday", Start: "22:00", End: "02:00", Location: "Lab"},
	}
	s.Require().NoError(s.store.CreateSession(s.ctx, s.session("s-1", "Mathematics 101", rules...)))

	got, err := s.store.GetSession(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Equal("Mathematics 101", got.Name)
	s.Equal("Dr. Smith", got.Owner)
	s.Equal(rules, got.Rules)

	s.ErrorIs(s.store.CreateSession(s.ctx, s.session("s-1", "Other")), persistence.ErrDuplicate)
	s.ErrorIs(s.store.CreateSession(s.ctx, s.session("", "Nameless")), persistence.ErrConstraintViolation)

	updated := s.session("s-1", "Mathematics 102", rules[1])
	updated.Owner = "Prof. Johnson"
	s.Require().NoError(s.store.UpdateSession(s.ctx, updated))

	got, err = s.store.GetSession(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Equal("Mathematics 102", got.Name)
	s.Equal("Prof. Johnson", got.Owner)
	s.Equal([]persistence.RecurrenceRule{rules[1]}, got.Rules)

	_, err = s.store.GetSession(s.ctx, "missing")
	s.ErrorIs(err, persistence.ErrNotFound)
	s.ErrorIs(s.store.UpdateSession(s.ctx, s.session("missing", "X")), persistence.ErrNotFound)
}

// TestEnrollment verifies both sides of the relation are maintained together.
func (s *StoreSuite) TestEnrollment() {
	s.Require().NoError(s.store.CreatePerson(s.ctx, s.person("p-1", "John Doe")))
	s.Require().NoError(s.store.CreateSession(s.ctx, s.session("s-1", "Mathematics 101")))
	s.Require().NoError(s.store.CreateSession(s.ctx, s.session("s-2", "Physics 120")))

	s.Require().NoError(s.store.Enroll(s.ctx, "p-1", "s-2"))
	s.Require().NoError(s.store.Enroll(s.ctx, "p-1", "s-1"))
	s.Require().NoError(s.store.Enroll(s.ctx, "p-1", "s-2"))

	person, err := s.store.GetPerson(s.ctx, "p-1")
	s.Require().NoError(err)
	s.Equal([]string{"s-2", "s-1"}, person.EnrolledSessionIDs)

	for _, id := range []string{"s-1", "s-2"} {
		session, err := s.store.GetSession(s.ctx, id)
		s.Require().NoError(err)
		s.Equal([]string{"p-1"}, session.EnrolledPersonIDs)
	}

	s.ErrorIs(s.store.Enroll(s.ctx, "missing", "s-1"), persistence.ErrNotFound)
	s.ErrorIs(s.store.Enroll(s.ctx, "p-1", "missing"), persistence.ErrNotFound)

	// Updates leave enrollment untouched.
	s.Require().NoError(s.store.UpdatePerson(s.ctx, s.person("p-1", "Johnny")))
	s.Require().NoError(s.store.UpdateSession(s.ctx, s.session("s-1", "Mathematics 102")))
	person, err = s.store.GetPerson(s.ctx, "p-1")
	s.Require().NoError(err)
	s.Equal([]string{"s-2", "s-1"}, person.EnrolledSessionIDs)
	session, err := s.store.GetSession(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Equal([]string{"p-1"}, session.EnrolledPersonIDs)
}

// TestDeleteCascadesReferencesButKeepsFacts verifies deletes drop enrollment
// references on the other side and never touch facts.
func (s *StoreSuite) TestDeleteCascadesReferencesButKeepsFacts() {
	s.Require().NoError(s.store.CreatePerson(s.ctx, s.person("p-1", "John Doe")))
	s.Require().NoError(s.store.CreatePerson(s.ctx, s.person("p-2", "Jane Smith")))
	s.Require().NoError(s.store.CreateSession(s.ctx, s.session("s-1", "Mathematics 101")))
	s.Require().NoError(s.store.CreateSession(s.ctx, s.session("s-2", "Physics 120")))
	for _, pair := range [][2]string{{"p-1", "s-1"}, {"p-2", "s-1"}, {"p-1", "s-2"}} {
		s.Require().NoError(s.store.Enroll(s.ctx, pair[0], pair[1]))
	}
	s.Require().NoError(s.store.SaveFact(s.ctx, s.fact("f-1", "p-1", "s-1", s.base)))
	s.Require().NoError(s.store.SaveFact(s.ctx, s.fact("f-2", "p-2", "s-2", s.base)))

	s.Require().NoError(s.store.DeletePerson(s.ctx, "p-1"))
	session, err := s.store.GetSession(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Equal([]string{"p-2"}, session.EnrolledPersonIDs)
	session, err = s.store.GetSession(s.ctx, "s-2")
	s.Require().NoError(err)
	s.Empty(session.EnrolledPersonIDs)

	s.Require().NoError(s.store.DeleteSession(s.ctx, "s-1"))
	person, err := s.store.GetPerson(s.ctx, "p-2")
	s.Require().NoError(err)
	s.Empty(person.EnrolledSessionIDs)

	facts, err := s.store.ListFactsForPerson(s.ctx, "p-1")
	s.Require().NoError(err)
	s.Len(facts, 1)
	facts, err = s.store.ListFactsForSessionOnDate(s.ctx, "s-1", "2024-01-15")
	s.Require().NoError(err)
	s.Len(facts, 1)

	s.ErrorIs(s.store.DeleteSession(s.ctx, "s-1"), persistence.ErrNotFound)
}

// TestFacts verifies fact storage, filtering and insertion ordering.
func (s *StoreSuite) TestFacts() {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 23:30 at UTC+9 on the 15th is still the 15th locally.
	late := time.Date(2024, time.January, 15, 23, 30, 5, 0, loc)

	s.Require().NoError(s.store.SaveFact(s.ctx, s.fact("f-1", "p-1", "s-1", s.base)))
	s.Require().NoError(s.store.SaveFact(s.ctx, s.fact("f-2", "p-1", "s-1", s.base)))
	s.Require().NoError(s.store.SaveFact(s.ctx, s.fact("f-3", "p-2", "s-1", late)))
	s.Require().NoError(s.store.SaveFact(s.ctx, s.fact("f-4", "p-1", "s-1", s.base.AddDate(0, 0, 1))))
	s.Require().NoError(s.store.SaveFact(s.ctx, s.fact("f-5", "p-1", "s-2", s.base)))

	s.ErrorIs(s.store.SaveFact(s.ctx, s.fact("f-1", "p-1", "s-1", s.base)), persistence.ErrDuplicate)
	s.ErrorIs(s.store.SaveFact(s.ctx, s.fact("f-6", "", "s-1", s.base)), persistence.ErrConstraintViolation)

	facts, err := s.store.ListFactsForSessionOnDate(s.ctx, "s-1", "2024-01-15")
	s.Require().NoError(err)
	s.Require().Len(facts, 3)
	s.Equal("f-1", facts[0].ID)
	s.Equal("f-2", facts[1].ID)
	s.Equal("f-3", facts[2].ID)
	s.True(facts[2].RecordedAt.Equal(late))
	s.Equal("2024-01-15", facts[2].RecordedOn())
	s.Equal(persistence.StatusPresent, facts[0].Status)

	facts, err = s.store.ListFactsForPerson(s.ctx, "p-1")
	s.Require().NoError(err)
	s.Require().Len(facts, 4)
	s.Equal([]string{"f-1", "f-2", "f-4", "f-5"}, []string{facts[0].ID, facts[1].ID, facts[2].ID, facts[3].ID})

	facts, err = s.store.ListFactsForPerson(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(facts)
}
