// Package storeadapter exposes a persistence.Store through the repository
// interfaces of the application layer.
package storeadapter

import (
	"context"
	"slices"

	"github.com/example/scan-attendance/internal/application"
	"github.com/example/scan-attendance/internal/persistence"
)

// Adapter converts between application and persistence models.
type Adapter struct {
	store persistence.Store
}

var (
	_ application.PersonRepository     = (*Adapter)(nil)
	_ application.SessionRepository    = (*Adapter)(nil)
	_ application.EnrollmentRepository = (*Adapter)(nil)
	_ application.PersonDirectory      = (*Adapter)(nil)
	_ application.SessionLookup        = (*Adapter)(nil)
	_ application.FactStore            = (*Adapter)(nil)
)

// New wraps store.
func New(store persistence.Store) *Adapter {
	return &Adapter{store: store}
}

// CreatePerson persists person and returns the stored record.
func (a *Adapter) CreatePerson(ctx context.Context, person application.Person) (application.Person, error) {
	if err := a.store.CreatePerson(ctx, toPersistencePerson(person)); err != nil {
		return application.Person{}, err
	}
	return a.GetPerson(ctx, person.ID)
}

// UpdatePerson replaces the person's name and token and returns the stored record.
func (a *Adapter) UpdatePerson(ctx context.Context, person application.Person) (application.Person, error) {
	if err := a.store.UpdatePerson(ctx, toPersistencePerson(person)); err != nil {
		return application.Person{}, err
	}
	return a.GetPerson(ctx, person.ID)
}

// GetPerson returns the person with id.
func (a *Adapter) GetPerson(ctx context.Context, id string) (application.Person, error) {
	stored, err := a.store.GetPerson(ctx, id)
	if err != nil {
		return application.Person{}, err
	}
	return toApplicationPerson(stored), nil
}

// GetPersonByToken returns the person holding the token digest.
func (a *Adapter) GetPersonByToken(ctx context.Context, token string) (application.Person, error) {
	stored, err := a.store.GetPersonByToken(ctx, token)
	if err != nil {
		return application.Person{}, err
	}
	return toApplicationPerson(stored), nil
}

// ListPersons returns every person.
func (a *Adapter) ListPersons(ctx context.Context) ([]application.Person, error) {
	models, err := a.store.ListPersons(ctx)
	if err != nil {
		return nil, err
	}
	persons := make([]application.Person, 0, len(models))
	for _, model := range models {
		persons = append(persons, toApplicationPerson(model))
	}
	return persons, nil
}

// DeletePerson removes the person with id.
func (a *Adapter) DeletePerson(ctx context.Context, id string) error {
	return a.store.DeletePerson(ctx, id)
}

// CreateSession persists session and returns the stored record.
func (a *Adapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	if err := a.store.CreateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.Session{}, err
	}
	return a.GetSession(ctx, session.ID)
}

// UpdateSession replaces the session's name, owner and rules and returns the stored record.
func (a *Adapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	if err := a.store.UpdateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.Session{}, err
	}
	return a.GetSession(ctx, session.ID)
}

// GetSession returns the session with id.
func (a *Adapter) GetSession(ctx context.Context, id string) (application.Session, error) {
	stored, err := a.store.GetSession(ctx, id)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

// ListSessions returns every session.
func (a *Adapter) ListSessions(ctx context.Context) ([]application.Session, error) {
	models, err := a.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	sessions := make([]application.Session, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toApplicationSession(model))
	}
	return sessions, nil
}

// DeleteSession removes the session with id.
func (a *Adapter) DeleteSession(ctx context.Context, id string) error {
	return a.store.DeleteSession(ctx, id)
}

// Enroll links the person and session.
func (a *Adapter) Enroll(ctx context.Context, personID, sessionID string) error {
	return a.store.Enroll(ctx, personID, sessionID)
}

// SaveFact persists fact.
func (a *Adapter) SaveFact(ctx context.Context, fact application.AttendanceFact) error {
	return a.store.SaveFact(ctx, persistence.AttendanceFact{
		ID:         fact.ID,
		PersonID:   fact.PersonID,
		SessionID:  fact.SessionID,
		RecordedAt: fact.Timestamp,
		Status:     fact.Status,
	})
}

// ListFactsForSessionOnDate returns the session's facts recorded on date.
func (a *Adapter) ListFactsForSessionOnDate(ctx context.Context, sessionID, date string) ([]application.AttendanceFact, error) {
	models, err := a.store.ListFactsForSessionOnDate(ctx, sessionID, date)
	if err != nil {
		return nil, err
	}
	return toApplicationFacts(models), nil
}

// ListFactsForPerson returns every fact of the person.
func (a *Adapter) ListFactsForPerson(ctx context.Context, personID string) ([]application.AttendanceFact, error) {
	models, err := a.store.ListFactsForPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	return toApplicationFacts(models), nil
}

func toApplicationPerson(model persistence.Person) application.Person {
	return application.Person{
		ID:                 model.ID,
		DisplayName:        model.DisplayName,
		BiometricToken:     cloneString(model.BiometricToken),
		EnrolledSessionIDs: slices.Clone(model.EnrolledSessionIDs),
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}

func toPersistencePerson(person application.Person) persistence.Person {
	return persistence.Person{
		ID:                 person.ID,
		DisplayName:        person.DisplayName,
		BiometricToken:     cloneString(person.BiometricToken),
		EnrolledSessionIDs: slices.Clone(person.EnrolledSessionIDs),
		CreatedAt:          person.CreatedAt,
		UpdatedAt:          person.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	rules := make([]application.RecurrenceRule, 0, len(model.Rules))
	for _, rule := range model.Rules {
		rules = append(rules, application.RecurrenceRule{Day: rule.Day, Start: rule.Start, End: rule.End, Location: rule.Location})
	}
	return application.Session{
		ID:                model.ID,
		Name:              model.Name,
		Owner:             model.Owner,
		Rules:             rules,
		EnrolledPersonIDs: slices.Clone(model.EnrolledPersonIDs),
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	rules := make([]persistence.RecurrenceRule, 0, len(session.Rules))
	for _, rule := range session.Rules {
		rules = append(rules, persistence.RecurrenceRule{Day: rule.Day, Start: rule.Start, End: rule.End, Location: rule.Location})
	}
	return persistence.Session{
		ID:                session.ID,
		Name:              session.Name,
		Owner:             session.Owner,
		Rules:             rules,
		EnrolledPersonIDs: slices.Clone(session.EnrolledPersonIDs),
		CreatedAt:         session.CreatedAt,
		UpdatedAt:         session.UpdatedAt,
	}
}

func toApplicationFacts(models []persistence.AttendanceFact) []application.AttendanceFact {
	facts := make([]application.AttendanceFact, 0, len(models))
	for _, model := range models {
		facts = append(facts, application.AttendanceFact{
			ID:        model.ID,
			PersonID:  model.PersonID,
			SessionID: model.SessionID,
			Timestamp: model.RecordedAt,
			Status:    model.Status,
		})
	}
	return facts
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
