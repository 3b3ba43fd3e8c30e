package testfixtures

import (
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/example/scan-attendance/internal/application"
	"github.com/example/scan-attendance/internal/persistence"
)

var (
	personCounter  uint64
	sessionCounter uint64
)

// referenceTime is a Monday morning inside the default session window.
var referenceTime = time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Person fixtures -----------------------------

// PersonFixture represents a deterministic person record that can be
// materialised for application or persistence tests.
type PersonFixture struct {
	ID          string
	DisplayName string
	Token       *string
	CreatedAt   time.Time
}

// PersonOption configures the generated person fixture.
type PersonOption func(*PersonFixture)

// NewPersonFixture returns a deterministic person fixture with optional overrides.
func NewPersonFixture(opts ...PersonOption) PersonFixture {
	idx := atomic.AddUint64(&personCounter, 1)
	fixture := PersonFixture{
		ID:          fmt.Sprintf("person-%03d", idx),
		DisplayName: fmt.Sprintf("Person %03d", idx),
		CreatedAt:   referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPersonID overrides the fixture identifier.
func WithPersonID(id string) PersonOption {
	return func(f *PersonFixture) {
		f.ID = id
	}
}

// WithPersonName overrides the display name.
func WithPersonName(name string) PersonOption {
	return func(f *PersonFixture) {
		f.DisplayName = name
	}
}

// WithPersonToken sets the stored token value.
func WithPersonToken(token string) PersonOption {
	return func(f *PersonFixture) {
		f.Token = &token
	}
}

// Input converts the fixture into roster input.
func (f PersonFixture) Input() application.CreatePersonInput {
	return application.CreatePersonInput{ID: f.ID, DisplayName: f.DisplayName, Token: copyStringPtr(f.Token)}
}

// Persistence converts the fixture into a persistence model.
func (f PersonFixture) Persistence() persistence.Person {
	return persistence.Person{
		ID:             f.ID,
		DisplayName:    f.DisplayName,
		BiometricToken: copyStringPtr(f.Token),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.CreatedAt,
	}
}

// ----------------------------- Session fixtures -----------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID        string
	Name      string
	Owner     string
	Rules     []application.RecurrenceRule
	CreatedAt time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session meeting on Mondays from 09:00 to 11:00
// unless overridden.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:    fmt.Sprintf("session-%03d", idx),
		Name:  fmt.Sprintf("Session %03d", idx),
		Owner: "Dr. Smith",
		Rules: []application.RecurrenceRule{
			{Day: "Monday", Start: "09:00", End: "11:00", Location: "A101"},
		},
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the fixture identifier.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionName overrides the session name.
func WithSessionName(name string) SessionOption {
	return func(f *SessionFixture) {
		f.Name = name
	}
}

// WithRule replaces the rules with a single weekly window.
func WithRule(day, start, end string) SessionOption {
	return func(f *SessionFixture) {
		f.Rules = []application.RecurrenceRule{{Day: day, Start: start, End: end}}
	}
}

// WithExtraRule appends a weekly window.
func WithExtraRule(day, start, end string) SessionOption {
	return func(f *SessionFixture) {
		f.Rules = append(slices.Clone(f.Rules), application.RecurrenceRule{Day: day, Start: start, End: end})
	}
}

// Input converts the fixture into roster input.
func (f SessionFixture) Input() application.CreateSessionInput {
	return application.CreateSessionInput{ID: f.ID, Name: f.Name, Owner: f.Owner, Rules: slices.Clone(f.Rules)}
}

// Persistence converts the fixture into a persistence model.
func (f SessionFixture) Persistence() persistence.Session {
	rules := make([]persistence.RecurrenceRule, 0, len(f.Rules))
	for _, rule := range f.Rules {
		rules = append(rules, persistence.RecurrenceRule{Day: rule.Day, Start: rule.Start, End: rule.End, Location: rule.Location})
	}
	return persistence.Session{
		ID:        f.ID,
		Name:      f.Name,
		Owner:     f.Owner,
		Rules:     rules,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}
