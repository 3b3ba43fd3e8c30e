package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-15 is a Monday.
func monday(hour, minute, second int) time.Time {
	return time.Date(2024, time.January, 15, hour, minute, second, 0, time.UTC)
}

func TestSessionResolver_Resolve(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addSession(mathSession())
	store.addSession(Session{
		ID:    "physics",
		Name:  "Physics 120",
		Rules: []RecurrenceRule{{Day: "Monday", Start: "14:00", End: "16:00"}},
	})
	person := Person{ID: "p1", EnrolledSessionIDs: []string{"math", "physics"}}
	resolver := NewSessionResolver(store, store, fixedClock(monday(9, 0, 0)))

	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{name: "start boundary", at: monday(9, 0, 0), want: "math"},
		{name: "end boundary with seconds", at: monday(11, 0, 45), want: "math"},
		{name: "between sessions", at: monday(12, 0, 0), want: ""},
		{name: "second session", at: monday(15, 0, 0), want: "physics"},
		{name: "other weekday", at: monday(10, 0, 0).AddDate(0, 0, 1), want: ""},
	}
	for _, tc := range cases {
		session, ok, err := resolver.Resolve(context.Background(), person, tc.at)
		require.NoError(t, err, tc.name)
		if tc.want == "" {
			assert.False(t, ok, tc.name)
			continue
		}
		require.True(t, ok, tc.name)
		assert.Equal(t, tc.want, session.ID, tc.name)
	}
}

func TestSessionResolver_FirstMatchWins(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addSession(Session{ID: "a", Rules: []RecurrenceRule{{Day: "Monday", Start: "09:00", End: "12:00"}}})
	store.addSession(Session{ID: "b", Rules: []RecurrenceRule{{Day: "Monday", Start: "10:00", End: "11:00"}}})
	resolver := NewSessionResolver(store, store, fixedClock(monday(0, 0, 0)))

	session, ok, err := resolver.Resolve(context.Background(), Person{ID: "p", EnrolledSessionIDs: []string{"b", "a"}}, monday(10, 30, 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", session.ID)
}

func TestSessionResolver_WrappingWindowStaysOnNominalDay(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addSession(Session{ID: "night", Rules: []RecurrenceRule{{Day: "Monday", Start: "22:00", End: "02:00"}}})
	resolver := NewSessionResolver(store, store, fixedClock(monday(0, 0, 0)))
	person := Person{ID: "p", EnrolledSessionIDs: []string{"night"}}

	_, ok, err := resolver.Resolve(context.Background(), person, monday(23, 30, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = resolver.Resolve(context.Background(), person, monday(1, 0, 0))
	require.NoError(t, err)
	assert.True(t, ok, "early Monday hours match the Monday rule")

	_, ok, err = resolver.Resolve(context.Background(), person, monday(1, 0, 0).AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, ok, "early Tuesday hours do not")
}

func TestSessionResolver_SkipsDanglingAndInvalid(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addSession(Session{ID: "broken", Rules: []RecurrenceRule{
		{Day: "Moonday", Start: "09:00", End: "11:00"},
		{Day: "Monday", Start: "9am", End: "11:00"},
	}})
	store.addSession(mathSession())
	resolver := NewSessionResolver(store, store, fixedClock(monday(0, 0, 0)))
	person := Person{ID: "p", EnrolledSessionIDs: []string{"gone", "broken", "math"}}

	session, ok, err := resolver.Resolve(context.Background(), person, monday(10, 0, 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "math", session.ID)
	assert.Equal(t, []string{"gone", "broken", "math"}, store.sessionCalls)
}

func TestSessionResolver_UsesConfiguredLocation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addSession(mathSession())
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	resolver := NewSessionResolver(store, store, Clock{Location: tokyo})

	// 01:00 UTC is 10:00 at UTC+9.
	_, ok, err := resolver.Resolve(context.Background(), Person{EnrolledSessionIDs: []string{"math"}}, monday(1, 0, 0))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSessionResolver_RepositoryFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.sessionErr = errors.New("connection reset")
	metrics := &recordingMetrics{}
	resolver := NewSessionResolver(store, store, fixedClock(monday(0, 0, 0))).WithMetrics(metrics)

	_, ok, err := resolver.Resolve(context.Background(), Person{EnrolledSessionIDs: []string{"math"}}, monday(10, 0, 0))
	require.ErrorIs(t, err, ErrRepositoryUnavailable)
	assert.False(t, ok)
	assert.Equal(t, 1, metrics.resolves)
}

func TestSessionResolver_ResolveForPerson(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addSession(mathSession())
	store.addPerson(Person{ID: "p1", DisplayName: "John Doe", EnrolledSessionIDs: []string{"math"}})
	resolver := NewSessionResolver(store, store, fixedClock(monday(10, 15, 0)))

	resolution, err := resolver.ResolveForPerson(context.Background(), "p1", "")
	require.NoError(t, err)
	require.NotNil(t, resolution.Session)
	assert.Equal(t, "math", resolution.Session.ID)
	assert.Equal(t, monday(10, 15, 0), resolution.At)

	resolution, err = resolver.ResolveForPerson(context.Background(), "p1", "2024-01-15 12:00:00")
	require.NoError(t, err)
	assert.Nil(t, resolution.Session)
	assert.Equal(t, "p1", resolution.Person.ID)

	_, err = resolver.ResolveForPerson(context.Background(), "nobody", "")
	require.ErrorIs(t, err, ErrPersonNotFound)

	_, err = resolver.ResolveForPerson(context.Background(), "p1", "15/01/2024")
	require.ErrorIs(t, err, ErrInvalidTimestamp)
}
