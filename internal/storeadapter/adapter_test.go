package storeadapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/scan-attendance/internal/application"
	"github.com/example/scan-attendance/internal/persistence"
	"github.com/example/scan-attendance/internal/persistence/memory"
)

func TestAdapter_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	adapter := New(memory.New())
	created := time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC)
	token := "digest"

	person, err := adapter.CreatePerson(ctx, application.Person{
		ID:                 "p1",
		DisplayName:        "John Doe",
		BiometricToken:     &token,
		EnrolledSessionIDs: []string{"ignored"},
		CreatedAt:          created,
		UpdatedAt:          created,
	})
	require.NoError(t, err)
	assert.Empty(t, person.EnrolledSessionIDs)
	require.NotNil(t, person.BiometricToken)
	token = "mutated"
	assert.Equal(t, "digest", *person.BiometricToken)

	session, err := adapter.CreateSession(ctx, application.Session{
		ID:        "math",
		Name:      "Mathematics 101",
		Rules:     []application.RecurrenceRule{{Day: "Monday", Start: "09:00", End: "11:00", Location: "A101"}},
		CreatedAt: created,
		UpdatedAt: created,
	})
	require.NoError(t, err)
	assert.Equal(t, []application.RecurrenceRule{{Day: "Monday", Start: "09:00", End: "11:00", Location: "A101"}}, session.Rules)

	require.NoError(t, adapter.Enroll(ctx, "p1", "math"))
	person, err = adapter.GetPersonByToken(ctx, "digest")
	require.NoError(t, err)
	assert.Equal(t, []string{"math"}, person.EnrolledSessionIDs)

	at := time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)
	require.NoError(t, adapter.SaveFact(ctx, application.AttendanceFact{
		ID: "f1", PersonID: "p1", SessionID: "math", Timestamp: at, Status: application.StatusPresent,
	}))
	facts, err := adapter.ListFactsForSessionOnDate(ctx, "math", "2024-01-15")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.True(t, facts[0].Timestamp.Equal(at))

	person.DisplayName = "Johnny"
	person.BiometricToken = nil
	updated, err := adapter.UpdatePerson(ctx, person)
	require.NoError(t, err)
	assert.Equal(t, "Johnny", updated.DisplayName)
	assert.Nil(t, updated.BiometricToken)

	session.Name = "Mathematics 102"
	session.Rules = []application.RecurrenceRule{{Day: "Tuesday", Start: "13:00", End: "14:00"}}
	renamed, err := adapter.UpdateSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "Mathematics 102", renamed.Name)
	assert.Equal(t, session.Rules, renamed.Rules)
	assert.Equal(t, []string{"p1"}, renamed.EnrolledPersonIDs)

	_, err = adapter.UpdateSession(ctx, application.Session{ID: "gone", Name: "Gone"})
	require.ErrorIs(t, err, persistence.ErrNotFound)

	persons, err := adapter.ListPersons(ctx)
	require.NoError(t, err)
	assert.Len(t, persons, 1)
	sessions, err := adapter.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	require.NoError(t, adapter.DeleteSession(ctx, "math"))
	require.NoError(t, adapter.DeletePerson(ctx, "p1"))
	_, err = adapter.GetPerson(ctx, "p1")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	facts, err = adapter.ListFactsForPerson(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}
