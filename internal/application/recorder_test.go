package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecorderFixture(t *testing.T) (*fakeStore, *AttendanceRecorder, *recordingMetrics) {
	t.Helper()

	store := newFakeStore()
	store.addSession(mathSession())
	store.addSession(Session{ID: "cs", Name: "Computer Science 202", Rules: []RecurrenceRule{{Day: "Tuesday", Start: "13:00", End: "15:00"}}})
	store.addPerson(Person{
		ID:                 "p1",
		DisplayName:        "John Doe",
		BiometricToken:     strPtr("digest:1"),
		EnrolledSessionIDs: []string{"math"},
	})

	metrics := &recordingMetrics{}
	recorder := NewAttendanceRecorder(store, store, store, prefixDigester{}, sequentialIDs("fact"), fixedClock(monday(10, 0, 0))).
		WithMetrics(metrics)
	return store, recorder, metrics
}

func TestAttendanceRecorder_Record(t *testing.T) {
	t.Parallel()

	store, recorder, metrics := newRecorderFixture(t)

	confirmation, err := recorder.Record(context.Background(), RecordParams{Token: "1"})
	require.NoError(t, err)
	assert.Equal(t, "fact-1", confirmation.Fact.ID)
	assert.Equal(t, "p1", confirmation.Fact.PersonID)
	assert.Equal(t, "math", confirmation.Fact.SessionID)
	assert.Equal(t, StatusPresent, confirmation.Fact.Status)
	assert.Equal(t, monday(10, 0, 0), confirmation.Fact.Timestamp)
	assert.Equal(t, "John Doe", confirmation.PersonName)
	assert.Equal(t, "Mathematics 101", confirmation.SessionName)
	assert.Equal(t, ModeScan, confirmation.Mode)

	require.Len(t, store.facts, 1)
	assert.Equal(t, confirmation.Fact, store.facts[0])
	assert.Equal(t, []RecordMode{ModeScan}, metrics.recorded)
}

func TestAttendanceRecorder_RecordIsNotIdempotent(t *testing.T) {
	t.Parallel()

	store, recorder, _ := newRecorderFixture(t)
	ts := strPtr("2024-01-15 10:30:00")

	first, err := recorder.Record(context.Background(), RecordParams{Token: "1", Timestamp: ts})
	require.NoError(t, err)
	second, err := recorder.Record(context.Background(), RecordParams{Token: "1", Timestamp: ts})
	require.NoError(t, err)

	assert.NotEqual(t, first.Fact.ID, second.Fact.ID)
	assert.Len(t, store.facts, 2)
}

func TestAttendanceRecorder_RecordErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		params RecordParams
		want   error
	}{
		{name: "unknown token", params: RecordParams{Token: "99"}, want: ErrPersonNotFound},
		{name: "empty token", params: RecordParams{Token: ""}, want: ErrPersonNotFound},
		{name: "bad timestamp", params: RecordParams{Token: "1", Timestamp: strPtr("2024-01-15")}, want: ErrInvalidTimestamp},
		{name: "outside every window", params: RecordParams{Token: "1", Timestamp: strPtr("2024-01-15 11:01:00")}, want: ErrNoMatchingSession},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store, recorder, metrics := newRecorderFixture(t)
			_, err := recorder.Record(context.Background(), tc.params)
			require.ErrorIs(t, err, tc.want)
			assert.Empty(t, store.facts)
			assert.Equal(t, []string{ErrorKind(tc.want)}, metrics.failed)
		})
	}
}

func TestAttendanceRecorder_RecordSaveFailure(t *testing.T) {
	t.Parallel()

	store, recorder, _ := newRecorderFixture(t)
	cause := errors.New("disk full")
	store.saveErr = cause

	_, err := recorder.Record(context.Background(), RecordParams{Token: "1"})
	require.ErrorIs(t, err, ErrRepositoryUnavailable)
	require.ErrorIs(t, err, cause)
}

func TestAttendanceRecorder_RecordManual(t *testing.T) {
	t.Parallel()

	store, recorder, metrics := newRecorderFixture(t)

	// Outside any window: manual records bypass resolution.
	confirmation, err := recorder.RecordManual(context.Background(), ManualParams{
		PersonID:  "p1",
		SessionID: "math",
		Timestamp: strPtr("2024-01-20 18:00:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, ModeManual, confirmation.Mode)
	assert.Equal(t, "2024-01-20 18:00:00", FormatTimestamp(confirmation.Fact.Timestamp))
	assert.Len(t, store.facts, 1)
	assert.Equal(t, []RecordMode{ModeManual}, metrics.recorded)
}

func TestAttendanceRecorder_RecordManualErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		params ManualParams
		want   error
	}{
		{name: "unknown person", params: ManualParams{PersonID: "nobody", SessionID: "math"}, want: ErrPersonNotFound},
		{name: "unknown session", params: ManualParams{PersonID: "p1", SessionID: "gone"}, want: ErrSessionNotFound},
		{name: "not enrolled", params: ManualParams{PersonID: "p1", SessionID: "cs"}, want: ErrNotEnrolled},
		{name: "bad timestamp", params: ManualParams{PersonID: "p1", SessionID: "math", Timestamp: strPtr("soon")}, want: ErrInvalidTimestamp},
		// Enrollment is checked before the timestamp.
		{name: "not enrolled wins over bad timestamp", params: ManualParams{PersonID: "p1", SessionID: "cs", Timestamp: strPtr("soon")}, want: ErrNotEnrolled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store, recorder, _ := newRecorderFixture(t)
			_, err := recorder.RecordManual(context.Background(), tc.params)
			require.ErrorIs(t, err, tc.want)
			assert.Empty(t, store.facts)
		})
	}
}

func TestAttendanceRecorder_NotConfigured(t *testing.T) {
	t.Parallel()

	var recorder *AttendanceRecorder
	_, err := recorder.Record(context.Background(), RecordParams{Token: "1"})
	require.Error(t, err)
}
