package sampledata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/scan-attendance/internal/application"
	"github.com/example/scan-attendance/internal/sampledata"
	"github.com/example/scan-attendance/internal/testfixtures"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)

	require.NoError(t, sampledata.Load(ctx, h.Roster))
	// A second load leaves the roster unchanged.
	require.NoError(t, sampledata.Load(ctx, h.Roster))

	sessions, err := h.Roster.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	math, err := h.Roster.GetSession(ctx, sampledata.MathID)
	require.NoError(t, err)
	assert.Len(t, math.EnrolledPersonIDs, 5)

	physics, err := h.Roster.GetSession(ctx, sampledata.PhysicsID)
	require.NoError(t, err)
	assert.Equal(t, []string{"student-2", "student-4", "student-5"}, physics.EnrolledPersonIDs)

	persons, err := h.Roster.ListPersons(ctx)
	require.NoError(t, err)
	assert.Len(t, persons, 5)
}

func TestLoad_ScansResolve(t *testing.T) {
	ctx := context.Background()
	// Monday 2024-01-15 14:30, inside Physics 120 for Jane.
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	clock.SetWall(14, 30)
	h := testfixtures.NewSQLiteHarness(t, testfixtures.WithClock(clock))
	require.NoError(t, sampledata.Load(ctx, h.Roster))

	confirmation, err := h.Recorder.Record(ctx, application.RecordParams{Token: "2"})
	require.NoError(t, err)
	assert.Equal(t, "Physics 120", confirmation.SessionName)
	assert.Equal(t, "Jane Smith", confirmation.PersonName)

	// John is not enrolled in Physics.
	_, err = h.Recorder.Record(ctx, application.RecordParams{Token: "1"})
	require.ErrorIs(t, err, application.ErrNoMatchingSession)
}
