package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func dates(values ...string) []time.Time {
	out := make([]time.Time, 0, len(values))
	for _, value := range values {
		parsed, err := time.Parse(DateLayout, value)
		if err != nil {
			panic(err)
		}
		out = append(out, parsed)
	}
	return out
}

func TestPlaceholderTotalDays(t *testing.T) {
	t.Parallel()

	policy := PlaceholderTotalDays{}
	assert.Equal(t, 2, policy.TotalDays(Session{}, nil))
	assert.Equal(t, 2, policy.TotalDays(Session{}, dates("2024-01-15")))
	assert.Equal(t, 6, policy.TotalDays(Session{}, dates("2024-01-15", "2024-01-17", "2024-01-22")))
}

func TestScheduledTotalDays_FromTermStart(t *testing.T) {
	t.Parallel()

	// Wednesday 2024-01-24.
	clock := fixedClock(time.Date(2024, time.January, 24, 12, 0, 0, 0, time.UTC))
	termStart := time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)
	policy := NewScheduledTotalDays(clock, &termStart)

	// Mondays 8, 15, 22 and Wednesdays 10, 17, 24.
	assert.Equal(t, 6, policy.TotalDays(mathSession(), dates("2024-01-15")))
}

func TestScheduledTotalDays_FromFirstAttendance(t *testing.T) {
	t.Parallel()

	clock := fixedClock(time.Date(2024, time.January, 24, 12, 0, 0, 0, time.UTC))
	policy := NewScheduledTotalDays(clock, nil)

	// Mondays 15, 22 and Wednesdays 17, 24.
	assert.Equal(t, 4, policy.TotalDays(mathSession(), dates("2024-01-15", "2024-01-17")))
	// Nothing attended yet: only today counts.
	assert.Equal(t, 1, policy.TotalDays(mathSession(), nil))
}

func TestScheduledTotalDays_NeverBelowAttended(t *testing.T) {
	t.Parallel()

	clock := fixedClock(time.Date(2024, time.January, 24, 12, 0, 0, 0, time.UTC))
	policy := NewScheduledTotalDays(clock, nil)

	// Manual facts on unscheduled days still count as attended.
	session := Session{Rules: []RecurrenceRule{{Day: "Friday", Start: "10:00", End: "12:00"}}}
	assert.Equal(t, 3, policy.TotalDays(session, dates("2024-01-15", "2024-01-16", "2024-01-17")))

	// Invalid rules contribute nothing.
	broken := Session{Rules: []RecurrenceRule{{Day: "Someday", Start: "10:00", End: "12:00"}}}
	assert.Equal(t, 0, policy.TotalDays(broken, nil))
}
