package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*60*60)
	got, err := ParseTimestamp("2024-01-15 09:30:05", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 15, 9, 30, 5, 0, loc), got)
	assert.Equal(t, "2024-01-15 09:30:05", FormatTimestamp(got))

	for _, value := range []string{
		"",
		"2024-01-15",
		"2024-01-15T09:30:05",
		"2024-1-15 09:30:05",
		"2024-01-15 9:30:05",
		"2024-02-30 09:30:05",
		"2024-01-15 24:00:00",
		"yesterday",
	} {
		_, err := ParseTimestamp(value, loc)
		assert.ErrorIsf(t, err, ErrInvalidTimestamp, "value %q", value)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := ParseDate("2024-01-15", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), got)

	for _, value := range []string{"", "2024-1-15", "15/01/2024", "2024-13-01"} {
		_, err := ParseDate(value, nil)
		assert.ErrorIsf(t, err, ErrInvalidTimestamp, "value %q", value)
	}
}

func TestClock(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*60*60)
	clock := Clock{
		Now:      func() time.Time { return time.Date(2024, time.January, 15, 0, 30, 0, 999, time.UTC) },
		Location: loc,
	}

	current := clock.Current()
	assert.Equal(t, loc, current.Location())
	assert.Equal(t, "2024-01-15 09:30:00", FormatTimestamp(current))

	resolved, err := clock.Resolve(nil)
	require.NoError(t, err)
	assert.True(t, resolved.Equal(current))

	resolved, err = clock.Resolve(strPtr("2024-01-16 10:00:00"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 16, 10, 0, 0, 0, loc), resolved)

	_, err = clock.Resolve(strPtr("not a time"))
	require.ErrorIs(t, err, ErrInvalidTimestamp)

	assert.Equal(t, time.UTC, Clock{}.location())
}
