package application

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wire form of attendance timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the wire form of report dates.
const DateLayout = time.DateOnly

// Clock supplies the current instant and the location wall clock times are read in.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Current returns the current instant in the clock's location, truncated to seconds.
func (c Clock) Current() time.Time {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return now().In(c.location()).Truncate(time.Second)
}

// Resolve returns value parsed in the clock's location, or Current when value is nil.
func (c Clock) Resolve(value *string) (time.Time, error) {
	if value == nil {
		return c.Current(), nil
	}
	return ParseTimestamp(*value, c.location())
}

// FormatTimestamp renders t in its own location using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a YYYY-MM-DD HH:MM:SS value in loc. Values that do not
// round trip exactly, such as missing zero padding, are rejected.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	trimmed := strings.TrimSpace(value)
	parsed, err := time.ParseInLocation(TimestampLayout, trimmed, loc)
	if err != nil || parsed.Format(TimestampLayout) != trimmed {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	return parsed, nil
}

// ParseDate validates a YYYY-MM-DD value and returns it as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	trimmed := strings.TrimSpace(value)
	parsed, err := time.ParseInLocation(DateLayout, trimmed, loc)
	if err != nil || parsed.Format(DateLayout) != trimmed {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	return parsed, nil
}
