package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidRule indicates a recurrence rule cannot be evaluated.
	ErrInvalidRule = errors.New("recurrence: invalid rule")
	// ErrInvalidClockTime indicates a clock string is not a valid HH:MM value.
	ErrInvalidClockTime = errors.New("recurrence: invalid clock time")
	// ErrInvalidWeekday indicates a weekday name is not recognised.
	ErrInvalidWeekday = errors.New("recurrence: invalid weekday")
)

// ClockTime is a wall clock time of day with minute resolution, stored as
// minutes since midnight.
type ClockTime int

// ParseClockTime parses a 24-hour "HH:MM" value. A single digit hour is accepted.
func ParseClockTime(value string) (ClockTime, error) {
	hourPart, minutePart, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || len(hourPart) == 0 || len(hourPart) > 2 || len(minutePart) != 2 || !digits(hourPart) || !digits(minutePart) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, value)
	}
	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, value)
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, value)
	}
	return ClockTime(hour*60 + minute), nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ClockOf returns the clock time of t in its own location, dropping seconds.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// String formats the clock time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ParseWeekday resolves an English weekday name, ignoring case.
func ParseWeekday(value string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.ToLower(day.String()) == name {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidWeekday, value)
}

// Rule is a weekly time window anchored to a single nominal weekday.
type Rule struct {
	Day      string
	Start    string
	End      string
	Location string
}

// Window is the parsed form of a Rule.
type Window struct {
	Day   time.Weekday
	Start ClockTime
	End   ClockTime
}

// Wraps reports whether the window crosses midnight.
func (w Window) Wraps() bool {
	return w.Start > w.End
}

// Contains reports whether the moment falls inside the window. Only the
// window's own weekday is considered, including for windows that wrap.
func (w Window) Contains(at Moment) bool {
	if at.Day != w.Day {
		return false
	}
	if !w.Wraps() {
		return w.Start <= at.Clock && at.Clock <= w.End
	}
	return at.Clock >= w.Start || at.Clock <= w.End
}

// Parse validates the rule and returns its window.
func (r Rule) Parse() (Window, error) {
	day, err := ParseWeekday(r.Day)
	if err != nil {
		return Window{}, fmt.Errorf("%w: day: %w", ErrInvalidRule, err)
	}
	start, err := ParseClockTime(r.Start)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start: %w", ErrInvalidRule, err)
	}
	end, err := ParseClockTime(r.End)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end: %w", ErrInvalidRule, err)
	}
	return Window{Day: day, Start: start, End: end}, nil
}

// Moment is a weekday plus a clock time, the granularity at which rules are evaluated.
type Moment struct {
	Day   time.Weekday
	Clock ClockTime
}

// MomentOf converts an instant to a Moment using the instant's location.
func MomentOf(t time.Time) Moment {
	return Moment{Day: t.Weekday(), Clock: ClockOf(t)}
}

// InWindow reports whether at falls within the rule. A malformed rule yields
// ErrInvalidRule rather than false.
func InWindow(rule Rule, at Moment) (bool, error) {
	window, err := rule.Parse()
	if err != nil {
		return false, err
	}
	return window.Contains(at), nil
}
