package recurrence

import (
	"errors"
	"sort"
	"time"
)

// GenerateOptions bounds occurrence generation. Both bounds are dates and are inclusive.
type GenerateOptions struct {
	RangeStart *time.Time
	RangeEnd   *time.Time
}

// Occurrence is a dated instance of a weekly rule.
type Occurrence struct {
	Start    time.Time
	End      time.Time
	Location string
}

// Engine expands weekly rules into dated occurrences.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates dates in loc. If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// ErrInvalidWindow indicates the generation window is unbounded or inverted.
var ErrInvalidWindow = errors.New("recurrence: generation window requires ordered start and end bounds")

// GenerateOccurrences produces the occurrences of rule between the range bounds.
//
// The engine enforces the following semantics:
//   - Dates are evaluated in the engine's location.
//   - An occurrence is emitted for every date in range whose weekday is the rule's day.
//   - A wrapping window ends on the following calendar date.
func (e *Engine) GenerateOccurrences(rule Rule, opts GenerateOptions) ([]Occurrence, error) {
	window, err := rule.Parse()
	if err != nil {
		return nil, err
	}
	first, last, err := e.bounds(opts)
	if err != nil {
		return nil, err
	}

	occurrences := make([]Occurrence, 0)
	for current := first; !current.After(last); current = current.AddDate(0, 0, 1) {
		if current.Weekday() != window.Day {
			continue
		}
		start := atClock(current, window.Start)
		endDate := current
		if window.Wraps() {
			endDate = current.AddDate(0, 0, 1)
		}
		occurrences = append(occurrences, Occurrence{
			Start:    start,
			End:      atClock(endDate, window.End),
			Location: rule.Location,
		})
	}
	return occurrences, nil
}

// ScheduledDates returns the distinct dates in range on which any valid rule
// occurs, in ascending order. Invalid rules are ignored.
func (e *Engine) ScheduledDates(rules []Rule, opts GenerateOptions) ([]time.Time, error) {
	if _, _, err := e.bounds(opts); err != nil {
		return nil, err
	}
	seen := make(map[string]time.Time)
	for _, rule := range rules {
		occurrences, err := e.GenerateOccurrences(rule, opts)
		if err != nil {
			if errors.Is(err, ErrInvalidRule) {
				continue
			}
			return nil, err
		}
		for _, occurrence := range occurrences {
			date := dateOf(occurrence.Start)
			seen[date.Format(time.DateOnly)] = date
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for _, date := range seen {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
	return dates, nil
}

func (e *Engine) bounds(opts GenerateOptions) (time.Time, time.Time, error) {
	if opts.RangeStart == nil || opts.RangeEnd == nil {
		return time.Time{}, time.Time{}, ErrInvalidWindow
	}
	loc := e.location
	if loc == nil {
		loc = time.UTC
	}
	first := dateOf(opts.RangeStart.In(loc))
	last := dateOf(opts.RangeEnd.In(loc))
	if last.Before(first) {
		return time.Time{}, time.Time{}, ErrInvalidWindow
	}
	return first, last, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func atClock(date time.Time, clock ClockTime) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(clock)/60, int(clock)%60, 0, 0, date.Location())
}
