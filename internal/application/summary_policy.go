package application

import (
	"time"

	"github.com/example/scan-attendance/internal/recurrence"
)

// TotalDaysPolicy decides how many days a person could have attended a session.
// attended holds the distinct dates with at least one fact, in ascending order.
type TotalDaysPolicy interface {
	TotalDays(session Session, attended []time.Time) int
}

// PlaceholderTotalDays reports twice the attended days, with a floor of two.
type PlaceholderTotalDays struct{}

// TotalDays implements TotalDaysPolicy.
func (PlaceholderTotalDays) TotalDays(_ Session, attended []time.Time) int {
	return max(len(attended), 1) * 2
}

// ScheduledTotalDays counts the dates on which the session's rules occur
// between the term start and today. Without a term start the first attended
// date is used. The result is never below the attended count.
type ScheduledTotalDays struct {
	engine    *recurrence.Engine
	clock     Clock
	termStart *time.Time
}

// NewScheduledTotalDays constructs the policy. termStart may be nil.
func NewScheduledTotalDays(clock Clock, termStart *time.Time) *ScheduledTotalDays {
	return &ScheduledTotalDays{
		engine:    recurrence.NewEngine(clock.location()),
		clock:     clock,
		termStart: termStart,
	}
}

// TotalDays implements TotalDaysPolicy.
func (p *ScheduledTotalDays) TotalDays(session Session, attended []time.Time) int {
	today := p.clock.Current()

	var start time.Time
	switch {
	case p.termStart != nil:
		start = *p.termStart
	case len(attended) > 0:
		start = attended[0]
	default:
		start = today
	}

	end := today
	if len(attended) > 0 && attended[len(attended)-1].After(end) {
		end = attended[len(attended)-1]
	}
	if end.Before(start) {
		return len(attended)
	}

	rules := make([]recurrence.Rule, 0, len(session.Rules))
	for _, rule := range session.Rules {
		rules = append(rules, rule.toRule())
	}

	dates, err := p.engine.ScheduledDates(rules, recurrence.GenerateOptions{RangeStart: &start, RangeEnd: &end})
	if err != nil {
		return len(attended)
	}
	return max(len(dates), len(attended))
}
