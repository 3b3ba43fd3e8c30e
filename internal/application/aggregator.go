package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// lookupConcurrency bounds the parallel person and session reads of one aggregation.
const lookupConcurrency = 8

// AttendanceAggregator builds reports and summaries from recorded facts.
type AttendanceAggregator struct {
	persons  PersonDirectory
	sessions SessionLookup
	facts    FactStore
	policy   TotalDaysPolicy
	clock    Clock
	logger   *slog.Logger
}

// NewAttendanceAggregator constructs an aggregator. A nil policy falls back to PlaceholderTotalDays.
func NewAttendanceAggregator(persons PersonDirectory, sessions SessionLookup, facts FactStore, policy TotalDaysPolicy, clock Clock) *AttendanceAggregator {
	return NewAttendanceAggregatorWithLogger(persons, sessions, facts, policy, clock, nil)
}

// NewAttendanceAggregatorWithLogger constructs an aggregator with a specified logger.
func NewAttendanceAggregatorWithLogger(persons PersonDirectory, sessions SessionLookup, facts FactStore, policy TotalDaysPolicy, clock Clock, logger *slog.Logger) *AttendanceAggregator {
	if policy == nil {
		policy = PlaceholderTotalDays{}
	}
	return &AttendanceAggregator{
		persons:  persons,
		sessions: sessions,
		facts:    facts,
		policy:   policy,
		clock:    clock,
		logger:   defaultLogger(logger),
	}
}

func (a *AttendanceAggregator) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, a.logger, "AttendanceAggregator", operation, attrs...)
}

// Report returns the attendance of every enrolled person for sessionID on date.
// Enrolled ids without a person record count as absent but have no entry.
func (a *AttendanceAggregator) Report(ctx context.Context, sessionID, date string) (report Report, err error) {
	if a == nil || a.persons == nil || a.sessions == nil || a.facts == nil {
		err = fmt.Errorf("attendance aggregator not configured")
		return
	}

	logger := a.loggerWith(ctx, "Report", "session_id", sessionID, "date", date)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to build report", err)
			return
		}
		logger.With("total", report.Total, "present", report.Present).InfoContext(ctx, "report built")
	}()

	if _, err = ParseDate(date, a.clock.location()); err != nil {
		return
	}

	var session Session
	session, err = a.sessions.GetSession(ctx, sessionID)
	if err != nil {
		err = mapSessionLookupError("GetSession", err)
		return
	}

	facts, factErr := a.facts.ListFactsForSessionOnDate(ctx, session.ID, date)
	if factErr != nil {
		err = repositoryError("ListFactsForSessionOnDate", factErr)
		return
	}
	firstSeen := make(map[string]time.Time, len(facts))
	for _, fact := range facts {
		if seen, ok := firstSeen[fact.PersonID]; !ok || fact.Timestamp.Before(seen) {
			firstSeen[fact.PersonID] = fact.Timestamp
		}
	}

	var persons []*Person
	persons, err = a.lookupPersons(ctx, logger, session.EnrolledPersonIDs)
	if err != nil {
		return
	}

	report = Report{
		SessionID:   session.ID,
		SessionName: session.Name,
		Date:        date,
		Total:       len(session.EnrolledPersonIDs),
		Entries:     make([]ReportEntry, 0, len(persons)),
	}
	for _, person := range persons {
		if person == nil {
			continue
		}
		entry := ReportEntry{PersonID: person.ID, DisplayName: person.DisplayName, Status: StatusAbsent}
		if seen, ok := firstSeen[person.ID]; ok {
			recordedAt := seen
			entry.Status = StatusPresent
			entry.RecordedAt = &recordedAt
			report.Present++
		}
		report.Entries = append(report.Entries, entry)
	}
	report.Absent = report.Total - report.Present

	sort.SliceStable(report.Entries, func(i, j int) bool {
		if report.Entries[i].DisplayName == report.Entries[j].DisplayName {
			return report.Entries[i].PersonID < report.Entries[j].PersonID
		}
		return report.Entries[i].DisplayName < report.Entries[j].DisplayName
	})
	return
}

// Summary returns the attendance of personID in each enrolled session, sorted by session name.
func (a *AttendanceAggregator) Summary(ctx context.Context, personID string) (summary Summary, err error) {
	if a == nil || a.persons == nil || a.sessions == nil || a.facts == nil {
		err = fmt.Errorf("attendance aggregator not configured")
		return
	}

	logger := a.loggerWith(ctx, "Summary", "person_id", personID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to build summary", err)
			return
		}
		logger.With("session_count", len(summary.Sessions)).InfoContext(ctx, "summary built")
	}()

	var person Person
	person, err = a.persons.GetPerson(ctx, personID)
	if err != nil {
		err = mapPersonLookupError("GetPerson", err)
		return
	}

	facts, factErr := a.facts.ListFactsForPerson(ctx, person.ID)
	if factErr != nil {
		err = repositoryError("ListFactsForPerson", factErr)
		return
	}
	attended := attendedDatesBySession(facts)

	var sessions []*Session
	sessions, err = a.lookupSessions(ctx, logger, person.EnrolledSessionIDs)
	if err != nil {
		return
	}

	summary = Summary{
		PersonID:    person.ID,
		DisplayName: person.DisplayName,
		Sessions:    make([]SessionSummary, 0, len(sessions)),
	}
	for _, session := range sessions {
		if session == nil {
			continue
		}
		dates := attended[session.ID]
		total := a.policy.TotalDays(*session, dates)
		entry := SessionSummary{
			SessionID:    session.ID,
			SessionName:  session.Name,
			TotalDays:    total,
			AttendedDays: len(dates),
		}
		if total > 0 {
			entry.Percentage = len(dates) * 100 / total
		}
		summary.Sessions = append(summary.Sessions, entry)
	}

	sort.SliceStable(summary.Sessions, func(i, j int) bool {
		if summary.Sessions[i].SessionName == summary.Sessions[j].SessionName {
			return summary.Sessions[i].SessionID < summary.Sessions[j].SessionID
		}
		return summary.Sessions[i].SessionName < summary.Sessions[j].SessionName
	})
	return
}

// lookupPersons fetches ids concurrently. The result is index aligned with ids
// and holds nil for ids that no longer resolve.
func (a *AttendanceAggregator) lookupPersons(ctx context.Context, logger *slog.Logger, ids []string) ([]*Person, error) {
	results := make([]*Person, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			person, err := a.persons.GetPerson(gctx, id)
			if err != nil {
				if isNotFound(err) {
					logger.DebugContext(gctx, "skipping dangling enrollment", "person_id", id)
					return nil
				}
				return repositoryError("GetPerson", err)
			}
			results[i] = &person
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// lookupSessions is the session counterpart of lookupPersons.
func (a *AttendanceAggregator) lookupSessions(ctx context.Context, logger *slog.Logger, ids []string) ([]*Session, error) {
	results := make([]*Session, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			session, err := a.sessions.GetSession(gctx, id)
			if err != nil {
				if isNotFound(err) {
					logger.DebugContext(gctx, "skipping dangling enrollment", "session_id", id)
					return nil
				}
				return repositoryError("GetSession", err)
			}
			results[i] = &session
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// attendedDatesBySession groups facts into distinct, ascending calendar dates
// per session. Dates are taken in the location each fact was recorded in.
func attendedDatesBySession(facts []AttendanceFact) map[string][]time.Time {
	seen := make(map[string]map[string]time.Time)
	for _, fact := range facts {
		y, m, d := fact.Timestamp.Date()
		date := time.Date(y, m, d, 0, 0, 0, 0, fact.Timestamp.Location())
		if seen[fact.SessionID] == nil {
			seen[fact.SessionID] = make(map[string]time.Time)
		}
		seen[fact.SessionID][date.Format(DateLayout)] = date
	}

	out := make(map[string][]time.Time, len(seen))
	for sessionID, dates := range seen {
		list := make([]time.Time, 0, len(dates))
		for _, date := range dates {
			list = append(list, date)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Before(list[j]) })
		out[sessionID] = list
	}
	return out
}
