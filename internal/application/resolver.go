package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/scan-attendance/internal/persistence"
	"github.com/example/scan-attendance/internal/recurrence"
)

// PersonDirectory looks up persons by id or by token digest.
type PersonDirectory interface {
	GetPerson(ctx context.Context, id string) (Person, error)
	GetPersonByToken(ctx context.Context, token string) (Person, error)
}

// SessionLookup looks up sessions by id.
type SessionLookup interface {
	GetSession(ctx context.Context, id string) (Session, error)
}

// SessionResolver decides which enrolled session a person is attending at a moment.
type SessionResolver struct {
	persons  PersonDirectory
	sessions SessionLookup
	clock    Clock
	logger   *slog.Logger
	metrics  MetricsRecorder
}

// NewSessionResolver constructs a resolver with the provided dependencies.
func NewSessionResolver(persons PersonDirectory, sessions SessionLookup, clock Clock) *SessionResolver {
	return NewSessionResolverWithLogger(persons, sessions, clock, nil)
}

// NewSessionResolverWithLogger constructs a resolver with a specified logger.
func NewSessionResolverWithLogger(persons PersonDirectory, sessions SessionLookup, clock Clock, logger *slog.Logger) *SessionResolver {
	return &SessionResolver{
		persons:  persons,
		sessions: sessions,
		clock:    clock,
		logger:   defaultLogger(logger),
		metrics:  noopMetrics{},
	}
}

// WithMetrics sets the recorder that observes resolution latency.
func (r *SessionResolver) WithMetrics(metrics MetricsRecorder) *SessionResolver {
	r.metrics = defaultMetrics(metrics)
	return r
}

func (r *SessionResolver) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, r.logger, "SessionResolver", operation, attrs...)
}

// Resolve returns the first enrolled session with a rule matching at. Sessions
// are tried in enrollment order and rules in stored order. The wall clock of
// at is read in the resolver's location.
func (r *SessionResolver) Resolve(ctx context.Context, person Person, at time.Time) (Session, bool, error) {
	if r == nil || r.sessions == nil {
		return Session{}, false, fmt.Errorf("session resolver not configured")
	}

	started := time.Now()
	defer func() {
		r.metrics.ResolveObserved(time.Since(started))
	}()

	local := at.In(r.clock.location())
	moment := recurrence.MomentOf(local)
	logger := r.loggerWith(ctx, "Resolve",
		"person_id", person.ID,
		"weekday", moment.Day.String(),
		"clock", moment.Clock.String(),
	)

	for _, sessionID := range person.EnrolledSessionIDs {
		if err := ctx.Err(); err != nil {
			return Session{}, false, err
		}

		session, err := r.sessions.GetSession(ctx, sessionID)
		if err != nil {
			if isNotFound(err) {
				logger.DebugContext(ctx, "skipping dangling enrollment", "session_id", sessionID)
				continue
			}
			return Session{}, false, repositoryError("GetSession", err)
		}

		for idx, rule := range session.Rules {
			matched, err := recurrence.InWindow(rule.toRule(), moment)
			if err != nil {
				logger.WarnContext(ctx, "skipping invalid recurrence rule",
					"session_id", session.ID,
					"rule_index", idx,
					"error", err,
				)
				continue
			}
			if matched {
				logger.DebugContext(ctx, "session resolved", "session_id", session.ID, "rule_index", idx)
				return session, true, nil
			}
		}
	}

	return Session{}, false, nil
}

// ResolveForPerson loads the person and resolves against timestamp. An empty
// timestamp means now. No match is reported as a nil Resolution.Session.
func (r *SessionResolver) ResolveForPerson(ctx context.Context, personID, timestamp string) (resolution Resolution, err error) {
	if r == nil || r.persons == nil {
		err = fmt.Errorf("session resolver not configured")
		return
	}

	logger := r.loggerWith(ctx, "ResolveForPerson", "person_id", personID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to resolve session", err)
			return
		}
		if resolution.Session == nil {
			logger.InfoContext(ctx, "no session in progress")
			return
		}
		logger.With("session_id", resolution.Session.ID).InfoContext(ctx, "session resolved")
	}()

	var at time.Time
	if timestamp == "" {
		at = r.clock.Current()
	} else {
		at, err = ParseTimestamp(timestamp, r.clock.location())
		if err != nil {
			return
		}
	}

	var person Person
	person, err = r.persons.GetPerson(ctx, personID)
	if err != nil {
		err = mapPersonLookupError("GetPerson", err)
		return
	}

	session, ok, resolveErr := r.Resolve(ctx, person, at)
	if resolveErr != nil {
		err = resolveErr
		return
	}

	resolution = Resolution{Person: person, At: at}
	if ok {
		resolution.Session = &session
	}
	return
}

func isNotFound(err error) bool {
	return errors.Is(err, persistence.ErrNotFound)
}

func mapPersonLookupError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) || errors.Is(err, ErrPersonNotFound) {
		return ErrPersonNotFound
	}
	return repositoryError(op, err)
}

func mapSessionLookupError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) || errors.Is(err, ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	return repositoryError(op, err)
}
