package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// FactStore persists and lists attendance facts.
type FactStore interface {
	SaveFact(ctx context.Context, fact AttendanceFact) error
	ListFactsForSessionOnDate(ctx context.Context, sessionID, date string) ([]AttendanceFact, error)
	ListFactsForPerson(ctx context.Context, personID string) ([]AttendanceFact, error)
}

// TokenDigester converts a raw scanner token into its stored form.
type TokenDigester interface {
	Digest(token string) (string, error)
}

// AttendanceRecorder turns scans and operator input into attendance facts.
type AttendanceRecorder struct {
	persons     PersonDirectory
	sessions    SessionLookup
	facts       FactStore
	resolver    *SessionResolver
	digester    TokenDigester
	idGenerator func() string
	clock       Clock
	logger      *slog.Logger
	metrics     MetricsRecorder
}

// NewAttendanceRecorder constructs a recorder with the provided dependencies.
func NewAttendanceRecorder(persons PersonDirectory, sessions SessionLookup, facts FactStore, digester TokenDigester, idGenerator func() string, clock Clock) *AttendanceRecorder {
	return NewAttendanceRecorderWithLogger(persons, sessions, facts, digester, idGenerator, clock, nil)
}

// NewAttendanceRecorderWithLogger constructs a recorder with a specified logger.
// A nil digester looks tokens up unchanged.
func NewAttendanceRecorderWithLogger(persons PersonDirectory, sessions SessionLookup, facts FactStore, digester TokenDigester, idGenerator func() string, clock Clock, logger *slog.Logger) *AttendanceRecorder {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	logger = defaultLogger(logger)
	return &AttendanceRecorder{
		persons:     persons,
		sessions:    sessions,
		facts:       facts,
		resolver:    NewSessionResolverWithLogger(persons, sessions, clock, logger),
		digester:    digester,
		idGenerator: idGenerator,
		clock:       clock,
		logger:      logger,
		metrics:     noopMetrics{},
	}
}

// WithMetrics sets the recorder that observes attendance outcomes.
func (s *AttendanceRecorder) WithMetrics(metrics MetricsRecorder) *AttendanceRecorder {
	s.metrics = defaultMetrics(metrics)
	s.resolver.WithMetrics(metrics)
	return s
}

func (s *AttendanceRecorder) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AttendanceRecorder", operation, attrs...)
}

// Record identifies the person holding token, resolves the session in progress
// and persists a present fact. Repeated scans produce repeated facts.
func (s *AttendanceRecorder) Record(ctx context.Context, params RecordParams) (confirmation Confirmation, err error) {
	if s == nil || s.persons == nil || s.facts == nil {
		err = fmt.Errorf("attendance recorder not configured")
		return
	}

	logger := s.loggerWith(ctx, "Record")
	defer func() {
		s.finish(ctx, logger, ModeScan, confirmation, err)
	}()

	var lookup string
	lookup, err = s.digest(params.Token)
	if err != nil {
		return
	}

	var person Person
	person, err = s.persons.GetPersonByToken(ctx, lookup)
	if err != nil {
		err = mapPersonLookupError("GetPersonByToken", err)
		return
	}
	logger = logger.With("person_id", person.ID)

	var at time.Time
	at, err = s.clock.Resolve(params.Timestamp)
	if err != nil {
		return
	}

	session, ok, resolveErr := s.resolver.Resolve(ctx, person, at)
	if resolveErr != nil {
		err = resolveErr
		return
	}
	if !ok {
		err = fmt.Errorf("%w: %s at %s", ErrNoMatchingSession, person.ID, FormatTimestamp(at))
		return
	}

	confirmation, err = s.save(ctx, person, session, at, ModeScan)
	return
}

// RecordManual persists a present fact for an explicit session, bypassing
// resolution. The person must be enrolled in the session.
func (s *AttendanceRecorder) RecordManual(ctx context.Context, params ManualParams) (confirmation Confirmation, err error) {
	if s == nil || s.persons == nil || s.sessions == nil || s.facts == nil {
		err = fmt.Errorf("attendance recorder not configured")
		return
	}

	logger := s.loggerWith(ctx, "RecordManual",
		"person_id", params.PersonID,
		"session_id", params.SessionID,
	)
	defer func() {
		s.finish(ctx, logger, ModeManual, confirmation, err)
	}()

	var person Person
	person, err = s.persons.GetPerson(ctx, params.PersonID)
	if err != nil {
		err = mapPersonLookupError("GetPerson", err)
		return
	}

	var session Session
	session, err = s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		err = mapSessionLookupError("GetSession", err)
		return
	}

	if !slices.Contains(person.EnrolledSessionIDs, session.ID) {
		err = fmt.Errorf("%w: %s in %s", ErrNotEnrolled, person.ID, session.ID)
		return
	}

	var at time.Time
	at, err = s.clock.Resolve(params.Timestamp)
	if err != nil {
		return
	}

	confirmation, err = s.save(ctx, person, session, at, ModeManual)
	return
}

func (s *AttendanceRecorder) digest(token string) (string, error) {
	if s.digester == nil {
		if token == "" {
			return "", ErrPersonNotFound
		}
		return token, nil
	}
	digest, err := s.digester.Digest(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersonNotFound, err)
	}
	return digest, nil
}

func (s *AttendanceRecorder) save(ctx context.Context, person Person, session Session, at time.Time, mode RecordMode) (Confirmation, error) {
	fact := AttendanceFact{
		ID:        s.idGenerator(),
		PersonID:  person.ID,
		SessionID: session.ID,
		Timestamp: at,
		Status:    StatusPresent,
	}
	if err := s.facts.SaveFact(ctx, fact); err != nil {
		return Confirmation{}, repositoryError("SaveFact", err)
	}
	return Confirmation{
		Fact:        fact,
		PersonName:  person.DisplayName,
		SessionName: session.Name,
		Mode:        mode,
	}, nil
}

func (s *AttendanceRecorder) finish(ctx context.Context, logger *slog.Logger, mode RecordMode, confirmation Confirmation, err error) {
	if err != nil {
		s.metrics.AttendanceFailed(ErrorKind(err))
		logFailure(ctx, logger, "attendance not recorded", err)
		return
	}
	s.metrics.AttendanceRecorded(mode)
	logger.With(
		"attendance_id", confirmation.Fact.ID,
		"session_id", confirmation.Fact.SessionID,
		"mode", string(mode),
	).InfoContext(ctx, "attendance recorded")
}
