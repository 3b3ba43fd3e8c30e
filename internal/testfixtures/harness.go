package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/scan-attendance/internal/application"
	"github.com/example/scan-attendance/internal/identity"
	"github.com/example/scan-attendance/internal/persistence"
	"github.com/example/scan-attendance/internal/persistence/memory"
	"github.com/example/scan-attendance/internal/persistence/sqlite"
	"github.com/example/scan-attendance/internal/persistence/sqlite/migration"
	"github.com/example/scan-attendance/internal/storeadapter"
)

// TokenSecret keys the digester used by every harness.
const TokenSecret = "test-token-secret"

// Harness wires every attendance service over a single store with a
// deterministic clock and id sequence.
type Harness struct {
	Store    persistence.Store
	Repos    *storeadapter.Adapter
	Digester *identity.Digester
	Clock    *Clock
	IDs      *IDGenerator

	Roster     *application.RosterService
	Resolver   *application.SessionResolver
	Recorder   *application.AttendanceRecorder
	Aggregator *application.AttendanceAggregator
}

// HarnessOption configures a Harness before its services are built.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	clock  *Clock
	policy application.TotalDaysPolicy
	logger *slog.Logger
}

// WithClock overrides the harness clock.
func WithClock(clock *Clock) HarnessOption {
	return func(c *harnessConfig) {
		c.clock = clock
	}
}

// WithPolicy overrides the summary total days policy.
func WithPolicy(policy application.TotalDaysPolicy) HarnessOption {
	return func(c *harnessConfig) {
		c.policy = policy
	}
}

// WithLogger overrides the discarding default logger.
func WithLogger(logger *slog.Logger) HarnessOption {
	return func(c *harnessConfig) {
		c.logger = logger
	}
}

// NewMemoryHarness builds a harness over the in-memory store.
func NewMemoryHarness(tb testing.TB, opts ...HarnessOption) *Harness {
	tb.Helper()
	return newHarness(tb, memory.New(), opts...)
}

// NewSQLiteHarness builds a harness over a migrated SQLite file in a
// temporary directory. The store is closed when the test ends.
func NewSQLiteHarness(tb testing.TB, opts ...HarnessOption) *Harness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "attendance.db")
	storage, err := sqlite.Open(migration.TempFileTestSQLiteConfig(path), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return newHarness(tb, storage, opts...)
}

func newHarness(tb testing.TB, store persistence.Store, opts ...HarnessOption) *Harness {
	tb.Helper()

	cfg := harnessConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = NewClock(ReferenceTime())
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	digester, err := identity.NewDigester(TokenSecret)
	if err != nil {
		tb.Fatalf("failed to build digester: %v", err)
	}

	repos := storeadapter.New(store)
	clock := cfg.clock.Application()
	ids := NewIDGenerator("id")

	h := &Harness{
		Store:      store,
		Repos:      repos,
		Digester:   digester,
		Clock:      cfg.clock,
		IDs:        ids,
		Roster:     application.NewRosterServiceWithLogger(repos, repos, repos, digester, ids.NextFunc(), cfg.clock.Now, cfg.logger),
		Resolver:   application.NewSessionResolverWithLogger(repos, repos, clock, cfg.logger),
		Recorder:   application.NewAttendanceRecorderWithLogger(repos, repos, repos, digester, ids.NextFunc(), clock, cfg.logger),
		Aggregator: application.NewAttendanceAggregatorWithLogger(repos, repos, repos, cfg.policy, clock, cfg.logger),
	}
	tb.Cleanup(func() {
		_ = store.Close()
	})
	return h
}

// AddPerson creates the fixture through the roster service.
func (h *Harness) AddPerson(tb testing.TB, fixture PersonFixture) application.Person {
	tb.Helper()
	person, err := h.Roster.CreatePerson(context.Background(), fixture.Input())
	if err != nil {
		tb.Fatalf("failed to create person %s: %v", fixture.ID, err)
	}
	return person
}

// AddSession creates the fixture through the roster service.
func (h *Harness) AddSession(tb testing.TB, fixture SessionFixture) application.Session {
	tb.Helper()
	session, err := h.Roster.CreateSession(context.Background(), fixture.Input())
	if err != nil {
		tb.Fatalf("failed to create session %s: %v", fixture.ID, err)
	}
	return session
}

// Enroll links a person and session through the roster service.
func (h *Harness) Enroll(tb testing.TB, personID, sessionID string) {
	tb.Helper()
	if err := h.Roster.Enroll(context.Background(), personID, sessionID); err != nil {
		tb.Fatalf("failed to enroll %s in %s: %v", personID, sessionID, err)
	}
}
