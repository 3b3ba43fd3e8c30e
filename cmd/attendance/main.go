package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/example/scan-attendance/internal/application"
	"github.com/example/scan-attendance/internal/config"
	"github.com/example/scan-attendance/internal/identity"
	"github.com/example/scan-attendance/internal/logging"
	"github.com/example/scan-attendance/internal/metrics"
	"github.com/example/scan-attendance/internal/persistence"
	"github.com/example/scan-attendance/internal/persistence/memory"
	"github.com/example/scan-attendance/internal/persistence/sqlite"
	"github.com/example/scan-attendance/internal/persistence/sqlite/migration"
	"github.com/example/scan-attendance/internal/sampledata"
	"github.com/example/scan-attendance/internal/storeadapter"
)

// Exit codes.
const (
	exitOK           = 0
	exitStartup      = 1
	exitInvalidInput = 2
	exitNoMatch      = 3
	exitNotFound     = 4
	exitRepository   = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("attendance", flag.ContinueOnError)
	global.SetOutput(stderr)
	envFile := global.String("env", "", "dotenv file applied before reading the environment")
	global.Usage = func() { usage(global) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitInvalidInput
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitInvalidInput
	}

	var (
		cfg config.Config
		err error
	)
	if *envFile != "" {
		cfg, err = config.LoadFile(*envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return exitStartup
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "failed to build logger: %v\n", err)
		return exitStartup
	}
	ctx = logging.ContextWithLogger(ctx, logger)

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return exitStartup
	}
	defer func() {
		if cerr := app.close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if cfg.SeedSampleData {
		if err := sampledata.Load(ctx, app.roster); err != nil {
			logger.Error("failed to seed sample data", "error", err)
			return exitStartup
		}
	}

	code := app.dispatch(ctx, global.Arg(0), global.Args()[1:], stdout, stderr)

	if cfg.MetricsFile != "" {
		if err := app.metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}
	return code
}

// app holds the services wired for one invocation.
type app struct {
	store      persistence.Store
	roster     *application.RosterService
	resolver   *application.SessionResolver
	recorder   *application.AttendanceRecorder
	aggregator *application.AttendanceAggregator
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	digester, err := identity.NewDigester(cfg.TokenSecret)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	repos := storeadapter.New(store)
	clock := application.Clock{Now: time.Now, Location: cfg.Location}
	idGenerator := uuid.NewString
	recorderMetrics := metrics.New()

	var policy application.TotalDaysPolicy = application.PlaceholderTotalDays{}
	if cfg.SummaryPolicy == config.PolicyScheduled {
		policy = application.NewScheduledTotalDays(clock, cfg.TermStart)
	}

	return &app{
		store:      store,
		roster:     application.NewRosterServiceWithLogger(repos, repos, repos, digester, idGenerator, time.Now, logger),
		resolver:   application.NewSessionResolverWithLogger(repos, repos, clock, logger).WithMetrics(recorderMetrics),
		recorder:   application.NewAttendanceRecorderWithLogger(repos, repos, repos, digester, idGenerator, clock, logger).WithMetrics(recorderMetrics),
		aggregator: application.NewAttendanceAggregatorWithLogger(repos, repos, repos, policy, clock, logger),
		metrics:    recorderMetrics,
		logger:     logger,
	}, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		storage, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLitePath), logger)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		if err := storage.Ping(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("ping storage: %w", err)
		}
		return storage, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func (a *app) close() error {
	return a.store.Close()
}

// exitCode maps an operation error to the process exit code.
func exitCode(err error) int {
	switch application.ErrorKind(err) {
	case "":
		return exitOK
	case "no_matching_session":
		return exitNoMatch
	case "person_not_found", "session_not_found", "not_enrolled":
		return exitNotFound
	case "repository_unavailable", "unexpected":
		return exitRepository
	default:
		return exitInvalidInput
	}
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "usage: attendance [-env file] <command> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "commands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-15s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(out)
	fs.PrintDefaults()
}
