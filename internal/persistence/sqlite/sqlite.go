// Package sqlite persists persons, sessions, enrollments and attendance facts
// in a SQLite database through the modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/scan-attendance/internal/persistence"
	"github.com/example/scan-attendance/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite repositories over a shared connection pool.
type Storage struct {
	*PersonRepository
	*SessionRepository
	*EnrollmentRepository
	*FactRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to the database described by config. Call Migrate before use.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	return &Storage{
		PersonRepository:     NewPersonRepository(pool),
		SessionRepository:    NewSessionRepository(pool),
		EnrollmentRepository: NewEnrollmentRepository(pool),
		FactRepository:       NewFactRepository(pool),
		pool:                 pool,
		logger:               logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	scanner := migration.NewScanner(migrationFiles, "migrations")
	manager := migration.NewManager(scanner, migration.NewSQLiteExecutor(s.pool.DB()), s.logger)
	return manager.Run(ctx)
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
