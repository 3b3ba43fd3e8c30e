package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/example/scan-attendance/internal/persistence"
	"github.com/example/scan-attendance/internal/persistence/persistencetest"
	"github.com/example/scan-attendance/internal/persistence/sqlite/migration"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openMigrated(t *testing.T, config migration.SQLiteConfig) *Storage {
	t.Helper()

	storage, err := Open(config, quietLogger())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(context.Background()))
	return storage
}

func TestStorageContract_InMemory(t *testing.T) {
	suite.Run(t, &persistencetest.StoreSuite{
		Open: func() (persistence.Store, error) {
			storage, err := Open(migration.InMemoryTestSQLiteConfig(), quietLogger())
			if err != nil {
				return nil, err
			}
			if err := storage.Migrate(context.Background()); err != nil {
				_ = storage.Close()
				return nil, err
			}
			return storage, nil
		},
	})
}

func TestStorageContract_File(t *testing.T) {
	dir := t.TempDir()
	var n int
	suite.Run(t, &persistencetest.StoreSuite{
		Open: func() (persistence.Store, error) {
			n++
			storage, err := Open(migration.TempFileTestSQLiteConfig(filepath.Join(dir, fmt.Sprintf("store-%d.db", n))), quietLogger())
			if err != nil {
				return nil, err
			}
			if err := storage.Migrate(context.Background()); err != nil {
				_ = storage.Close()
				return nil, err
			}
			return storage, nil
		},
	})
}

func TestStorage_MigrateIsIdempotentAndDataSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attendance.db")
	config := migration.TempFileTestSQLiteConfig(path)

	storage := openMigrated(t, config)
	require.NoError(t, storage.CreatePerson(ctx, persistence.Person{ID: "p-1", DisplayName: "John Doe"}))
	require.NoError(t, storage.Close())

	reopened := openMigrated(t, config)
	t.Cleanup(func() { _ = reopened.Close() })
	require.NoError(t, reopened.Migrate(ctx))
	require.NoError(t, reopened.Ping(ctx))

	person, err := reopened.GetPerson(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", person.DisplayName)
}

func TestStorage_MigratesFreshDatabaseWithDefaultConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := openMigrated(t, migration.DefaultSQLiteConfig(filepath.Join(t.TempDir(), "fresh.db")))
	t.Cleanup(func() { _ = storage.Close() })
	require.NoError(t, storage.Ping(ctx))

	require.NoError(t, storage.SaveFact(ctx, persistence.AttendanceFact{
		ID:         "f-1",
		PersonID:   "p-1",
		SessionID:  "s-1",
		RecordedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Status:     "present",
	}))
	facts, err := storage.ListFactsForPerson(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestStorage_ConcurrentEnrollmentsStaySymmetric(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := openMigrated(t, migration.TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "concurrent.db")))
	t.Cleanup(func() { _ = storage.Close() })

	require.NoError(t, storage.CreateSession(ctx, persistence.Session{ID: "s-1", Name: "Mathematics 101"}))
	const persons = 12
	for i := 0; i < persons; i++ {
		require.NoError(t, storage.CreatePerson(ctx, persistence.Person{ID: fmt.Sprintf("p-%02d", i), DisplayName: fmt.Sprintf("Person %d", i)}))
	}

	var wg sync.WaitGroup
	errs := make(chan error, persons)
	for i := 0; i < persons; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- storage.Enroll(ctx, fmt.Sprintf("p-%02d", i), "s-1")
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	session, err := storage.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, session.EnrolledPersonIDs, persons)

	persons2, err := storage.ListPersons(ctx)
	require.NoError(t, err)
	for _, person := range persons2 {
		assert.Equal(t, []string{"s-1"}, person.EnrolledSessionIDs, person.ID)
	}
}

func TestErrorMapper_MapError(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	cases := []struct {
		message string
		want    error
	}{
		{"UNIQUE constraint failed: persons.biometric_token", persistence.ErrDuplicate},
		{"FOREIGN KEY constraint failed", persistence.ErrForeignKeyViolation},
		{"CHECK constraint failed: display_name", persistence.ErrConstraintViolation},
		{"NOT NULL constraint failed: persons.id", persistence.ErrConstraintViolation},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, mapper.MapError(errors.New(tc.message)), tc.want, tc.message)
	}

	plain := errors.New("disk I/O error")
	assert.Same(t, plain, mapper.MapError(plain))
	assert.NoError(t, mapper.MapError(nil))
}

func TestRetryHelper_WithRetry(t *testing.T) {
	t.Parallel()

	helper := NewRetryHelper(RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2})

	t.Run("retries locked database", func(t *testing.T) {
		calls := 0
		err := helper.WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked (5) (SQLITE_BUSY)")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := helper.WithRetry(context.Background(), func() error {
			calls++
			return errors.New("database is locked")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		err := helper.WithRetry(context.Background(), func() error {
			calls++
			return errors.New("UNIQUE constraint failed: persons.id")
		})
		require.ErrorIs(t, err, persistence.ErrDuplicate)
		assert.Equal(t, 1, calls)
	})
}
