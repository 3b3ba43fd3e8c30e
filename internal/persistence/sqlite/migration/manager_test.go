package migration

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := InMemoryTestSQLiteConfig().Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestManager_RunAppliesPendingInOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"m/001_people.sql": {Data: []byte("CREATE TABLE people (id TEXT PRIMARY KEY);")},
		"m/002_visits.sql": {Data: []byte("CREATE TABLE visits (person_id TEXT REFERENCES people(id));\nCREATE INDEX idx_visits ON visits(person_id);")},
	}
	manager := NewManager(NewScanner(fsys, "m"), NewSQLiteExecutor(db), quietLogger())

	require.NoError(t, manager.Run(ctx))
	assert.True(t, tableExists(t, db, "people"))
	assert.True(t, tableExists(t, db, "visits"))

	status, err := manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "002", status.CurrentVersion)
	assert.Empty(t, status.Pending)
	require.Len(t, status.Applied, 2)
	assert.NotEmpty(t, status.Applied[0].Checksum)

	// A second run is a no-op.
	require.NoError(t, manager.Run(ctx))
}

func TestManager_RunRollsBackFailedMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"m/001_ok.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"m/002_broken.sql": {Data: []byte("CREATE TABLE half (id TEXT);\nCREATE TABLE ok (id TEXT);")},
	}
	manager := NewManager(NewScanner(fsys, "m"), NewSQLiteExecutor(db), quietLogger())

	err := manager.Run(ctx)
	require.ErrorIs(t, err, ErrMigrationFailed)
	var migErr *MigrationError
	require.ErrorAs(t, err, &migErr)
	assert.Equal(t, "002", migErr.Version)

	assert.True(t, tableExists(t, db, "ok"))
	assert.False(t, tableExists(t, db, "half"))

	status, err := manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "001", status.CurrentVersion)
	require.Len(t, status.Pending, 1)
}

func TestManager_StatusRejectsInconsistentHistory(t *testing.T) {
	t.Parallel()

	t.Run("gap in available versions", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
			"m/003_c.sql": {Data: []byte("CREATE TABLE c (id TEXT);")},
		}
		manager := NewManager(NewScanner(fsys, "m"), NewSQLiteExecutor(openTestDB(t)), quietLogger())
		_, err := manager.Status(context.Background())
		require.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("applied file removed or changed", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openTestDB(t)
		original := fstest.MapFS{"m/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")}}
		require.NoError(t, NewManager(NewScanner(original, "m"), NewSQLiteExecutor(db), quietLogger()).Run(ctx))

		edited := fstest.MapFS{"m/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT, extra TEXT);")}}
		_, err := NewManager(NewScanner(edited, "m"), NewSQLiteExecutor(db), quietLogger()).Status(ctx)
		require.ErrorIs(t, err, ErrChecksumMismatch)

		removed := fstest.MapFS{"m/README.md": {Data: []byte("gone")}}
		_, err = NewManager(NewScanner(removed, "m"), NewSQLiteExecutor(db), quietLogger()).Status(ctx)
		require.ErrorIs(t, err, ErrVersionConflict)
	})
}
