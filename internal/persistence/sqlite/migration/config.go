package migration

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const memoryPath = ":memory:"

// SQLiteConfig holds SQLite connection settings. PRAGMAs are passed through
// the modernc _pragma DSN parameter so every pooled connection receives them.
type SQLiteConfig struct {
	// Path is the database file path or ":memory:".
	Path string

	// BusyTimeout sets how long to wait for database locks.
	BusyTimeout time.Duration

	// EnableForeignKeys enables foreign key constraint checking.
	EnableForeignKeys bool

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, ...).
	JournalMode string

	// Synchronous sets the synchronous mode (OFF, NORMAL, FULL, EXTRA).
	Synchronous string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

var (
	validJournalModes = map[string]bool{"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true}
	validSyncModes    = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
)

// Validate reports configuration values that cannot be opened.
func (c SQLiteConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Path) == "":
		return fmt.Errorf("%w: path cannot be empty", ErrInvalidConfig)
	case strings.Contains(c.Path, "?"):
		return fmt.Errorf("%w: path must not contain query parameters", ErrInvalidConfig)
	case c.BusyTimeout < 0:
		return fmt.Errorf("%w: busy timeout cannot be negative", ErrInvalidConfig)
	case c.JournalMode != "" && !validJournalModes[strings.ToUpper(c.JournalMode)]:
		return fmt.Errorf("%w: invalid journal mode %q", ErrInvalidConfig, c.JournalMode)
	case c.Synchronous != "" && !validSyncModes[strings.ToUpper(c.Synchronous)]:
		return fmt.Errorf("%w: invalid synchronous mode %q", ErrInvalidConfig, c.Synchronous)
	case c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0:
		return fmt.Errorf("%w: pool settings cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// InMemory reports whether the configuration targets a private in-memory database.
func (c SQLiteConfig) InMemory() bool {
	return c.Path == memoryPath
}

// DSN renders the modernc connection string.
func (c SQLiteConfig) DSN() string {
	values := url.Values{}
	if c.BusyTimeout > 0 {
		values.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	}
	if c.EnableForeignKeys {
		values.Add("_pragma", "foreign_keys(1)")
	}
	if c.JournalMode != "" {
		values.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		values.Add("_pragma", fmt.Sprintf("synchronous(%s)", strings.ToUpper(c.Synchronous)))
	}
	// Write transactions take the lock up front instead of upgrading later.
	values.Set("_txlock", "immediate")
	return c.Path + "?" + values.Encode()
}

// Open validates the configuration, creates the parent directory of a file
// database and returns a pinged connection pool.
func (c SQLiteConfig) Open() (*sql.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if !c.InMemory() {
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
			return nil, &FileSystemError{Path: c.Path, Operation: "create database directory", Err: err}
		}
	}

	db, err := sql.Open("sqlite", c.DSN())
	if err != nil {
		return nil, &DatabaseError{Operation: "open database", Err: err}
	}

	maxOpen := c.MaxOpenConns
	if c.InMemory() {
		// Every connection to :memory: is a separate database.
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 && !c.InMemory() {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &DatabaseError{Operation: "ping database", Err: err}
	}
	return db, nil
}

// DefaultSQLiteConfig returns production settings for a database file.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:              path,
		BusyTimeout:       30 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		MaxOpenConns:      8,
		MaxIdleConns:      4,
		ConnMaxLifetime:   5 * time.Minute,
	}
}

// InMemoryTestSQLiteConfig returns settings for a private in-memory database.
func InMemoryTestSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:              memoryPath,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "MEMORY",
		Synchronous:       "OFF",
		MaxOpenConns:      1,
		MaxIdleConns:      1,
	}
}

// TempFileTestSQLiteConfig returns settings for a throwaway database file.
func TempFileTestSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:              path,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "OFF",
		MaxOpenConns:      4,
		MaxIdleConns:      2,
		ConnMaxLifetime:   time.Minute,
	}
}
