// Package migration applies versioned SQL schema changes to SQLite databases.
//
// Migration files are read from an fs.FS (usually an embedded directory) and
// must be named {version}_{description}.sql, for example
// "001_initial_schema.sql". Applied versions are tracked in a
// schema_migrations table; each migration runs and is recorded inside a
// single transaction.
//
// Example usage:
//
//	scanner := migration.NewScanner(migrationFiles, "migrations")
//	manager := migration.NewManager(scanner, migration.NewSQLiteExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
