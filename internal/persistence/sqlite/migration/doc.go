// Package migration applies the versioned SQLite schema.
//
// Migration files are named {version}_{description}.sql (for example
// "001_initial_schema.sql") and are embedded into the binary. Applied versions
// are tracked in the schema_migrations table so each file runs once.
//
// Example usage:
//
//	manager := NewManager(NewScanner(Files, "sql"), NewSQLiteExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
