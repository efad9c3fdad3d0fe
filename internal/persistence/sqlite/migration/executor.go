package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteExecutor applies migrations to a SQLite database.
type SQLiteExecutor struct {
	db *sql.DB
}

// NewSQLiteExecutor wraps db.
func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db}
}

// InitializeVersionTable creates schema_migrations when missing.
func (e *SQLiteExecutor) InitializeVersionTable(ctx context.Context) error {
	const createTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)`
	if _, err := e.db.ExecContext(ctx, createTable); err != nil {
		return &DatabaseError{Operation: "create schema_migrations", Err: err}
	}
	return nil
}

// ExecuteMigration runs every statement of migration in one transaction.
func (e *SQLiteExecutor) ExecuteMigration(ctx context.Context, migration Migration) (err error) {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return &MigrationError{Version: migration.Version, Path: migration.Path, Operation: "parse SQL", Err: ErrInvalidMigrationFile}
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return &DatabaseError{Version: migration.Version, Operation: "begin transaction", Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return &DatabaseError{Version: migration.Version, Operation: fmt.Sprintf("execute statement %d", i+1), Err: err}
		}
	}
	if err = tx.Commit(); err != nil {
		return &DatabaseError{Version: migration.Version, Operation: "commit", Err: err}
	}
	return nil
}

// RecordMigration marks migration as applied.
func (e *SQLiteExecutor) RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error {
	const insert = `INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`
	appliedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := e.db.ExecContext(ctx, insert, migration.Version, appliedAt, migration.Checksum, executionTime.Milliseconds()); err != nil {
		return &DatabaseError{Version: migration.Version, Operation: "record migration", Err: err}
	}
	return nil
}

// AppliedMigrations lists applied versions in ascending order.
func (e *SQLiteExecutor) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	const query = `SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations ORDER BY CAST(version AS INTEGER) ASC`
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &DatabaseError{Operation: "list applied migrations", Err: err}
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			m         AppliedMigration
			appliedAt string
			execMs    int64
		)
		if err := rows.Scan(&m.Version, &appliedAt, &m.Checksum, &execMs); err != nil {
			return nil, &DatabaseError{Operation: "scan applied migration", Err: err}
		}
		if m.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, &DatabaseError{Version: m.Version, Operation: "parse applied_at", Err: err}
		}
		m.ExecutionTime = time.Duration(execMs) * time.Millisecond
		applied = append(applied, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Operation: "iterate applied migrations", Err: err}
	}
	return applied, nil
}
