package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	source   Source
	executor Executor
	logger   *slog.Logger
}

// NewManager wires a migration source and executor.
func NewManager(source Source, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{source: source, executor: executor, logger: logger.With("component", "migration")}
}

// Run applies every pending migration. A failed migration stops the run and
// leaves later versions pending.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "current_version", status.CurrentVersion, "pending", len(status.Pending))
	for _, migration := range status.Pending {
		migrationStarted := time.Now()
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "path", migration.Path, "error", err)
			return &MigrationError{Version: migration.Version, Path: migration.Path, Operation: "execute", Err: fmt.Errorf("%w: %w", ErrMigrationFailed, err)}
		}
		elapsed := time.Since(migrationStarted)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			return &MigrationError{Version: migration.Version, Path: migration.Path, Operation: "record", Err: err}
		}
		m.logger.InfoContext(ctx, "migration applied", "version", migration.Version, "description", migration.Description, "duration", elapsed)
	}

	m.logger.InfoContext(ctx, "migrations completed", "applied", len(status.Pending), "duration", time.Since(started))
	return nil
}

// Status compares the available migrations against the applied ones.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}
	available, err := m.source.Migrations()
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedVersions := make(map[int]bool, len(applied))
	status := Status{Applied: applied}
	for _, a := range applied {
		v, _ := strconv.Atoi(a.Version)
		appliedVersions[v] = true
		status.CurrentVersion = a.Version
	}
	for _, migration := range available {
		v, _ := strconv.Atoi(migration.Version)
		if !appliedVersions[v] {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		v, err := strconv.Atoi(migration.Version)
		if err != nil {
			return &MigrationError{Version: migration.Version, Path: migration.Path, Operation: "validate sequence", Err: ErrInvalidMigrationFile}
		}
		if i > 0 {
			prev, _ := strconv.Atoi(available[i-1].Version)
			if v != prev+1 {
				return fmt.Errorf("%w: missing version between %03d and %03d", ErrVersionConflict, prev, v)
			}
		}
		byVersion[v] = migration
	}

	for _, a := range applied {
		v, err := strconv.Atoi(a.Version)
		if err != nil {
			return fmt.Errorf("%w: applied version %q is not numeric", ErrVersionConflict, a.Version)
		}
		migration, ok := byVersion[v]
		if !ok {
			return fmt.Errorf("%w: applied version %s has no migration file", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && migration.Checksum != a.Checksum {
			return &MigrationError{Version: a.Version, Path: migration.Path, Operation: "verify checksum", Err: ErrChecksumMismatch}
		}
	}
	return nil
}
