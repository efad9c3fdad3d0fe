package sqlite

import (
	"context"
	"log/slog"

	"github.com/example/family-scheduler/internal/persistence"
	"github.com/example/family-scheduler/internal/persistence/sqlite/migration"
)

// Storage bundles the SQLite repositories behind one connection pool. It
// satisfies every repository interface in package persistence.
type Storage struct {
	*FamilyRepository
	*EventRepository
	*ReminderRepository
	*ChannelRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var (
	_ persistence.FamilyRepository          = (*Storage)(nil)
	_ persistence.EventRepository           = (*Storage)(nil)
	_ persistence.ReminderRuleRepository    = (*Storage)(nil)
	_ persistence.NotificationLogRepository = (*Storage)(nil)
	_ persistence.ChannelRepository         = (*Storage)(nil)
)

// Open connects to the database file at path with production settings.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Storage, error) {
	return OpenWithConfig(ctx, migration.DefaultSQLiteConfig(path), logger)
}

// OpenWithConfig connects using an explicit configuration.
func OpenWithConfig(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		FamilyRepository:   NewFamilyRepository(pool),
		EventRepository:    NewEventRepository(pool),
		ReminderRepository: NewReminderRepository(pool),
		ChannelRepository:  NewChannelRepository(pool),
		pool:               pool,
		logger:             logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(migration.NewScanner(migration.Files, migration.FilesDir), migration.NewSQLiteExecutor(s.pool.DB()), s.logger)
	return manager.Run(ctx)
}

// MigrationStatus reports applied and pending schema versions.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(migration.NewScanner(migration.Files, migration.FilesDir), migration.NewSQLiteExecutor(s.pool.DB()), s.logger)
	return manager.Status(ctx)
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.pool.Close()
}
