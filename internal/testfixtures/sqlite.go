package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/family-scheduler/internal/persistence"
	"github.com/example/family-scheduler/internal/persistence/sqlite"
	"github.com/example/family-scheduler/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary, migrated
// SQLite database for integration-style persistence tests.
type SQLiteHarness struct {
	Storage *sqlite.Storage

	Families persistence.FamilyRepository
	Events   persistence.EventRepository
	Rules    persistence.ReminderRuleRepository
	Log      persistence.NotificationLogRepository
	Channels persistence.ChannelRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens a migrated database in a temporary directory. The
// harness registers its own cleanup with tb; calling Close early is allowed.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	path := filepath.Join(tb.TempDir(), "famsched.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	storage, err := sqlite.OpenWithConfig(ctx, migration.TempFileTestSQLiteConfig(path), logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:  storage,
		Families: storage,
		Events:   storage,
		Rules:    storage,
		Log:      storage,
		Channels: storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// SeedFamily inserts the family together with its users and roster members.
func (h *SQLiteHarness) SeedFamily(tb testing.TB, family FamilyFixture) {
	tb.Helper()

	ctx := context.Background()
	if err := h.Families.CreateFamily(ctx, family.Persistence()); err != nil {
		tb.Fatalf("failed to create family %s: %v", family.ID, err)
	}
	for _, user := range family.Users {
		if err := h.Families.CreateUser(ctx, user.Persistence()); err != nil {
			tb.Fatalf("failed to create user %s: %v", user.ID, err)
		}
	}
	for _, member := range family.Members {
		if err := h.Families.CreateMember(ctx, member.Persistence()); err != nil {
			tb.Fatalf("failed to create member %s: %v", member.ID, err)
		}
	}
}

// SeedEvents inserts events in order.
func (h *SQLiteHarness) SeedEvents(tb testing.TB, events ...EventFixture) {
	tb.Helper()

	for _, event := range events {
		if err := h.Events.CreateEvent(context.Background(), event.Persistence()); err != nil {
			tb.Fatalf("failed to create event %s: %v", event.ID, err)
		}
	}
}
