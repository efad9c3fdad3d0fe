package migration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestScannerOrdersByNumericVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/010_add_index.sql":      {Data: []byte("CREATE INDEX idx ON a(b);")},
		"sql/002_second.sql":         {Data: []byte("-- Description: second step\nCREATE TABLE b (id TEXT);")},
		"sql/001_initial_schema.sql": {Data: []byte("CREATE TABLE a (b TEXT);")},
		"sql/README.md":              {Data: []byte("ignored")},
	}

	migrations, err := NewScanner(fsys, "sql").Migrations()
	if err != nil {
		t.Fatalf("Migrations returned error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	gotVersions := []string{migrations[0].Version, migrations[1].Version, migrations[2].Version}
	if gotVersions[0] != "001" || gotVersions[1] != "002" || gotVersions[2] != "010" {
		t.Fatalf("unexpected order %v", gotVersions)
	}
	if migrations[0].Description != "initial schema" {
		t.Fatalf("expected description from filename, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "second step" {
		t.Fatalf("expected description from content, got %q", migrations[1].Description)
	}
	if migrations[0].Checksum == "" {
		t.Fatal("expected checksum")
	}
}

func TestScannerRejectsInvalidFiles(t *testing.T) {
	t.Parallel()

	cases := map[string]fstest.MapFS{
		"bad name":       {"sql/initial.sql": {Data: []byte("CREATE TABLE a (b TEXT);")}},
		"empty":          {"sql/001_empty.sql": {Data: []byte("-- nothing here\n")}},
		"parentheses":    {"sql/001_broken.sql": {Data: []byte("CREATE TABLE a (b TEXT;")}},
		"duplicate":      {"sql/001_a.sql": {Data: []byte("SELECT 1;")}, "sql/1_b.sql": {Data: []byte("SELECT 1;")}},
		"missing folder": {},
	}
	for name, fsys := range cases {
		if _, err := NewScanner(fsys, "sql").Migrations(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSplitStatementsDropsComments(t *testing.T) {
	t.Parallel()

	statements := splitStatements("-- header\nCREATE TABLE a (b TEXT); -- trailing\n\nCREATE INDEX i ON a(b);\n")
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[0] != "CREATE TABLE a (b TEXT)" {
		t.Fatalf("unexpected first statement %q", statements[0])
	}
}

func TestManagerAppliesEmbeddedSchemaOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Open(ctx, TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db")))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	manager := NewManager(NewScanner(Files, FilesDir), NewSQLiteExecutor(db), nil)
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.CurrentVersion != "001" || len(status.Pending) != 0 || len(status.Applied) != 1 {
		t.Fatalf("unexpected status %+v", status)
	}

	var tables int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('events', 'notification_log', 'reminder_rules')`).Scan(&tables); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if tables != 3 {
		t.Fatalf("expected schema tables, found %d", tables)
	}
}

func TestManagerDetectsChangedMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Open(ctx, TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "checksum.db")))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	original := fstest.MapFS{"001_init.sql": {Data: []byte("CREATE TABLE a (b TEXT);")}}
	if err := NewManager(NewScanner(original, "."), NewSQLiteExecutor(db), nil).Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	edited := fstest.MapFS{"001_init.sql": {Data: []byte("CREATE TABLE a (b TEXT, c TEXT);")}}
	err = NewManager(NewScanner(edited, "."), NewSQLiteExecutor(db), nil).Run(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}

	gap := fstest.MapFS{
		"001_init.sql": {Data: []byte("CREATE TABLE a (b TEXT);")},
		"003_skip.sql": {Data: []byte("CREATE TABLE c (d TEXT);")},
	}
	err = NewManager(NewScanner(gap, "."), NewSQLiteExecutor(db), nil).Run(ctx)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestSQLiteConfigValidate(t *testing.T) {
	t.Parallel()

	if err := DefaultSQLiteConfig("app.db").Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := DefaultSQLiteConfig("app.db")
	bad.JournalMode = "FAST"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected invalid journal mode error")
	}
	if err := (SQLiteConfig{}).Validate(); err == nil {
		t.Fatal("expected empty DSN error")
	}
}
