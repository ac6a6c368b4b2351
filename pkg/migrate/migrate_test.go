package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"gorm.io/driver/sqlite"

	"github.com/thevault/register/pkg/db"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := Validate(Embedded(), embeddedDir); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestValidateRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {"m/create.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"duplicate": {
			"m/20250101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"m/20250101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"no down": {"m/20250101000000_a.sql": {Data: []byte("-- +goose Up\n")}},
	}
	for name, fsys := range cases {
		if err := Validate(fsys, "m"); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)
	path, err := CreateSQLMigration(dir, "Add Journal Notes!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20250602083000_add_journal_notes.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := Validate(os.DirFS(dir), "."); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "add journal notes", now); err == nil {
		t.Fatal("expected duplicate migration error")
	}
	if _, err := CreateSQLMigration(dir, "!!!", now); err == nil {
		t.Fatal("expected empty name error")
	}
}

func TestUpAppliesJournalSchemaOnSQLite(t *testing.T) {
	conn, err := db.Open(sqlite.Open("file::memory:"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	ctx := context.Background()
	if err := Up(ctx, sqlDB, "sqlite3"); err != nil {
		t.Fatalf("up: %v", err)
	}
	version, err := Version(ctx, sqlDB, "sqlite3")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != 20250601090500 {
		t.Fatalf("unexpected version %d", version)
	}
	for _, table := range []string{"journal_entries", "journal_lines"} {
		var name string
		row := sqlDB.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&name); err != nil || !strings.EqualFold(name, table) {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	if err := MigrateToVersion(ctx, sqlDB, "sqlite3", "20250601090000"); err != nil {
		t.Fatalf("down to first: %v", err)
	}
	var count int
	row := sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='journal_lines'")
	if err := row.Scan(&count); err != nil || count != 0 {
		t.Fatalf("journal_lines should be dropped, count=%d err=%v", count, err)
	}
}
