package database

import (
	"context"
	"embed"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"
)

// testMigrationsDir is the directory containing test migration files.
const testMigrationsDir = "testdata"

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useMigrations swaps the embedded migrations for the duration of a test.
func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = fsys, dir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	exists, err := db.TableExists(ctx, "widgets")
	if err != nil {
		t.Fatalf("TableExists() error = %v", err)
	}
	if !exists {
		t.Fatal("table widgets not created")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("expected 1 applied migration, got %d", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}

	// Running again should be idempotent
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	exists, err := db.TableExists(ctx, "widgets")
	if err != nil {
		t.Fatalf("TableExists() error = %v", err)
	}
	if exists {
		t.Error("table widgets should have been dropped")
	}

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied migrations after rollback, got %d", len(applied))
	}

	// Nothing left to roll back
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	var emptyFS embed.FS
	useMigrations(t, emptyFS, ".")

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestGetMigrationStatus(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	applied, pending, err := db.GetMigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied, got %d", len(applied))
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}
	if pending[0].Name != "create_widgets" {
		t.Errorf("pending[0].Name = %q, want create_widgets", pending[0].Name)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260118_120000_create_todos.up.sql", "20260118_120000", "create_todos", true, true},
		{"20260118_120000_create_audit_logs.down.sql", "20260118_120000", "create_audit_logs", false, true},
		{"20260118_120000.up.sql", "20260118_120000", "", true, true},
		{"readme.txt", "", "", false, false},
		{"20260118_120000_create_todos.sql", "", "", false, false},
		{"invalid.up.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)",
					version, name, up, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}

func TestLoadMigrations_DownWithoutUp(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260101_000000_orphan.down.sql": {Data: []byte("DROP TABLE orphan;")},
	}, ".")

	if _, err := loadMigrations(); err == nil {
		t.Fatal("loadMigrations() should reject a version with only a down file")
	}
}

func TestLoadMigrations_Order(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260102_000000_second.up.sql": {Data: []byte("SELECT 2;")},
		"20260101_000000_first.up.sql":  {Data: []byte("SELECT 1;")},
		"notes.md":                      {Data: []byte("ignored")},
	}, ".")

	got, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "first" || got[1].Name != "second" {
		t.Errorf("loadMigrations() = %+v, want first then second", got)
	}
}
