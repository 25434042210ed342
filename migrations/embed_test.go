package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
)

func TestEmbeddedMigrationsApply(t *testing.T) {
	ctx := context.Background()
	cfg := database.Config{Path: filepath.Join(t.TempDir(), "sqlgate.db"), BusyTimeout: 5}

	err := database.Use(ctx, cfg, func(db *database.DB) error {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		for _, table := range []string{"todos", "audit_logs"} {
			exists, err := db.TableExists(ctx, table)
			if err != nil {
				return err
			}
			if !exists {
				t.Errorf("table %s not created", table)
			}
		}

		_, pending, err := db.GetMigrationStatus(ctx)
		if err != nil {
			return err
		}
		if len(pending) != 0 {
			t.Errorf("pending = %d, want 0", len(pending))
		}

		// Every migration must roll back cleanly.
		for range 2 {
			if err := db.MigrateDown(ctx); err != nil {
				return err
			}
		}
		tables, err := db.ListTables(ctx)
		if err != nil {
			return err
		}
		if len(tables) != 1 || tables[0] != "schema_migrations" {
			t.Errorf("tables after rollback = %v, want [schema_migrations]", tables)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Use() error = %v", err)
	}
}
