package database

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// migrationsTable records applied migration versions.
const migrationsTable = "schema_migrations"

// MigrationsFS holds the *.up.sql / *.down.sql files applied by Migrate.
// It is set by the migrations package at init; nil means no migrations.
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS holding the files.
var MigrationsDir = "migrations"

// Migration is one versioned schema change.
//
// Files are named YYYYMMDD_HHMMSS_label.up.sql with an optional matching
// .down.sql; Version is the timestamp prefix and Name the label.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord is one row of schema_migrations.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Migrate applies every pending migration in version order.
//
// Each migration runs in its own transaction together with its
// schema_migrations record. If migration N fails, 1..N-1 stay applied, N is
// rolled back and the rest are not attempted; calling Migrate again resumes
// at N.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If any migration fails (that migration is rolled back)
func (db *DB) Migrate(ctx context.Context) error {
	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the newest applied migration using its down file.
// With nothing applied it is a no-op.
func (db *DB) MigrateDown(ctx context.Context) error {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	version := applied[len(applied)-1].Version

	all, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	i := sort.Search(len(all), func(i int) bool { return all[i].Version >= version })
	if i == len(all) || all[i].Version != version {
		return fmt.Errorf("migration %s not found in filesystem", version)
	}
	m := all[i]
	if m.DownSQL == "" {
		return fmt.Errorf("migration %s has no down SQL", version)
	}

	return db.Transaction(ctx, func(ctx context.Context) error {
		if _, err := db.exec(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("executing down SQL: %w", err)
		}
		_, err := db.Delete(ctx, migrationsTable, Where{"version": version}, MutateOptions{})
		return err
	})
}

// GetMigrationStatus splits the known migrations into applied and pending.
// Both slices are in version order.
func (db *DB) GetMigrationStatus(ctx context.Context) (applied []MigrationRecord, pending []Migration, err error) {
	applied, err = db.appliedMigrations(ctx)
	if err != nil {
		return nil, nil, err
	}
	all, err := loadMigrations()
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}

	done := make(map[string]struct{}, len(applied))
	for _, rec := range applied {
		done[rec.Version] = struct{}{}
	}
	for _, m := range all {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	err := db.CreateTable(ctx, TableSpec{
		Name: migrationsTable,
		Columns: []Column{
			{Name: "version", Type: "TEXT PRIMARY KEY"},
			{Name: "applied_at", Type: "TEXT NOT NULL"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", migrationsTable, err)
	}

	rows, err := db.Select(ctx, migrationsTable, SelectOptions{OrderBy: `"version"`})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", migrationsTable, err)
	}
	records := make([]MigrationRecord, len(rows))
	for i, row := range rows {
		records[i].Version, _ = row["version"].(string)
		if s, ok := row["applied_at"].(string); ok {
			records[i].AppliedAt, _ = time.Parse(time.RFC3339, s) //nolint:errcheck // written by applyMigration
		}
	}
	return records, nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	return db.Transaction(ctx, func(ctx context.Context) error {
		if _, err := db.exec(ctx, m.UpSQL); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}
		_, err := db.Insert(ctx, migrationsTable, Row{
			"version":    m.Version,
			"applied_at": time.Now().UTC().Format(time.RFC3339),
		}, InsertOptions{DiscardIDs: true})
		return err
	})
}

// loadMigrations reads MigrationsFS and returns migrations sorted by
// version. Files that do not follow the naming scheme are ignored, as is a
// missing directory. An up file is required for each version.
func loadMigrations() ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, nil //nolint:nilerr // no directory, no migrations
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, up, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		body, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if up {
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s has no up file", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// parseMigrationFilename splits "20260118_120000_create_todos.up.sql" into
// version "20260118_120000", name "create_todos" and direction up.
func parseMigrationFilename(filename string) (version, name string, up, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false, false
	}
	if b, isUp := strings.CutSuffix(base, ".up"); isUp {
		base, up = b, true
	} else if b, isDown := strings.CutSuffix(base, ".down"); isDown {
		base = b
	} else {
		return "", "", false, false
	}

	date, rest, found := strings.Cut(base, "_")
	if !found || date == "" {
		return "", "", false, false
	}
	clock, label, _ := strings.Cut(rest, "_")
	if clock == "" {
		return "", "", false, false
	}
	return date + "_" + clock, label, up, true
}
