package audit_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sqlgate/internal/audit"
	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	_ "github.com/nerrad567/sqlgate/migrations"
)

// openMigratedDB returns a migrated database in a temp directory.
func openMigratedDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := audit.NewSQLRepository(openMigratedDB(t))

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []*audit.AuditLog{
		{Action: "create", EntityType: "users", EntityID: "1", Source: audit.SourceAPI, CreatedAt: base},
		{Action: "update", EntityType: "users", EntityID: "1", Actor: "alice", Source: audit.SourceAPI, CreatedAt: base.Add(time.Second)},
		{Action: "tool_call", EntityType: "list_tables", Source: audit.SourceMCP, Details: map[string]any{"rows": 2.0}, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if len(e.ID) != len("aud-")+8 {
			t.Errorf("generated ID = %q", e.ID)
		}
	}

	t.Run("all newest first", func(t *testing.T) {
		res, err := repo.List(ctx, audit.Filter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Total != 3 || len(res.Logs) != 3 {
			t.Fatalf("List() total=%d logs=%d, want 3/3", res.Total, len(res.Logs))
		}
		if res.Logs[0].Action != "tool_call" || res.Logs[2].Action != "create" {
			t.Errorf("order = %s,%s,%s", res.Logs[0].Action, res.Logs[1].Action, res.Logs[2].Action)
		}
		if res.Limit != 50 || res.Offset != 0 {
			t.Errorf("Limit/Offset = %d/%d, want 50/0", res.Limit, res.Offset)
		}
		if res.Logs[0].Details["rows"] != 2.0 {
			t.Errorf("Details = %v", res.Logs[0].Details)
		}
		if !res.Logs[1].CreatedAt.Equal(base.Add(time.Second)) {
			t.Errorf("CreatedAt = %v", res.Logs[1].CreatedAt)
		}
		if res.Logs[2].Actor != "" || res.Logs[1].Actor != "alice" {
			t.Errorf("Actor round trip: %q / %q", res.Logs[2].Actor, res.Logs[1].Actor)
		}
	})

	t.Run("filtered", func(t *testing.T) {
		res, err := repo.List(ctx, audit.Filter{EntityType: "users", Action: "update"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Total != 1 || res.Logs[0].Actor != "alice" {
			t.Errorf("List(filtered) = %+v", res)
		}
	})

	t.Run("paginated", func(t *testing.T) {
		res, err := repo.List(ctx, audit.Filter{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Total != 3 || len(res.Logs) != 1 || res.Logs[0].Action != "update" {
			t.Errorf("List(page 2) = %+v", res)
		}
	})

	t.Run("limit clamped", func(t *testing.T) {
		res, err := repo.List(ctx, audit.Filter{Limit: 1000, Offset: -4})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Limit != 200 || res.Offset != 0 {
			t.Errorf("Limit/Offset = %d/%d, want 200/0", res.Limit, res.Offset)
		}
	})

	t.Run("empty result is not nil", func(t *testing.T) {
		res, err := repo.List(ctx, audit.Filter{Action: "nothing"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Logs == nil || len(res.Logs) != 0 {
			t.Errorf("Logs = %#v, want empty slice", res.Logs)
		}
	})
}

func TestCreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := audit.NewSQLRepository(openMigratedDB(t))

	entry := audit.AuditLog{ID: "aud-fixed", Action: "create", EntityType: "todos", Source: audit.SourceAPI}
	first, second := entry, entry
	if err := repo.Create(ctx, &first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, &second); !errors.Is(err, database.ErrIntegrity) {
		t.Errorf("Create(duplicate) error = %v, want ErrIntegrity", err)
	}
}

// =============================================================================
// Writer Tests
// =============================================================================

type recordingRepo struct {
	mu      sync.Mutex
	entries []*audit.AuditLog
	err     error
}

func (r *recordingRepo) Create(_ context.Context, log *audit.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, log)
	return r.err
}

func (r *recordingRepo) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type countingLogger struct {
	mu          sync.Mutex
	warns, errs int
}

func (l *countingLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func (l *countingLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errs++
	l.mu.Unlock()
}

func TestWriterDrainsOnShutdown(t *testing.T) {
	repo := &recordingRepo{}
	w := audit.NewWriter(repo, nil, 8)

	for i := 0; i < 5; i++ {
		if !w.Record(audit.AuditLog{Action: "create", EntityType: "todos"}) {
			t.Fatalf("Record(%d) dropped", i)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	if got := repo.count(); got != 5 {
		t.Errorf("wrote %d entries, want 5", got)
	}
}

func TestWriterDropsWhenFull(t *testing.T) {
	logger := &countingLogger{}
	w := audit.NewWriter(&recordingRepo{}, logger, 1)

	if !w.Record(audit.AuditLog{Action: "create"}) {
		t.Fatal("first Record() dropped")
	}
	if w.Record(audit.AuditLog{Action: "create"}) {
		t.Error("second Record() accepted on a full buffer")
	}
	if logger.warns != 1 {
		t.Errorf("warns = %d, want 1", logger.warns)
	}
}

func TestWriterLogsFailures(t *testing.T) {
	logger := &countingLogger{}
	w := audit.NewWriter(&recordingRepo{err: errors.New("disk full")}, logger, 4)
	w.Record(audit.AuditLog{Action: "delete"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	if logger.errs != 1 {
		t.Errorf("errors logged = %d, want 1", logger.errs)
	}
}

func TestWriterWithDatabase(t *testing.T) {
	db := openMigratedDB(t)
	w := audit.NewWriter(audit.NewSQLRepository(db), nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Record(audit.AuditLog{Action: "init", EntityType: "users", Source: audit.SourceCLI})
	cancel()
	<-done

	res, err := audit.NewSQLRepository(db).List(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || res.Logs[0].Source != audit.SourceCLI {
		t.Errorf("List() = %+v", res)
	}
}

func TestNilWriter(t *testing.T) {
	var w *audit.Writer
	if w.Record(audit.AuditLog{Action: "create"}) {
		t.Error("nil Writer accepted an entry")
	}
}
