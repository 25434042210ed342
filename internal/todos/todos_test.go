package todos_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/todos"
	_ "github.com/nerrad567/sqlgate/migrations"
)

func newTestRepo(t *testing.T) *todos.Repository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "todos.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return todos.NewRepository(db)
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	desc := "two litres"
	created, err := repo.Create(ctx, todos.CreateInput{Title: "buy milk", Description: &desc})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != 1 || created.Title != "buy milk" || created.Completed {
		t.Errorf("Create() = %+v", created)
	}
	if created.Description == nil || *created.Description != desc {
		t.Errorf("Description = %v", created.Description)
	}

	if _, err := repo.Get(ctx, 2); !errors.Is(err, todos.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, title := range []string{"a", "b", "c"} {
		if _, err := repo.Create(ctx, todos.CreateInput{Title: title}); err != nil {
			t.Fatalf("Create(%s) error = %v", title, err)
		}
	}

	all, err := repo.List(ctx, 0, 0)
	if err != nil || len(all) != 3 || all[0].Title != "a" {
		t.Fatalf("List() = %+v, %v", all, err)
	}

	page, err := repo.List(ctx, 1, 1)
	if err != nil || len(page) != 1 || page[0].Title != "b" {
		t.Errorf("List(skip=1, limit=1) = %+v, %v", page, err)
	}

	tail, err := repo.List(ctx, 2, 0)
	if err != nil || len(tail) != 1 || tail[0].Title != "c" {
		t.Errorf("List(skip=2) = %+v, %v", tail, err)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.Create(ctx, todos.CreateInput{Title: "write tests"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	done := true
	got, err := repo.Update(ctx, created.ID, todos.UpdateInput{Completed: &done})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !got.Completed || got.Title != "write tests" {
		t.Errorf("Update() = %+v", got)
	}

	unchanged, err := repo.Update(ctx, created.ID, todos.UpdateInput{})
	if err != nil || !unchanged.Completed {
		t.Errorf("Update(no fields) = %+v, %v", unchanged, err)
	}

	if _, err := repo.Update(ctx, 99, todos.UpdateInput{Completed: &done}); !errors.Is(err, todos.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.Create(ctx, todos.CreateInput{Title: "x"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, todos.ErrNotFound) {
		t.Errorf("Delete(again) error = %v, want ErrNotFound", err)
	}
}

func TestValidateJSON(t *testing.T) {
	if err := todos.ValidateCreateJSON([]byte(`{"title":"x"}`)); err != nil {
		t.Errorf("ValidateCreateJSON(valid) error = %v", err)
	}
	if err := todos.ValidateCreateJSON([]byte(`{"description":"x"}`)); !errors.Is(err, todos.ErrInvalid) {
		t.Errorf("ValidateCreateJSON(no title) error = %v, want ErrInvalid", err)
	}
	if err := todos.ValidateUpdateJSON([]byte(`{"completed":"yes"}`)); !errors.Is(err, todos.ErrInvalid) {
		t.Errorf("ValidateUpdateJSON(bad completed) error = %v, want ErrInvalid", err)
	}
}
