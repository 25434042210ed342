package users

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
)

func strPtr(s string) *string { return &s }
func int64Ptr(n int64) *int64 { return &n }

// newTestRepo returns a repository over an initialised users table.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "users.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	repo := NewRepository(db)
	if _, err := repo.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return repo
}

func TestInit(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	repo := NewRepository(db)

	created, err := repo.Init(ctx)
	if err != nil || !created {
		t.Fatalf("Init() = %v, %v; want true, nil", created, err)
	}
	created, err = repo.Init(ctx)
	if err != nil || created {
		t.Errorf("second Init() = %v, %v; want false, nil", created, err)
	}

	cols, err := db.TableColumns(ctx, Table)
	if err != nil {
		t.Fatalf("TableColumns() error = %v", err)
	}
	if len(cols) != 7 || cols[0].Name != "id" || cols[0].PrimaryKey != 1 {
		t.Errorf("columns = %+v", cols)
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u, err := repo.Create(ctx, CreateInput{
		Email: "john@example.com",
		Name:  strPtr("John Doe"),
		Phone: 1234567890,
		City:  strPtr("New York"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if u.ID != 1 || u.Email != "john@example.com" || u.Phone != 1234567890 {
		t.Errorf("Create() = %+v", u)
	}
	if u.Name == nil || *u.Name != "John Doe" {
		t.Errorf("Name = %v", u.Name)
	}
	if u.State != nil {
		t.Errorf("State = %q, want nil", *u.State)
	}

	t.Run("duplicate email", func(t *testing.T) {
		_, err := repo.Create(ctx, CreateInput{Email: "john@example.com", Phone: 1})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("Create() error = %v, want ErrConflict", err)
		}
		if !errors.Is(err, database.ErrIntegrity) {
			t.Errorf("Create() error = %v, should wrap ErrIntegrity", err)
		}
	})

	t.Run("duplicate phone", func(t *testing.T) {
		_, err := repo.Create(ctx, CreateInput{Email: "other@example.com", Phone: 1234567890})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("Create() error = %v, want ErrConflict", err)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := repo.Create(ctx, CreateInput{Email: "not-an-email", Phone: 2})
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("Create() error = %v, want ErrInvalid", err)
		}
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.Get(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	created, err := repo.Create(ctx, CreateInput{Email: "a@example.com", Phone: 100})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != created.ID || got.Email != created.Email || got.Phone != created.Phone {
		t.Errorf("Get() = %+v, want %+v", got, created)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		in := CreateInput{Email: email, Phone: int64(100 + i)}
		if i < 2 {
			in.Name = strPtr("shared")
		}
		if _, err := repo.Create(ctx, in); err != nil {
			t.Fatalf("Create(%s) error = %v", email, err)
		}
	}

	tests := []struct {
		name    string
		filter  ListFilter
		wantIDs []int64
		wantErr error
	}{
		{"all newest first", ListFilter{}, []int64{3, 2, 1}, nil},
		{"by name", ListFilter{Name: "shared"}, []int64{2, 1}, nil},
		{"by email", ListFilter{Email: "c@example.com"}, []int64{3}, nil},
		{"by phone", ListFilter{Phone: int64Ptr(101)}, []int64{2}, nil},
		{"limit", ListFilter{Limit: 1}, []int64{3}, nil},
		{"offset", ListFilter{Limit: 2, Offset: 2}, []int64{1}, nil},
		{"no match", ListFilter{Email: "zzz@example.com"}, []int64{}, nil},
		{"limit too large", ListFilter{Limit: 1001}, nil, ErrInvalid},
		{"negative limit", ListFilter{Limit: -1}, nil, ErrInvalid},
		{"negative offset", ListFilter{Offset: -1}, nil, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("List() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("List() returned %d users, want %d", len(got), len(tt.wantIDs))
			}
			for i, u := range got {
				if u.ID != tt.wantIDs[i] {
					t.Errorf("List()[%d].ID = %d, want %d", i, u.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, err := repo.Create(ctx, CreateInput{Email: "a@example.com", Phone: 1, Name: strPtr("A")})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.Create(ctx, CreateInput{Email: "b@example.com", Phone: 2}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Update(ctx, a.ID, UpdateInput{City: strPtr("Paris"), Phone: int64Ptr(11)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.City == nil || *got.City != "Paris" || got.Phone != 11 {
		t.Errorf("Update() = %+v", got)
	}
	if got.Name == nil || *got.Name != "A" || got.Email != "a@example.com" {
		t.Errorf("unset fields changed: %+v", got)
	}

	tests := []struct {
		name string
		id   int64
		in   UpdateInput
		want error
	}{
		{"no fields", a.ID, UpdateInput{}, ErrNoFields},
		{"duplicate email", a.ID, UpdateInput{Email: strPtr("b@example.com")}, ErrConflict},
		{"invalid email", a.ID, UpdateInput{Email: strPtr("nope")}, ErrInvalid},
		{"missing user", 99, UpdateInput{Name: strPtr("x")}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.Update(ctx, tt.id, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Update() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u, err := repo.Create(ctx, CreateInput{Email: "a@example.com", Phone: 1})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	n, err := repo.Delete(ctx, u.ID)
	if err != nil || n != 1 {
		t.Errorf("Delete() = %d, %v; want 1, nil", n, err)
	}
	if _, err := repo.Delete(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(again) error = %v, want ErrNotFound", err)
	}
}

func TestValidateJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		create  bool
		wantErr bool
	}{
		{"create ok", `{"email":"a@example.com","phone":123}`, true, false},
		{"create with nulls", `{"email":"a@example.com","phone":123,"name":null}`, true, false},
		{"create missing phone", `{"email":"a@example.com"}`, true, true},
		{"create phone as string", `{"email":"a@example.com","phone":"123"}`, true, true},
		{"create phone as float", `{"email":"a@example.com","phone":1.5}`, true, true},
		{"create bad email", `{"email":"nope","phone":1}`, true, true},
		{"create not an object", `[1,2]`, true, true},
		{"update empty", `{}`, false, false},
		{"update bad phone", `{"phone":"x"}`, false, true},
		{"malformed", `{"email":`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.create {
				err = ValidateCreateJSON([]byte(tt.body))
			} else {
				err = ValidateUpdateJSON([]byte(tt.body))
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("validate(%s) error = %v, wantErr %v", tt.body, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("error = %v, want ErrInvalid", err)
			}
		})
	}
}
