package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
)

// Spec is the users table definition used by Init.
var Spec = database.TableSpec{
	Name: Table,
	Columns: []database.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "email", Type: "TEXT NOT NULL"},
		{Name: "name", Type: "TEXT"},
		{Name: "phone", Type: "TEXT NOT NULL"},
		{Name: "city", Type: "TEXT"},
		{Name: "state", Type: "TEXT"},
		{Name: "country", Type: "TEXT"},
	},
	PrimaryKey: []string{"id"},
	Uniques:    [][]string{{"email"}, {"phone"}},
}

// Repository reads and writes users through one database handle.
// Like the handle, it is not safe for concurrent use.
type Repository struct {
	db *database.DB
}

// NewRepository creates a users repository over db.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Init creates the users table if it does not exist.
//
// Returns:
//   - created: true if the table was created by this call
//   - error: database failure
func (r *Repository) Init(ctx context.Context) (created bool, err error) {
	exists, err := r.db.TableExists(ctx, Table)
	if err != nil {
		return false, fmt.Errorf("checking users table: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := r.db.CreateTable(ctx, Spec); err != nil {
		return false, fmt.Errorf("creating users table: %w", err)
	}
	return true, nil
}

// Create validates and inserts a user, returning the stored row.
//
// Returns:
//   - *User: the created user with its assigned id
//   - error: ErrInvalid, ErrConflict (duplicate email or phone), or a database error
func (r *Repository) Create(ctx context.Context, in CreateInput) (*User, error) {
	if err := validate(createSchema, gojsonschema.NewGoLoader(in)); err != nil {
		return nil, err
	}

	id, err := r.db.Insert(ctx, Table, in.row(), database.InsertOptions{})
	if err != nil {
		return nil, mapWriteError(err)
	}
	return r.Get(ctx, id)
}

// Get returns the user with the given id, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	rows, err := r.db.Select(ctx, Table, database.SelectOptions{
		Where: database.Where{"id": id},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	u := fromRow(rows[0])
	return &u, nil
}

// List returns users matching filter, newest id first.
// A zero Limit uses DefaultLimit; Limit must otherwise be 1..MaxLimit.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalid, MaxLimit)
	}
	if filter.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must be >= 0", ErrInvalid)
	}

	where := database.Where{}
	if filter.Email != "" {
		where["email"] = filter.Email
	}
	if filter.Name != "" {
		where["name"] = filter.Name
	}
	if filter.Phone != nil {
		where["phone"] = *filter.Phone
	}

	rows, err := r.db.Select(ctx, Table, database.SelectOptions{
		Where:   where,
		OrderBy: `"id" DESC`,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
	if err != nil {
		return nil, err
	}

	out := make([]User, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// Update applies the non-nil fields of in to user id and returns the result.
//
// Returns:
//   - *User: the updated user
//   - error: ErrNoFields, ErrInvalid, ErrConflict, ErrNotFound, or a database error
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (*User, error) {
	data := in.row()
	if len(data) == 0 {
		return nil, ErrNoFields
	}
	if err := validate(updateSchema, gojsonschema.NewGoLoader(in)); err != nil {
		return nil, err
	}

	n, err := r.db.Update(ctx, Table, data, database.Where{"id": id}, database.MutateOptions{})
	if err != nil {
		return nil, mapWriteError(err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes user id and returns the number of rows deleted.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	n, err := r.db.Delete(ctx, Table, database.Where{"id": id}, database.MutateOptions{})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func mapWriteError(err error) error {
	if errors.Is(err, database.ErrIntegrity) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
