// Package todos implements the todos resource over the data-access layer.
// The todos table is created by the embedded migrations.
package todos

import (
	"context"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
)

// Table is the todos table name.
const Table = "todos"

// DefaultLimit is the page size when List is given none.
const DefaultLimit = 100

var (
	ErrNotFound = errors.New("todos: todo not found")
	ErrInvalid  = errors.New("todos: invalid input")
)

// Todo is one row of the todos table.
type Todo struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// UpdateInput holds the fields a PUT may change. Nil fields are kept.
type UpdateInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

var (
	createSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"title":       {"type": "string"},
			"description": {"type": ["string", "null"]}
		},
		"required": ["title"]
	}`)

	updateSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"title":       {"type": ["string", "null"]},
			"description": {"type": ["string", "null"]},
			"completed":   {"type": ["boolean", "null"]}
		}
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("todos: invalid built-in schema: %v", err))
	}
	return schema
}

// ValidateCreateJSON checks a raw create body.
func ValidateCreateJSON(body []byte) error {
	return validate(createSchema, body)
}

// ValidateUpdateJSON checks a raw update body.
func ValidateUpdateJSON(body []byte) error {
	return validate(updateSchema, body)
}

func validate(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if !result.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalid, result.Errors()[0].String())
	}
	return nil
}

// Repository reads and writes todos through one database handle.
type Repository struct {
	db *database.DB
}

// NewRepository creates a todos repository over db.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a todo. New todos are not completed.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*Todo, error) {
	row := database.Row{"title": in.Title, "description": nil}
	if in.Description != nil {
		row["description"] = *in.Description
	}
	id, err := r.db.Insert(ctx, Table, row, database.InsertOptions{})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// List returns todos in id order, skipping skip rows.
// limit <= 0 uses DefaultLimit.
func (r *Repository) List(ctx context.Context, skip, limit int) ([]Todo, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if skip < 0 {
		skip = 0
	}
	rows, err := r.db.Select(ctx, Table, database.SelectOptions{
		OrderBy: `"id"`,
		Limit:   limit,
		Offset:  skip,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Todo, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// Get returns todo id, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (*Todo, error) {
	rows, err := r.db.Select(ctx, Table, database.SelectOptions{Where: database.Where{"id": id}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	t := fromRow(rows[0])
	return &t, nil
}

// Update sets the non-nil fields of in and returns the stored todo.
// An input with no fields returns the todo unchanged.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (*Todo, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	data := database.Row{}
	if in.Title != nil {
		data["title"] = *in.Title
	}
	if in.Description != nil {
		data["description"] = *in.Description
	}
	if in.Completed != nil {
		data["completed"] = *in.Completed
	}
	if _, err := r.db.Update(ctx, Table, data, database.Where{"id": id}, database.MutateOptions{}); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Delete removes todo id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	n, err := r.db.Delete(ctx, Table, database.Where{"id": id}, database.MutateOptions{})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func fromRow(row database.Row) Todo {
	var t Todo
	t.ID, _ = row["id"].(int64)
	t.Title, _ = row["title"].(string)
	if d, ok := row["description"].(string); ok {
		t.Description = &d
	}
	completed, _ := row["completed"].(int64)
	t.Completed = completed != 0
	return t
}
