// Package users implements the users resource: schema bootstrap, JSON Schema
// validation of request bodies and CRUD over the data-access layer.
package users

import (
	"errors"
	"strconv"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
)

// Table is the users table name.
const Table = "users"

// Pagination bounds for List.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Domain errors. Use errors.Is to check them.
var (
	// ErrNotFound is returned when no user has the requested id.
	ErrNotFound = errors.New("users: user not found")

	// ErrConflict is returned when an email or phone is already taken.
	ErrConflict = errors.New("users: email or phone already exists")

	// ErrInvalid is returned when input fails validation.
	ErrInvalid = errors.New("users: invalid input")

	// ErrNoFields is returned by Update when the input sets nothing.
	ErrNoFields = errors.New("users: no fields to update")
)

// User is one row of the users table.
type User struct {
	ID      int64   `json:"id"`
	Email   string  `json:"email"`
	Name    *string `json:"name"`
	Phone   int64   `json:"phone"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Country *string `json:"country"`
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Email   string  `json:"email" jsonschema:"email address, unique"`
	Name    *string `json:"name,omitempty"`
	Phone   int64   `json:"phone" jsonschema:"phone number as digits, unique"`
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Country *string `json:"country,omitempty"`
}

// UpdateInput is the body of a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Email   *string `json:"email,omitempty"`
	Name    *string `json:"name,omitempty"`
	Phone   *int64  `json:"phone,omitempty"`
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Country *string `json:"country,omitempty"`
}

// ListFilter selects users for List. Zero values mean "no filter".
type ListFilter struct {
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Phone  *int64 `json:"phone,omitempty"`
	Limit  int    `json:"limit,omitempty" jsonschema:"1 to 1000, default 100"`
	Offset int    `json:"offset,omitempty"`
}

func (in CreateInput) row() database.Row {
	return database.Row{
		"email":   in.Email,
		"name":    optional(in.Name),
		"phone":   in.Phone,
		"city":    optional(in.City),
		"state":   optional(in.State),
		"country": optional(in.Country),
	}
}

func (in UpdateInput) row() database.Row {
	row := database.Row{}
	if in.Email != nil {
		row["email"] = *in.Email
	}
	if in.Name != nil {
		row["name"] = *in.Name
	}
	if in.Phone != nil {
		row["phone"] = *in.Phone
	}
	if in.City != nil {
		row["city"] = *in.City
	}
	if in.State != nil {
		row["state"] = *in.State
	}
	if in.Country != nil {
		row["country"] = *in.Country
	}
	return row
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// fromRow maps a users row. phone is stored with TEXT affinity and read back
// as a string.
func fromRow(row database.Row) User {
	u := User{
		Name:    text(row["name"]),
		City:    text(row["city"]),
		State:   text(row["state"]),
		Country: text(row["country"]),
	}
	u.ID, _ = row["id"].(int64)
	u.Email, _ = row["email"].(string)
	switch p := row["phone"].(type) {
	case int64:
		u.Phone = p
	case string:
		u.Phone, _ = strconv.ParseInt(p, 10, 64)
	}
	return u
}

func text(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
