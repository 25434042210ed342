package dbtools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/users"
)

// GetUserInput identifies one user.
type GetUserInput struct {
	ID int64 `json:"id" jsonschema:"the user id"`
}

// UpdateUserInput is a partial update of user ID. Omitted fields are kept.
type UpdateUserInput struct {
	ID      int64   `json:"id" jsonschema:"the user id"`
	Email   *string `json:"email,omitempty"`
	Name    *string `json:"name,omitempty"`
	Phone   *int64  `json:"phone,omitempty"`
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Country *string `json:"country,omitempty"`
}

// ListUsersOutput is the list_users result.
type ListUsersOutput struct {
	Users []users.User `json:"users"`
}

// registerUserTools exposes user CRUD. Schema initialisation and deletion
// are HTTP-only.
func (s *Server) registerUserTools() {
	addTool(s, &mcp.Tool{
		Name:        "create_user",
		Description: `Create a new user. Example: {"name": "John Doe", "email": "john@example.com", "phone": 1234567890, "city": "New York", "state": "NY", "country": "USA"}`,
	}, createUser, nil)

	addTool(s, &mcp.Tool{
		Name:        "list_users",
		Description: "List users with optional filtering by email, name and phone, newest first. limit defaults to 100 (max 1000).",
	}, listUsers, nil)

	addTool(s, &mcp.Tool{
		Name:        "get_user",
		Description: "Get a user by id.",
	}, getUser, nil)

	addTool(s, &mcp.Tool{
		Name:        "update_user",
		Description: "Update the given fields of a user by id.",
	}, updateUser, nil)
}

func createUser(ctx context.Context, db *database.DB, in users.CreateInput) (users.User, int, error) {
	u, err := users.NewRepository(db).Create(ctx, in)
	if err != nil {
		return users.User{}, 0, err
	}
	return *u, 1, nil
}

func listUsers(ctx context.Context, db *database.DB, in users.ListFilter) (ListUsersOutput, int, error) {
	list, err := users.NewRepository(db).List(ctx, in)
	if err != nil {
		return ListUsersOutput{}, 0, err
	}
	return ListUsersOutput{Users: list}, len(list), nil
}

func getUser(ctx context.Context, db *database.DB, in GetUserInput) (users.User, int, error) {
	u, err := users.NewRepository(db).Get(ctx, in.ID)
	if err != nil {
		return users.User{}, 0, err
	}
	return *u, 1, nil
}

func updateUser(ctx context.Context, db *database.DB, in UpdateUserInput) (users.User, int, error) {
	u, err := users.NewRepository(db).Update(ctx, in.ID, users.UpdateInput{
		Email:   in.Email,
		Name:    in.Name,
		Phone:   in.Phone,
		City:    in.City,
		State:   in.State,
		Country: in.Country,
	})
	if err != nil {
		return users.User{}, 0, err
	}
	return *u, 1, nil
}
