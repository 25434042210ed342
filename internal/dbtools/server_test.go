package dbtools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nerrad567/sqlgate/internal/infrastructure/config"
	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/infrastructure/logging"
	"github.com/nerrad567/sqlgate/internal/users"
)

type recordedCall struct {
	tool, outcome string
	rows          int
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRecorder) WriteToolCall(tool, outcome string, _ time.Duration, rows int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{tool, outcome, rows})
}

func (f *fakeRecorder) last() recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return recordedCall{}
	}
	return f.calls[len(f.calls)-1]
}

// seedDatabase creates users (three rows) and an empty widgets table.
func seedDatabase(t *testing.T, cfg database.Config) {
	t.Helper()
	ctx := context.Background()
	err := database.Use(ctx, cfg, func(db *database.DB) error {
		repo := users.NewRepository(db)
		if _, err := repo.Init(ctx); err != nil {
			return err
		}
		for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
			if _, err := repo.Create(ctx, users.CreateInput{Email: email, Phone: int64(100 + i)}); err != nil {
				return err
			}
		}
		return db.CreateTable(ctx, database.TableSpec{
			Name:    "widgets",
			Columns: []database.Column{{Name: "id", Type: "INTEGER PRIMARY KEY"}, {Name: "label"}},
		})
	})
	if err != nil {
		t.Fatalf("seeding database: %v", err)
	}
}

// newTestSession returns a client session connected in memory to a tool
// server over a seeded database.
func newTestSession(t *testing.T, mutate func(*config.MCPConfig)) (*mcp.ClientSession, *fakeRecorder) {
	t.Helper()
	ctx := context.Background()

	dbCfg := database.Config{Path: filepath.Join(t.TempDir(), "tools.db"), WALMode: true, BusyTimeout: 5}
	seedDatabase(t, dbCfg)

	mcpCfg := config.MCPConfig{
		OutputFormat: config.OutputJSON,
		ReadOnly:     true,
		SampleRows:   2,
		Schema:       "main",
	}
	if mutate != nil {
		mutate(&mcpCfg)
	}

	rec := &fakeRecorder{}
	srv := New(Options{
		Database: dbCfg,
		MCP:      mcpCfg,
		Version:  "test",
		Logger:   logging.Discard(),
		Metrics:  rec,
	})

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server Connect() error = %v", err)
	}
	t.Cleanup(func() { ss.Close() }) //nolint:errcheck // Test cleanup

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect() error = %v", err)
	}
	t.Cleanup(func() { cs.Close() }) //nolint:errcheck // Test cleanup

	return cs, rec
}

// callTool invokes a tool and decodes its JSON text content into out.
// It returns the result's IsError flag and raw text.
func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) (isError bool, text string) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) error = %v", name, err)
	}
	if len(res.Content) == 0 {
		t.Fatalf("CallTool(%s) returned no content", name)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s) content is %T, want *mcp.TextContent", name, res.Content[0])
	}
	if !res.IsError && out != nil {
		if err := json.Unmarshal([]byte(tc.Text), out); err != nil {
			t.Fatalf("decoding %s result %q: %v", name, tc.Text, err)
		}
	}
	return res.IsError, tc.Text
}

func TestToolsAreRegistered(t *testing.T) {
	cs, _ := newTestSession(t, nil)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}

	got := map[string]bool{}
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{
		"list_tables", "get_table_schema", "sql_query_checker", "sql_db_query",
		"create_user", "list_users", "get_user", "update_user",
	} {
		if !got[name] {
			t.Errorf("tool %q not registered", name)
		}
	}
	for _, name := range []string{"init_db", "delete_user"} {
		if got[name] {
			t.Errorf("tool %q must not be exposed", name)
		}
	}
}

func TestListTablesTool(t *testing.T) {
	cs, rec := newTestSession(t, nil)

	var out ListTablesOutput
	callTool(t, cs, "list_tables", map[string]any{}, &out)

	if strings.Join(out.Tables, ",") != "users,widgets" {
		t.Errorf("tables = %v, want [users widgets]", out.Tables)
	}
	if got := rec.last(); got != (recordedCall{"list_tables", "ok", 2}) {
		t.Errorf("recorded = %+v", got)
	}
}

func TestGetTableSchemaTool(t *testing.T) {
	cs, _ := newTestSession(t, nil)

	var out TableSchemaOutput
	callTool(t, cs, "get_table_schema", map[string]any{"table_name": "users, widgets"}, &out)

	if out.Error != "" {
		t.Fatalf("error = %q", out.Error)
	}
	for _, want := range []string{
		"CREATE TABLE USERS (\n    ID ",
		"    EMAIL                          TEXT,\n",
		"2 rows from USERS table:",
		"CREATE TABLE WIDGETS (",
		"    LABEL                          TEXT\n);",
	} {
		if !strings.Contains(out.TableSchema, want) {
			t.Errorf("schema missing %q:\n%s", want, out.TableSchema)
		}
	}
	if strings.Contains(out.TableSchema, "rows from WIDGETS") {
		t.Error("empty table rendered sample rows")
	}

	t.Run("missing table", func(t *testing.T) {
		var out TableSchemaOutput
		callTool(t, cs, "get_table_schema", map[string]any{"table_name": "nope"}, &out)
		if !strings.Contains(out.Error, `"nope" does not exist`) {
			t.Errorf("error = %q", out.Error)
		}
	})

	t.Run("hostile name", func(t *testing.T) {
		var out TableSchemaOutput
		callTool(t, cs, "get_table_schema", map[string]any{"table_name": "users); DROP TABLE users;--"}, &out)
		if out.Error == "" || out.TableSchema != "" {
			t.Errorf("out = %+v, want validation error", out)
		}
	})
}

func TestSampleRowsDisabled(t *testing.T) {
	cs, _ := newTestSession(t, func(c *config.MCPConfig) { c.SampleRows = 0 })

	var out TableSchemaOutput
	callTool(t, cs, "get_table_schema", map[string]any{"table_name": "users"}, &out)
	if strings.Contains(out.TableSchema, "rows from") {
		t.Errorf("schema includes sample rows:\n%s", out.TableSchema)
	}
}

func TestQueryCheckerTool(t *testing.T) {
	cs, _ := newTestSession(t, nil)

	var out CheckQueryOutput
	callTool(t, cs, "sql_query_checker", map[string]any{"query": "DELETE FROM users"}, &out)
	if out.Message != "Execution of DML queries ('DELETE') is not allowed." {
		t.Errorf("message = %q", out.Message)
	}

	callTool(t, cs, "sql_query_checker", map[string]any{"query": "SELECT 1"}, &out)
	if out.Message != MsgValid {
		t.Errorf("message = %q, want %q", out.Message, MsgValid)
	}
}

func TestQueryTool(t *testing.T) {
	cs, rec := newTestSession(t, nil)

	t.Run("json rows", func(t *testing.T) {
		var out struct {
			QueryResults []map[string]any `json:"query_results"`
		}
		callTool(t, cs, "sql_db_query", map[string]any{"sql_query": "SELECT id, email FROM users ORDER BY id"}, &out)
		if len(out.QueryResults) != 3 || out.QueryResults[0]["email"] != "a@example.com" {
			t.Errorf("query_results = %v", out.QueryResults)
		}
		if got := rec.last(); got.rows != 3 || got.outcome != "ok" {
			t.Errorf("recorded = %+v", got)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		var out struct {
			QueryResults []map[string]any `json:"query_results"`
		}
		callTool(t, cs, "sql_db_query", map[string]any{"sql_query": "SELECT * FROM widgets"}, &out)
		if out.QueryResults == nil || len(out.QueryResults) != 0 {
			t.Errorf("query_results = %#v, want []", out.QueryResults)
		}
	})

	t.Run("rejected in read-only mode", func(t *testing.T) {
		var out QueryOutput
		callTool(t, cs, "sql_db_query", map[string]any{"sql_query": "DELETE FROM users"}, &out)
		if out.Error != "Execution of DML queries ('DELETE') is not allowed." {
			t.Errorf("error = %q", out.Error)
		}
		if got := rec.last(); got.outcome != "error" {
			t.Errorf("recorded = %+v", got)
		}
	})

	t.Run("backend error", func(t *testing.T) {
		var out QueryOutput
		callTool(t, cs, "sql_db_query", map[string]any{"sql_query": "SELECT * FROM missing"}, &out)
		if !strings.Contains(out.Error, "no such table") {
			t.Errorf("error = %q", out.Error)
		}
	})
}

func TestQueryToolMarkdown(t *testing.T) {
	cs, _ := newTestSession(t, func(c *config.MCPConfig) { c.OutputFormat = config.OutputMarkdown })

	var out struct {
		QueryResults string `json:"query_results"`
	}
	callTool(t, cs, "sql_db_query", map[string]any{"sql_query": "SELECT id, phone FROM users WHERE id = 1"}, &out)

	want := "| id | phone |\n| --- | --- |\n| 1 | 100 |"
	if out.QueryResults != want {
		t.Errorf("query_results = %q, want %q", out.QueryResults, want)
	}
}

func TestQueryToolWritable(t *testing.T) {
	cs, _ := newTestSession(t, func(c *config.MCPConfig) { c.ReadOnly = false })

	var out QueryOutput
	callTool(t, cs, "sql_db_query", map[string]any{"sql_query": "UPDATE users SET city = 'Oslo'"}, &out)
	if out.Error != "" {
		t.Fatalf("error = %q", out.Error)
	}

	var check struct {
		QueryResults []map[string]any `json:"query_results"`
	}
	callTool(t, cs, "sql_db_query", map[string]any{"sql_query": "SELECT DISTINCT city FROM users"}, &check)
	if len(check.QueryResults) != 1 || check.QueryResults[0]["city"] != "Oslo" {
		t.Errorf("after update = %v", check.QueryResults)
	}
}

func TestUserTools(t *testing.T) {
	cs, _ := newTestSession(t, nil)

	var created users.User
	isErr, text := callTool(t, cs, "create_user", map[string]any{
		"email": "new@example.com",
		"phone": 555,
		"name":  "New",
	}, &created)
	if isErr {
		t.Fatalf("create_user failed: %s", text)
	}
	if created.ID != 4 || created.Email != "new@example.com" {
		t.Errorf("created = %+v", created)
	}

	var got users.User
	callTool(t, cs, "get_user", map[string]any{"id": created.ID}, &got)
	if got.Phone != 555 || got.Name == nil || *got.Name != "New" {
		t.Errorf("get_user = %+v", got)
	}

	var updated users.User
	callTool(t, cs, "update_user", map[string]any{"id": created.ID, "city": "Lima"}, &updated)
	if updated.City == nil || *updated.City != "Lima" || updated.Email != "new@example.com" {
		t.Errorf("update_user = %+v", updated)
	}

	var list ListUsersOutput
	callTool(t, cs, "list_users", map[string]any{"limit": 2}, &list)
	if len(list.Users) != 2 || list.Users[0].ID != 4 {
		t.Errorf("list_users = %+v", list.Users)
	}

	t.Run("not found", func(t *testing.T) {
		isErr, text := callTool(t, cs, "get_user", map[string]any{"id": 999}, nil)
		if !isErr || !strings.Contains(text, "not found") {
			t.Errorf("get_user(999) = %v, %q", isErr, text)
		}
	})

	t.Run("conflict", func(t *testing.T) {
		isErr, text := callTool(t, cs, "create_user", map[string]any{"email": "a@example.com", "phone": 1}, nil)
		if !isErr || !strings.Contains(text, "already exists") {
			t.Errorf("create_user(duplicate) = %v, %q", isErr, text)
		}
	})

	t.Run("no fields", func(t *testing.T) {
		isErr, text := callTool(t, cs, "update_user", map[string]any{"id": created.ID}, nil)
		if !isErr || !strings.Contains(text, "no fields") {
			t.Errorf("update_user(no fields) = %v, %q", isErr, text)
		}
	})
}
