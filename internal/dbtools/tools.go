package dbtools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nerrad567/sqlgate/internal/infrastructure/config"
	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
)

// ListTablesInput takes no arguments.
type ListTablesInput struct{}

// ListTablesOutput is the list_tables result.
type ListTablesOutput struct {
	Tables []string `json:"tables"`
}

// TableSchemaInput is the get_table_schema argument.
type TableSchemaInput struct {
	TableName string `json:"table_name" jsonschema:"comma-separated list of tables, e.g. 'users, todos'"`
}

// TableSchemaOutput is the get_table_schema result. Exactly one field is set.
type TableSchemaOutput struct {
	TableSchema string `json:"table_schema,omitempty"`
	Error       string `json:"error,omitempty"`
}

// CheckQueryInput is the sql_query_checker argument.
type CheckQueryInput struct {
	Query string `json:"query" jsonschema:"the SQL query to check"`
}

// CheckQueryOutput is the sql_query_checker result.
type CheckQueryOutput struct {
	Message string `json:"message"`
}

// QueryInput is the sql_db_query argument.
type QueryInput struct {
	SQLQuery string `json:"sql_query" jsonschema:"a SELECT or WITH query, e.g. 'SELECT * FROM users LIMIT 5'"`
}

// QueryOutput is the sql_db_query result. QueryResults holds a list of row
// objects, or a Markdown table string when the output format is md.
type QueryOutput struct {
	QueryResults any    `json:"query_results,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (s *Server) registerDatabaseTools() {
	addTool(s, &mcp.Tool{
		Name:        "list_tables",
		Description: "Input is an empty string, output is a comma-separated list of tables in the database.",
	}, s.listTables, func(error) ListTablesOutput {
		return ListTablesOutput{Tables: []string{}}
	})

	addTool(s, &mcp.Tool{
		Name: "get_table_schema",
		Description: "Input to this tool is a comma-separated list of tables, output is the schema and sample rows for those tables. " +
			"Be sure to list the tables before calling this tool!",
	}, s.tableSchema, func(err error) TableSchemaOutput {
		return TableSchemaOutput{Error: err.Error()}
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sql_query_checker",
		Description: "Use this tool to double check if your query is correct before executing it. Always use this tool before executing a query with sql_db_query!",
	}, s.checkQuery)

	addTool(s, &mcp.Tool{
		Name:        "sql_db_query",
		Description: "Input is a valid SQL query, output is the results of that query in JSON format. Always use sql_query_checker before calling this tool!",
	}, s.query, func(err error) QueryOutput {
		return QueryOutput{Error: err.Error()}
	})
}

func (s *Server) listTables(ctx context.Context, db *database.DB, _ ListTablesInput) (ListTablesOutput, int, error) {
	tables, err := db.ListSchemaTables(ctx, s.opts.MCP.Schema)
	if err != nil {
		return ListTablesOutput{}, 0, err
	}
	return ListTablesOutput{Tables: tables}, len(tables), nil
}

func (s *Server) tableSchema(ctx context.Context, db *database.DB, in TableSchemaInput) (TableSchemaOutput, int, error) {
	var names []string
	for _, name := range strings.Split(in.TableName, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return TableSchemaOutput{}, 0, errors.New("no table names given")
	}

	parts := make([]string, 0, len(names))
	for _, name := range names {
		qualified := s.qualify(name)

		cols, err := db.TableColumns(ctx, qualified)
		if err != nil {
			return TableSchemaOutput{}, 0, err
		}
		if len(cols) == 0 {
			return TableSchemaOutput{}, 0, fmt.Errorf("table %q does not exist", name)
		}
		part := renderSchema(name, cols)

		if s.opts.MCP.SampleRows > 0 {
			rows, err := db.Select(ctx, qualified, database.SelectOptions{Limit: s.opts.MCP.SampleRows})
			if err != nil {
				return TableSchemaOutput{}, 0, err
			}
			if sample := renderSampleRows(name, cols, rows); sample != "" {
				part += "\n\n" + sample
			}
		}
		parts = append(parts, part)
	}

	return TableSchemaOutput{TableSchema: strings.Join(parts, "\n\n")}, len(parts), nil
}

func (s *Server) checkQuery(_ context.Context, _ *mcp.CallToolRequest, in CheckQueryInput) (*mcp.CallToolResult, CheckQueryOutput, error) {
	start := time.Now()
	_, msg := CheckQuery(in.Query)
	s.record("sql_query_checker", time.Since(start), 0, nil)
	return nil, CheckQueryOutput{Message: msg}, nil
}

func (s *Server) query(ctx context.Context, db *database.DB, in QueryInput) (QueryOutput, int, error) {
	if s.opts.MCP.ReadOnly {
		if ok, msg := CheckQuery(in.SQLQuery); !ok {
			return QueryOutput{}, 0, errors.New(msg)
		}
	}

	res, err := db.Query(ctx, in.SQLQuery)
	if err != nil {
		return QueryOutput{}, 0, err
	}

	if s.opts.MCP.OutputFormat == config.OutputMarkdown {
		return QueryOutput{QueryResults: markdownTable(res)}, len(res.Rows), nil
	}
	return QueryOutput{QueryResults: res.Rows}, len(res.Rows), nil
}
