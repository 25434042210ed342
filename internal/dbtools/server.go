package dbtools

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nerrad567/sqlgate/internal/audit"
	"github.com/nerrad567/sqlgate/internal/infrastructure/config"
	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/infrastructure/influxdb"
	"github.com/nerrad567/sqlgate/internal/infrastructure/logging"
)

// ServerName is the MCP implementation name announced to clients.
const ServerName = "sqlgate"

// Recorder receives one point per tool call. *influxdb.Client satisfies it.
type Recorder interface {
	WriteToolCall(tool, outcome string, duration time.Duration, rows int)
}

// Options configures the tool server.
type Options struct {
	// Database is opened afresh for every tool call.
	Database database.Config

	MCP     config.MCPConfig
	Version string
	Logger  *logging.Logger

	// Audit and Metrics are optional.
	Audit   *audit.Writer
	Metrics Recorder
}

// Server exposes the database as MCP tools.
type Server struct {
	opts   Options
	logger *logging.Logger
	server *mcp.Server
}

// New creates the tool server and registers every tool.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.MCP.OutputFormat == "" {
		opts.MCP.OutputFormat = config.OutputJSON
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger.With("component", "dbtools"),
		server: mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: opts.Version}, nil),
	}
	s.registerDatabaseTools()
	s.registerUserTools()
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// HTTPHandler serves the tools over streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunStdio serves the tools over stdin/stdout until the client disconnects
// or ctx is cancelled.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// toolFunc implements one tool against a database opened for the call.
// It returns the output and a row count for metrics.
type toolFunc[In, Out any] func(ctx context.Context, db *database.DB, in In) (Out, int, error)

// addTool registers run as tool name.
//
// Every call opens its own database through database.Use, then records an
// audit entry and a metrics point. When inBand is non-nil, failures are
// converted into an ordinary result by inBand instead of an MCP tool error.
func addTool[In, Out any](s *Server, tool *mcp.Tool, run toolFunc[In, Out], inBand func(error) Out) {
	mcp.AddTool(s.server, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()

		var (
			out  Out
			rows int
		)
		err := database.Use(ctx, s.opts.Database, func(db *database.DB) error {
			var err error
			out, rows, err = run(ctx, db, in)
			return err
		})

		s.record(tool.Name, time.Since(start), rows, err)

		if err != nil && inBand != nil {
			return nil, inBand(err), nil
		}
		return nil, out, err
	})
}

func (s *Server) record(tool string, elapsed time.Duration, rows int, err error) {
	outcome := influxdb.OutcomeOK
	details := map[string]any{"duration_ms": elapsed.Milliseconds()}
	if err != nil {
		outcome = influxdb.OutcomeError
		details["error"] = err.Error()
		s.logger.Warn("tool call failed", "tool", tool, "error", err)
	} else {
		s.logger.Debug("tool call", "tool", tool, "rows", rows, "duration", elapsed)
	}
	details["outcome"] = outcome

	if s.opts.Metrics != nil {
		s.opts.Metrics.WriteToolCall(tool, outcome, elapsed, rows)
	}
	s.opts.Audit.Record(audit.AuditLog{
		Action:     "tool_call",
		EntityType: tool,
		Source:     audit.SourceMCP,
		Details:    details,
	})
}

// qualify prefixes table with the configured schema, unless it is already
// qualified or no schema is configured.
func (s *Server) qualify(table string) string {
	if s.opts.MCP.Schema == "" {
		return table
	}
	if strings.Contains(table, ".") {
		return table
	}
	return s.opts.MCP.Schema + "." + table
}
