// sqlgate - injection-safe SQLite access over HTTP and MCP.
//
// This is the main entry point for the sqlgate binary. Subcommands:
//   - serve: HTTP API with the MCP tools mounted over streamable HTTP
//   - mcp: MCP tools over stdio
//   - tables: list the tables of the configured database
//   - token: mint a JWT for API clients
//   - version: print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/sqlgate/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancel on Ctrl+C or SIGTERM so every subcommand shuts down gracefully.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called explicitly above
	}
}
