package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/sqlgate/internal/dbtools"
	"github.com/nerrad567/sqlgate/internal/infrastructure/config"
	"github.com/nerrad567/sqlgate/internal/infrastructure/logging"
)

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP database tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context(), c.cfg)
		},
	}
}

// runMCP serves the tools on stdin/stdout until the client disconnects or
// ctx is cancelled. Logs go to stderr so they never corrupt the protocol
// stream.
func runMCP(ctx context.Context, cfg *config.Config) error {
	log := logging.NewWithWriter(cfg.Logging, version, os.Stderr)

	dbCfg := databaseConfig(cfg, log)
	if err := prepareDatabase(ctx, cfg, dbCfg, log); err != nil {
		return err
	}

	writer, stopAudit := startAuditWriter(dbCfg, log)
	defer stopAudit()

	tools := dbtools.New(dbtools.Options{
		Database: dbCfg,
		MCP:      cfg.MCP,
		Version:  version,
		Logger:   log,
		Audit:    writer,
	})

	log.Info("serving MCP tools over stdio", "database", dbCfg.Path)
	if err := tools.RunStdio(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}
