package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/sqlgate/internal/api"
	"github.com/nerrad567/sqlgate/internal/audit"
	"github.com/nerrad567/sqlgate/internal/dbtools"
	"github.com/nerrad567/sqlgate/internal/infrastructure/config"
	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/infrastructure/influxdb"
	"github.com/nerrad567/sqlgate/internal/infrastructure/logging"
	"github.com/nerrad567/sqlgate/internal/infrastructure/mqtt"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the MCP tools over streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c.cfg)
		},
	}
}

// runServe wires every component and blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - cfg: Loaded configuration
//
// Returns:
//   - error: nil on clean shutdown, or the first startup failure
func runServe(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting sqlgate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	dbCfg := databaseConfig(cfg, log)
	if err := prepareDatabase(ctx, cfg, dbCfg, log); err != nil {
		return err
	}

	deps := api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		MCP:      cfg.MCP,
		Database: dbCfg,
		Logger:   log,
		MCPToken: cfg.MCPToken(),
		Version:  version,
	}
	toolOpts := dbtools.Options{
		Database: dbCfg,
		MCP:      cfg.MCP,
		Version:  version,
		Logger:   log,
	}

	// Change events (optional)
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.With("component", "mqtt"))
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		deps.Changes = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Metrics (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.WritePoint("startup",
			map[string]string{"version": version},
			map[string]interface{}{
				"mqtt_enabled": cfg.MQTT.Enabled,
				"mcp_enabled":  cfg.MCP.Enabled,
				"read_only":    cfg.MCP.ReadOnly,
			})
		deps.Metrics = influxClient
		toolOpts.Metrics = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	writer, stopAudit := startAuditWriter(dbCfg, log)
	defer stopAudit()
	deps.Audit = writer
	toolOpts.Audit = writer

	if cfg.MCP.Enabled {
		deps.MCPHandler = dbtools.New(toolOpts).HTTPHandler()
		log.Info("MCP tools mounted", "path", cfg.MCP.Path, "read_only", cfg.MCP.ReadOnly)
	}

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("initialisation complete, waiting for shutdown signal", "address", cfg.Address())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// prepareDatabase applies pending migrations when enabled and verifies the
// database is reachable.
func prepareDatabase(ctx context.Context, cfg *config.Config, dbCfg database.Config, log *logging.Logger) error {
	return database.Use(ctx, dbCfg, func(db *database.DB) error {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check: %w", err)
		}
		if !cfg.Database.Migrate {
			return nil
		}
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		applied, pending, err := db.GetMigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}
		log.Info("database migrations complete",
			"path", dbCfg.Path,
			"applied", len(applied),
			"pending", len(pending),
		)
		return nil
	})
}

// startAuditWriter runs an audit writer over its own database handle.
// The returned stop function drains pending entries and closes the handle.
func startAuditWriter(dbCfg database.Config, log *logging.Logger) (*audit.Writer, func()) {
	auditDB := database.New(dbCfg)
	writer := audit.NewWriter(audit.NewSQLRepository(auditDB), log.With("component", "audit"), audit.DefaultBufferSize)

	// Not derived from the signal context so entries queued during shutdown
	// are still written.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		writer.Run(ctx)
		close(done)
	}()

	return writer, func() {
		cancel()
		<-done
		if err := auditDB.Close(); err != nil {
			log.Error("error closing audit database", "error", err)
		}
	}
}
