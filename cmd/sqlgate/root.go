package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nerrad567/sqlgate/internal/infrastructure/config"
	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/infrastructure/logging"
)

// Defaults for the global flags.
const (
	defaultEnvFile = ".env"
	configEnvVar   = "SQLGATE_CONFIG"
)

// cli carries the global flags and the configuration loaded from them.
type cli struct {
	configPath string
	envFile    string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "sqlgate",
		Short:         "Injection-safe SQLite access over HTTP and MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv(configEnvVar),
		"path to config.yaml (default: built-in defaults; env "+configEnvVar+")")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", defaultEnvFile,
		"dotenv file loaded before environment overrides")

	root.AddCommand(
		newServeCmd(c),
		newMCPCmd(c),
		newTablesCmd(c),
		newTokenCmd(c),
		newVersionCmd(),
	)
	return root
}

// load reads the dotenv file, then the YAML config with environment
// overrides. A missing default dotenv file is not an error.
func (c *cli) load() error {
	if c.envFile != "" {
		err := godotenv.Load(c.envFile)
		if err != nil && !(errors.Is(err, fs.ErrNotExist) && c.envFile == defaultEnvFile) {
			return fmt.Errorf("loading env file: %w", err)
		}
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg
	return nil
}

// databaseConfig maps the database section onto the data-access config.
func databaseConfig(cfg *config.Config, log *logging.Logger) database.Config {
	dbCfg := database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	}
	if cfg.Database.LogStatements {
		dbCfg.Logger = log.With("component", "database")
	}
	return dbCfg
}
