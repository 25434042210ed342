package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/infrastructure/logging"
)

func newTablesCmd(c *cli) *cobra.Command {
	var schema string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbCfg := databaseConfig(c.cfg, logging.Discard())
			var names []string
			err := database.Use(cmd.Context(), dbCfg, func(db *database.DB) error {
				var err error
				names, err = db.ListSchemaTables(cmd.Context(), schema)
				return err
			})
			if err != nil {
				return fmt.Errorf("listing tables: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "schema to list (default: main)")
	return cmd
}
