package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doctrack/doctrack/internal/app"
	"github.com/doctrack/doctrack/internal/database/migrations"
)

func migrateCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply every pending schema migration to the configured database.

With --check nothing is applied; the command fails when the schema is
missing, dirty or behind the binary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, dialect, err := app.OpenDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if check {
				if err := migrations.CheckDBMigrationStatus(db, dialect); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", dialect)
				return nil
			}
			if err := migrations.MigrateUp(db, dialect); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema migrated\n", dialect)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "only verify that the schema is current")
	return cmd
}
