package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"llm_billing_gateway/internal/app"
	"llm_billing_gateway/internal/storage"
)

func newMigrateCommand(opts Options) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	run := func(direction string) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if a.DB == nil {
					return errors.New("migrations need STORAGE_BACKEND=postgres")
				}
				migrator, err := storage.NewMigrator(a.DB)
				if err != nil {
					return err
				}

				if direction == "up" {
					err = migrator.Up()
				} else {
					err = migrator.Down()
				}
				if err != nil {
					return err
				}

				version, dirty, err := migrator.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
				return nil
			})
		}
	}

	migrateCmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", RunE: run("up")},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", RunE: run("down")},
	)
	return migrateCmd
}
