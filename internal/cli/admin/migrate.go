package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/database"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <up|down>",
		Short: "Apply or roll back database migrations",
		Long:  "Apply all pending migrations (up) or roll back the latest one (down). Only the postgres backend has migrations.",
		Args:  cobra.ExactArgs(1),
		ValidArgs: []string{
			string(database.MigrateUp),
			string(database.MigrateDown),
		},
		RunE: runMigrate,
	}

	cmd.Flags().String("source", "", "Migrations source URL (defaults to DOCQA_MIGRATIONS_SOURCE)")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	direction, err := parseDirection(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrations only apply to the postgres backend, configured backend is %q", cfg.StoreBackend)
	}
	logger := setupLogger(cfg)

	source := cfg.MigrationsSource
	if s, _ := cmd.Flags().GetString("source"); s != "" {
		source = s
	}

	if err := database.Migrate(cfg.DatabaseURL, source, direction, logger); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", direction, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", direction)
	return nil
}

func parseDirection(arg string) (database.MigrateDirection, error) {
	switch d := database.MigrateDirection(arg); d {
	case database.MigrateUp, database.MigrateDown:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q, expected up or down", arg)
	}
}
