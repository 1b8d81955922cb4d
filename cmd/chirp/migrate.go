package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/alphabot-ai/chirp/internal/config"
	"github.com/alphabot-ai/chirp/internal/store/postgres"
	"github.com/alphabot-ai/chirp/internal/store/sqlite"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply pending schema migrations to the configured database. PostgreSQL
uses goose migrations; SQLite applies its embedded schema.`,
		RunE: runMigrate,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// migratePostgres is swapped in tests.
var migratePostgres = postgres.Migrate

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	ctx := commandContext(cmd)

	cmd.Printf("Running %s migrations...\n", cfg.DBDriver)
	switch cfg.DBDriver {
	case config.DriverPostgres:
		if err := migratePostgres(ctx, cfg.DBDSN); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
		}
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.DBDSN)
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "apply schema").Wrap(err)
		}
		if err := st.Close(); err != nil {
			return oops.Code("MIGRATION_FAILED").Wrap(err)
		}
	default:
		return oops.Code("CONFIG_INVALID").Errorf("unknown db_driver %q", cfg.DBDriver)
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
