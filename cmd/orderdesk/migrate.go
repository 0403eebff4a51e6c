package main

import (
	"fmt"

	"github.com/rpattn/orderdesk/internal/config"
	"github.com/rpattn/orderdesk/internal/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the postgres or sqlite source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch cfg.Source.Kind {
		case config.SourcePostgres:
			conn, err := db.NewConnection(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer conn.Close()
			return db.MigratePostgres(conn.Pool, logger)
		case config.SourceSQLite:
			sqlDB, err := db.OpenSQLite(cfg.SQLite.Path)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return db.MigrateSQLite(sqlDB, logger)
		default:
			return fmt.Errorf("source %q has no schema to migrate", cfg.Source.Kind)
		}
	},
}
