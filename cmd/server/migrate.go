package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"nekoscout/internal/config"
	"nekoscout/internal/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the request log schema",
		Long: `Apply or roll back database migrations against DATABASE_URL.

Examples:
  nekoscout migrate up        # Apply all pending migrations
  nekoscout migrate down      # Roll back the last migration
  nekoscout migrate version   # Show the current schema version`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(cmd, func(db *database.DB, path string) error {
					if err := db.MigrateUp(path); err != nil {
						return err
					}
					return printVersion(cmd, db, path)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(cmd, func(db *database.DB, path string) error {
					if err := db.MigrateDown(path); err != nil {
						return err
					}
					return printVersion(cmd, db, path)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(cmd, func(db *database.DB, path string) error {
					return printVersion(cmd, db, path)
				})
			},
		},
	)

	return cmd
}

func withDatabase(cmd *cobra.Command, fn func(db *database.DB, migrationsPath string) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.Database.Enabled() {
		return errors.New("DATABASE_URL is not set")
	}

	db, err := database.Open(cmd.Context(), cfg.Database.URL, poolConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("error closing database connection: %v", err)
		}
	}()

	return fn(db, getMigrationsPath(cfg))
}

func printVersion(cmd *cobra.Command, db *database.DB, path string) error {
	state, err := db.MigrationVersion(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema: %s\n", state)
	return nil
}
