// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tillgate/tilld/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending database migrations against the PostgreSQL database.`,
		RunE:  runMigrateUp,
	}

	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Long:  `Roll back every applied migration. This drops all tables and data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newMigrator()
			if err != nil {
				return err
			}
			defer closeMigrator(cmd, m)

			cmd.Println("Rolling back migrations...")
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("Rollback complete")
			return nil
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newMigrator()
			if err != nil {
				return err
			}
			defer closeMigrator(cmd, m)

			version, dirty, err := m.Version()
			if err != nil {
				return err
			}

			if version == 0 {
				cmd.Println("No migrations applied")
			} else {
				name, nameErr := store.MigrationName(version)
				if nameErr != nil || name == "" {
					name = "unknown"
				}
				cmd.Printf("Current version: %d (%s)\n", version, name)
			}
			if dirty {
				cmd.Println("WARNING: dirty state, manual intervention required")
			}

			pending, err := m.PendingMigrations()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				cmd.Println("No pending migrations")
			} else {
				cmd.Printf("Pending migrations: %v\n", pending)
			}
			return nil
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "force",
		Short: "Force the migration version without running migrations",
		Long: `Set the recorded migration version without applying or rolling back
anything. Use only to recover from a dirty state after manually fixing
the database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if version < 0 {
				return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
			}

			m, err := newMigrator()
			if err != nil {
				return err
			}
			defer closeMigrator(cmd, m)

			if err := m.Force(version); err != nil {
				return err
			}
			cmd.Printf("Forced version to %d\n", version)
			return nil
		},
	}

	cmd.Flags().IntVar(&version, "version", -1, "version to force")
	//nolint:errcheck // flag exists, registered above
	cmd.MarkFlagRequired("version")

	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

// newMigrator builds a Migrator from the DATABASE_URL environment variable.
// Migration commands run in contexts (CI, init containers) where the full
// config file often isn't mounted, so the URL alone is enough.
func newMigrator() (*store.Migrator, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	return store.NewMigrator(databaseURL)
}

func closeMigrator(cmd *cobra.Command, m *store.Migrator) {
	if err := m.Close(); err != nil {
		cmd.PrintErrf("warning: failed to close migrator: %v\n", err)
	}
}
