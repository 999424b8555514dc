// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tillgate/tilld/internal/auth"
	authpg "github.com/tillgate/tilld/internal/auth/postgres"
	"github.com/tillgate/tilld/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout       time.Duration
	adminEmail    string
	adminPassword string
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed roles and an initial admin account",
		Long: `Creates the built-in roles with their permission sets and, when
--admin-email and --admin-password are given, an initial administrator
account. This command is idempotent - it will not create duplicates if
run multiple times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().StringVar(&cfg.adminEmail, "admin-email", "", "email for the initial admin account")
	cmd.Flags().StringVar(&cfg.adminPassword, "admin-password", "", "password for the initial admin account")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, cfg *seedConfig) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	if (cfg.adminEmail == "") != (cfg.adminPassword == "") {
		return oops.Code("CONFIG_INVALID").Errorf("--admin-email and --admin-password must be given together")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	roles := authpg.NewRoleRepository(pool)

	// Built-in roles. Admin holds every permission; Cashier is limited to
	// the sales floor.
	builtins := []struct {
		name  string
		perms []auth.Permission
	}{
		{"Admin", auth.AllPermissions()},
		{"Cashier", []auth.Permission{auth.PermViewProducts, auth.PermCreateSale}},
	}

	for _, b := range builtins {
		if err := roles.EnsureRole(ctx, b.name, b.perms); err != nil {
			return oops.Code("SEED_FAILED").With("role", b.name).Wrap(err)
		}
		cmd.Printf("Ensured role: %s\n", b.name)
	}

	if cfg.adminEmail != "" {
		if err := seedAdmin(ctx, cmd, pool, roles, cfg); err != nil {
			return err
		}
	}

	cmd.Println("Seeding complete")
	return nil
}

// seedAdmin creates the initial admin account and grants it the Admin role.
// An existing account with the same email is left as-is but still gets the
// role grant, so a partially applied seed converges on re-run.
func seedAdmin(ctx context.Context, cmd *cobra.Command, db authpg.DB, roles *authpg.RoleRepository, cfg *seedConfig) error {
	users := authpg.NewUserRepository(db)

	if err := auth.ValidatePassword(cfg.adminPassword); err != nil {
		return err
	}

	user, err := users.GetByEmail(ctx, auth.NormalizeEmail(cfg.adminEmail))
	switch {
	case err == nil:
		cmd.Println("Admin account already exists, skipping create")
	case errors.Is(err, auth.ErrNotFound):
		user, err = auth.NewUser(cfg.adminEmail, "Admin", "", "")
		if err != nil {
			return err
		}
		user.PasswordHash, err = auth.NewPBKDF2Hasher().Hash(cfg.adminPassword)
		if err != nil {
			return err
		}
		if err := users.Create(ctx, user); err != nil {
			return oops.Code("SEED_FAILED").With("operation", "create admin user").Wrap(err)
		}
		cmd.Printf("Created admin account: %s\n", user.Email)
	default:
		return oops.Code("SEED_FAILED").With("operation", "get admin user").Wrap(err)
	}

	role, err := roles.GetByName(ctx, "Admin")
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "get Admin role").Wrap(err)
	}
	if err := roles.Assign(ctx, user.ID, role.ID); err != nil {
		return oops.Code("SEED_FAILED").With("operation", "assign Admin role").Wrap(err)
	}
	cmd.Println("Granted Admin role")
	return nil
}
