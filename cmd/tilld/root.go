// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the tilld CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tilld",
		Short: "tilld - credential and session service",
		Long: `tilld is the credential and session service for Tillgate point-of-sale
deployments. It manages accounts, password hashes, access and refresh
tokens, and role-based permissions over PostgreSQL.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
