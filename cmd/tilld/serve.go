// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tillgate/tilld/internal/auth"
	authpg "github.com/tillgate/tilld/internal/auth/postgres"
	"github.com/tillgate/tilld/internal/config"
	"github.com/tillgate/tilld/internal/httpapi"
	"github.com/tillgate/tilld/internal/logging"
	"github.com/tillgate/tilld/internal/observability"
	"github.com/tillgate/tilld/internal/store"
	"github.com/tillgate/tilld/internal/xdg"
)

// shutdownTimeout is the maximum time to wait for in-flight requests during
// graceful shutdown.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the tilld HTTP API server, serving the credential and session
endpoints plus a metrics/health endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configFile
			if path == "" {
				path = xdg.DefaultConfigPath()
			}
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().String("listen_addr", "", "API listen address")
	cmd.Flags().String("metrics_addr", "", "metrics/health HTTP address")
	cmd.Flags().String("log_format", "", "log format (json or text)")

	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	logging.SetDefault("tilld", version, cfg.LogFormat)
	logger := slog.Default()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger.Info("connected to database")

	// Observability server first so the limiter can register its gauge.
	obsServer := observability.NewServer(cfg.MetricsAddr, func() bool {
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	})

	users := authpg.NewUserRepository(pool)
	refresh := authpg.NewRefreshTokenRepository(pool)
	resets := authpg.NewPasswordResetTokenRepository(pool)
	roles := authpg.NewRoleRepository(pool)

	resolver := auth.NewPermissionResolver(roles)

	issuer, err := auth.NewAccessTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, resolver)
	if err != nil {
		return err
	}
	issuer = issuer.WithTTL(cfg.JWT.AccessTTL)

	hasher := auth.NewPBKDF2HasherWithIterations(cfg.Hashing.Iterations)

	sessions, err := auth.NewSessionServiceWithLogger(users, refresh, resets, roles, hasher, issuer, logger)
	if err != nil {
		return err
	}
	sessions = sessions.WithTTLs(cfg.Sessions.RefreshTTL, cfg.Sessions.ResetTTL)

	limiter := auth.NewRateLimiterWithRegistry(auth.RateLimiterConfig{
		Window: cfg.RateLimit.Window,
		Max:    cfg.RateLimit.Max,
	}, obsServer.Registry())
	defer limiter.Close()

	apiServer, err := httpapi.NewServer(httpapi.Deps{
		Addr:       cfg.ListenAddr,
		Sessions:   sessions,
		Issuer:     issuer,
		Limiter:    limiter,
		Logger:     logger,
		Metrics:    obsServer.Metrics(),
		RefreshTTL: cfg.Sessions.RefreshTTL,
		DevMode:    !cfg.Production(),
	})
	if err != nil {
		return err
	}

	obsErrCh, err := obsServer.Start()
	if err != nil {
		return oops.With("operation", "start observability server").Wrap(err)
	}

	apiErrCh, err := apiServer.Start()
	if err != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("failed to stop observability server during cleanup", "error", stopErr)
		}
		return oops.With("operation", "start api server").Wrap(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("tilld started")
	logger.Info("tilld ready",
		"listen_addr", apiServer.Addr(),
		"metrics_addr", obsServer.Addr(),
		"env", cfg.Env,
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-apiErrCh:
		if err != nil {
			logger.Error("api server failed", "error", err)
		}
	case err := <-obsErrCh:
		if err != nil {
			logger.Error("observability server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
