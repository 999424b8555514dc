// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

// Package httpapi exposes the credential and session operations over HTTP.
//
// The server follows the same lifecycle pattern as the observability server:
//
//	srv, err := httpapi.NewServer(deps)
//	errCh, err := srv.Start()
//	defer srv.Stop(ctx)
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/tillgate/tilld/internal/auth"
	"github.com/tillgate/tilld/internal/observability"
)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Addr       string
	Sessions   *auth.SessionService
	Issuer     *auth.AccessTokenIssuer
	Limiter    *auth.RateLimiter
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	RefreshTTL time.Duration
	// DevMode exposes password reset tokens in forgot-password responses.
	// Must be false in production deployments.
	DevMode bool
}

// Server is the tilld HTTP API server.
type Server struct {
	addr       string
	sessions   *auth.SessionService
	issuer     *auth.AccessTokenIssuer
	limiter    *auth.RateLimiter
	logger     *slog.Logger
	metrics    *observability.Metrics
	refreshTTL time.Duration
	devMode    bool

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func NewServer(deps Deps) (*Server, error) {
	if deps.Sessions == nil {
		return nil, oops.Code(auth.CodeConfigMissing).Errorf("session service is required")
	}
	if deps.Issuer == nil {
		return nil, oops.Code(auth.CodeConfigMissing).Errorf("access token issuer is required")
	}
	if deps.Limiter == nil {
		return nil, oops.Code(auth.CodeConfigMissing).Errorf("rate limiter is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.RefreshTTL <= 0 {
		deps.RefreshTTL = auth.RefreshTokenTTL
	}

	return &Server{
		addr:       deps.Addr,
		sessions:   deps.Sessions,
		issuer:     deps.Issuer,
		limiter:    deps.Limiter,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		refreshTTL: deps.RefreshTTL,
		devMode:    deps.DevMode,
	}, nil
}

// Start begins serving the API. It returns an error channel that receives
// any server failure after startup; the channel is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
