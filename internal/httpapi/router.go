// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tillgate/tilld/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/auth/v1", func(r chi.Router) {
		// Credential endpoints get the fixed-window limiter; nothing else
		// in the API does.
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)

			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/logout", s.handleLogout)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/me", s.handleMe)

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermManageUsers))
				r.Post("/roles/assign", s.handleAssignRole)
			})
		})
	})

	return r
}
