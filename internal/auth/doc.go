// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

// Package auth provides the credential and session management core for
// Tillgate.
//
// # Domain Types
//
// Domain types (User, RefreshToken, PasswordResetToken) should be created
// using their respective constructors:
//   - NewUser - creates a User with a validated, normalized email
//   - NewRefreshToken - creates a RefreshToken with validated owner and expiry
//   - NewPasswordResetToken - creates a PasswordResetToken with validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// SessionService coordinates register, login, refresh, logout, and password
// recovery over the repositories. AccessTokenIssuer signs and verifies
// self-contained bearer tokens, PermissionResolver computes role-derived
// permission sets, and RateLimiter throttles the authentication endpoints.
//
// Raw secrets (passwords, opaque tokens) exist only in transit. Storage
// holds password hashes and token fingerprints exclusively.
package auth
