// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Client-facing error codes. The transport layer maps these to response
// statuses; any other code surfaces as an opaque internal error. Credential
// and token failures all collapse into AUTH_UNAUTHENTICATED so responses
// never reveal whether an account exists or why a token was rejected.
const (
	CodeInvalidInput    = "AUTH_INVALID_INPUT"
	CodeConflict        = "AUTH_CONFLICT"
	CodeUnauthenticated = "AUTH_UNAUTHENTICATED"
	CodeForbidden       = "AUTH_FORBIDDEN"
	CodeRateLimited     = "AUTH_RATE_LIMITED"
	CodeNotFound        = "AUTH_NOT_FOUND"
)

// CodeConfigMissing flags fatal startup misconfiguration, such as a missing
// signing secret. It is never returned from a request path.
const CodeConfigMissing = "AUTH_CONFIG_MISSING"
