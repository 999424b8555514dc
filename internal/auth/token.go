// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"github.com/samber/oops"
)

// OpaqueTokenBytes is the entropy of a generated opaque token (512 bits).
const OpaqueTokenBytes = 64

// GenerateOpaqueToken creates a secure random opaque token and its fingerprint.
// Returns (raw_token, sha256_fingerprint, error). The raw token goes to the
// client; only the fingerprint is ever persisted.
func GenerateOpaqueToken() (token, fingerprint string, err error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", OpaqueTokenBytes).
			Wrap(err)
	}

	token = base64.RawURLEncoding.EncodeToString(buf)
	fingerprint = Fingerprint(token)

	return token, fingerprint, nil
}

// Fingerprint computes the SHA-256 digest of an opaque token, hex encoded.
// Fingerprints are the only token representation stored server-side and serve
// as the lookup index; they are not reversible.
func Fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// MatchesFingerprint checks a raw token against a stored fingerprint using
// constant-time comparison.
func MatchesFingerprint(token, fingerprint string) bool {
	if token == "" || fingerprint == "" {
		return false
	}
	computed := Fingerprint(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(fingerprint)) == 1
}
