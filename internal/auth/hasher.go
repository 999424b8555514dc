// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2-SHA256 parameters. Old hashes carry their own iteration count in the
// encoding, so DefaultIterations can be raised without invalidating them.
const (
	DefaultIterations = 200_000
	MinIterations     = 50_000
	MaxIterations     = 10_000_000

	hashSaltLen = 16 // 128-bit salt
	hashKeyLen  = 32 // 256-bit derived key
)

// Sanity bounds applied when parsing stored hashes. Values outside these
// ranges indicate a corrupted or hostile record and verification fails closed.
const (
	maxStoredSaltLen = 64
	maxStoredKeyLen  = 128
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code(CodeInvalidInput).Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-describing encoded hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the encoded hash.
	// Malformed or out-of-bounds encodings verify as false, never as an error.
	Verify(password, encodedHash string) bool

	// NeedsRehash returns true if the hash should be recomputed with the
	// current parameters on the next successful verification.
	NeedsRehash(encodedHash string) bool
}

// PBKDF2Hasher implements PasswordHasher using PBKDF2 with SHA-256.
type PBKDF2Hasher struct {
	iterations int
}

// NewPBKDF2Hasher creates a PBKDF2Hasher with the default iteration count.
func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{iterations: DefaultIterations}
}

// NewPBKDF2HasherWithIterations creates a PBKDF2Hasher with a custom
// iteration count, clamped to MinIterations.
func NewPBKDF2HasherWithIterations(iterations int) *PBKDF2Hasher {
	if iterations < MinIterations {
		iterations = MinIterations
	}
	return &PBKDF2Hasher{iterations: iterations}
}

// Hash produces a PBKDF2-SHA256 hash of the password.
// The encoding embeds the algorithm, version, iteration count, and salt:
// $pbkdf2-sha256$v=1$i=200000$<salt>$<key>
func (h *PBKDF2Hasher) Hash(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := pbkdf2.Key([]byte(password), salt, h.iterations, hashKeyLen, sha256.New)

	encoded := fmt.Sprintf(
		"$pbkdf2-sha256$v=1$i=%d$%s$%s",
		h.iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify reports whether the password matches the encoded hash.
// The derived key is recomputed with the parameters embedded in the encoding
// and compared in constant time.
func (h *PBKDF2Hasher) Verify(password, encodedHash string) bool {
	iterations, salt, expectedKey, ok := parseEncodedHash(encodedHash)
	if !ok {
		return false
	}

	computed := pbkdf2.Key([]byte(password), salt, iterations, len(expectedKey), sha256.New)

	return subtle.ConstantTimeCompare(computed, expectedKey) == 1
}

// NeedsRehash returns true if the hash uses a different algorithm or an
// iteration count below the hasher's current setting.
func (h *PBKDF2Hasher) NeedsRehash(encodedHash string) bool {
	iterations, _, _, ok := parseEncodedHash(encodedHash)
	if !ok {
		return true
	}
	return iterations < h.iterations
}

// parseEncodedHash splits and validates a stored hash.
// Returns ok=false on any structural or bounds violation.
func parseEncodedHash(encodedHash string) (iterations int, salt, key []byte, ok bool) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return 0, nil, nil, false
	}
	if parts[1] != "pbkdf2-sha256" {
		return 0, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != 1 {
		return 0, nil, nil, false
	}

	if _, err := fmt.Sscanf(parts[3], "i=%d", &iterations); err != nil {
		return 0, nil, nil, false
	}
	if iterations < MinIterations || iterations > MaxIterations {
		return 0, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 || len(salt) > maxStoredSaltLen {
		return 0, nil, nil, false
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > maxStoredKeyLen {
		return 0, nil, nil, false
	}

	return iterations, salt, key, true
}
