// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshTokenTTL is the lifetime of a refresh token.
const RefreshTokenTTL = 30 * 24 * time.Hour

// RefreshToken represents one outstanding (or historical) session renewal
// credential. Records are never deleted: a revoked token with its
// ReplacedByFingerprint pointer forms an audit chain for replay forensics.
type RefreshToken struct {
	ID                    ulid.ULID
	UserID                ulid.ULID
	Fingerprint           string
	ExpiresAt             time.Time
	RevokedAt             *time.Time
	ReplacedByFingerprint *string
	CreatedAt             time.Time
}

// NewRefreshToken creates a validated RefreshToken record for a user.
func NewRefreshToken(userID ulid.ULID, fingerprint string, expiresAt time.Time) (*RefreshToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("REFRESH_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if fingerprint == "" {
		return nil, oops.Code("REFRESH_INVALID_FINGERPRINT").Errorf("fingerprint cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("REFRESH_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &RefreshToken{
		ID:          ulid.Make(),
		UserID:      userID,
		Fingerprint: fingerprint,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}, nil
}

// IsActive returns true if the token is neither revoked nor expired.
// Expiry is derived from the stored timestamp at read time; there is no
// stored expired flag to go stale.
func (t *RefreshToken) IsActive() bool {
	return t.IsActiveAt(time.Now())
}

// IsActiveAt returns whether the token would be active at the given time.
func (t *RefreshToken) IsActiveAt(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// RefreshTokenRepository manages refresh token persistence.
type RefreshTokenRepository interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, token *RefreshToken) error

	// GetByFingerprint retrieves a token by its fingerprint.
	// Returns ErrNotFound if no record matches.
	GetByFingerprint(ctx context.Context, fingerprint string) (*RefreshToken, error)

	// Revoke marks the token revoked at the given time. Returns ErrNotFound
	// if the record does not exist or is already revoked, so concurrent
	// rotations of the same token resolve to exactly one winner.
	Revoke(ctx context.Context, id ulid.ULID, revokedAt time.Time) error

	// Rotate atomically revokes the old record, stamps it with the new
	// token's fingerprint, and creates the replacement record. The two
	// writes are a single transaction: either both apply or neither does.
	// Returns ErrNotFound if the old record was already revoked by a
	// concurrent rotation.
	Rotate(ctx context.Context, old *RefreshToken, replacement *RefreshToken) error
}
