// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ResetTokenTTL is the lifetime of a password reset token.
const ResetTokenTTL = 30 * time.Minute

// PasswordResetToken is a one-shot credential for password recovery.
// Consuming it sets UsedAt; a used token can never be replayed.
type PasswordResetToken struct {
	ID          ulid.ULID
	UserID      ulid.ULID
	Fingerprint string
	ExpiresAt   time.Time
	UsedAt      *time.Time
	CreatedAt   time.Time
}

// NewPasswordResetToken creates a validated PasswordResetToken for a user.
func NewPasswordResetToken(userID ulid.ULID, fingerprint string, expiresAt time.Time) (*PasswordResetToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if fingerprint == "" {
		return nil, oops.Code("RESET_INVALID_FINGERPRINT").Errorf("fingerprint cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &PasswordResetToken{
		ID:          ulid.Make(),
		UserID:      userID,
		Fingerprint: fingerprint,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}, nil
}

// IsUsable returns true if the token is unused and unexpired.
func (t *PasswordResetToken) IsUsable() bool {
	return t.IsUsableAt(time.Now())
}

// IsUsableAt returns whether the token would be usable at the given time.
func (t *PasswordResetToken) IsUsableAt(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// PasswordResetTokenRepository manages password reset token persistence.
type PasswordResetTokenRepository interface {
	// Create stores a new reset token record.
	Create(ctx context.Context, token *PasswordResetToken) error

	// GetByFingerprint retrieves a reset token by its fingerprint.
	// Returns ErrNotFound if no record matches.
	GetByFingerprint(ctx context.Context, fingerprint string) (*PasswordResetToken, error)

	// MarkUsed stamps the token's UsedAt. Returns ErrNotFound if the record
	// does not exist or was already used, so a token is consumed exactly once.
	MarkUsed(ctx context.Context, id ulid.ULID, usedAt time.Time) error
}
