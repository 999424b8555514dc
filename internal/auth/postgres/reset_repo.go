// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tillgate/tilld/internal/auth"
)

// PasswordResetTokenRepository implements auth.PasswordResetTokenRepository
// using PostgreSQL.
type PasswordResetTokenRepository struct {
	db DB
}

// NewPasswordResetTokenRepository creates a new PasswordResetTokenRepository.
func NewPasswordResetTokenRepository(db DB) *PasswordResetTokenRepository {
	return &PasswordResetTokenRepository{db: db}
}

// Create stores a new reset token record.
func (r *PasswordResetTokenRepository) Create(ctx context.Context, token *auth.PasswordResetToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, fingerprint, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		token.ID.String(),
		token.UserID.String(),
		token.Fingerprint,
		token.ExpiresAt,
		token.UsedAt,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset_token").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByFingerprint retrieves a reset token by its fingerprint.
func (r *PasswordResetTokenRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*auth.PasswordResetToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, fingerprint, expires_at, used_at, created_at
		FROM password_reset_tokens
		WHERE fingerprint = $1
	`, fingerprint)

	var (
		idStr     string
		userIDStr string
		fp        string
		expiresAt time.Time
		usedAt    *time.Time
		createdAt time.Time
	)

	err := row.Scan(&idStr, &userIDStr, &fp, &expiresAt, &usedAt, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_BY_FINGERPRINT_FAILED").
			With("operation", "get reset token by fingerprint").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse reset token id").
			With("id", idStr).
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.PasswordResetToken{
		ID:          id,
		UserID:      userID,
		Fingerprint: fp,
		ExpiresAt:   expiresAt,
		UsedAt:      usedAt,
		CreatedAt:   createdAt,
	}, nil
}

// MarkUsed stamps the token's used_at. The used_at IS NULL guard consumes a
// token exactly once; a second consumer observes ErrNotFound.
func (r *PasswordResetTokenRepository) MarkUsed(ctx context.Context, id ulid.ULID, usedAt time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE password_reset_tokens SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`, id.String(), usedAt)
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").
			With("operation", "mark reset token used").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ auth.PasswordResetTokenRepository = (*PasswordResetTokenRepository)(nil)
