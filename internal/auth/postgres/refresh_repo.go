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

// RefreshTokenRepository implements auth.RefreshTokenRepository using
// PostgreSQL. Records are never deleted; revocation is the only mutation.
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a new refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, fingerprint, expires_at, revoked_at, replaced_by_fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		token.ID.String(),
		token.UserID.String(),
		token.Fingerprint,
		token.ExpiresAt,
		token.RevokedAt,
		token.ReplacedByFingerprint,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("REFRESH_CREATE_FAILED").
			With("operation", "insert refresh_token").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByFingerprint retrieves a token by its fingerprint.
func (r *RefreshTokenRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*auth.RefreshToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, fingerprint, expires_at, revoked_at, replaced_by_fingerprint, created_at
		FROM refresh_tokens
		WHERE fingerprint = $1
	`, fingerprint)

	token, err := scanRefreshToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_GET_BY_FINGERPRINT_FAILED").
			With("operation", "get refresh token by fingerprint").
			Wrap(err)
	}
	return token, nil
}

// Revoke marks the token revoked. The revoked_at IS NULL guard means a
// concurrent revoke or rotation of the same token wins exactly once;
// the loser observes ErrNotFound.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id ulid.ULID, revokedAt time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`, id.String(), revokedAt)
	if err != nil {
		return oops.Code("REFRESH_REVOKE_FAILED").
			With("operation", "revoke refresh_token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("REFRESH_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Rotate revokes the old record, stamps its replaced_by_fingerprint, and
// creates the replacement inside a single transaction. The revoked_at IS
// NULL guard makes concurrent rotations of the same token resolve to one
// winner; the loser gets ErrNotFound and nothing is committed.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, old, replacement *auth.RefreshToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("REFRESH_ROTATE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2, replaced_by_fingerprint = $3
		WHERE id = $1 AND revoked_at IS NULL
	`, old.ID.String(), old.RevokedAt, old.ReplacedByFingerprint)
	if err != nil {
		return oops.Code("REFRESH_ROTATE_FAILED").
			With("operation", "revoke old refresh_token").
			With("id", old.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("REFRESH_NOT_FOUND").
			With("id", old.ID.String()).
			Wrap(auth.ErrNotFound)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, fingerprint, expires_at, revoked_at, replaced_by_fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		replacement.ID.String(),
		replacement.UserID.String(),
		replacement.Fingerprint,
		replacement.ExpiresAt,
		replacement.RevokedAt,
		replacement.ReplacedByFingerprint,
		replacement.CreatedAt,
	)
	if err != nil {
		return oops.Code("REFRESH_ROTATE_FAILED").
			With("operation", "insert replacement refresh_token").
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("REFRESH_ROTATE_FAILED").
			With("operation", "commit rotation").
			Wrap(err)
	}
	return nil
}

// scanRefreshToken scans a single row into a RefreshToken.
// Callers are responsible for handling pgx.ErrNoRows.
func scanRefreshToken(row pgx.Row) (*auth.RefreshToken, error) {
	var (
		idStr       string
		userIDStr   string
		fingerprint string
		expiresAt   time.Time
		revokedAt   *time.Time
		replacedBy  *string
		createdAt   time.Time
	)

	err := row.Scan(&idStr, &userIDStr, &fingerprint, &expiresAt, &revokedAt, &replacedBy, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("REFRESH_SCAN_FAILED").
			With("operation", "scan refresh_token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("REFRESH_INVALID_ID").
			With("operation", "parse refresh token id").
			With("id", idStr).
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("REFRESH_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.RefreshToken{
		ID:                    id,
		UserID:                userID,
		Fingerprint:           fingerprint,
		ExpiresAt:             expiresAt,
		RevokedAt:             revokedAt,
		ReplacedByFingerprint: replacedBy,
		CreatedAt:             createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
