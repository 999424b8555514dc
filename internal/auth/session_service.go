// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/tillgate/tilld/pkg/errutil"
)

// dummyPasswordHash is verified against when a user doesn't exist so that
// login response time stays consistent regardless of account existence.
// This is NOT a real credential - it is a fake hash that never matches.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$pbkdf2-sha256$v=1$i=200000$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// TokenPair is the result of an operation that establishes a session: a
// self-contained access token plus a raw opaque refresh token. The refresh
// token exists only in transit; the store keeps its fingerprint.
type TokenPair struct {
	AccessToken          string
	AccessTokenExpiresAt time.Time
	RefreshToken         string
}

// RegisterInput carries the profile fields captured at registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// SessionService orchestrates register, login, refresh, logout, and password
// recovery as atomic operations over the credential stores.
type SessionService struct {
	users      UserRepository
	refresh    RefreshTokenRepository
	resets     PasswordResetTokenRepository
	roles      RoleRepository
	hasher     PasswordHasher
	issuer     *AccessTokenIssuer
	logger     *slog.Logger
	refreshTTL time.Duration
	resetTTL   time.Duration
}

// NewSessionService creates a SessionService.
func NewSessionService(
	users UserRepository,
	refresh RefreshTokenRepository,
	resets PasswordResetTokenRepository,
	roles RoleRepository,
	hasher PasswordHasher,
	issuer *AccessTokenIssuer,
) (*SessionService, error) {
	return NewSessionServiceWithLogger(users, refresh, resets, roles, hasher, issuer, slog.Default())
}

// NewSessionServiceWithLogger creates a SessionService with an explicit
// logger for best-effort failure reporting.
func NewSessionServiceWithLogger(
	users UserRepository,
	refresh RefreshTokenRepository,
	resets PasswordResetTokenRepository,
	roles RoleRepository,
	hasher PasswordHasher,
	issuer *AccessTokenIssuer,
	logger *slog.Logger,
) (*SessionService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("users repository is required")
	}
	if refresh == nil {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("refresh token repository is required")
	}
	if resets == nil {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("reset token repository is required")
	}
	if roles == nil {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("roles repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("access token issuer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("logger is required")
	}

	return &SessionService{
		users:      users,
		refresh:    refresh,
		resets:     resets,
		roles:      roles,
		hasher:     hasher,
		issuer:     issuer,
		logger:     logger,
		refreshTTL: RefreshTokenTTL,
		resetTTL:   ResetTokenTTL,
	}, nil
}

// WithTTLs returns a copy of the service using the given refresh and reset
// token lifetimes. Non-positive values keep the current lifetime, so callers
// can override either one independently.
func (s *SessionService) WithTTLs(refreshTTL, resetTTL time.Duration) *SessionService {
	clone := *s
	if refreshTTL > 0 {
		clone.refreshTTL = refreshTTL
	}
	if resetTTL > 0 {
		clone.resetTTL = resetTTL
	}
	return &clone
}

// Register creates a new account and establishes its first session.
// Fails with AUTH_CONFLICT if the normalized email is taken; the error does
// not name the conflicting field.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*TokenPair, error) {
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	user, err := NewUser(in.Email, in.FirstName, in.LastName, in.Phone)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, user.Email); err == nil {
		return nil, oops.Code(CodeConflict).Errorf("unable to register with provided credentials")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	user.PasswordHash, err = s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// The unique index may still trip under a concurrent registration.
		if errutil.Code(err) == CodeConflict {
			return nil, oops.Code(CodeConflict).Errorf("unable to register with provided credentials")
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	return s.establishSession(ctx, user)
}

// Login authenticates by email and password and establishes a fresh session.
// A missing account, a wrong password, and a disabled account all return the
// identical AUTH_UNAUTHENTICATED error, and password verification runs even
// for missing accounts to keep response time consistent.
func (s *SessionService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	normalized := NormalizeEmail(email)

	user, lookupErr := s.users.GetByEmail(ctx, normalized)

	targetHash := dummyPasswordHash
	userExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid := s.hasher.Verify(password, targetHash)

	if !userExists || !valid || !user.IsActive() {
		return nil, oops.Code(CodeUnauthenticated).Errorf("invalid credentials")
	}

	// Upgrade the stored hash when parameters have moved on. Login succeeds
	// regardless of the outcome.
	if s.hasher.NeedsRehash(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			user.PasswordHash = newHash
			user.UpdatedAt = time.Now()
			if updateErr := s.users.Update(ctx, user); updateErr != nil {
				errutil.LogError(s.logger, "password hash upgrade failed", updateErr)
			}
		}
	}

	return s.establishSession(ctx, user)
}

// Refresh rotates a refresh token and issues a fresh access token for its
// owner, re-resolving permissions at that moment. An absent, expired,
// revoked, or replayed token fails with AUTH_UNAUTHENTICATED; of two
// concurrent refreshes of the same raw token exactly one succeeds.
func (s *SessionService) Refresh(ctx context.Context, rawRefreshToken string) (*TokenPair, error) {
	if rawRefreshToken == "" {
		return nil, oops.Code(CodeUnauthenticated).Errorf("invalid session")
	}

	old, err := s.refresh.GetByFingerprint(ctx, Fingerprint(rawRefreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUnauthenticated).Errorf("invalid session")
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "get refresh token by fingerprint").
			Wrap(err)
	}
	if !old.IsActive() {
		return nil, oops.Code(CodeUnauthenticated).Errorf("invalid session")
	}

	user, err := s.users.GetByID(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUnauthenticated).Errorf("invalid session")
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	if !user.IsActive() {
		return nil, oops.Code(CodeUnauthenticated).Errorf("invalid session")
	}

	accessToken, expiresAt, err := s.issuer.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	newRaw, newFingerprint, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}

	replacement, err := NewRefreshToken(user.ID, newFingerprint, time.Now().Add(s.refreshTTL))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	old.RevokedAt = &now
	old.ReplacedByFingerprint = &newFingerprint

	// Revoke-old and create-new commit as one transaction; a concurrent
	// rotation of the same token loses with ErrNotFound.
	if err := s.refresh.Rotate(ctx, old, replacement); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUnauthenticated).Errorf("invalid session")
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "rotate refresh token").
			Wrap(err)
	}

	return &TokenPair{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: expiresAt,
		RefreshToken:         newRaw,
	}, nil
}

// Logout revokes the refresh token if it is found and active. It is
// best-effort and idempotent: an empty, unknown, or already inactive token
// still succeeds with no side effect.
func (s *SessionService) Logout(ctx context.Context, rawRefreshToken string) error {
	if rawRefreshToken == "" {
		return nil
	}

	token, err := s.refresh.GetByFingerprint(ctx, Fingerprint(rawRefreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "get refresh token by fingerprint").
			Wrap(err)
	}
	if !token.IsActive() {
		return nil
	}

	if err := s.refresh.Revoke(ctx, token.ID, time.Now()); err != nil {
		// A concurrent revoke winning the race is still a successful logout.
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "revoke refresh token").
			Wrap(err)
	}
	return nil
}

// ForgotPassword creates a password reset token for the account if it
// exists. The result is uniform either way: an unknown email returns success
// with an empty token so responses cannot be used for enumeration. The raw
// token is returned for delivery through a non-production-observable channel
// and must never reach a production response body.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	raw, fingerprint, err := GenerateOpaqueToken()
	if err != nil {
		return "", err
	}

	reset, err := NewPasswordResetToken(user.ID, fingerprint, time.Now().Add(s.resetTTL))
	if err != nil {
		return "", err
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", oops.Code("AUTH_FORGOT_FAILED").
			With("operation", "create reset token").
			Wrap(err)
	}

	return raw, nil
}

// ResetPassword consumes a reset token and replaces the user's password
// hash. A missing, expired, or already used token fails with
// AUTH_UNAUTHENTICATED. Outstanding refresh tokens are deliberately left
// untouched; revoking other sessions on reset is a pending product decision.
func (s *SessionService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if rawToken == "" {
		return oops.Code(CodeUnauthenticated).Errorf("invalid or expired reset token")
	}

	reset, err := s.resets.GetByFingerprint(ctx, Fingerprint(rawToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeUnauthenticated).Errorf("invalid or expired reset token")
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "get reset token by fingerprint").
			Wrap(err)
	}
	if !reset.IsUsable() {
		return oops.Code(CodeUnauthenticated).Errorf("invalid or expired reset token")
	}

	// Consume before writing the new hash so a concurrent reset with the
	// same token burns it exactly once.
	if err := s.resets.MarkUsed(ctx, reset.ID, time.Now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeUnauthenticated).Errorf("invalid or expired reset token")
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "mark reset token used").
			Wrap(err)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, reset.UserID, hashed); err != nil {
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "update password").
			Wrap(err)
	}
	return nil
}

// AssignRole grants a role to a user by email and role name. Assigning an
// already granted role succeeds without effect.
func (s *SessionService) AssignRole(ctx context.Context, email, roleName string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeNotFound).Errorf("user not found")
		}
		return oops.Code("AUTH_ASSIGN_ROLE_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeNotFound).Errorf("role not found")
		}
		return oops.Code("AUTH_ASSIGN_ROLE_FAILED").
			With("operation", "get role by name").
			Wrap(err)
	}

	if err := s.roles.Assign(ctx, user.ID, role.ID); err != nil {
		return oops.Code("AUTH_ASSIGN_ROLE_FAILED").
			With("operation", "assign role").
			With("role", role.Name).
			Wrap(err)
	}
	return nil
}

// establishSession issues the access token and a brand-new refresh token for
// the user. Refresh tokens are never reused across logins; every call starts
// a fresh session.
func (s *SessionService) establishSession(ctx context.Context, user *User) (*TokenPair, error) {
	accessToken, expiresAt, err := s.issuer.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	raw, fingerprint, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}

	token, err := NewRefreshToken(user.ID, fingerprint, time.Now().Add(s.refreshTTL))
	if err != nil {
		return nil, err
	}

	if err := s.refresh.Create(ctx, token); err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist refresh token").
			Wrap(err)
	}

	return &TokenPair{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: expiresAt,
		RefreshToken:         raw,
	}, nil
}
