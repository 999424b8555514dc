// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// AccessTokenTTL is the lifetime of an issued access token.
const AccessTokenTTL = 15 * time.Minute

// AccessClaims holds the JWT claims for an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	Role        string   `json:"role,omitempty"` // legacy primary role
	Permissions []string `json:"permissions"`
}

// AccessTokenIssuer builds signed, self-contained bearer tokens carrying
// identity and permission claims. Tokens are HS256-signed with a server-held
// symmetric secret and verifiable without a store lookup.
type AccessTokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	resolver *PermissionResolver
}

// NewAccessTokenIssuer creates an AccessTokenIssuer. Secret, issuer, and
// audience are required configuration; a missing value is a startup error,
// never a per-request one.
func NewAccessTokenIssuer(secret, issuer, audience string, resolver *PermissionResolver) (*AccessTokenIssuer, error) {
	if secret == "" {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("jwt signing secret is required")
	}
	if issuer == "" {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("jwt issuer is required")
	}
	if audience == "" {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("jwt audience is required")
	}
	if resolver == nil {
		return nil, oops.Code("AUTH_CONFIG_MISSING").Errorf("permission resolver is required")
	}

	return &AccessTokenIssuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      AccessTokenTTL,
		resolver: resolver,
	}, nil
}

// WithTTL returns a copy of the issuer using the given access token
// lifetime. Non-positive values keep the current lifetime.
func (i *AccessTokenIssuer) WithTTL(ttl time.Duration) *AccessTokenIssuer {
	clone := *i
	if ttl > 0 {
		clone.ttl = ttl
	}
	return &clone
}

// Issue builds a signed access token for the user, resolving permissions at
// issuance time. Returns the compact token and its expiry so callers can
// communicate the deadline without re-parsing the token.
func (i *AccessTokenIssuer) Issue(ctx context.Context, user *User) (token string, expiresAt time.Time, err error) {
	perms, err := i.resolver.ResolvePermissions(ctx, user.ID)
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now()
	expiresAt = now.Add(i.ttl)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:       user.Email,
		Role:        user.Role,
		Permissions: perms.Strings(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("AUTH_TOKEN_SIGN_FAILED").Wrap(err)
	}

	return signed, expiresAt, nil
}

// Verify parses and validates an access token, returning its claims.
// The signature, expiry, issuer, and audience are all checked.
func (i *AccessTokenIssuer) Verify(tokenString string) (*AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
	)
	if err != nil {
		return nil, oops.Code(CodeUnauthenticated).Errorf("invalid access token")
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return nil, oops.Code(CodeUnauthenticated).Errorf("invalid access token")
	}

	return claims, nil
}

// PermissionSet returns the claims' permissions as a set for authorization
// checks.
func (c *AccessClaims) PermissionSet() PermissionSet {
	set := make(PermissionSet, len(c.Permissions))
	for _, p := range c.Permissions {
		set.Add(Permission(p))
	}
	return set
}
