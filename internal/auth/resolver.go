// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// PermissionResolver maps a user to the union of permissions granted by all
// roles assigned to them.
type PermissionResolver struct {
	roles RoleRepository
}

// NewPermissionResolver creates a PermissionResolver.
func NewPermissionResolver(roles RoleRepository) *PermissionResolver {
	return &PermissionResolver{roles: roles}
}

// ResolvePermissions returns the duplicate-free union of every permission
// attached to every role assigned to the user. A user with no role
// assignments resolves to an empty set, not an error.
//
// The result is embedded into access tokens at issuance, so permission
// changes take effect on the user's next token issuance or refresh; the
// staleness window is bounded by the access token TTL.
func (r *PermissionResolver) ResolvePermissions(ctx context.Context, userID ulid.ULID) (PermissionSet, error) {
	roles, err := r.roles.GetRolesForUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("operation", "get roles for user").
			With("user_id", userID.String()).
			Wrap(err)
	}

	set := make(PermissionSet)
	for _, role := range roles {
		for _, perm := range role.Permissions {
			set.Add(perm)
		}
	}
	return set, nil
}
