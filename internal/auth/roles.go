// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermManageProducts Permission = "ManageProducts"
	PermViewProducts   Permission = "ViewProducts"
	PermManageUsers    Permission = "ManageUsers"
	PermCreateSale     Permission = "CreateSale"
)

// AllPermissions lists every defined permission, used when seeding the
// administrator role.
func AllPermissions() []Permission {
	return []Permission{
		PermManageProducts,
		PermViewProducts,
		PermManageUsers,
		PermCreateSale,
	}
}

// Role is a named permission bundle.
type Role struct {
	ID          ulid.ULID
	Name        string
	Permissions []Permission
}

// PermissionSet is a duplicate-free collection of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(perm Permission) bool {
	_, ok := s[perm]
	return ok
}

// Add inserts a permission into the set.
func (s PermissionSet) Add(perm Permission) {
	s[perm] = struct{}{}
}

// Strings returns the permissions as a string slice for embedding in token
// claims. Order is not significant.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	return out
}

// RoleRepository manages roles and user-role assignments.
// The (user, role) assignment pair is unique; Assign is idempotent on
// duplicates.
type RoleRepository interface {
	// GetByName retrieves a role with its permissions by name.
	// Returns ErrNotFound if no role matches.
	GetByName(ctx context.Context, name string) (*Role, error)

	// GetRolesForUser retrieves every role assigned to the user, with
	// permissions loaded. An unassigned user yields an empty slice.
	GetRolesForUser(ctx context.Context, userID ulid.ULID) ([]*Role, error)

	// Assign creates the (user, role) assignment. Assigning an already
	// assigned role is a no-op.
	Assign(ctx context.Context, userID, roleID ulid.ULID) error
}
