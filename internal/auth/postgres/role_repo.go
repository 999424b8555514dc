// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tillgate/tilld/internal/auth"
)

// RoleRepository implements auth.RoleRepository using PostgreSQL.
type RoleRepository struct {
	db DB
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(db DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetByName retrieves a role and its permissions by name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*auth.Role, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name FROM roles WHERE name = $1
	`, name)

	var (
		idStr    string
		roleName string
	)
	err := row.Scan(&idStr, &roleName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ROLE_NOT_FOUND").
			With("name", name).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ROLE_GET_BY_NAME_FAILED").
			With("operation", "get role by name").
			With("name", name).
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ROLE_INVALID_ID").
			With("operation", "parse role id").
			With("id", idStr).
			Wrap(err)
	}

	perms, err := r.permissionsForRole(ctx, idStr)
	if err != nil {
		return nil, err
	}

	return &auth.Role{ID: id, Name: roleName, Permissions: perms}, nil
}

// GetRolesForUser retrieves every role assigned to a user, each with its
// permissions loaded. An unassigned user yields an empty slice.
func (r *RoleRepository) GetRolesForUser(ctx context.Context, userID ulid.ULID) ([]*auth.Role, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`, userID.String())
	if err != nil {
		return nil, oops.Code("ROLE_GET_FOR_USER_FAILED").
			With("operation", "get roles for user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var roles []*auth.Role
	for rows.Next() {
		var (
			idStr    string
			roleName string
		)
		if err := rows.Scan(&idStr, &roleName); err != nil {
			return nil, oops.Code("ROLE_GET_FOR_USER_FAILED").
				With("operation", "scan role row").
				Wrap(err)
		}
		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("ROLE_INVALID_ID").
				With("operation", "parse role id").
				With("id", idStr).
				Wrap(err)
		}
		roles = append(roles, &auth.Role{ID: id, Name: roleName})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ROLE_GET_FOR_USER_FAILED").
			With("operation", "iterate role rows").
			Wrap(err)
	}

	for _, role := range roles {
		perms, err := r.permissionsForRole(ctx, role.ID.String())
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}

	return roles, nil
}

// Assign grants a role to a user. Assigning an already-held role is a no-op.
func (r *RoleRepository) Assign(ctx context.Context, userID, roleID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID.String(), roleID.String())
	if err != nil {
		return oops.Code("ROLE_ASSIGN_FAILED").
			With("operation", "assign role").
			With("user_id", userID.String()).
			With("role_id", roleID.String()).
			Wrap(err)
	}
	return nil
}

// EnsureRole creates the role and its permission rows if absent. Existing
// rows are left untouched, so repeated seeding is a no-op.
func (r *RoleRepository) EnsureRole(ctx context.Context, name string, perms []auth.Permission) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO roles (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, ulid.Make().String(), name)
	if err != nil {
		return oops.Code("ROLE_SEED_FAILED").
			With("operation", "insert role").
			With("name", name).
			Wrap(err)
	}

	var idStr string
	err = r.db.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&idStr)
	if err != nil {
		return oops.Code("ROLE_SEED_FAILED").
			With("operation", "get seeded role id").
			With("name", name).
			Wrap(err)
	}

	for _, perm := range perms {
		_, err := r.db.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission)
			VALUES ($1, $2)
			ON CONFLICT (role_id, permission) DO NOTHING
		`, idStr, string(perm))
		if err != nil {
			return oops.Code("ROLE_SEED_FAILED").
				With("operation", "insert role permission").
				With("name", name).
				With("permission", string(perm)).
				Wrap(err)
		}
	}
	return nil
}

func (r *RoleRepository) permissionsForRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT permission FROM role_permissions WHERE role_id = $1 ORDER BY permission
	`, roleID)
	if err != nil {
		return nil, oops.Code("ROLE_PERMISSIONS_FAILED").
			With("operation", "get role permissions").
			With("role_id", roleID).
			Wrap(err)
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, oops.Code("ROLE_PERMISSIONS_FAILED").
				With("operation", "scan permission row").
				Wrap(err)
		}
		perms = append(perms, auth.Permission(p))
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ROLE_PERMISSIONS_FAILED").
			With("operation", "iterate permission rows").
			Wrap(err)
	}
	return perms, nil
}

// Compile-time interface check.
var _ auth.RoleRepository = (*RoleRepository)(nil)
