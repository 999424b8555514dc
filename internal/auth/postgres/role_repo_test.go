// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillgate/tilld/internal/auth"
	"github.com/tillgate/tilld/pkg/errutil"
)

func TestRoleRepository_GetByName(t *testing.T) {
	roleID := ulid.Make()

	t.Run("found with permissions", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, name FROM roles WHERE name = \$1`).
			WithArgs("Cashier").
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
				AddRow(roleID.String(), "Cashier"))
		mock.ExpectQuery(`SELECT permission FROM role_permissions WHERE role_id = \$1`).
			WithArgs(roleID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"permission"}).
				AddRow("CreateSale").
				AddRow("ViewProducts"))

		repo := NewRoleRepository(mock)
		role, err := repo.GetByName(context.Background(), "Cashier")
		require.NoError(t, err)
		assert.Equal(t, roleID, role.ID)
		assert.Equal(t, "Cashier", role.Name)
		assert.Equal(t, []auth.Permission{auth.PermCreateSale, auth.PermViewProducts}, role.Permissions)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, name FROM roles WHERE name = \$1`).
			WithArgs("Supervisor").
			WillReturnError(pgx.ErrNoRows)

		repo := NewRoleRepository(mock)
		_, err = repo.GetByName(context.Background(), "Supervisor")
		assert.ErrorIs(t, err, auth.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestRoleRepository_GetRolesForUser(t *testing.T) {
	userID := ulid.Make()
	adminID := ulid.Make()
	cashierID := ulid.Make()

	t.Run("loads roles and their permissions", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`JOIN user_roles ur ON ur\.role_id = r\.id\s+WHERE ur\.user_id = \$1`).
			WithArgs(userID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
				AddRow(adminID.String(), "Admin").
				AddRow(cashierID.String(), "Cashier"))
		mock.ExpectQuery(`SELECT permission FROM role_permissions WHERE role_id = \$1`).
			WithArgs(adminID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"permission"}).
				AddRow("ManageUsers"))
		mock.ExpectQuery(`SELECT permission FROM role_permissions WHERE role_id = \$1`).
			WithArgs(cashierID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"permission"}).
				AddRow("CreateSale"))

		repo := NewRoleRepository(mock)
		roles, err := repo.GetRolesForUser(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, roles, 2)
		assert.Equal(t, "Admin", roles[0].Name)
		assert.Equal(t, []auth.Permission{auth.PermManageUsers}, roles[0].Permissions)
		assert.Equal(t, "Cashier", roles[1].Name)
		assert.Equal(t, []auth.Permission{auth.PermCreateSale}, roles[1].Permissions)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("unassigned user yields empty slice", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`JOIN user_roles ur ON ur\.role_id = r\.id\s+WHERE ur\.user_id = \$1`).
			WithArgs(userID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))

		repo := NewRoleRepository(mock)
		roles, err := repo.GetRolesForUser(context.Background(), userID)
		require.NoError(t, err)
		assert.Empty(t, roles)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`JOIN user_roles ur ON ur\.role_id = r\.id\s+WHERE ur\.user_id = \$1`).
			WithArgs(userID.String()).
			WillReturnError(errors.New("connection refused"))

		repo := NewRoleRepository(mock)
		_, err = repo.GetRolesForUser(context.Background(), userID)
		errutil.AssertErrorCode(t, err, "ROLE_GET_FOR_USER_FAILED")

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestRoleRepository_Assign(t *testing.T) {
	userID := ulid.Make()
	roleID := ulid.Make()

	t.Run("creates the assignment", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO user_roles`).
			WithArgs(userID.String(), roleID.String()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewRoleRepository(mock)
		require.NoError(t, repo.Assign(context.Background(), userID, roleID))

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("duplicate assignment is a no-op", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO user_roles`).
			WithArgs(userID.String(), roleID.String()).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		repo := NewRoleRepository(mock)
		require.NoError(t, repo.Assign(context.Background(), userID, roleID))

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO user_roles`).
			WithArgs(userID.String(), roleID.String()).
			WillReturnError(errors.New("foreign key violation"))

		repo := NewRoleRepository(mock)
		err = repo.Assign(context.Background(), userID, roleID)
		errutil.AssertErrorCode(t, err, "ROLE_ASSIGN_FAILED")

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestRoleRepository_EnsureRole(t *testing.T) {
	roleID := ulid.Make()

	t.Run("seeds role and permissions", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO roles`).
			WithArgs(pgxmock.AnyArg(), "Cashier").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery(`SELECT id FROM roles WHERE name = \$1`).
			WithArgs("Cashier").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(roleID.String()))
		mock.ExpectExec(`INSERT INTO role_permissions`).
			WithArgs(roleID.String(), "ViewProducts").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO role_permissions`).
			WithArgs(roleID.String(), "CreateSale").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewRoleRepository(mock)
		err = repo.EnsureRole(context.Background(), "Cashier",
			[]auth.Permission{auth.PermViewProducts, auth.PermCreateSale})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("existing role is reused", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO roles`).
			WithArgs(pgxmock.AnyArg(), "Cashier").
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectQuery(`SELECT id FROM roles WHERE name = \$1`).
			WithArgs("Cashier").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(roleID.String()))
		mock.ExpectExec(`INSERT INTO role_permissions`).
			WithArgs(roleID.String(), "CreateSale").
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		repo := NewRoleRepository(mock)
		err = repo.EnsureRole(context.Background(), "Cashier", []auth.Permission{auth.PermCreateSale})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("insert failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO roles`).
			WithArgs(pgxmock.AnyArg(), "Cashier").
			WillReturnError(errors.New("connection refused"))

		repo := NewRoleRepository(mock)
		err = repo.EnsureRole(context.Background(), "Cashier", nil)
		errutil.AssertErrorCode(t, err, "ROLE_SEED_FAILED")

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}
