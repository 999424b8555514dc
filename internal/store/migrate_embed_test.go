// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMigrationsEmbedded verifies the embedded migration files are present
// and follow the NNNNNN_name.{up,down}.sql naming convention golang-migrate
// requires.
func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2, "each migration needs an up and a down file")

	namePattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		assert.False(t, entry.IsDir())
		assert.Regexp(t, namePattern, entry.Name())
		names = append(names, entry.Name())
	}

	assert.Contains(t, names, "000001_auth.up.sql")
	assert.Contains(t, names, "000001_auth.down.sql")
}

// TestMigrationSchemaMatchesRepositories pins the users DDL to the column
// set the auth repositories bind, so a schema drift fails here instead of at
// runtime with an undefined-column error.
func TestMigrationSchemaMatchesRepositories(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000001_auth.up.sql")
	require.NoError(t, err)
	ddl := string(data)

	usersStart := strings.Index(ddl, "CREATE TABLE users (")
	require.GreaterOrEqual(t, usersStart, 0, "users table missing from migration")
	usersEnd := strings.Index(ddl[usersStart:], ");")
	require.GreaterOrEqual(t, usersEnd, 0)
	usersDDL := ddl[usersStart : usersStart+usersEnd]

	columns := []string{
		"id", "email", "first_name", "last_name", "phone",
		"password_hash", "role", "status", "created_at", "updated_at",
	}
	for _, col := range columns {
		assert.Regexp(t, `(?m)^\s+`+col+`\s`, usersDDL, "users table is missing column %q", col)
	}

	// The repositories write status as a string, so the column must be a
	// text type with the active default.
	assert.Regexp(t, `status\s+VARCHAR\(\d+\)\s+NOT NULL\s+DEFAULT 'active'`, usersDDL)
	assert.NotContains(t, usersDDL, "SMALLINT")
}

// TestMigrationsNotEmpty guards against accidentally committing empty
// migration files, which golang-migrate silently skips.
func TestMigrationsNotEmpty(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	for _, entry := range entries {
		data, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		require.NoError(t, err)
		assert.NotEmpty(t, data, "migration %s is empty", entry.Name())
	}
}
