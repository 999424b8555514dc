// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth_test

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tillgate/tilld/internal/auth"
)

// In-memory repository fakes. They honor the same contracts as the postgres
// implementations, including conflict and exactly-once semantics, so service
// tests exercise real concurrency behavior without a database.

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]*auth.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]*auth.User),
	}
}

func (r *memUserRepo) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return oops.Code(auth.CodeConflict).Errorf("email already taken")
	}
	u := *user
	r.byID[u.ID] = &u
	r.byEmail[u.Email] = &u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memUserRepo) Update(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return auth.ErrNotFound
	}
	u := *user
	r.byID[u.ID] = &u
	r.byEmail[u.Email] = &u
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

type memRefreshRepo struct {
	mu            sync.Mutex
	byFingerprint map[string]*auth.RefreshToken
	byID          map[ulid.ULID]*auth.RefreshToken
}

func newMemRefreshRepo() *memRefreshRepo {
	return &memRefreshRepo{
		byFingerprint: make(map[string]*auth.RefreshToken),
		byID:          make(map[ulid.ULID]*auth.RefreshToken),
	}
}

func (r *memRefreshRepo) Create(_ context.Context, token *auth.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := *token
	r.byFingerprint[t.Fingerprint] = &t
	r.byID[t.ID] = &t
	return nil
}

func (r *memRefreshRepo) GetByFingerprint(_ context.Context, fingerprint string) (*auth.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byFingerprint[fingerprint]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *memRefreshRepo) Revoke(_ context.Context, id ulid.ULID, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.RevokedAt != nil {
		return auth.ErrNotFound
	}
	t.RevokedAt = &revokedAt
	return nil
}

func (r *memRefreshRepo) Rotate(_ context.Context, old, replacement *auth.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[old.ID]
	if !ok || stored.RevokedAt != nil {
		return auth.ErrNotFound
	}
	stored.RevokedAt = old.RevokedAt
	stored.ReplacedByFingerprint = old.ReplacedByFingerprint
	t := *replacement
	r.byFingerprint[t.Fingerprint] = &t
	r.byID[t.ID] = &t
	return nil
}

type memResetRepo struct {
	mu            sync.Mutex
	byFingerprint map[string]*auth.PasswordResetToken
	byID          map[ulid.ULID]*auth.PasswordResetToken
}

func newMemResetRepo() *memResetRepo {
	return &memResetRepo{
		byFingerprint: make(map[string]*auth.PasswordResetToken),
		byID:          make(map[ulid.ULID]*auth.PasswordResetToken),
	}
}

func (r *memResetRepo) Create(_ context.Context, token *auth.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := *token
	r.byFingerprint[t.Fingerprint] = &t
	r.byID[t.ID] = &t
	return nil
}

func (r *memResetRepo) GetByFingerprint(_ context.Context, fingerprint string) (*auth.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byFingerprint[fingerprint]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *memResetRepo) MarkUsed(_ context.Context, id ulid.ULID, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.UsedAt != nil {
		return auth.ErrNotFound
	}
	t.UsedAt = &usedAt
	return nil
}

type memRoleRepo struct {
	mu          sync.Mutex
	byName      map[string]*auth.Role
	assignments map[ulid.ULID][]ulid.ULID // user -> role IDs
}

func newMemRoleRepo() *memRoleRepo {
	return &memRoleRepo{
		byName:      make(map[string]*auth.Role),
		assignments: make(map[ulid.ULID][]ulid.ULID),
	}
}

func (r *memRoleRepo) addRole(name string, perms ...auth.Permission) *auth.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	role := &auth.Role{ID: ulid.Make(), Name: name, Permissions: perms}
	r.byName[name] = role
	return role
}

func (r *memRoleRepo) GetByName(_ context.Context, name string) (*auth.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.byName[name]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return role, nil
}

func (r *memRoleRepo) GetRolesForUser(_ context.Context, userID ulid.ULID) ([]*auth.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var roles []*auth.Role
	for _, roleID := range r.assignments[userID] {
		for _, role := range r.byName {
			if role.ID == roleID {
				roles = append(roles, role)
			}
		}
	}
	return roles, nil
}

func (r *memRoleRepo) Assign(_ context.Context, userID, roleID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.assignments[userID] {
		if existing == roleID {
			return nil
		}
	}
	r.assignments[userID] = append(r.assignments[userID], roleID)
	return nil
}

// Interface conformance.
var (
	_ auth.UserRepository               = (*memUserRepo)(nil)
	_ auth.RefreshTokenRepository       = (*memRefreshRepo)(nil)
	_ auth.PasswordResetTokenRepository = (*memResetRepo)(nil)
	_ auth.RoleRepository               = (*memRoleRepo)(nil)
)
