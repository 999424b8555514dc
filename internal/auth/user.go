// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Input validation constraints.
const (
	MaxEmailLength    = 200
	MinPasswordLength = 8
	MaxPasswordLength = 100
)

// emailRegex is a pragmatic shape check; the unique index on normalized email
// is the real guard against duplicates.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserStatus indicates whether an account may authenticate.
type UserStatus string

// User statuses.
const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User represents a staff account.
type User struct {
	ID           ulid.ULID
	Email        string // normalized: trimmed, lowercase
	FirstName    string
	LastName     string
	Phone        string
	PasswordHash string
	Role         string // legacy primary role claim; authorization uses resolved permissions
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User with a normalized email.
func NewUser(email, firstName, lastName, phone string) (*User, error) {
	normalized := NormalizeEmail(email)
	if err := ValidateEmail(normalized); err != nil {
		return nil, err
	}

	now := time.Now()
	return &User{
		ID:        ulid.Make(),
		Email:     normalized,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Phone:     strings.TrimSpace(phone),
		Status:    UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsActive returns true if the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// NormalizeEmail trims whitespace and lowercases an email address.
// All persistence and lookups use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates a normalized email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeInvalidInput).Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeInvalidInput).
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code(CodeInvalidInput).Errorf("email is not a valid address")
	}
	return nil
}

// ValidatePassword validates a candidate password against length rules.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return oops.Code(CodeInvalidInput).Errorf("password cannot be empty")
	}
	if len(password) < MinPasswordLength {
		return oops.Code(CodeInvalidInput).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return oops.Code(CodeInvalidInput).
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns an AUTH_CONFLICT coded error when
	// the normalized email is already taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *User) error

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
