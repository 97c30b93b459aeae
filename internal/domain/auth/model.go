// Package auth provides authentication for the API boundary. Privilege
// checks happen in middleware before requests reach the generation
// service; the service itself carries no authorization logic.
package auth

import (
	"context"
	"time"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
)

// User represents an API user.
type User struct {
	ID           id.ID      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	IsAdmin      bool       `db:"is_admin" json:"isAdmin"`
	Privileges   []string   `db:"privileges" json:"privileges,omitempty"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}

// NewUser creates a new active user.
func NewUser(username, passwordHash string) *User {
	return &User{
		ID:           id.New(),
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
}

// Validate checks user invariants.
func (u *User) Validate(ctx context.Context) error {
	if u.Username == "" {
		return apperror.NewValidation("username is required").WithDetail("field", "username")
	}
	return nil
}

// Credentials is a login request.
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Repository persists users.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user *User) error
	TouchLogin(ctx context.Context, userID id.ID) error
}
