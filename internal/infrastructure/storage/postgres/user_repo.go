package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/internal/core/id"
	"github.com/thenano/openmrs-module-idgen/internal/domain/auth"
)

// UserRepo implements auth.Repository on idgen_users.
type UserRepo struct {
	tm *TxManager
}

// NewUserRepo creates a user repository.
func NewUserRepo(tm *TxManager) *UserRepo {
	return &UserRepo{tm: tm}
}

// GetByUsername retrieves a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	q := r.tm.GetQuerier(ctx)

	query := `
		SELECT id, username, password_hash, is_active, is_admin,
			   privileges, last_login_at, created_at
		FROM idgen_users
		WHERE username = $1
	`

	var user auth.User
	err := q.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash,
		&user.IsActive, &user.IsAdmin, &user.Privileges,
		&user.LastLoginAt, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("user", username)
	}
	if err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("query user: %w", err))
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	q := r.tm.GetQuerier(ctx)

	query := `
		INSERT INTO idgen_users (
			id, username, password_hash, is_active, is_admin,
			privileges, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := q.Exec(ctx, query,
		user.ID, user.Username, user.PasswordHash,
		user.IsActive, user.IsAdmin, user.Privileges, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflict(fmt.Sprintf("username %q is taken", user.Username))
		}
		return apperror.NewDatabase(fmt.Errorf("insert user: %w", err))
	}
	return nil
}

// TouchLogin records a successful login.
func (r *UserRepo) TouchLogin(ctx context.Context, userID id.ID) error {
	q := r.tm.GetQuerier(ctx)

	_, err := q.Exec(ctx,
		`UPDATE idgen_users SET last_login_at = now() WHERE id = $1`, userID)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("touch login: %w", err))
	}
	return nil
}
