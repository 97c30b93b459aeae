package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/thenano/openmrs-module-idgen/internal/core/apperror"
	"github.com/thenano/openmrs-module-idgen/pkg/logger"
)

// Service provides login for the API boundary.
type Service struct {
	users Repository
	jwt   *JWTService
}

// NewService creates the auth service.
func NewService(users Repository, jwtService *JWTService) *Service {
	return &Service{users: users, jwt: jwtService}
}

// LoginResult carries a signed token and its expiry.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// Login verifies credentials and issues an access token. Failures are
// deliberately indistinguishable between unknown user and wrong password.
func (s *Service) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, creds.Username)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid username or password")
	}
	if !user.IsActive {
		return nil, apperror.NewUnauthorized("account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, apperror.NewUnauthorized("invalid username or password")
	}

	token, expiresAt, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		logger.Warn(ctx, "failed to record login time", "user_id", user.ID.String(), "error", err)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
