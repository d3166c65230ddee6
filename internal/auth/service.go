package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/stocklane/stocklane/internal/shared"
)

// UserPort resolves accounts during login.
type UserPort interface {
	FindByEmail(ctx context.Context, email string) (User, error)
}

// Service wraps authentication business rules.
type Service struct {
	users  UserPort
	tokens *TokenStore
}

// NewService constructs a new Service.
func NewService(users UserPort, tokens *TokenStore) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login validates credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, shared.Actor, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", shared.Actor{}, ErrInvalidCredentials
	}
	if !user.Active {
		return "", shared.Actor{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", shared.Actor{}, ErrInvalidCredentials
	}

	actor := shared.Actor{ID: user.ID, Email: user.Email, Admin: user.Admin}
	token, err := s.tokens.Issue(ctx, actor)
	if err != nil {
		return "", shared.Actor{}, err
	}
	return token, actor, nil
}

// Logout revokes the caller's token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Resolve maps a bearer token back to its actor.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Actor, error) {
	return s.tokens.Resolve(ctx, token)
}
