// Package auth issues and validates opaque bearer tokens. Tokens are random
// UUIDs stored server-side with an expiry, so revocation is a row delete.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mptx4869/store/internal/domain"
	"github.com/mptx4869/store/internal/repository"
)

const tokenTTL = 24 * time.Hour

type Store interface {
	WithTx(ctx context.Context, fn func(q repository.DBTX) error) error
	DB() repository.DBTX
	CreateUser(ctx context.Context, q repository.DBTX, user *domain.User) error
	GetUserByUsername(ctx context.Context, q repository.DBTX, username string) (*domain.User, error)
	InsertToken(ctx context.Context, q repository.DBTX, token string, userID int64, expiresAt time.Time) error
	GetTokenIdentity(ctx context.Context, q repository.DBTX, token string) (*domain.Identity, error)
}

type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log}
}

type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register creates a customer account. Usernames and emails are unique.
func (s *Service) Register(ctx context.Context, username, email, password string) error {
	if username == "" || email == "" {
		return fmt.Errorf("%w: username and email are required", domain.ErrValidation)
	}
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
		Status:       domain.UserStatusActive,
	}
	err = s.store.CreateUser(ctx, s.store.DB(), user)
	if errors.Is(err, repository.ErrDuplicateUser) {
		return fmt.Errorf("%w: username or email already taken", domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	s.log.Info().Str("username", username).Msg("user registered")
	return nil
}

// Login verifies credentials and issues a fresh bearer token. Inactive users
// cannot log in. Bad username and bad password are indistinguishable.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	user, err := s.store.GetUserByUsername(ctx, s.store.DB(), username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if user.Status != domain.UserStatusActive {
		return nil, fmt.Errorf("%w: account is inactive", domain.ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	token := &Token{
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(tokenTTL),
	}
	if err := s.store.InsertToken(ctx, s.store.DB(), token.Token, user.ID, token.ExpiresAt); err != nil {
		return nil, err
	}
	return token, nil
}

// Authenticate resolves a bearer token to the identity it was issued for.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}
	id, err := s.store.GetTokenIdentity(ctx, s.store.DB(), token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, fmt.Errorf("%w: invalid or expired token", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return id, nil
}
