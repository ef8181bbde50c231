package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/walletdesk/walletdesk/internal/walletapi"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Service manages user provisioning.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Repository exposes the underlying store for components that resolve users directly.
func (s *Service) Repository() Repository {
	return s.repo
}

// Provision creates a user with a hashed password and the backend flag that
// later decides where the user's wallet is created.
func (s *Service) Provision(ctx context.Context, in ProvisionInput) (User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, walletapi.Validationf("username is required")
	}
	if len(in.Password) < minPasswordLength {
		return User{}, walletapi.Validationf("password must be at least %d characters", minPasswordLength)
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return User{}, walletapi.Validationf("email %q is invalid", email)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user, err := s.repo.Create(ctx, User{
		Username:      username,
		FullName:      strings.TrimSpace(in.FullName),
		Email:         email,
		PasswordHash:  hash,
		UsePhantomPay: in.UsePhantomPay,
	})
	if errors.Is(err, ErrUserExists) {
		return User{}, walletapi.Validationf("username %q is already taken", username)
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Get resolves a user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, walletapi.NotFoundf("user %d not found", id)
	}
	return user, err
}
