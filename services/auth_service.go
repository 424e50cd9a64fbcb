package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/crickpick/prediction-league/models"
	"github.com/crickpick/prediction-league/repositories"
)

// AuthService is the thin adapter over the external identity system: it
// only verifies credentials so the API layer can mint a session token.
// Account management lives elsewhere.
type AuthService interface {
	Login(ctx context.Context, credentials models.Credentials) (*models.User, error)
	GetUser(ctx context.Context, userID int) (*models.User, error)
}

type authService struct {
	userRepo repositories.UserRepository
}

func NewAuthService(userRepo repositories.UserRepository) AuthService {
	return &authService{userRepo: userRepo}
}

func (s *authService) Login(ctx context.Context, credentials models.Credentials) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, credentials.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credentials.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) GetUser(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	user.PasswordHash = ""
	return user, nil
}
