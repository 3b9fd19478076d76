// Package identity handles rider registration and login. Secrets are
// stored as bcrypt hashes; the login contract stays email+secret in,
// rider out.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/cab-booking/internal/apperr"
	"github.com/example/cab-booking/internal/models"
	"github.com/example/cab-booking/internal/storage"
)

// ErrInvalidCredentials is deliberately identical for unknown email and
// wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

type Service struct {
	Users storage.UserStore
}

func NewService(users storage.UserStore) *Service {
	return &Service{Users: users}
}

// Register creates a rider. Email uniqueness is checked case-sensitively,
// as stored.
func (s *Service) Register(ctx context.Context, firstName, lastName, email, password string) (models.User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = strings.TrimSpace(email)
	if firstName == "" {
		return models.User{}, &apperr.ValidationError{Field: "first_name", Msg: "required"}
	}
	if lastName == "" {
		return models.User{}, &apperr.ValidationError{Field: "last_name", Msg: "required"}
	}
	if email == "" {
		return models.User{}, &apperr.ValidationError{Field: "email", Msg: "required"}
	}
	if password == "" {
		return models.User{}, &apperr.ValidationError{Field: "password", Msg: "required"}
	}

	if _, err := s.Users.GetByEmail(ctx, email); err == nil {
		return models.User{}, &apperr.ConflictError{Msg: "user with this email already exists"}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := models.User{
		ID:           uuid.NewString(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: string(hash),
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.Users.Insert(ctx, u); err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Login verifies credentials and returns the rider.
func (s *Service) Login(ctx context.Context, email, password string) (models.User, error) {
	u, err := s.Users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (models.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, &apperr.NotFoundError{Resource: "user", ID: id}
	}
	return u, err
}

func (s *Service) GetByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, &apperr.NotFoundError{Resource: "user"}
	}
	return u, err
}
