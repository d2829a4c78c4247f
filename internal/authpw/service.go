// Package authpw provides email/password authentication. It plays the role
// of the identity provider: it owns password hashes and account creation,
// while session credentials are issued elsewhere.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingFields      = errors.New("email, password, and username are required")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

// minPasswordLen matches the floor hosted identity providers enforce, so
// accounts migrated from one keep working.
const minPasswordLen = 6

// UserStore is the storage surface the identity provider needs.
type UserStore interface {
	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// SignUpRequest contains registration parameters.
type SignUpRequest struct {
	Email    string
	Password string
	Username string
}

// SignUp creates an account: an auth record (the bcrypt hash) and the user
// document with empty profile fields awaiting one-time profile setup.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	if req.Email == "" || req.Password == "" || req.Username == "" {
		return store.User{}, ErrMissingFields
	}
	if len(req.Password) < minPasswordLen {
		return store.User{}, ErrWeakPassword
	}

	if _, err := s.store.GetUserByUsername(ctx, req.Username); err == nil {
		return store.User{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("usr"),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		ProfileSetup: false,
		CreatedAt:    time.Now().UTC(),
		Projects:     []store.ProjectSummary{},
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return store.User{}, ErrUsernameTaken
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SignInRequest contains authentication parameters.
type SignInRequest struct {
	Email    string
	Password string
}

// SignIn verifies the credentials and returns the matching user document.
// Lookup and comparison failures collapse into one error so callers cannot
// tell which emails exist.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	if req.Email == "" || req.Password == "" {
		return store.User{}, errors.New("email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}
