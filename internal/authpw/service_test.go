package authpw

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/store"
)

type fakeUserStore struct {
	createUserFn        func(context.Context, store.User) error
	getUserByEmailFn    func(context.Context, string) (store.User, error)
	getUserByUsernameFn func(context.Context, string) (store.User, error)
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeUserStore) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	if f.getUserByUsernameFn != nil {
		return f.getUserByUsernameFn(ctx, username)
	}
	return store.User{}, store.ErrNotFound
}

func TestSignUpCreatesUserWithEmptyProfile(t *testing.T) {
	var created store.User
	fs := &fakeUserStore{
		createUserFn: func(_ context.Context, user store.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(fs)

	user, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:    "alice@example.com",
		Password: "password123",
		Username: "alice1",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if user.ID == "" {
		t.Fatalf("expected an id to be assigned")
	}
	if user.ProfileSetup {
		t.Fatalf("expected profileSetup false at sign-up")
	}
	if user.Projects == nil || len(user.Projects) != 0 {
		t.Fatalf("expected empty projects list, got %v", user.Projects)
	}
	if created.PasswordHash == "" || created.PasswordHash == "password123" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("password123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestSignUpRejectsMissingFields(t *testing.T) {
	svc := NewService(&fakeUserStore{})
	_, err := svc.SignUp(context.Background(), SignUpRequest{Email: "a@b.c", Password: "password123"})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc := NewService(&fakeUserStore{})
	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:    "a@b.c",
		Password: "five5",
		Username: "alice1",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestSignUpAcceptsProviderMinimumPassword(t *testing.T) {
	svc := NewService(&fakeUserStore{})
	if _, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:    "a@b.c",
		Password: "sixsix",
		Username: "alice1",
	}); err != nil {
		t.Fatalf("six characters should satisfy the floor: %v", err)
	}
}

func TestSignUpRejectsDuplicateUsername(t *testing.T) {
	fs := &fakeUserStore{
		getUserByUsernameFn: func(context.Context, string) (store.User, error) {
			return store.User{ID: "user-1", Username: "alice1"}, nil
		},
	}
	svc := NewService(fs)

	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:    "alice@example.com",
		Password: "password123",
		Username: "alice1",
	})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSignUpMapsStorageDuplicateToUsernameTaken(t *testing.T) {
	fs := &fakeUserStore{
		createUserFn: func(context.Context, store.User) error {
			return store.ErrDuplicateUsername
		},
	}
	svc := NewService(fs)

	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:    "alice@example.com",
		Password: "password123",
		Username: "alice1",
	})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSignInVerifiesPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	fs := &fakeUserStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			return store.User{ID: "user-1", Email: "alice@example.com", PasswordHash: string(hash)}, nil
		},
	}
	svc := NewService(fs)

	user, err := svc.SignIn(context.Background(), SignInRequest{Email: "alice@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("expected user-1, got %q", user.ID)
	}

	_, err = svc.SignIn(context.Background(), SignInRequest{Email: "alice@example.com", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignInUnknownEmailIsInvalidCredentials(t *testing.T) {
	svc := NewService(&fakeUserStore{})
	_, err := svc.SignIn(context.Background(), SignInRequest{Email: "nobody@example.com", Password: "password123"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
