package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/store"
)

func TestSignUpCreatesAccount(t *testing.T) {
	var created store.User
	fs := &fakeStore{
		createUserFn: func(_ context.Context, user store.User) error {
			created = user
			return nil
		},
	}
	server, _ := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		bytes.NewBufferString(`{"email":"alice@example.com","password":"password1","username":"alice1"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if created.Username != "alice1" || created.Email != "alice@example.com" {
		t.Fatalf("created user = %+v", created)
	}
	if created.ProfileSetup {
		t.Fatal("new account should not have profileSetup set")
	}

	payload := decodeResponse(t, rr)
	user, _ := payload["user"].(map[string]any)
	if user["username"] != "alice1" {
		t.Fatalf("username = %v", user["username"])
	}
	if user["profileSetup"] != false {
		t.Fatalf("profileSetup = %v", user["profileSetup"])
	}
}

func TestSignUpDuplicateUsernameConflict(t *testing.T) {
	fs := &fakeStore{
		getUserByUsernameFn: func(_ context.Context, username string) (store.User, error) {
			return store.User{ID: "usr_1", Username: username}, nil
		},
	}
	server, _ := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		bytes.NewBufferString(`{"email":"b@example.com","password":"password1","username":"alice1"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["error"] == nil {
		t.Fatal("expected error field in body")
	}
}

func TestSignUpDuplicateEmailConflict(t *testing.T) {
	fs := &fakeStore{
		createUserFn: func(context.Context, store.User) error {
			return store.ErrDuplicateEmail
		},
	}
	server, _ := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		bytes.NewBufferString(`{"email":"a@example.com","password":"password1","username":"alice2"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["error"] != "Email already exists" {
		t.Fatalf("error = %v, want email conflict message", payload["error"])
	}
}

func TestSignUpMissingFields(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		bytes.NewBufferString(`{"email":"a@example.com"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLoginReturnsTokenAndUser(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{
				ID:           "usr_alice",
				Username:     "alice1",
				Email:        email,
				PasswordHash: string(hash),
				ProfileSetup: true,
			}, nil
		},
	}
	server, svc := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"email":"alice@example.com","password":"password1"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("expected token")
	}

	ident, err := svc.IdentityFromToken(token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if ident.UserID != "usr_alice" || ident.Username != "alice1" || !ident.ProfileSetup {
		t.Fatalf("identity = %+v", ident)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "usr_alice", Email: email, PasswordHash: string(hash)}, nil
		},
	}
	server, _ := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"email":"alice@example.com","password":"wrong-password"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestUserSearchPrefix(t *testing.T) {
	var gotPrefix string
	fs := &fakeStore{
		searchUsersByPrefixFn: func(_ context.Context, prefix string, limit int) ([]store.User, error) {
			gotPrefix = prefix
			return []store.User{
				{ID: "usr_1", Username: "alice1", FullName: "Alice One"},
				{ID: "usr_2", Username: "alice2", FullName: "Alice Two"},
			}, nil
		},
	}
	server, svc := newTestServer(fs)

	req := httptest.NewRequest(http.MethodGet, "/api/user/search?username=ali", nil)
	req.Header.Set("Authorization", bearerFor(t, svc, store.User{ID: "usr_9", Username: "searcher", Email: "s@x.com"}))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if gotPrefix != "ali" {
		t.Fatalf("prefix = %q", gotPrefix)
	}
	payload := decodeResponse(t, rr)
	users, _ := payload["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("len(users) = %d", len(users))
	}
}

func TestUserSearchRequiresQuery(t *testing.T) {
	server, svc := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/user/search", nil)
	req.Header.Set("Authorization", bearerFor(t, svc, store.User{ID: "usr_9", Username: "searcher", Email: "s@x.com"}))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
