package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"walkie/internal/models"
)

type memStore struct {
	users map[string]UserCredentials
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]UserCredentials)}
}

func (m *memStore) UpsertCredentials(c UserCredentials) error {
	m.users[c.Username] = c
	return nil
}

func (m *memStore) GetCredentials(username string) (UserCredentials, error) {
	c, ok := m.users[username]
	if !ok {
		return UserCredentials{}, models.ErrNotFound
	}
	return c, nil
}

func newTestService(t *testing.T) *AuthService {
	t.Helper()
	svc, err := NewAuthService(context.Background(), Config{TokenExpiry: time.Hour}, newMemStore())
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return svc
}

func TestAuthService(t *testing.T) {
	t.Run("Register", func(t *testing.T) {
		svc := newTestService(t)

		if err := svc.Register("alice", "pass1"); err != nil {
			t.Fatalf("Failed to register: %v", err)
		}

		err := svc.Register("alice", "pass2")
		if !errors.Is(err, ErrUserExists) {
			t.Errorf("Expected ErrUserExists, got %v", err)
		}

		if err := svc.Register("bad user", "pass"); err == nil {
			t.Error("Expected error for invalid username")
		}
		if err := svc.Register("bob", ""); err == nil {
			t.Error("Expected error for empty password")
		}
	})

	t.Run("LoginAndResolve", func(t *testing.T) {
		svc := newTestService(t)
		if err := svc.Register("alice", "secret"); err != nil {
			t.Fatalf("Failed to register: %v", err)
		}

		token, err := svc.Login(LoginRequest{Username: "alice", Password: "secret"})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if token == "" {
			t.Fatal("Expected non-empty token")
		}

		username, err := svc.GetUsername(token)
		if err != nil {
			t.Fatalf("GetUsername failed: %v", err)
		}
		if username != "alice" {
			t.Errorf("Expected alice, got %s", username)
		}
	})

	t.Run("LoginFailures", func(t *testing.T) {
		svc := newTestService(t)
		if err := svc.Register("alice", "secret"); err != nil {
			t.Fatalf("Failed to register: %v", err)
		}

		if _, err := svc.Login(LoginRequest{Username: "alice", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials for wrong password, got %v", err)
		}
		if _, err := svc.Login(LoginRequest{Username: "nobody", Password: "secret"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials for unknown user, got %v", err)
		}
	})

	t.Run("Logoff", func(t *testing.T) {
		svc := newTestService(t)
		if err := svc.Register("alice", "secret"); err != nil {
			t.Fatalf("Failed to register: %v", err)
		}
		token, err := svc.Login(LoginRequest{Username: "alice", Password: "secret"})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		if err := svc.Logoff(token); err != nil {
			t.Fatalf("Logoff failed: %v", err)
		}
		if _, err := svc.GetUsername(token); err == nil {
			t.Error("Expected error resolving revoked token")
		}
	})

	t.Run("PasswordNotStoredPlain", func(t *testing.T) {
		store := newMemStore()
		svc, err := NewAuthService(context.Background(), Config{TokenExpiry: time.Hour}, store)
		if err != nil {
			t.Fatal(err)
		}
		if err := svc.Register("alice", "secret"); err != nil {
			t.Fatalf("Failed to register: %v", err)
		}
		if store.users["alice"].PasswordHash == "secret" {
			t.Error("Password stored in plaintext")
		}
	})
}
