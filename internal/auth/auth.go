package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"walkie/internal/content"
	"walkie/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const DefaultTokenExpiry = 24 * time.Hour

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegistrationRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserCredentials is the persisted identity record. The relay never sees
// this; it only ever receives the stable username.
type UserCredentials struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	RegisteredAt string `json:"registeredAt"`
}

// CredentialStore is the durable side of the service, implemented by
// storage.BboltStorage.
type CredentialStore interface {
	UpsertCredentials(credentials UserCredentials) error
	GetCredentials(username string) (UserCredentials, error)
}

type Config struct {
	TokenExpiry time.Duration `json:"tokenExpiry"`
}

func (c *Config) Validate() error {
	if c.TokenExpiry == 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}
	if c.TokenExpiry < 0 {
		return errors.New("token expiry must be positive")
	}
	return nil
}

// AuthService issues and resolves opaque session tokens. Live tokens are
// held in a TTL cache; credentials live in the store.
type AuthService struct {
	Config
	store      CredentialStore
	liveTokens geche.Geche[string, string]
	mu         sync.Mutex
	now        func() time.Time
}

func NewAuthService(ctx context.Context, config Config, store CredentialStore) (*AuthService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &AuthService{
		Config:     config,
		store:      store,
		liveTokens: geche.NewMapTTLCache[string, string](ctx, config.TokenExpiry, time.Minute),
		now:        time.Now,
	}, nil
}

// Register creates a new user. Usernames are unique; the check and the
// insert are serialized under the service mutex.
func (as *AuthService) Register(username, password string) error {
	if err := content.ValidateUsername(username); err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	if _, err := as.store.GetCredentials(username); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return as.store.UpsertCredentials(UserCredentials{
		Username:     username,
		PasswordHash: string(hash),
		RegisteredAt: as.now().UTC().Format(time.RFC3339),
	})
}

// Login verifies the credentials and returns a fresh session token.
func (as *AuthService) Login(req LoginRequest) (string, error) {
	creds, err := as.store.GetCredentials(req.Username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(req.Password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	as.liveTokens.Set(token, creds.Username)
	return token, nil
}

func (as *AuthService) Logoff(token string) error {
	return as.liveTokens.Del(token)
}

// GetUsername resolves a live session token to its username.
func (as *AuthService) GetUsername(token string) (string, error) {
	return as.liveTokens.Get(token)
}

// TokenExpiryUnix returns the absolute expiry for a token issued now.
func (as *AuthService) TokenExpiryUnix() int64 {
	return as.now().Unix() + int64(as.TokenExpiry.Seconds())
}
