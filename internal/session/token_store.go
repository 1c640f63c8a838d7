package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/repository"
	"github.com/sandeepkv93/alumni-portal-client/internal/security"
)

const (
	KeyUser              = "user"
	KeyLegacyToken       = "token"
	KeyLegacyAccessToken = "access_token"
)

var ErrNoAccessToken = errors.New("no access token")

// TokenStore keeps the access token in process memory only and the user
// profile in durable storage.
type TokenStore struct {
	mu          sync.RWMutex
	accessToken string

	durable repository.KeyValueRepository
	logger  *slog.Logger
}

func NewTokenStore(durable repository.KeyValueRepository, logger *slog.Logger) *TokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenStore{durable: durable, logger: logger}
}

func (s *TokenStore) SetAccessToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

// AccessToken returns "" when unauthenticated.
func (s *TokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Token satisfies oauth2.TokenSource.
func (s *TokenStore) Token() (*oauth2.Token, error) {
	raw := s.AccessToken()
	if raw == "" {
		return nil, ErrNoAccessToken
	}
	return &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
		Expiry:      security.ExpiresAt(raw),
	}, nil
}

func (s *TokenStore) SetUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return s.durable.Delete(ctx, KeyUser)
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.durable.Set(ctx, KeyUser, string(raw)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// User returns nil when no usable profile is stored.
func (s *TokenStore) User(ctx context.Context) *domain.User {
	raw, err := s.durable.Get(ctx, KeyUser)
	if err != nil {
		if !errors.Is(err, repository.ErrKeyNotFound) {
			s.logger.WarnContext(ctx, "read stored user failed", "error", err)
		}
		return nil
	}
	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.WarnContext(ctx, "decode stored user failed", "error", err)
		return nil
	}
	return &user
}

// LegacyToken returns a bearer token persisted by older clients, if any.
func (s *TokenStore) LegacyToken(ctx context.Context) string {
	for _, key := range []string{KeyLegacyToken, KeyLegacyAccessToken} {
		raw, err := s.durable.Get(ctx, key)
		if err == nil && raw != "" {
			return raw
		}
	}
	return ""
}

func (s *TokenStore) DropLegacyToken(ctx context.Context) error {
	return s.durable.Delete(ctx, KeyLegacyToken, KeyLegacyAccessToken)
}

// Clear forgets the access token and removes every durable session record.
// The in-memory token is reset even when storage fails.
func (s *TokenStore) Clear(ctx context.Context) error {
	s.SetAccessToken("")
	if err := s.durable.Delete(ctx, KeyUser, KeyLegacyToken, KeyLegacyAccessToken); err != nil {
		s.logger.ErrorContext(ctx, "clear durable session failed", "error", err)
		return fmt.Errorf("clear durable session: %w", err)
	}
	return nil
}
