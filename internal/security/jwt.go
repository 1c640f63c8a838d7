package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrMalformedToken = errors.New("malformed token")

// PortalClaims mirrors the payload the portal backend puts in its tokens.
type PortalClaims struct {
	Role string `json:"role,omitempty"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// PeekClaims decodes a token without verifying its signature. The client
// never holds the signing secret; it only uses the expiry for scheduling.
func PeekClaims(raw string) (*PortalClaims, error) {
	if raw == "" {
		return nil, ErrMalformedToken
	}
	claims := &PortalClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of raw, or the zero time when the token
// carries none or cannot be decoded.
func ExpiresAt(raw string) time.Time {
	claims, err := PeekClaims(raw)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// JWTManager issues and verifies portal tokens. Only the test backend signs.
type JWTManager struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

func NewJWTManager(accessSecret, refreshSecret string) *JWTManager {
	return &JWTManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
}

func (m *JWTManager) SignAccessToken(userID string, role string, ttl time.Duration) (string, error) {
	return m.sign(userID, role, TokenTypeAccess, ttl, m.accessSecret)
}

func (m *JWTManager) SignRefreshToken(userID string, ttl time.Duration) (string, error) {
	return m.sign(userID, "", TokenTypeRefresh, ttl, m.refreshSecret)
}

func (m *JWTManager) ParseAccessToken(raw string) (*PortalClaims, error) {
	return m.parse(raw, m.accessSecret, TokenTypeAccess)
}

func (m *JWTManager) ParseRefreshToken(raw string) (*PortalClaims, error) {
	return m.parse(raw, m.refreshSecret, TokenTypeRefresh)
}

func (m *JWTManager) sign(userID string, role, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := m.now()
	claims := PortalClaims{
		Role: role,
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *JWTManager) parse(raw string, secret []byte, tokenType string) (*PortalClaims, error) {
	claims := &PortalClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Type != tokenType {
		return nil, fmt.Errorf("unexpected token type: %s", claims.Type)
	}
	return claims, nil
}
