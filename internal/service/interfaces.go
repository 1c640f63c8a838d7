package service

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
)

// APIClient is the slice of the HTTP client wrapper the service drives.
type APIClient interface {
	NewRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
	GetJSON(ctx context.Context, path string, out interface{}) error
	PostJSON(ctx context.Context, path string, in, out interface{}) error
	PatchJSON(ctx context.Context, path string, in, out interface{}) error
}

type SessionStore interface {
	SetAccessToken(token string)
	AccessToken() string
	Token() (*oauth2.Token, error)
	SetUser(ctx context.Context, user *domain.User) error
	User(ctx context.Context) *domain.User
	Clear(ctx context.Context) error
}

// CookieForgetter drops the persisted refresh cookie on local logout.
type CookieForgetter interface {
	Forget(ctx context.Context) error
}

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	AdminLogin(ctx context.Context, email, password string) (*LoginResult, error)
	Signup(ctx context.Context, req SignupRequest) (*LoginResult, error)
	VerifyRegistration(ctx context.Context, req VerifyRegistrationRequest) (*VerifyRegistrationResult, error)
	Logout(ctx context.Context)
	LogoutAll(ctx context.Context)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Reauthenticate(ctx context.Context, password string) bool
	FetchProfile(ctx context.Context) (*domain.User, error)
	CurrentUser(ctx context.Context) (*domain.User, error)
	UpdateProfile(ctx context.Context, req ProfileUpdate) (*domain.User, error)
}
