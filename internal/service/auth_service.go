package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/http/client"
	"github.com/sandeepkv93/alumni-portal-client/internal/http/response"
	"github.com/sandeepkv93/alumni-portal-client/internal/observability"
	"github.com/sandeepkv93/alumni-portal-client/internal/security"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrSignupFailed         = errors.New("signup failed")
	ErrPasswordChangeFailed = errors.New("password change failed")
	ErrPasswordResetFailed  = errors.New("password reset failed")
	ErrEmptyAccessToken     = errors.New("backend returned no access token")
)

type AuthService struct {
	api     APIClient
	store   SessionStore
	cookies CookieForgetter
	logger  *slog.Logger
}

func NewAuthService(api APIClient, store SessionStore, cookies CookieForgetter, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{api: api, store: store, cookies: cookies, logger: logger}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return s.login(ctx, "user", PathLogin, email, password)
}

// AdminLogin authenticates against the admin console endpoint. The result
// is stored the same way as a regular login.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	return s.login(ctx, "admin", PathAdminLogin, email, password)
}

func (s *AuthService) login(ctx context.Context, kind, path, email, password string) (*LoginResult, error) {
	req := loginRequest{Email: security.SanitizeText(email), Password: password}
	var out LoginResult
	if err := s.api.PostJSON(client.WithoutRefresh(ctx), path, req, &out); err != nil {
		observability.RecordAuthLogin(ctx, kind, "failure")
		if isClientError(err) {
			return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := s.establish(ctx, &out); err != nil {
		observability.RecordAuthLogin(ctx, kind, "failure")
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	observability.RecordAuthLogin(ctx, kind, "success")
	observability.Audit(ctx, "login", "kind", kind, "user_id", out.User.ID, "role", string(out.User.Role))
	return &out, nil
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*LoginResult, error) {
	if err := security.ValidatePasswordStrength(req.Password); err != nil {
		observability.RecordAuthLogin(ctx, "signup", "rejected")
		return nil, fmt.Errorf("%w: %w", ErrSignupFailed, err)
	}
	var out LoginResult
	if err := s.api.PostJSON(client.WithoutRefresh(ctx), PathSignup, req.sanitized(), &out); err != nil {
		observability.RecordAuthLogin(ctx, "signup", "failure")
		if isClientError(err) {
			return nil, fmt.Errorf("%w: %w", ErrSignupFailed, err)
		}
		return nil, fmt.Errorf("signup: %w", err)
	}
	if err := s.establish(ctx, &out); err != nil {
		observability.RecordAuthLogin(ctx, "signup", "failure")
		return nil, fmt.Errorf("%w: %w", ErrSignupFailed, err)
	}
	observability.RecordAuthLogin(ctx, "signup", "success")
	observability.Audit(ctx, "signup", "user_id", out.User.ID, "role", string(out.User.Role))
	return &out, nil
}

func (s *AuthService) establish(ctx context.Context, out *LoginResult) error {
	if out.AccessToken == "" {
		return ErrEmptyAccessToken
	}
	if out.User == nil {
		return errors.New("backend returned no user")
	}
	s.store.SetAccessToken(out.AccessToken)
	if err := s.store.SetUser(ctx, out.User); err != nil {
		s.store.SetAccessToken("")
		return err
	}
	return nil
}

func (s *AuthService) VerifyRegistration(ctx context.Context, req VerifyRegistrationRequest) (*VerifyRegistrationResult, error) {
	req.RegistrationNumber = security.SanitizeText(req.RegistrationNumber)
	req.Department = security.SanitizeText(req.Department)
	var out VerifyRegistrationResult
	if err := s.api.PostJSON(client.WithoutRefresh(ctx), PathVerifyRegistration, req, &out); err != nil {
		return nil, fmt.Errorf("verify registration: %w", err)
	}
	return &out, nil
}

// Logout asks the backend to revoke the refresh cookie, then clears local
// state whatever the outcome.
func (s *AuthService) Logout(ctx context.Context) {
	s.logout(ctx, "session", PathLogout)
}

// LogoutAll revokes every session of the account, then clears local state.
func (s *AuthService) LogoutAll(ctx context.Context) {
	s.logout(ctx, "all", PathLogoutAll)
}

func (s *AuthService) logout(ctx context.Context, scope, path string) {
	status := "success"
	if err := s.api.PostJSON(ctx, path, nil, nil); err != nil {
		status = "failure"
		s.logger.WarnContext(ctx, "backend logout failed", "scope", scope, "error", err)
	}
	if err := s.store.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "clear session failed", "scope", scope, "error", err)
	}
	if s.cookies != nil {
		if err := s.cookies.Forget(ctx); err != nil {
			s.logger.WarnContext(ctx, "forget cookies failed", "error", err)
		}
	}
	observability.RecordAuthLogout(ctx, scope, status)
	observability.Audit(ctx, "logout", "scope", scope, "backend_status", status)
}

func (s *AuthService) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	if err := s.api.PostJSON(s.passwordCheckContext(ctx), PathChangePassword, req, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrPasswordChangeFailed, err)
	}
	return nil
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	req := passwordResetRequest{Email: security.SanitizeText(email)}
	if err := s.api.PostJSON(client.WithoutRefresh(ctx), PathRequestPasswordReset, req, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrPasswordResetFailed, err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	req := resetPasswordRequest{Token: token, NewPassword: newPassword}
	if err := s.api.PostJSON(client.WithoutRefresh(ctx), PathResetPassword, req, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrPasswordResetFailed, err)
	}
	return nil
}

// Reauthenticate reports whether the backend accepts password for the
// signed-in account. The session is left untouched.
func (s *AuthService) Reauthenticate(ctx context.Context, password string) bool {
	req, err := s.api.NewRequest(s.passwordCheckContext(ctx), http.MethodPost, PathVerifyPassword, verifyPasswordRequest{Password: password})
	if err != nil {
		return false
	}
	resp, err := s.api.Do(req)
	if err != nil {
		s.logger.DebugContext(ctx, "reauthenticate failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// passwordCheckContext keeps a wrong-password 401 from refreshing a token
// that has not expired yet.
func (s *AuthService) passwordCheckContext(ctx context.Context) context.Context {
	if tok, err := s.store.Token(); err == nil && tok.Valid() {
		return client.WithoutRefresh(ctx)
	}
	return ctx
}

// FetchProfile is the liveness probe used when restoring a stored session.
func (s *AuthService) FetchProfile(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := s.api.GetJSON(ctx, PathProfile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) CurrentUser(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := s.api.GetJSON(ctx, PathMe, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile patches the editable profile fields and caches the answer
// as the durable user.
func (s *AuthService) UpdateProfile(ctx context.Context, req ProfileUpdate) (*domain.User, error) {
	var out domain.User
	if err := s.api.PatchJSON(ctx, PathMe, req.sanitized(), &out); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if err := s.store.SetUser(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SanitizeHTML cleans backend supplied markup before it is rendered.
func (s *AuthService) SanitizeHTML(html string) string {
	return security.SanitizeHTML(html)
}

func isClientError(err error) bool {
	var apiErr *response.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}
