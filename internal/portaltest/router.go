package portaltest

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sandeepkv93/alumni-portal-client/internal/http/middleware"
	"github.com/sandeepkv93/alumni-portal-client/internal/security"
)

func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(s.outage)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(s.record)

	auth := middleware.AuthMiddleware(s.jwt, s.accessRevoked)
	signupLimiter := middleware.NewRateLimiter(s.opts.SignupLimit, s.opts.SignupWindow).Middleware()

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.With(signupLimiter).Post("/signup", s.handleSignup)
			r.Post("/verify-registration", s.handleVerifyRegistration)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/logout", s.handleLogout)
			r.Post("/request-password-reset", s.handleRequestPasswordReset)
			r.Post("/reset-password", s.handleResetPassword)
			r.Group(func(r chi.Router) {
				r.Use(s.holdUnauthorized, auth)
				r.Post("/logout-all", s.handleLogoutAll)
				r.Post("/change-password", s.handleChangePassword)
				r.Post("/verify-password", s.handleVerifyPassword)
				r.Get("/me", s.handleMe)
				r.Patch("/me", s.handleUpdateMe)
			})
		})
		r.Post("/admin/login", s.handleAdminLogin)
		r.With(s.holdUnauthorized, auth).Get("/profile", s.handleMe)
	})
	return r
}

// outage drops the connection without answering while FailAll is set.
func (s *Server) outage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.failAll.Load() {
			next.ServeHTTP(w, r)
			return
		}
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("portaltest: response writer cannot hijack")
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
	})
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		route := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.counts[route]++
		s.lastBodies[route] = body
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// holdUnauthorized parks requests that are about to be rejected while a
// HoldUnauthorized barrier is armed.
func (s *Server) holdUnauthorized(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.validBearer(r) {
			s.waitUnauthorized()
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) validBearer(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if len(auth) <= 7 {
		return false
	}
	claims, err := s.jwt.ParseAccessToken(auth[7:])
	return err == nil && !s.accessRevoked(claims)
}

func (s *Server) accessRevoked(claims *security.PortalClaims) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, live := s.liveAccess[claims.ID]
	return !live
}
