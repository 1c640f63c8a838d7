// Package portaltest runs an in-process portal backend for tests. It speaks
// the same routes, cookies and error bodies as the real backend and exposes
// knobs to force token expiry, refresh failure and network outages.
package portaltest

import (
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/security"
)

const RefreshCookieName = "refresh_token"

type Options struct {
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SignupLimit  int
	SignupWindow time.Duration
	HoldTimeout  time.Duration
}

type account struct {
	user         domain.User
	passwordHash string
}

type studentRecord struct {
	Name               string
	Department         string
	RegistrationNumber string
	PassoutYear        int
}

type barrier struct {
	remaining int
	release   chan struct{}
}

// Server is a fake portal backend listening on a local httptest server.
type Server struct {
	URL string

	srv  *httptest.Server
	jwt  *security.JWTManager
	opts Options

	mu          sync.Mutex
	accounts    map[string]*account
	liveAccess  map[string]string
	liveRefresh map[string]string
	resetTokens map[string]string
	records     []studentRecord
	counts      map[string]int
	lastBodies  map[string][]byte
	hold        *barrier

	failRefresh atomic.Bool
	failAll     atomic.Bool
}

// Start launches a server that is closed when t finishes.
func Start(t testing.TB) *Server {
	t.Helper()
	s := New(Options{})
	t.Cleanup(s.Close)
	return s
}

func New(opts Options) *Server {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.SignupLimit <= 0 {
		opts.SignupLimit = 3
	}
	if opts.SignupWindow <= 0 {
		opts.SignupWindow = time.Minute
	}
	if opts.HoldTimeout <= 0 {
		opts.HoldTimeout = 5 * time.Second
	}
	s := &Server{
		jwt:         security.NewJWTManager("portal-access-"+uuid.NewString(), "portal-refresh-"+uuid.NewString()),
		opts:        opts,
		accounts:    map[string]*account{},
		liveAccess:  map[string]string{},
		liveRefresh: map[string]string{},
		resetTokens: map[string]string{},
		counts:      map[string]int{},
		lastBodies:  map[string][]byte{},
	}
	s.srv = httptest.NewServer(NewRouter(s))
	s.URL = s.srv.URL
	return s
}

func (s *Server) Close() { s.srv.Close() }

// AddAccount registers a user with a password and returns the stored user.
func (s *Server) AddAccount(user domain.User, password string) domain.User {
	hash, err := security.HashPassword(password)
	if err != nil {
		panic(err)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(user.Email)] = &account{user: user, passwordHash: hash}
	return user
}

// AddStudentRecord seeds the university register consulted by signup.
func (s *Server) AddStudentRecord(name, department, registrationNumber string, passoutYear int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, studentRecord{
		Name:               name,
		Department:         department,
		RegistrationNumber: registrationNumber,
		PassoutYear:        passoutYear,
	})
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.liveAccess = map[string]string{}
	s.mu.Unlock()
}

func (s *Server) FailRefresh(fail bool) { s.failRefresh.Store(fail) }

// FailAll makes every request fail at the connection level.
func (s *Server) FailAll(fail bool) { s.failAll.Store(fail) }

// HoldUnauthorized delays the next n unauthorized answers until all n are
// pending, so they reach the client together.
func (s *Server) HoldUnauthorized(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		s.hold = nil
		return
	}
	s.hold = &barrier{remaining: n, release: make(chan struct{})}
}

// Count returns how many requests hit "METHOD /path".
func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[route]
}

// LastBody returns the raw body of the latest request to "METHOD /path".
func (s *Server) LastBody(route string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.lastBodies[route]...)
}

// ResetToken returns the pending password reset token for email.
func (s *Server) ResetToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, e := range s.resetTokens {
		if e == strings.ToLower(email) {
			return tok
		}
	}
	return ""
}

// User returns the backend copy of the account registered under email.
func (s *Server) User(email string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return domain.User{}, false
	}
	return acc.user, true
}

// LiveSessions counts unrevoked refresh tokens of the account.
func (s *Server) LiveSessions(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, owner := range s.liveRefresh {
		if owner == userID {
			n++
		}
	}
	return n
}

func (s *Server) waitUnauthorized() {
	s.mu.Lock()
	b := s.hold
	if b == nil {
		s.mu.Unlock()
		return
	}
	b.remaining--
	if b.remaining == 0 {
		close(b.release)
		s.hold = nil
	}
	s.mu.Unlock()

	select {
	case <-b.release:
	case <-time.After(s.opts.HoldTimeout):
	}
}
