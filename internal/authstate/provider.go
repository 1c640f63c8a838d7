// Package authstate holds the process-wide view of who is signed in. A
// Provider is created once by the application container and handed to every
// consumer; subscribers are told about each state change.
package authstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
)

// Store is the part of the token store the provider reconciles with.
type Store interface {
	SetAccessToken(token string)
	AccessToken() string
	SetUser(ctx context.Context, user *domain.User) error
	User(ctx context.Context) *domain.User
	LegacyToken(ctx context.Context) string
	DropLegacyToken(ctx context.Context) error
	Clear(ctx context.Context) error
}

// ProfileProber fetches the signed-in profile; any error means the stored
// session cannot be used.
type ProfileProber interface {
	FetchProfile(ctx context.Context) (*domain.User, error)
}

type Listener func(domain.Session)

type Provider struct {
	store  Store
	prober ProfileProber
	logger *slog.Logger

	mu        sync.RWMutex
	state     domain.Session
	listeners map[int]Listener
	nextID    int
	closed    bool
}

func NewProvider(store Store, prober ProfileProber, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:     store,
		prober:    prober,
		logger:    logger,
		state:     domain.Session{State: domain.SessionInitializing},
		listeners: map[int]Listener{},
	}
}

// Init reconciles with durable storage and settles on Authenticated or
// Anonymous.
func (p *Provider) Init(ctx context.Context) domain.Session {
	if legacy := p.store.LegacyToken(ctx); legacy != "" {
		if p.store.AccessToken() == "" {
			p.store.SetAccessToken(legacy)
		}
		if err := p.store.DropLegacyToken(ctx); err != nil {
			p.logger.WarnContext(ctx, "drop legacy token failed", "error", err)
		}
	}

	stored := p.store.User(ctx)
	if stored == nil {
		p.logger.DebugContext(ctx, "no stored session")
		return p.becomeAnonymous(ctx)
	}

	profile, err := p.prober.FetchProfile(ctx)
	token := p.store.AccessToken()
	if err != nil || token == "" {
		p.logger.InfoContext(ctx, "stored session rejected", "error", err)
		return p.becomeAnonymous(ctx)
	}

	user := stored
	if profile != nil && profile.ID != "" {
		user = profile
		if err := p.store.SetUser(ctx, user); err != nil {
			p.logger.WarnContext(ctx, "cache probed profile failed", "error", err)
		}
	}
	return p.transition(domain.Session{State: domain.SessionAuthenticated, User: user, AccessToken: token})
}

// SetAuth records a session established by login or signup.
func (p *Provider) SetAuth(ctx context.Context, user *domain.User, token string) domain.Session {
	p.store.SetAccessToken(token)
	if err := p.store.SetUser(ctx, user); err != nil {
		p.logger.WarnContext(ctx, "store user failed", "error", err)
	}
	return p.transition(domain.Session{State: domain.SessionAuthenticated, User: user, AccessToken: token})
}

// Logout drops local state only; backend revocation is the service's job.
func (p *Provider) Logout(ctx context.Context) domain.Session {
	return p.becomeAnonymous(ctx)
}

// RefreshUser re-reads the durable user without changing the state.
func (p *Provider) RefreshUser(ctx context.Context) domain.Session {
	p.mu.RLock()
	current := p.state
	p.mu.RUnlock()
	if current.State != domain.SessionAuthenticated {
		return current
	}
	user := p.store.User(ctx)
	if user == nil {
		return current
	}
	current.User = user
	current.AccessToken = p.store.AccessToken()
	return p.transition(current)
}

// HandleSessionExpired is hooked to the HTTP client's session-ended event.
func (p *Provider) HandleSessionExpired(ctx context.Context, cause error) {
	p.logger.InfoContext(ctx, "session ended by failed refresh", "error", cause)
	p.becomeAnonymous(ctx)
}

func (p *Provider) Snapshot() domain.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Subscribe registers fn for future state changes and returns a cancel
// function.
func (p *Provider) Subscribe(fn Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Close detaches every subscriber. Later transitions still update the
// snapshot but notify nobody.
func (p *Provider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.listeners = map[int]Listener{}
	p.mu.Unlock()
	return nil
}

func (p *Provider) becomeAnonymous(ctx context.Context) domain.Session {
	if err := p.store.Clear(ctx); err != nil {
		p.logger.WarnContext(ctx, "clear session failed", "error", err)
	}
	return p.transition(domain.Session{State: domain.SessionAnonymous})
}

func (p *Provider) transition(next domain.Session) domain.Session {
	p.mu.Lock()
	p.state = next
	var fns []Listener
	if !p.closed {
		fns = make([]Listener, 0, len(p.listeners))
		for _, fn := range p.listeners {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
	return next
}
