package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/sandeepkv93/alumni-portal-client/internal/config"
	"github.com/sandeepkv93/alumni-portal-client/internal/http/response"
	"github.com/sandeepkv93/alumni-portal-client/internal/observability"
)

const RefreshPath = "/api/auth/refresh"

// TokenStore is the view of the session store the pipeline needs.
type TokenStore interface {
	oauth2.TokenSource
	AccessToken() string
	Clear(ctx context.Context) error
}

// SessionExpiredFunc is told when a failed refresh ended the session.
type SessionExpiredFunc func(ctx context.Context, cause error)

// FailureNotifier is a TokenRefresher that reports each failed refresh
// once, independent of who was waiting on it.
type FailureNotifier interface {
	OnRefreshFailure(fn func(ctx context.Context, cause error)) func()
}

// Client is the one HTTP client of the application. Every request runs
// through requestID, bearer and refreshRetry before reaching the network.
type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore
	refresh TokenRefresher
	logger  *slog.Logger

	mu        sync.RWMutex
	listeners map[int]SessionExpiredFunc
	nextID    int
}

// NewBaseTransport is the network transport shared by the pipeline and the
// refresh call.
func NewBaseTransport(cfg *config.Config) http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.OTELHTTPEnabled {
		return otelhttp.NewTransport(base)
	}
	return base
}

func New(cfg *config.Config, store TokenStore, refresher TokenRefresher, jar http.CookieJar, base http.RoundTripper, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if base == nil {
		base = NewBaseTransport(cfg)
	}
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BackendURL, "/"),
		store:     store,
		refresh:   refresher,
		logger:    logger,
		listeners: map[int]SessionExpiredFunc{},
	}
	onExpired := c.expire
	if n, ok := refresher.(FailureNotifier); ok {
		n.OnRefreshFailure(c.expire)
		onExpired = nil
	}
	c.http = &http.Client{
		Jar:     jar,
		Timeout: cfg.HTTPTimeout,
		Transport: Chain(base,
			RequestIDStage(),
			BearerStage(store),
			RefreshRetryStage(refresher, onExpired, logger),
		),
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// OnSessionExpired registers fn and returns a function removing it.
func (c *Client) OnSessionExpired(fn SessionExpiredFunc) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) expire(ctx context.Context, cause error) {
	_ = c.store.Clear(ctx)
	observability.Audit(ctx, "session_expired", "error", cause.Error())

	c.mu.RLock()
	fns := make([]SessionExpiredFunc, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, cause)
	}
}

// NewRequest builds a JSON request against the backend. A nil body sends
// no payload.
func (c *Client) NewRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// DoJSON sends in and decodes a 2xx answer into out. Any other status comes
// back as *response.APIError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out interface{}) error {
	req, err := c.NewRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return response.Decode(resp, out)
}

func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.DoJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, in, out interface{}) error {
	return c.DoJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) PatchJSON(ctx context.Context, path string, in, out interface{}) error {
	return c.DoJSON(ctx, http.MethodPatch, path, in, out)
}

// RefreshAccessToken forces a refresh of the current token through the
// shared coordinator.
func (c *Client) RefreshAccessToken(ctx context.Context) (string, error) {
	return c.refresh.EnsureFreshToken(ctx, c.store.AccessToken())
}

// Refresher performs POST /api/auth/refresh outside of the stage pipeline,
// relying only on the refresh cookie held by the jar.
type Refresher struct {
	baseURL string
	http    *http.Client
}

func NewRefresher(cfg *config.Config, jar http.CookieJar, base http.RoundTripper) *Refresher {
	if base == nil {
		base = NewBaseTransport(cfg)
	}
	return &Refresher{
		baseURL: strings.TrimRight(cfg.BackendURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: cfg.RefreshTimeout, Transport: Chain(base, RequestIDStage())},
	}
}

func (r *Refresher) RefreshAccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+RefreshPath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := response.Decode(resp, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}
