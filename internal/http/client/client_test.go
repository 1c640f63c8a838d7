package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandeepkv93/alumni-portal-client/internal/authstate"
	"github.com/sandeepkv93/alumni-portal-client/internal/config"
	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/http/response"
	"github.com/sandeepkv93/alumni-portal-client/internal/repository"
	"github.com/sandeepkv93/alumni-portal-client/internal/session"
)

type stubRefresher struct {
	calls atomic.Int32
	token string
	err   error
	store *session.TokenStore
}

func (s *stubRefresher) EnsureFreshToken(_ context.Context, _ string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	s.store.SetAccessToken(s.token)
	return s.token, nil
}

type seenRequest struct {
	auth      string
	requestID string
	body      string
}

type recordingBackend struct {
	mu    sync.Mutex
	seen  []seenRequest
	valid string
}

func (b *recordingBackend) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.seen = append(b.seen, seenRequest{auth: r.Header.Get("Authorization"), requestID: r.Header.Get("X-Request-Id"), body: string(body)})
	valid := b.valid
	b.mu.Unlock()
	if r.Header.Get("Authorization") != "Bearer "+valid {
		response.Detail(w, r, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"echo": string(body)})
}

func (b *recordingBackend) requests() []seenRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]seenRequest(nil), b.seen...)
}

func newClientForTest(t *testing.T, backend *recordingBackend, ref *stubRefresher) (*Client, *session.TokenStore) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	t.Cleanup(srv.Close)

	store := session.NewTokenStore(repository.NewInMemoryKeyValueRepository(), nil)
	ref.store = store
	cfg := &config.Config{BackendURL: srv.URL + "/", HTTPTimeout: 5 * time.Second}
	return New(cfg, store, ref, nil, http.DefaultTransport, nil), store
}

func TestClientAttachesBearerAndRequestID(t *testing.T) {
	backend := &recordingBackend{valid: "good"}
	c, store := newClientForTest(t, backend, &stubRefresher{token: "good"})

	store.SetAccessToken("good")
	var out map[string]string
	if err := c.PostJSON(context.Background(), "/api/echo", map[string]string{"a": "b"}, &out); err != nil {
		t.Fatalf("post: %v", err)
	}
	reqs := backend.requests()
	if len(reqs) != 1 || reqs[0].auth != "Bearer good" || reqs[0].requestID == "" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	if out["echo"] != `{"a":"b"}` {
		t.Fatalf("unexpected echo %+v", out)
	}
}

func TestClientRetriesOnceAfterRefresh(t *testing.T) {
	backend := &recordingBackend{valid: "fresh"}
	ref := &stubRefresher{token: "fresh"}
	c, store := newClientForTest(t, backend, ref)
	store.SetAccessToken("stale")

	var out map[string]string
	if err := c.PostJSON(context.Background(), "/api/echo", map[string]int{"n": 1}, &out); err != nil {
		t.Fatalf("post: %v", err)
	}
	if ref.calls.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", ref.calls.Load())
	}
	reqs := backend.requests()
	if len(reqs) != 2 {
		t.Fatalf("expected original plus one retry, got %d", len(reqs))
	}
	if reqs[0].auth != "Bearer stale" || reqs[1].auth != "Bearer fresh" {
		t.Fatalf("unexpected auth headers %+v", reqs)
	}
	if reqs[1].body != `{"n":1}` {
		t.Fatalf("expected replayed body, got %q", reqs[1].body)
	}
}

func TestClientPassesThroughSecond401(t *testing.T) {
	backend := &recordingBackend{valid: "never"}
	ref := &stubRefresher{token: "fresh"}
	c, store := newClientForTest(t, backend, ref)
	store.SetAccessToken("stale")

	err := c.GetJSON(context.Background(), "/api/profile", nil)
	if !response.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 api error, got %v", err)
	}
	if ref.calls.Load() != 1 || len(backend.requests()) != 2 {
		t.Fatalf("expected exactly one retry, refresh=%d requests=%d", ref.calls.Load(), len(backend.requests()))
	}
}

func TestClientWithoutRefreshSkipsRetry(t *testing.T) {
	backend := &recordingBackend{valid: "never"}
	ref := &stubRefresher{token: "fresh"}
	c, _ := newClientForTest(t, backend, ref)

	err := c.PostJSON(WithoutRefresh(context.Background()), "/api/auth/login", map[string]string{"email": "x"}, nil)
	if !response.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 api error, got %v", err)
	}
	if ref.calls.Load() != 0 {
		t.Fatalf("expected no refresh, got %d", ref.calls.Load())
	}
}

func TestClientRefreshFailureExpiresSession(t *testing.T) {
	backend := &recordingBackend{valid: "never"}
	ref := &stubRefresher{err: session.ErrRefreshFailed}
	c, store := newClientForTest(t, backend, ref)
	ctx := context.Background()
	store.SetAccessToken("stale")
	_ = store.SetUser(ctx, &domain.User{ID: "1", Role: domain.RoleStudent})

	var notified atomic.Int32
	cancel := c.OnSessionExpired(func(_ context.Context, cause error) {
		if errors.Is(cause, session.ErrRefreshFailed) {
			notified.Add(1)
		}
	})
	defer cancel()

	err := c.GetJSON(ctx, "/api/profile", nil)
	if !errors.Is(err, ErrSessionExpired) || !errors.Is(err, session.ErrRefreshFailed) {
		t.Fatalf("expected session expired error, got %v", err)
	}
	if notified.Load() != 1 {
		t.Fatalf("expected one expiry notification, got %d", notified.Load())
	}
	if store.AccessToken() != "" || store.User(ctx) != nil {
		t.Fatal("expected session cleared")
	}

	cancel()
	_ = c.GetJSON(ctx, "/api/profile", nil)
	if notified.Load() != 1 {
		t.Fatal("expected removed listener not to be notified")
	}
}

func TestRefreshRetryStageSkipsUnreplayableBody(t *testing.T) {
	calls := 0
	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader("")), Request: req}, nil
	})
	ref := &stubRefresher{token: "fresh", store: session.NewTokenStore(repository.NewInMemoryKeyValueRepository(), nil)}
	rt := Chain(base, RefreshRetryStage(ref, nil, nil))

	req, _ := http.NewRequest(http.MethodPost, "http://portal.test/api/x", io.NopCloser(strings.NewReader("stream")))
	req.GetBody = nil
	resp, err := rt.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 passthrough, got %v %v", resp, err)
	}
	if calls != 1 || ref.calls.Load() != 0 {
		t.Fatalf("expected no retry, calls=%d refresh=%d", calls, ref.calls.Load())
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	stage := func(name string) Stage {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(req)
			})
		}
	}
	base := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		order = append(order, "base")
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	})
	req, _ := http.NewRequest(http.MethodGet, "http://portal.test/", nil)
	if _, err := Chain(base, stage("a"), stage("b")).RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if strings.Join(order, ",") != "a,b,base" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestRefresherUsesCookieJar(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r1", Path: "/", HttpOnly: true})
	})
	mux.HandleFunc(RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("refresh_token")
		if err != nil || c.Value != "r1" {
			response.Detail(w, r, http.StatusUnauthorized, "Refresh token missing")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "new-access"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	jar, err := NewPersistentJar(ctx, srv.URL, repository.NewInMemoryKeyValueRepository(), nil)
	if err != nil {
		t.Fatalf("jar: %v", err)
	}
	cfg := &config.Config{BackendURL: srv.URL, RefreshTimeout: time.Second}
	r := NewRefresher(cfg, jar, http.DefaultTransport)

	if _, err := r.RefreshAccessToken(ctx); !response.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 without cookie, got %v", err)
	}

	resp, err := (&http.Client{Jar: jar}).Get(srv.URL + "/login")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()

	tok, err := r.RefreshAccessToken(ctx)
	if err != nil || tok != "new-access" {
		t.Fatalf("expected refreshed token, got %q err=%v", tok, err)
	}
}

type failingRefresher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (f *failingRefresher) RefreshAccessToken(ctx context.Context) (string, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
	}
	select {
	case <-f.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "", errors.New("refresh token revoked")
}

type coordinatedStack struct {
	client   *Client
	backend  *recordingBackend
	store    *session.TokenStore
	provider *authstate.Provider
	ref      *failingRefresher
	expired  chan error
}

func newCoordinatedStack(t *testing.T) *coordinatedStack {
	t.Helper()
	backend := &recordingBackend{valid: "never-issued"}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store := session.NewTokenStore(repository.NewInMemoryKeyValueRepository(), nil)
	ref := &failingRefresher{started: make(chan struct{}), release: make(chan struct{})}
	coord := session.NewCoordinator(store, ref, 5*time.Second, nil)
	cfg := &config.Config{BackendURL: srv.URL, HTTPTimeout: 5 * time.Second}
	c := New(cfg, store, coord, nil, http.DefaultTransport, nil)

	provider := authstate.NewProvider(store, nil, nil)
	c.OnSessionExpired(provider.HandleSessionExpired)
	expired := make(chan error, 16)
	c.OnSessionExpired(func(_ context.Context, cause error) { expired <- cause })

	user := &domain.User{ID: "9", Name: "Meera", Role: domain.RoleAlumni}
	provider.SetAuth(ctx, user, "stale")
	if got := provider.Snapshot().State; got != domain.SessionAuthenticated {
		t.Fatalf("expected authenticated before refresh, got %s", got)
	}
	return &coordinatedStack{client: c, backend: backend, store: store, provider: provider, ref: ref, expired: expired}
}

func (s *coordinatedStack) waitExpired(t *testing.T) error {
	t.Helper()
	select {
	case cause := <-s.expired:
		return cause
	case <-time.After(2 * time.Second):
		t.Fatal("session expiry was never announced")
		return nil
	}
}

func TestClientAnnouncesExpiryWhenCallerCancelledDuringRefresh(t *testing.T) {
	s := newCoordinatedStack(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.client.GetJSON(ctx, "/api/auth/me", nil)
	}()

	<-s.ref.started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected caller cancellation, got %v", err)
	}
	close(s.ref.release)

	if cause := s.waitExpired(t); !errors.Is(cause, session.ErrRefreshFailed) {
		t.Fatalf("expected refresh failure cause, got %v", cause)
	}
	select {
	case extra := <-s.expired:
		t.Fatalf("expected a single announcement, got another: %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
	if got := s.provider.Snapshot().State; got != domain.SessionAnonymous {
		t.Fatalf("expected anonymous after failed refresh, got %s", got)
	}
	if s.store.AccessToken() != "" || s.store.User(context.Background()) != nil {
		t.Fatal("expected session store cleared")
	}
}

func TestClientAnnouncesExpiryOncePerFailedRefresh(t *testing.T) {
	s := newCoordinatedStack(t)

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.client.GetJSON(context.Background(), "/api/auth/me", nil)
		}(i)
	}

	<-s.ref.started
	deadline := time.Now().Add(2 * time.Second)
	for len(s.backend.requests()) < callers {
		if time.Now().After(deadline) {
			t.Fatalf("only %d callers reached the backend", len(s.backend.requests()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Give the last 401 time to join the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(s.ref.release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("caller %d: expected ErrSessionExpired, got %v", i, err)
		}
	}
	s.waitExpired(t)
	select {
	case extra := <-s.expired:
		t.Fatalf("expected a single announcement, got another: %v", extra)
	default:
	}
	if got := s.ref.calls.Load(); got != 1 {
		t.Fatalf("expected one shared refresh, got %d", got)
	}
	if got := s.provider.Snapshot().State; got != domain.SessionAnonymous {
		t.Fatalf("expected anonymous, got %s", got)
	}
}
