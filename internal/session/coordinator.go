package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sandeepkv93/alumni-portal-client/internal/observability"
)

const refreshKey = "refresh"

var ErrRefreshFailed = errors.New("token refresh failed")

// Refresher performs the refresh round-trip against the backend.
type Refresher interface {
	RefreshAccessToken(ctx context.Context) (string, error)
}

// Coordinator shares a single in-flight refresh between every caller.
type Coordinator struct {
	store     *TokenStore
	refresher Refresher
	timeout   time.Duration
	logger    *slog.Logger

	group singleflight.Group

	mu         sync.Mutex
	onFailure  map[int]func(ctx context.Context, cause error)
	nextHookID int
}

func NewCoordinator(store *TokenStore, refresher Refresher, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{
		store:     store,
		refresher: refresher,
		timeout:   timeout,
		logger:    logger,
		onFailure: map[int]func(ctx context.Context, cause error){},
	}
}

// OnRefreshFailure registers fn and returns a function removing it. fn runs
// once per failed refresh, after the store is cleared, even when every
// caller waiting on that refresh has already gone away.
func (c *Coordinator) OnRefreshFailure(fn func(ctx context.Context, cause error)) func() {
	c.mu.Lock()
	id := c.nextHookID
	c.nextHookID++
	c.onFailure[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.onFailure, id)
		c.mu.Unlock()
	}
}

// EnsureFreshToken returns an access token newer than staleToken. When some
// other caller already replaced staleToken no request is made.
func (c *Coordinator) EnsureFreshToken(ctx context.Context, staleToken string) (string, error) {
	if current := c.store.AccessToken(); current != "" && current != staleToken {
		return current, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		if current := c.store.AccessToken(); current != "" && current != staleToken {
			return current, nil
		}
		return c.refresh(detached)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Coordinator) refresh(ctx context.Context) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.refresher.RefreshAccessToken(rctx)
	if err == nil && token == "" {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		observability.RecordAuthRefresh(ctx, "failure")
		c.logger.WarnContext(ctx, "access token refresh failed", "error", err)
		_ = c.store.Clear(ctx)
		err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		c.notifyFailure(ctx, err)
		return "", err
	}

	c.store.SetAccessToken(token)
	observability.RecordAuthRefresh(ctx, "success")
	observability.Audit(ctx, "refresh")
	return token, nil
}

func (c *Coordinator) notifyFailure(ctx context.Context, cause error) {
	c.mu.Lock()
	fns := make([]func(ctx context.Context, cause error), 0, len(c.onFailure))
	for _, fn := range c.onFailure {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ctx, cause)
	}
}
