package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sandeepkv93/alumni-portal-client/internal/http/response"
)

// RateLimiter is a per-client sliding window limiter, matching the limits
// the portal backend puts on signup.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	hits    map[string][]time.Time
	keyFunc func(r *http.Request) string
	now     func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		hits:    map[string][]time.Time{},
		keyFunc: clientIPKey,
		now:     time.Now,
	}
}

// Allow records a hit for key and reports whether it fits the window along
// with the wait until the oldest hit expires.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	pruned := rl.hits[key][:0]
	for _, hit := range rl.hits[key] {
		if hit.After(cutoff) {
			pruned = append(pruned, hit)
		}
	}
	if len(pruned) >= rl.limit {
		rl.hits[key] = pruned
		return false, pruned[0].Add(rl.window).Sub(now)
	}
	rl.hits[key] = append(pruned, now)
	return true, 0
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := rl.Allow(rl.keyFunc(r))
			if !ok {
				w.Header().Set("Retry-After", retryAfterHeader(retry))
				response.Detail(w, r, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded: %d per %s", rl.limit, rl.window))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}
