package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/sandeepkv93/alumni-portal-client/internal/repository"
)

const KeyCookies = "cookies"

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// PersistentJar is an in-memory cookie jar whose backend-origin cookies are
// mirrored into durable storage, so the refresh cookie outlives the process.
// Session cookies, those without Expires or Max-Age, are never written out.
type PersistentJar struct {
	jar     *cookiejar.Jar
	origin  *url.URL
	durable repository.KeyValueRepository
	logger  *slog.Logger

	mu      sync.Mutex
	cookies map[string]storedCookie
	now     func() time.Time
}

func NewPersistentJar(ctx context.Context, baseURL string, durable repository.KeyValueRepository, logger *slog.Logger) (*PersistentJar, error) {
	origin, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &PersistentJar{
		jar:     jar,
		origin:  origin,
		durable: durable,
		logger:  logger,
		cookies: map[string]storedCookie{},
		now:     time.Now,
	}
	if err := j.load(ctx); err != nil {
		logger.WarnContext(ctx, "discarding persisted cookies", "error", err)
	}
	return j, nil
}

func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	if u.Host != j.origin.Host {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	for _, c := range cookies {
		key := c.Name + "|" + c.Path
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			delete(j.cookies, key)
			continue
		}
		sc := storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if c.MaxAge > 0 {
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.cookies[key] = sc
	}
	if err := j.persistLocked(context.Background()); err != nil {
		j.logger.Warn("persist cookies failed", "error", err)
	}
}

// Forget drops every persisted cookie of the backend origin.
func (j *PersistentJar) Forget(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	expired := make([]*http.Cookie, 0, len(j.cookies))
	for _, sc := range j.cookies {
		expired = append(expired, &http.Cookie{Name: sc.Name, Path: sc.Path, Domain: sc.Domain, MaxAge: -1})
	}
	j.jar.SetCookies(j.origin, expired)
	j.cookies = map[string]storedCookie{}
	return j.durable.Delete(ctx, KeyCookies)
}

func (j *PersistentJar) load(ctx context.Context) error {
	raw, err := j.durable.Get(ctx, KeyCookies)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return fmt.Errorf("decode cookies: %w", err)
	}

	now := j.now()
	restored := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		if sc.Expires.IsZero() || !sc.Expires.After(now) {
			continue
		}
		j.cookies[sc.Name+"|"+sc.Path] = sc
		restored = append(restored, &http.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Domain:   sc.Domain,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
		})
	}
	j.jar.SetCookies(j.origin, restored)
	return nil
}

func (j *PersistentJar) persistLocked(ctx context.Context) error {
	stored := make([]storedCookie, 0, len(j.cookies))
	for _, sc := range j.cookies {
		if sc.Expires.IsZero() {
			continue
		}
		stored = append(stored, sc)
	}
	if len(stored) == 0 {
		return j.durable.Delete(ctx, KeyCookies)
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return j.durable.Set(ctx, KeyCookies, string(raw))
}
