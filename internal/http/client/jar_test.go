package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/sandeepkv93/alumni-portal-client/internal/repository"
)

func TestPersistentJarSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryKeyValueRepository()
	origin, _ := url.Parse("http://portal.example.edu")

	first, err := NewPersistentJar(ctx, origin.String(), repo, nil)
	if err != nil {
		t.Fatalf("new jar: %v", err)
	}
	first.SetCookies(origin, []*http.Cookie{
		{Name: "refresh_token", Value: "r1", Path: "/", HttpOnly: true, MaxAge: 3600},
		{Name: "stale", Value: "x", Path: "/", Expires: time.Now().Add(-time.Hour)},
	})
	other, _ := url.Parse("http://cdn.example.org")
	first.SetCookies(other, []*http.Cookie{{Name: "tracking", Value: "t", Path: "/"}})

	second, err := NewPersistentJar(ctx, origin.String(), repo, nil)
	if err != nil {
		t.Fatalf("reopen jar: %v", err)
	}
	got := second.Cookies(origin)
	if len(got) != 1 || got[0].Name != "refresh_token" || got[0].Value != "r1" {
		t.Fatalf("unexpected restored cookies %+v", got)
	}
	if len(second.Cookies(other)) != 0 {
		t.Fatal("expected foreign cookies not persisted")
	}
}

func TestPersistentJarDeletesExpiredCookie(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryKeyValueRepository()
	origin, _ := url.Parse("http://portal.example.edu")

	jar, err := NewPersistentJar(ctx, origin.String(), repo, nil)
	if err != nil {
		t.Fatalf("new jar: %v", err)
	}
	jar.SetCookies(origin, []*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/"}})
	jar.SetCookies(origin, []*http.Cookie{{Name: "refresh_token", Path: "/", MaxAge: -1}})

	if len(jar.Cookies(origin)) != 0 {
		t.Fatal("expected cookie removed from jar")
	}
	if _, err := repo.Get(ctx, KeyCookies); !errors.Is(err, repository.ErrKeyNotFound) {
		t.Fatalf("expected durable cookies removed, got %v", err)
	}
}

func TestPersistentJarForgetAndCorruptState(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryKeyValueRepository()
	origin, _ := url.Parse("http://portal.example.edu")

	_ = repo.Set(ctx, KeyCookies, "not json")
	jar, err := NewPersistentJar(ctx, origin.String(), repo, nil)
	if err != nil {
		t.Fatalf("expected corrupt cookies to be ignored, got %v", err)
	}
	jar.SetCookies(origin, []*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/"}})
	if err := jar.Forget(ctx); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if len(jar.Cookies(origin)) != 0 {
		t.Fatal("expected jar emptied")
	}
	if _, err := repo.Get(ctx, KeyCookies); !errors.Is(err, repository.ErrKeyNotFound) {
		t.Fatalf("expected durable cookies removed, got %v", err)
	}
}

func TestPersistentJarKeepsSessionCookiesInMemory(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryKeyValueRepository()
	origin, _ := url.Parse("http://portal.example.edu")

	first, err := NewPersistentJar(ctx, origin.String(), repo, nil)
	if err != nil {
		t.Fatalf("new jar: %v", err)
	}
	first.SetCookies(origin, []*http.Cookie{
		{Name: "refresh_token", Value: "r1", Path: "/", HttpOnly: true, MaxAge: 3600},
		{Name: "csrf", Value: "c1", Path: "/"},
	})
	if got := first.Cookies(origin); len(got) != 2 {
		t.Fatalf("expected both cookies live in memory, got %+v", got)
	}

	second, err := NewPersistentJar(ctx, origin.String(), repo, nil)
	if err != nil {
		t.Fatalf("reopen jar: %v", err)
	}
	got := second.Cookies(origin)
	if len(got) != 1 || got[0].Name != "refresh_token" {
		t.Fatalf("expected only the refresh cookie restored, got %+v", got)
	}

	// Downgrading the refresh cookie to a session cookie drops its durable copy.
	second.SetCookies(origin, []*http.Cookie{{Name: "refresh_token", Value: "r2", Path: "/"}})
	if _, err := repo.Get(ctx, KeyCookies); !errors.Is(err, repository.ErrKeyNotFound) {
		t.Fatalf("expected no durable cookies, got %v", err)
	}
}
