package integration

import (
	"context"
	"testing"

	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/session"
)

func TestRestartWithPersistedCookieRecoversSession(t *testing.T) {
	backend, user := newBackendWithAlumni(t)
	configure(t, backend.URL)

	first := startProcess(t)
	if _, err := first.Auth.Login(context.Background(), user.Email, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := first.Close(context.Background()); err != nil {
		t.Fatalf("close first process: %v", err)
	}

	second := startProcess(t)
	snap := second.Session.Snapshot()
	if !snap.Authenticated() || snap.User.ID != user.ID {
		t.Fatalf("expected restored session, got %+v", snap)
	}
	if got := backend.Count("GET /api/profile"); got != 2 {
		t.Fatalf("expected probe plus retry, got %d", got)
	}
	if got := backend.Count("POST /api/auth/refresh"); got != 1 {
		t.Fatalf("expected one refresh through the persisted cookie, got %d", got)
	}
}

func TestStartWithExpiredSessionBecomesAnonymous(t *testing.T) {
	backend, user := newBackendWithAlumni(t)
	storagePath := configure(t, backend.URL)

	first := startProcess(t)
	if _, err := first.Auth.Login(context.Background(), user.Email, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	_ = first.Close(context.Background())
	if _, ok := storedKeys(t, storagePath)[session.KeyUser]; !ok {
		t.Fatal("expected stored user before restart")
	}

	backend.FailRefresh(true)
	second := startProcess(t)
	if got := second.Session.Snapshot().State; got != domain.SessionAnonymous {
		t.Fatalf("expected anonymous, got %s", got)
	}
	keys := storedKeys(t, storagePath)
	for _, key := range []string{session.KeyUser, session.KeyLegacyToken, session.KeyLegacyAccessToken} {
		if _, ok := keys[key]; ok {
			t.Fatalf("expected %s cleared after failed probe", key)
		}
	}
	if second.Tokens.AccessToken() != "" {
		t.Fatal("expected no access token")
	}
}
