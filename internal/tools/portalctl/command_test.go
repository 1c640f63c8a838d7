package portalctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/alumni-portal-client/internal/app"
	"github.com/sandeepkv93/alumni-portal-client/internal/authstate"
	"github.com/sandeepkv93/alumni-portal-client/internal/config"
	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/http/client"
	"github.com/sandeepkv93/alumni-portal-client/internal/portaltest"
	"github.com/sandeepkv93/alumni-portal-client/internal/repository"
	"github.com/sandeepkv93/alumni-portal-client/internal/service"
	"github.com/sandeepkv93/alumni-portal-client/internal/session"
	"github.com/sandeepkv93/alumni-portal-client/internal/tools/common"
)

const testPassword = "Sup3r!pass"

type cli struct {
	t        *testing.T
	backend  *portaltest.Server
	repo     *repository.InMemoryKeyValueRepository
	exitCode int
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	c := &cli{t: t, backend: portaltest.Start(t), repo: repository.NewInMemoryKeyValueRepository()}
	c.backend.AddAccount(domain.User{Name: "Asha", Email: "asha@example.edu", Role: domain.RoleAlumni}, testPassword)
	return c
}

// build assembles a fresh process over the shared durable repository.
func (c *cli) build() (*app.App, error) {
	ctx := context.Background()
	cfg := &config.Config{BackendURL: c.backend.URL, HTTPTimeout: 5 * time.Second, RefreshTimeout: 2 * time.Second}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewTokenStore(c.repo, logger)
	jar, err := client.NewPersistentJar(ctx, cfg.BackendURL, c.repo, logger)
	if err != nil {
		return nil, err
	}
	coord := session.NewCoordinator(store, client.NewRefresher(cfg, jar, http.DefaultTransport), cfg.RefreshTimeout, logger)
	hc := client.New(cfg, store, coord, jar, http.DefaultTransport, logger)
	auth := service.NewAuthService(hc, store, jar, logger)
	return app.New(cfg, logger, nil, c.repo, store, hc, auth, authstate.NewProvider(store, auth, logger)), nil
}

func (c *cli) run(args ...string) common.CIResult {
	c.t.Helper()
	c.exitCode = 0
	opts := &options{build: c.build, exit: func(code int) { c.exitCode = code }}
	cmd := newRootCommand(opts)
	cmd.SetArgs(append([]string{"--ci", "--env-file", filepath.Join(c.t.TempDir(), "none.env")}, args...))

	raw := captureStdout(c.t, func() {
		if err := cmd.Execute(); err != nil {
			c.t.Fatalf("execute %v: %v", args, err)
		}
	})
	var res common.CIResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.t.Fatalf("decode ci output %q: %v", raw, err)
	}
	return res
}

func captureStdout(t *testing.T, fn func()) []byte {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = orig
	buf := new(bytes.Buffer)
	_, _ = io.Copy(buf, r)
	_ = r.Close()
	return buf.Bytes()
}

func hasDetail(res common.CIResult, want string) bool {
	for _, d := range res.Details {
		if d == want {
			return true
		}
	}
	return false
}

func TestLoginThenWhoamiAcrossProcesses(t *testing.T) {
	c := newCLI(t)

	res := c.run("login", "--email", "asha@example.edu", "--password", testPassword)
	if !res.OK || c.exitCode != 0 || !hasDetail(res, "state=authenticated") {
		t.Fatalf("unexpected login result %+v exit=%d", res, c.exitCode)
	}

	res = c.run("whoami")
	if !res.OK || !hasDetail(res, "user=asha@example.edu") || !hasDetail(res, "role=alumni") {
		t.Fatalf("expected whoami to restore the session, got %+v", res)
	}
	if got := c.backend.Count("POST /api/auth/refresh"); got != 1 {
		t.Fatalf("expected the new process to refresh once, got %d", got)
	}
}

func TestFailuresExitWithCode4(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "bad credentials", args: []string{"login", "--email", "asha@example.edu", "--password", "nope"}, wantErr: "Invalid email or password"},
		{name: "whoami signed out", args: []string{"whoami"}, wantErr: errNotSignedIn.Error()},
		{name: "change password signed out", args: []string{"change-password", "--old-password", "a", "--new-password", "b"}, wantErr: errNotSignedIn.Error()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCLI(t)
			res := c.run(tc.args...)
			if res.OK || c.exitCode != exitFailure {
				t.Fatalf("expected failure with exit %d, got %+v exit=%d", exitFailure, res, c.exitCode)
			}
			if !strings.Contains(res.Error, tc.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tc.wantErr, res.Error)
			}
		})
	}
}

func TestLogoutClearsStoredSession(t *testing.T) {
	c := newCLI(t)
	c.run("login", "--email", "asha@example.edu", "--password", testPassword)

	res := c.run("logout")
	if !res.OK || !hasDetail(res, "state=anonymous") {
		t.Fatalf("unexpected logout result %+v", res)
	}
	if got := c.backend.Count("POST /api/auth/logout"); got != 1 {
		t.Fatalf("expected one backend logout, got %d", got)
	}
	if _, err := c.repo.Get(context.Background(), session.KeyUser); err == nil {
		t.Fatal("expected durable user removed")
	}
	if res := c.run("whoami"); res.OK {
		t.Fatalf("expected signed out after logout, got %+v", res)
	}
}

func TestVerifyPasswordAndChangePassword(t *testing.T) {
	c := newCLI(t)
	c.run("login", "--email", "asha@example.edu", "--password", testPassword)

	if res := c.run("verify-password", "--password", testPassword); !res.OK || !hasDetail(res, "verified=true") {
		t.Fatalf("expected password verified, got %+v", res)
	}
	if res := c.run("change-password", "--old-password", testPassword, "--new-password", "N3w!passw0rd"); !res.OK {
		t.Fatalf("expected password change, got %+v", res)
	}
	if res := c.run("login", "--email", "asha@example.edu", "--password", "N3w!passw0rd"); !res.OK {
		t.Fatalf("expected login with new password, got %+v", res)
	}
}

func TestSanitizeRunsWithoutBackend(t *testing.T) {
	var code int
	opts := &options{
		build: func() (*app.App, error) { t.Fatal("sanitize must not build the app"); return nil, nil },
		exit:  func(c int) { code = c },
	}
	cmd := newRootCommand(opts)
	cmd.SetArgs([]string{"--ci", "--env-file", filepath.Join(t.TempDir(), "none.env"), "sanitize", `<p onclick="x()">hi <script>alert(1)</script><b>there</b></p>`})
	raw := captureStdout(t, func() {
		if err := cmd.Execute(); err != nil {
			t.Fatalf("execute: %v", err)
		}
	})
	var res common.CIResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.OK || code != 0 || len(res.Details) != 1 || res.Details[0] != "<p>hi <b>there</b></p>" {
		t.Fatalf("unexpected sanitize result %+v", res)
	}
}
