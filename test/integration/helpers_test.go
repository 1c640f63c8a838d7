package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sandeepkv93/alumni-portal-client/internal/app"
	"github.com/sandeepkv93/alumni-portal-client/internal/di"
	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/portaltest"
)

const testPassword = "Valid#Pass1234"

// configure points every process started by the test at the same backend
// and the same durable storage file.
func configure(t *testing.T, backendURL string) string {
	t.Helper()
	storagePath := filepath.Join(t.TempDir(), "storage.json")
	t.Setenv("BACKEND_URL", backendURL)
	t.Setenv("STORAGE_DRIVER", "file")
	t.Setenv("STORAGE_PATH", storagePath)
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("REFRESH_TIMEOUT", "2s")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("OTEL_METRICS_ENABLED", "false")
	t.Setenv("OTEL_TRACING_ENABLED", "false")
	t.Setenv("OTEL_LOGS_ENABLED", "false")
	return storagePath
}

// startProcess builds the application the way portalctl does and restores
// the stored session.
func startProcess(t *testing.T) *app.App {
	t.Helper()
	previous := slog.Default()
	a, err := di.InitializeApp()
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	t.Cleanup(func() {
		_ = a.Close(context.Background())
		slog.SetDefault(previous)
	})
	a.Start(context.Background())
	return a
}

func newBackendWithAlumni(t *testing.T) (*portaltest.Server, domain.User) {
	t.Helper()
	backend := portaltest.Start(t)
	user := backend.AddAccount(domain.User{
		Name:             "Session Manager",
		Email:            "session-mgmt@example.edu",
		Role:             domain.RoleAlumni,
		MembershipStatus: domain.MembershipActive,
	}, testPassword)
	return backend, user
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read %s: %v", path, err)
	}
	return raw
}

func storedKeys(t *testing.T, path string) map[string]string {
	t.Helper()
	out := map[string]string{}
	raw := readFile(t, path)
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode storage file: %v", err)
	}
	return out
}

// lockedBuffer lets concurrent requests log into one buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureAuditEvents(t *testing.T, fn func()) []map[string]any {
	t.Helper()
	var logBuf lockedBuffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	defer slog.SetDefault(previous)

	fn()
	return extractAuditEvents(logBuf.String())
}

func extractAuditEvents(logs string) []map[string]any {
	events := make([]map[string]any, 0)
	for _, line := range strings.Split(logs, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if msg, _ := event["msg"].(string); msg == "audit" {
			events = append(events, event)
		}
	}
	return events
}

func countAuditEvents(events []map[string]any, name string) int {
	n := 0
	for _, event := range events {
		if got, _ := event["event"].(string); got == name {
			n++
		}
	}
	return n
}
