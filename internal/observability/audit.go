package observability

import (
	"context"
	"log/slog"
)

// Audit records a session lifecycle event (login, logout, session_expired, ...)
// on the default logger.
func Audit(ctx context.Context, event string, attrs ...any) {
	base := []any{"event", event}
	base = append(base, attrs...)
	slog.InfoContext(ctx, "audit", base...)
}
