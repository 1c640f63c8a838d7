package client

import "context"

type ctxKey int

const (
	skipRefreshKey ctxKey = iota
	retriedKey
)

// WithoutRefresh marks requests whose 401 means bad credentials rather than
// an expired access token (login, signup, password reset).
func WithoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipRefreshKey, true)
}

func skipsRefresh(ctx context.Context) bool {
	v, _ := ctx.Value(skipRefreshKey).(bool)
	return v
}

func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey).(bool)
	return v
}
