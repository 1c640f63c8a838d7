package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/sandeepkv93/alumni-portal-client/internal/observability"
)

var ErrSessionExpired = errors.New("session expired")

// Stage wraps the next round tripper of the pipeline.
type Stage func(next http.RoundTripper) http.RoundTripper

type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// Chain applies stages so that the first one sees the request first.
func Chain(base http.RoundTripper, stages ...Stage) http.RoundTripper {
	rt := base
	for i := len(stages) - 1; i >= 0; i-- {
		rt = stages[i](rt)
	}
	return rt
}

func RequestIDStage() Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("X-Request-Id") != "" {
				return next.RoundTrip(req)
			}
			out := req.Clone(req.Context())
			out.Header.Set("X-Request-Id", uuid.NewString())
			return next.RoundTrip(out)
		})
	}
}

// BearerStage attaches the current access token. Requests go out
// unauthenticated while the source has no token.
func BearerStage(src oauth2.TokenSource) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			tok, err := src.Token()
			if err != nil || tok.AccessToken == "" {
				return next.RoundTrip(req)
			}
			out := req.Clone(req.Context())
			tok.SetAuthHeader(out)
			return next.RoundTrip(out)
		})
	}
}

// TokenRefresher hands out a token newer than the one that was rejected.
type TokenRefresher interface {
	EnsureFreshToken(ctx context.Context, staleToken string) (string, error)
}

// RefreshRetryStage replays a request once with a fresh token after a 401.
// When the refresh itself fails the caller gets an error wrapping
// ErrSessionExpired. A non-nil onExpired also runs then, for refreshers that
// do not report failures on their own.
func RefreshRetryStage(refresher TokenRefresher, onExpired func(ctx context.Context, cause error), logger *slog.Logger) Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			ctx := req.Context()
			if skipsRefresh(ctx) || isRetried(ctx) {
				observability.RecordUnauthorizedResponse(ctx, "passthrough")
				return resp, nil
			}
			if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
				observability.RecordUnauthorizedResponse(ctx, "not_replayable")
				return resp, nil
			}

			drain(resp)
			fresh, rerr := refresher.EnsureFreshToken(ctx, bearerToken(req))
			if rerr != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				observability.RecordUnauthorizedResponse(ctx, "session_expired")
				logger.WarnContext(ctx, "session expired after failed refresh", "path", req.URL.Path, "error", rerr)
				if onExpired != nil {
					onExpired(ctx, rerr)
				}
				return nil, fmt.Errorf("%w: %w", ErrSessionExpired, rerr)
			}

			retry := req.Clone(withRetried(ctx))
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("replay request body: %w", err)
				}
				retry.Body = body
			}
			retry.Header.Set("Authorization", "Bearer "+fresh)
			observability.RecordUnauthorizedResponse(ctx, "retried")
			logger.DebugContext(ctx, "retrying request with refreshed token", "method", req.Method, "path", req.URL.Path)
			return next.RoundTrip(retry)
		})
	}
}

func bearerToken(req *http.Request) string {
	auth := req.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
