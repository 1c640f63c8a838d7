package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sandeepkv93/alumni-portal-client/internal/http/response"
	"github.com/sandeepkv93/alumni-portal-client/internal/security"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

// TokenRevocation reports access tokens invalidated before their expiry.
type TokenRevocation func(claims *security.PortalClaims) bool

// AuthMiddleware accepts only bearer access tokens and answers failures the
// way the portal backend does: 401 with a detail message.
func AuthMiddleware(jwtMgr *security.JWTManager, revoked TokenRevocation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ""
			auth := r.Header.Get("Authorization")
			if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
				raw = strings.TrimSpace(auth[7:])
			}
			if raw == "" {
				response.Detail(w, r, http.StatusUnauthorized, "Not authenticated")
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil || (revoked != nil && revoked(claims)) {
				response.Detail(w, r, http.StatusUnauthorized, "Could not validate credentials")
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.PortalClaims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.PortalClaims)
	return c, ok
}
