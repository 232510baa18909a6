package chi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/taskctx/internal/logger"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type principalKey struct{}

// ContextWithPrincipal returns a context carrying the authenticated principal id.
func ContextWithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the authenticated principal id, or "" if none.
func PrincipalFromContext(ctx context.Context) string {
	p, _ := ctx.Value(principalKey{}).(string)
	return p
}

// PrincipalMiddleware resolves the calling principal.
// With apiKeys configured, a Bearer key is required and maps to its principal.
// Without keys (development), the principal is read from devHeader.
func PrincipalMiddleware(apiKeys map[string]string, devHeader string) func(http.Handler) http.Handler {
	validKeys := make(map[string]string, len(apiKeys))
	for k, p := range apiKeys {
		if k != "" && p != "" {
			validKeys[k] = p
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			var principal string
			if len(validKeys) == 0 {
				principal = strings.TrimSpace(r.Header.Get(devHeader))
				if principal == "" {
					writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing "+devHeader+" header")
					return
				}
			} else {
				auth := r.Header.Get("Authorization")
				if auth == "" {
					writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
					return
				}

				const bearerPrefix = "Bearer "
				if !strings.HasPrefix(auth, bearerPrefix) {
					writeError(w, http.StatusUnauthorized,
						codeUnauthorized, "authorization header must use Bearer scheme")
					return
				}

				p, ok := validKeys[auth[len(bearerPrefix):]]
				if !ok {
					writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
					return
				}
				principal = p
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx = logpkg.With(ctx, zap.String("principal", principal))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
