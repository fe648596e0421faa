package middleware

import (
	"context"
	"net/http"

	"github.com/verisella/authcore"
	"github.com/verisella/authcore/admin"
)

type adminContextKey struct{}

// AdminFromContext returns the admin authenticated by [AdminGuard].
func AdminFromContext(ctx context.Context) (*admin.Admin, bool) {
	a, ok := ctx.Value(adminContextKey{}).(*admin.Admin)
	return a, ok
}

// AdminGuard authenticates the administrative plane. Session tokens are
// accepted as-is; API keys must additionally carry the given scope.
// Requests without valid credentials get 401.
func AdminGuard(engine *authcore.Engine, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, apiKey := AdminCredentials(r)

			ctx := requestContext(r)
			var (
				actor *admin.Admin
				err   error
			)
			switch {
			case token != "":
				actor, err = engine.Admin().AuthenticateToken(ctx, token)
			case apiKey != "":
				actor, err = engine.Admin().AuthenticateAPIKey(ctx, apiKey, scope)
			default:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, adminContextKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
