package middleware

import (
	"context"
	"net/http"

	"github.com/verisella/authcore"
)

type validationContextKey struct{}

// ValidationFromContext returns the token validation stored by [Guard].
func ValidationFromContext(ctx context.Context) (*authcore.TokenValidation, bool) {
	v, ok := ctx.Value(validationContextKey{}).(*authcore.TokenValidation)
	return v, ok
}

// Guard validates the request's access token and stores the result in
// the request context. Requests without a valid token get 401.
//
// When reuse recovery replaces the presented token, the fresh pair is
// returned in the X-New-Access-Token and X-New-Refresh-Token response
// headers; clients must adopt it.
func Guard(engine *authcore.Engine, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := AccessToken(r, opts)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestContext(r)
			v, err := engine.ValidateToken(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if v.Replacement != nil {
				w.Header().Set("X-New-Access-Token", v.Replacement.Access)
				w.Header().Set("X-New-Refresh-Token", v.Replacement.Refresh)
			}

			ctx = context.WithValue(ctx, validationContextKey{}, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestContext stamps the caller's IP and user agent onto the request
// context for rate limiting and audit metadata.
func requestContext(r *http.Request) context.Context {
	ctx := authcore.WithClientIP(r.Context(), clientIP(r))
	if ua := r.UserAgent(); ua != "" {
		ctx = authcore.WithUserAgent(ctx, ua)
	}
	return ctx
}
