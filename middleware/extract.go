package middleware

import (
	"net"
	"net/http"
	"strings"
)

// Options configures where the user access token may arrive beyond the
// standard Authorization header.
type Options struct {
	// CookieName is the session cookie checked after the Authorization
	// header. Empty disables cookie extraction.
	CookieName string
	// HeaderName is a custom header checked last. Empty disables it.
	HeaderName string
}

// AccessToken extracts the user access token from the request, checking
// the Authorization Bearer header, then the configured cookie, then the
// configured custom header.
func AccessToken(r *http.Request, opts Options) (string, bool) {
	if token, ok := bearer(r.Header.Get("Authorization"), "Bearer "); ok {
		return token, true
	}
	if opts.CookieName != "" {
		if c, err := r.Cookie(opts.CookieName); err == nil && c.Value != "" {
			return c.Value, true
		}
	}
	if opts.HeaderName != "" {
		if v := r.Header.Get(opts.HeaderName); v != "" {
			return v, true
		}
	}
	return "", false
}

// RefreshToken extracts the refresh token from the X-Refresh-Token
// header or the refreshToken cookie.
func RefreshToken(r *http.Request) (string, bool) {
	if v := r.Header.Get("X-Refresh-Token"); v != "" {
		return v, true
	}
	if c, err := r.Cookie("refreshToken"); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// AdminCredentials extracts admin credentials. A session token arrives
// as an AdminBearer Authorization header or the admin_token cookie; an
// API key arrives as an AdminApiKey Authorization header or the
// x-admin-api-key header. Exactly one of the returns is set.
func AdminCredentials(r *http.Request) (token, apiKey string) {
	auth := r.Header.Get("Authorization")
	if v, ok := bearer(auth, "AdminBearer "); ok {
		return v, ""
	}
	if v, ok := bearer(auth, "AdminApiKey "); ok {
		return "", v
	}
	if c, err := r.Cookie("admin_token"); err == nil && c.Value != "" {
		return c.Value, ""
	}
	if v := r.Header.Get("x-admin-api-key"); v != "" {
		return "", v
	}
	return "", ""
}

func bearer(value, scheme string) (string, bool) {
	if !strings.HasPrefix(value, scheme) {
		return "", false
	}
	token := strings.TrimSpace(value[len(scheme):])
	return token, token != ""
}

// clientIP strips the port from RemoteAddr, preferring the first
// X-Forwarded-For hop when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
