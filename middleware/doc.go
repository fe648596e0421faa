// Package middleware provides net/http glue for hosts that mount the
// engine behind the standard library router.
//
// It implements the credential extraction conventions shared by all
// adapters: user access tokens from the Authorization Bearer header, a
// configurable cookie, or a custom header; refresh tokens from the
// X-Refresh-Token header or refreshToken cookie; admin credentials from
// AdminBearer and AdminApiKey Authorization schemes, the admin_token
// cookie, or the x-admin-api-key header.
//
// # What this package must NOT do
//
//   - No routing, redirects, or response body rendering beyond 401s.
//   - No cookie writing; issuing tokens to clients is the host's call.
//   - No framework adapters; other routers wrap the same helpers.
package middleware
