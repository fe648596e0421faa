// Package admin implements the privileged administrative plane: a
// separate identity space with super-admin RBAC, prefix-split API keys,
// an append-only audit log, and the only runtime path that may mutate
// the policy document.
//
// # Architecture boundaries
//
//   - Admins are not principals; the two identity spaces never mix.
//   - Admin sessions reuse the opaque session strategy under a distinct
//     key prefix, never the JWT strategies.
//
// # What this package must NOT do
//
//   - Authenticate end users or issue user sessions.
//   - Skip the audit log: every mutating operation and every denial is
//     recorded.
package admin
