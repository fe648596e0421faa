// Package policy holds the versioned security-policy document and the
// cached store that serves it.
//
// # Refresh model
//
// Reads are served from a short-lived cache (default 30s). Updates merge a
// partial document, re-validate, persist, and replace the cache in the same
// call, so a successful write is immediately visible through the store that
// performed it. External writes (another process sharing the backend) are
// picked up by the [Watcher], which polls on a fixed interval and compares
// the document's monotonic version counter.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling package.
//   - Enforce the policy: gating decisions belong to the engine.
package policy
