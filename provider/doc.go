// Package provider implements the pluggable credential schemes the
// engine authenticates against: local passwords, passwordless magic
// codes, and OAuth-family redirects. Providers are tagged with an
// explicit [Kind] and dispatched exhaustively; optional capabilities
// (registration, code validation) are separate interfaces a provider
// may or may not implement.
//
// # What this package must NOT do
//
//   - Enforce policy: enablement, rate limits, verification, and MFA
//     gates belong to the orchestrator.
//   - Issue sessions: a provider only vouches for a principal.
package provider
