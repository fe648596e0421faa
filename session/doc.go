// Package session implements the three interchangeable token strategies
// behind one [Manager] contract.
//
//   - Opaque: random tokens, every check is a store lookup.
//   - Symmetric: HS256 JWTs, stateless verification, store-backed
//     refresh.
//   - Asymmetric: kid-tagged Ed25519 JWTs with automatic key rotation, a
//     published JWKS, and an optional reuse-recovery fallback.
//
// All three share the Redis-backed [Store], which keys every record by
// the SHA-256 of the token and consumes refresh tokens with GETDEL so a
// refresh token is usable exactly once regardless of concurrency.
//
// # What this package must NOT do
//
//   - Authenticate principals: it is handed a principal id that the
//     providers have already vouched for.
//   - Read the policy document directly: lifetimes arrive through a
//     [SettingsFunc] so hot reloads apply without plumbing.
package session
