// Package jwt signs and validates access tokens for the two JWT session
// strategies: HS256 with a shared secret, and Ed25519 with kid-tagged
// keys resolved through a key store. It also renders the JWKS document
// external parties use to verify Ed25519 tokens without calling back
// into this system.
//
// # What this package must NOT do
//
//   - Persist tokens or key material.
//   - Decide session liveness: revocation checks belong to the session
//     strategies.
package jwt
