// Package stores provides the Redis-backed, short-lived challenge store
// shared by the verification, passwordless, and MFA enrollment flows.
//
// # Design
//
// Each challenge is a TTL-bound JSON record holding the SHA-256 of its
// secret. Consume uses WATCH/MULTI optimistic transactions with retry on
// contention; records are single-use and enforce attempt budgets. Secret
// comparisons are constant-time.
//
// # What this package must NOT do
//
//   - Generate codes or decide which flow a challenge belongs to.
//   - Log or expose plaintext secrets.
package stores
