// Package identity defines the principal model and the storage interface the
// engine uses to look up, create, and mutate end-user accounts.
//
// # Architecture boundaries
//
// This package owns the [Principal] record shape and the [Store] contract. It
// performs no I/O itself: implementations live with the caller or under
// store/postgres. It does NOT hash passwords, issue tokens, or evaluate
// policy - those responsibilities belong to the engine and its providers.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling package (no upward imports).
//   - Persist plaintext secrets: recovery codes and MFA material arrive
//     pre-hashed or pre-sealed.
package identity
