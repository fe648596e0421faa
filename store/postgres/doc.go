// Package postgres provides the durable stores: principals, the policy
// document, signing keys, and the admin plane. Each store takes the
// [DB] query surface so production code passes a pgxpool.Pool and tests
// pass a mock.
//
// # Architecture boundaries
//
//   - Hot session and challenge state lives in Redis, never here.
//   - [EnsureSchema] is the only DDL entry point; stores run DML only.
//
// # What this package must NOT do
//
//   - No policy validation or credential checking; callers own that.
//   - No schema migrations beyond the idempotent bootstrap DDL.
package postgres
