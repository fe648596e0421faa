// Package authcore is an embeddable authentication and session engine.
//
// The engine orchestrates credential providers (local password,
// passwordless codes, OAuth, custom), issues sessions under one of
// three interchangeable token strategies (opaque, HS256 JWT, Ed25519
// JWT with key rotation and a published JWKS), and enforces a
// dynamically reloadable security policy covering provider enablement,
// password rules, session lifetimes, MFA, and rate limits. A separate
// administrative plane with role-based permissions, API keys, and an
// append-only audit trail manages the policy itself.
//
// Build an engine with the builder:
//
//	engine, err := authcore.New().
//		WithRedis(client).
//		WithPrincipalStore(store).
//		Build(ctx)
//
// Hosts integrate by implementing [PrincipalStore] over their user
// database and mounting the engine's methods behind their own
// transport. The middleware package provides net/http helpers for the
// common token extraction conventions.
package authcore
