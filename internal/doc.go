// Package internal provides shared primitives for the authcore module:
// token and one-time-code generation, token hashing, and API key layout.
// Nothing here is part of the public API.
package internal
