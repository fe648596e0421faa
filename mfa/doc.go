// Package mfa implements the second-factor primitives: RFC 6238 TOTP
// generation and verification, and single-use recovery codes hashed per
// principal. Enrollment state lives on the principal record; this
// package only produces and checks the secret material.
package mfa
