package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by [Store] implementations when no principal
// matches the lookup.
var ErrNotFound = errors.New("principal not found")

// ErrDuplicateIdentifier is returned by [Store.Create] when the normalized
// identifier is already taken.
var ErrDuplicateIdentifier = errors.New("duplicate identifier")

// VerificationChannel names the delivery channel of a verification code.
type VerificationChannel string

const (
	// ChannelEmail is an email-delivered verification channel.
	ChannelEmail VerificationChannel = "email"
	// ChannelSMS is an SMS-delivered verification channel.
	ChannelSMS VerificationChannel = "sms"
)

// Principal is an authenticated end-user identity record. It is owned by
// the persistence layer; the engine creates it through a provider's
// register path and mutates it through verification, MFA, and password
// operations. The engine never deletes principals.
type Principal struct {
	ID            string
	Email         string
	Phone         string
	Role          string
	Labels        []string
	Teams         []string
	Permissions   []string
	PasswordHash  string
	EmailVerified bool
	PhoneVerified bool

	MFAEnabled bool
	MFASecret  []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Verified reports whether the principal has completed verification on the
// given channel.
func (p *Principal) Verified(ch VerificationChannel) bool {
	if p == nil {
		return false
	}
	switch ch {
	case ChannelEmail:
		return p.EmailVerified
	case ChannelSMS:
		return p.PhoneVerified
	}
	return false
}

// RecoveryCodeRecord stores the SHA-256 hash of a single recovery code.
// The plaintext is never persisted.
type RecoveryCodeRecord struct {
	Hash [32]byte
}

// Store is the interface callers implement to integrate the engine with
// their principal database. It covers credential lookup, account creation,
// verification flags, password updates, and MFA secret plus recovery code
// storage.
type Store interface {
	GetByID(ctx context.Context, id string) (*Principal, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Principal, error)
	Create(ctx context.Context, p *Principal) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	MarkVerified(ctx context.Context, id string, ch VerificationChannel) error

	EnableMFA(ctx context.Context, id string, secret []byte, codes []RecoveryCodeRecord) error
	DisableMFA(ctx context.Context, id string) error
	// ConsumeRecoveryCode atomically removes the matching recovery code.
	// It reports false when no stored code matches the hash.
	ConsumeRecoveryCode(ctx context.Context, id string, hash [32]byte) (bool, error)
}

// NormalizeIdentifier lowercases and trims an identifier so email lookups
// are case-insensitive across providers.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
