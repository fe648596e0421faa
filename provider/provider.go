package provider

import (
	"context"
	"errors"

	"github.com/verisella/authcore/identity"
)

var (
	// ErrInvalidCredentials is the single failure for bad identifiers and
	// bad secrets alike. Callers must not be able to tell which was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRegistrationUnsupported is returned when register is called on a
	// provider that only authenticates.
	ErrRegistrationUnsupported = errors.New("provider does not support registration")
)

// Kind tags a provider family. Dispatch on Kind is exhaustive; there is
// no structural sniffing of provider values.
type Kind int

const (
	// KindLocal authenticates against a locally stored password hash.
	KindLocal Kind = iota
	// KindPasswordless authenticates through a delivered one-time code.
	KindPasswordless
	// KindOAuth authenticates through an external authorization server.
	KindOAuth
	// KindCustom marks caller-supplied providers.
	KindCustom
)

// Credentials is the normalized credential envelope handed to providers.
// Which fields matter depends on the provider kind; unused fields are
// ignored.
type Credentials struct {
	Identifier string // email or phone
	Password   string
	Code       string // oauth callback code or passwordless magic code
	State      string // oauth callback state
	MFACode    string // second factor, consumed by the orchestrator
	Profile    map[string]string
}

// Result is the outcome of an authenticate call. Exactly one of the
// fields is set: a Principal on success, RedirectTo for the first leg of
// an OAuth flow, or CodeSent when a passwordless challenge went out and
// the caller must come back through Validate.
type Result struct {
	Principal  *identity.Principal
	RedirectTo string
	CodeSent   bool
}

// Provider authenticates principals for one named credential scheme.
type Provider interface {
	Name() string
	Kind() Kind
	Authenticate(ctx context.Context, creds Credentials) (*Result, error)
}

// Registrar is implemented by providers that can create principals.
type Registrar interface {
	Register(ctx context.Context, creds Credentials) (*identity.Principal, error)
}

// Validator is implemented by providers whose flow completes with an
// opaque code, such as passwordless magic links.
type Validator interface {
	Validate(ctx context.Context, code string) (*identity.Principal, error)
}
