package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/verisella/authcore/identity"
	"github.com/verisella/authcore/password"
)

// Local authenticates against the password hash stored on the principal.
// Hashes produced under older cost parameters are transparently upgraded
// on successful login.
type Local struct {
	store  identity.Store
	hasher *password.Argon2
}

// NewLocal creates the local password provider.
func NewLocal(store identity.Store, hasher *password.Argon2) *Local {
	return &Local{store: store, hasher: hasher}
}

// Name implements [Provider].
func (p *Local) Name() string { return "local" }

// Kind implements [Provider].
func (p *Local) Kind() Kind { return KindLocal }

// Authenticate implements [Provider]. Unknown identifiers and wrong
// passwords collapse to the same failure.
func (p *Local) Authenticate(ctx context.Context, creds Credentials) (*Result, error) {
	principal, err := p.store.GetByIdentifier(ctx, identity.NormalizeIdentifier(creds.Identifier))
	if errors.Is(err, identity.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := p.hasher.Verify(creds.Password, principal.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	if upgrade, err := p.hasher.NeedsUpgrade(principal.PasswordHash); err == nil && upgrade {
		if rehash, err := p.hasher.Hash(creds.Password); err == nil {
			// Best effort; the login already succeeded.
			_ = p.store.UpdatePasswordHash(ctx, principal.ID, rehash)
			principal.PasswordHash = rehash
		}
	}

	return &Result{Principal: principal}, nil
}

// Register implements [Registrar]. Password policy has already been
// enforced by the orchestrator.
func (p *Local) Register(ctx context.Context, creds Credentials) (*identity.Principal, error) {
	hash, err := p.hasher.Hash(creds.Password)
	if err != nil {
		return nil, err
	}

	principal := &identity.Principal{
		ID:           uuid.NewString(),
		Role:         "user",
		PasswordHash: hash,
	}
	ident := identity.NormalizeIdentifier(creds.Identifier)
	if strings.Contains(ident, "@") {
		principal.Email = ident
	} else {
		principal.Phone = ident
	}

	if err := p.store.Create(ctx, principal); err != nil {
		return nil, err
	}
	return principal, nil
}
