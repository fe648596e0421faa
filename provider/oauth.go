package provider

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/verisella/authcore/identity"
	"github.com/verisella/authcore/internal"
	"github.com/verisella/authcore/internal/stores"
	"github.com/verisella/authcore/password"
)

// ExternalIdentity is the normalized identity an [Exchange] yields after
// trading the callback code with the authorization server.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
}

// Exchange is the vendor-specific half of an OAuth integration. It
// builds the authorization URL and performs the code-for-identity trade;
// this package never speaks HTTP to the vendor itself.
type Exchange interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}

// OAuth authenticates through an external authorization server. The
// first Authenticate call returns a redirect target carrying a one-time
// state; the second call presents the callback code and state pair.
// Principals seen for the first time are created with a random
// placeholder password, since they have no local one.
type OAuth struct {
	name     string
	store    identity.Store
	states   *stores.ChallengeStore
	exchange Exchange
	hasher   *password.Argon2

	stateTTL time.Duration
}

// NewOAuth creates an OAuth-family provider named after its vendor, for
// example "google" or "github".
func NewOAuth(name string, store identity.Store, states *stores.ChallengeStore, exchange Exchange, hasher *password.Argon2, stateTTL time.Duration) *OAuth {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &OAuth{
		name:     name,
		store:    store,
		states:   states,
		exchange: exchange,
		hasher:   hasher,
		stateTTL: stateTTL,
	}
}

// Name implements [Provider].
func (p *OAuth) Name() string { return p.name }

// Kind implements [Provider].
func (p *OAuth) Kind() Kind { return KindOAuth }

// Authenticate implements [Provider]. Without a callback code it begins
// the flow and returns the redirect target; with one it completes the
// flow and returns the principal.
func (p *OAuth) Authenticate(ctx context.Context, creds Credentials) (*Result, error) {
	if creds.Code == "" {
		return p.begin(ctx)
	}
	return p.callback(ctx, creds)
}

func (p *OAuth) begin(ctx context.Context) (*Result, error) {
	state, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	hash := internal.HashToken(state)
	ch := &stores.Challenge{SecretHash: hash[:]}
	if err := p.states.Save(ctx, internal.HashTokenString(state), ch, p.stateTTL); err != nil {
		return nil, err
	}
	return &Result{RedirectTo: p.exchange.AuthURL(state)}, nil
}

func (p *OAuth) callback(ctx context.Context, creds Credentials) (*Result, error) {
	// The state is single-use; an unknown or replayed state fails like
	// any other bad credential.
	hash := internal.HashToken(creds.State)
	_, err := p.states.Consume(ctx, internal.HashTokenString(creds.State), hash[:], 1)
	switch {
	case err == nil:
	case errors.Is(err, stores.ErrChallengeNotFound),
		errors.Is(err, stores.ErrChallengeMismatch),
		errors.Is(err, stores.ErrChallengeAttempts):
		return nil, ErrInvalidCredentials
	default:
		return nil, err
	}

	ext, err := p.exchange.Exchange(ctx, creds.Code)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if ext == nil || ext.Email == "" {
		return nil, ErrInvalidCredentials
	}

	principal, err := p.store.GetByIdentifier(ctx, identity.NormalizeIdentifier(ext.Email))
	if err == nil {
		return &Result{Principal: principal}, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return nil, err
	}

	principal, err = p.createPrincipal(ctx, ext)
	if err != nil {
		return nil, err
	}
	return &Result{Principal: principal}, nil
}

func (p *OAuth) createPrincipal(ctx context.Context, ext *ExternalIdentity) (*identity.Principal, error) {
	placeholder, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	hash, err := p.hasher.Hash(placeholder)
	if err != nil {
		return nil, err
	}

	principal := &identity.Principal{
		ID:            uuid.NewString(),
		Email:         identity.NormalizeIdentifier(ext.Email),
		Role:          "user",
		PasswordHash:  hash,
		EmailVerified: true,
	}
	if err := p.store.Create(ctx, principal); err != nil {
		// A concurrent callback may have created the row first.
		if errors.Is(err, identity.ErrDuplicateIdentifier) {
			return p.store.GetByIdentifier(ctx, principal.Email)
		}
		return nil, err
	}
	return principal, nil
}
