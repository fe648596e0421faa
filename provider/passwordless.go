package provider

import (
	"context"
	"errors"
	"time"

	"github.com/verisella/authcore/identity"
	"github.com/verisella/authcore/internal"
	"github.com/verisella/authcore/internal/stores"
)

// CodeSender delivers one-time codes to principals. Implementations are
// external collaborators such as email or SMS gateways; delivery may be
// fire-and-forget behind the interface.
type CodeSender interface {
	SendCode(ctx context.Context, channel identity.VerificationChannel, recipient, code string) error
}

// Passwordless authenticates by delivering an opaque magic code to the
// principal's registered channel. Authenticate starts the challenge;
// Validate completes it and yields the principal.
type Passwordless struct {
	store      identity.Store
	challenges *stores.ChallengeStore
	sender     CodeSender

	ttl         time.Duration
	maxAttempts int
}

// NewPasswordless creates the magic-code provider. Codes live for ttl
// and tolerate maxAttempts mismatches before the challenge burns.
func NewPasswordless(store identity.Store, challenges *stores.ChallengeStore, sender CodeSender, ttl time.Duration, maxAttempts int) *Passwordless {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Passwordless{
		store:       store,
		challenges:  challenges,
		sender:      sender,
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

// Name implements [Provider].
func (p *Passwordless) Name() string { return "passwordless" }

// Kind implements [Provider].
func (p *Passwordless) Kind() Kind { return KindPasswordless }

// Authenticate implements [Provider]. A successful call means a code is
// on its way; the caller finishes the flow through [Passwordless.Validate].
func (p *Passwordless) Authenticate(ctx context.Context, creds Credentials) (*Result, error) {
	principal, err := p.store.GetByIdentifier(ctx, identity.NormalizeIdentifier(creds.Identifier))
	if errors.Is(err, identity.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	code, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	hash := internal.HashToken(code)
	ch := &stores.Challenge{
		PrincipalID: principal.ID,
		SecretHash:  hash[:],
	}
	if err := p.challenges.Save(ctx, internal.HashTokenString(code), ch, p.ttl); err != nil {
		return nil, err
	}

	channel, recipient := identity.ChannelEmail, principal.Email
	if recipient == "" {
		channel, recipient = identity.ChannelSMS, principal.Phone
	}
	if err := p.sender.SendCode(ctx, channel, recipient, code); err != nil {
		_ = p.challenges.Delete(ctx, internal.HashTokenString(code))
		return nil, err
	}

	return &Result{CodeSent: true}, nil
}

// Validate implements [Validator]. The code is consumed on the first
// match; replays and unknown codes fail identically.
func (p *Passwordless) Validate(ctx context.Context, code string) (*identity.Principal, error) {
	hash := internal.HashToken(code)
	ch, err := p.challenges.Consume(ctx, internal.HashTokenString(code), hash[:], p.maxAttempts)
	switch {
	case err == nil:
	case errors.Is(err, stores.ErrChallengeNotFound),
		errors.Is(err, stores.ErrChallengeMismatch),
		errors.Is(err, stores.ErrChallengeAttempts):
		return nil, ErrInvalidCredentials
	default:
		return nil, err
	}

	principal, err := p.store.GetByID(ctx, ch.PrincipalID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return principal, nil
}
