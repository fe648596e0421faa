package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/verisella/authcore/identity"
	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/provider"
)

// Login authenticates through the named provider.
//
// The shape of the result depends on the provider kind. Local and
// custom providers finish in one call and return a token. OAuth returns
// RedirectTo on the first call and a token once the callback
// credentials are presented. Passwordless returns CodeSent; the flow
// finishes in [Engine.ValidateCode].
//
// Principals with MFA enabled must present their authenticator or
// recovery code in Credentials.MFACode; Login fails with
// [ErrMFARequired] until they do. Unverified principals on a
// policy-required channel get a [*VerificationRequiredError].
func (e *Engine) Login(ctx context.Context, providerName string, creds Credentials) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.rateGate(ctx, "login", identity.NormalizeIdentifier(creds.Identifier)); err != nil {
		if errors.Is(err, ErrRateLimitExceeded) {
			e.metricInc(internalmetrics.MetricLoginRateLimited)
		}
		return nil, err
	}
	p, err := e.lookupProvider(providerName)
	if err != nil {
		return nil, err
	}

	result, err := p.Authenticate(ctx, creds)
	if err != nil {
		e.metricInc(internalmetrics.MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, "", "", false, err, map[string]string{"provider": providerName})
		if errors.Is(err, provider.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	switch {
	case result.RedirectTo != "":
		e.emitAudit(ctx, auditEventLoginRedirect, "", "", true, nil, map[string]string{"provider": providerName})
		return &AuthResult{RedirectTo: result.RedirectTo}, nil
	case result.CodeSent:
		e.emitAudit(ctx, auditEventCodeSent, "", "", true, nil, map[string]string{"provider": providerName})
		return &AuthResult{CodeSent: true}, nil
	}
	return e.finishLogin(ctx, providerName, result.Principal, creds.MFACode, true)
}

// ValidateCode completes a passwordless login with the code delivered to
// the principal's channel. Possession of the single-use code stands in
// for both factors; no separate MFA code is demanded.
func (e *Engine) ValidateCode(ctx context.Context, providerName, code string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.rateGate(ctx, "login", ""); err != nil {
		if errors.Is(err, ErrRateLimitExceeded) {
			e.metricInc(internalmetrics.MetricLoginRateLimited)
		}
		return nil, err
	}
	p, err := e.lookupProvider(providerName)
	if err != nil {
		return nil, err
	}
	validator, ok := p.(provider.Validator)
	if !ok {
		return nil, ErrInvalidProvider
	}
	principal, err := validator.Validate(ctx, code)
	if err != nil {
		e.metricInc(internalmetrics.MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, "", "", false, err, map[string]string{"provider": providerName})
		if errors.Is(err, provider.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return e.finishLogin(ctx, providerName, principal, "", false)
}

// finishLogin runs the post-authentication gates and issues the session.
func (e *Engine) finishLogin(ctx context.Context, providerName string, principal *Principal, mfaCode string, enforceMFA bool) (*AuthResult, error) {
	meta := map[string]string{"provider": providerName}

	if ch := e.pendingVerification(principal); ch != "" {
		verr := &VerificationRequiredError{Channel: ch}
		e.metricInc(internalmetrics.MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, principal.ID, "", false, verr, meta)
		return nil, verr
	}
	if enforceMFA && principal.MFAEnabled {
		if mfaCode == "" {
			e.emitAudit(ctx, auditEventLogin, principal.ID, "", false, ErrMFARequired, meta)
			return nil, ErrMFARequired
		}
		if err := e.checkMFACode(ctx, principal, mfaCode, time.Now()); err != nil {
			e.metricInc(internalmetrics.MetricLoginFailure)
			e.metricInc(internalmetrics.MetricMFAFailure)
			e.emitAudit(ctx, auditEventLogin, principal.ID, "", false, err, meta)
			return nil, err
		}
		e.metricInc(internalmetrics.MetricMFASuccess)
	}

	token, err := e.sessions.Create(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	e.metricInc(internalmetrics.MetricLoginSuccess)
	e.metricInc(internalmetrics.MetricSessionCreated)
	e.emitAudit(ctx, auditEventLogin, principal.ID, "", true, nil, meta)
	return &AuthResult{Principal: principal, Token: token}, nil
}
