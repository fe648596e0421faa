package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/verisella/authcore/identity"
	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/password"
	"github.com/verisella/authcore/provider"
)

// Register creates a principal through the named provider. Providers
// that only authenticate, such as OAuth, reject registration.
//
// When the policy requires verification on a channel the principal has
// not completed, the result carries PendingVerification and no token; a
// verification code is dispatched when a sender is configured. Otherwise
// a session is issued immediately when the policy's
// loginAfterRegistration flag is set.
func (e *Engine) Register(ctx context.Context, providerName string, creds Credentials) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.rateGate(ctx, "register", identity.NormalizeIdentifier(creds.Identifier)); err != nil {
		if errors.Is(err, ErrRateLimitExceeded) {
			e.metricInc(internalmetrics.MetricRegisterRateLimited)
		}
		return nil, err
	}
	p, err := e.lookupProvider(providerName)
	if err != nil {
		return nil, err
	}
	registrar, ok := p.(provider.Registrar)
	if !ok {
		return nil, ErrProviderDoesNotSupportRegistration
	}
	if creds.Password != "" {
		if err := password.Validate(creds.Password, e.policyDoc.Load().PasswordPolicy); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
	}

	principal, err := registrar.Register(ctx, creds)
	if err != nil {
		e.metricInc(internalmetrics.MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegister, "", "", false, err, map[string]string{"provider": providerName})
		if errors.Is(err, identity.ErrDuplicateIdentifier) {
			return nil, ErrDuplicateIdentifier
		}
		return nil, err
	}
	e.metricInc(internalmetrics.MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, principal.ID, "", true, nil, map[string]string{"provider": providerName})

	if ch := e.pendingVerification(principal); ch != "" {
		// Delivery failures do not fail registration; the caller can
		// re-request the code through SendVerification.
		if e.sender != nil {
			_ = e.SendVerification(ctx, principal.ID, ch)
		}
		return &AuthResult{Principal: principal, PendingVerification: ch}, nil
	}
	if !e.policyDoc.Load().AuthPolicy.LoginAfterRegistration {
		return &AuthResult{Principal: principal}, nil
	}
	token, err := e.sessions.Create(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	e.metricInc(internalmetrics.MetricSessionCreated)
	return &AuthResult{Principal: principal, Token: token}, nil
}
