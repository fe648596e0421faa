package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/verisella/authcore/identity"
	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/password"
)

// ChangePassword replaces the principal's password after checking the
// current one. Every session the principal holds is revoked; the caller
// must log in again.
func (e *Engine) ChangePassword(ctx context.Context, principalID, current, next string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	doc := e.policyDoc.Load()
	if !doc.AuthPolicy.PasswordChange {
		return ErrPasswordChangeDisabled
	}
	p, err := e.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	ok, err := e.hasher.Verify(current, p.PasswordHash)
	if err != nil || !ok {
		e.metricInc(internalmetrics.MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChanged, principalID, "", false, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}
	if next == current {
		return ErrPasswordReuse
	}
	if err := password.Validate(next, doc.PasswordPolicy); err != nil {
		e.metricInc(internalmetrics.MetricPasswordChangeFailure)
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := e.principals.UpdatePasswordHash(ctx, principalID, hash); err != nil {
		return err
	}
	// Credential rotation invalidates every outstanding session.
	if err := e.RevokeAllSessions(ctx, principalID); err != nil {
		return err
	}
	e.metricInc(internalmetrics.MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChanged, principalID, "", true, nil, nil)
	return nil
}
