package authcore

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/verisella/authcore/identity"
	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/internal/stores"
	"github.com/verisella/authcore/mfa"
)

const enrollmentTTL = 10 * time.Minute

// EnableMFA starts TOTP enrollment for the principal. It returns the
// shared secret and provisioning URI for the authenticator app; nothing
// is persisted on the principal until [Engine.ConfirmMFA] proves the
// app was set up. A pending enrollment expires after ten minutes and is
// replaced by calling EnableMFA again.
func (e *Engine) EnableMFA(ctx context.Context, principalID string) (*MFAEnrollment, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !slices.Contains(e.policyDoc.Load().MFASettings.AllowedMethods, "totp") {
		return nil, errors.New("totp enrollment is not allowed by policy")
	}
	p, err := e.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if p.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	secret, secretB32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	account := p.Email
	if account == "" {
		account = p.ID
	}
	challenge := &stores.Challenge{PrincipalID: principalID, Payload: secret}
	if err := e.enrollments.Save(ctx, principalID, challenge, enrollmentTTL); err != nil {
		return nil, err
	}
	e.metricInc(internalmetrics.MetricMFAEnrollStarted)
	e.emitAudit(ctx, auditEventMFAEnrollStarted, principalID, "", true, nil, nil)
	return &MFAEnrollment{
		Secret:       secretB32,
		ProvisionURI: e.totp.ProvisionURI(secretB32, account),
	}, nil
}

// ConfirmMFA completes enrollment by checking a live code from the
// authenticator app. On success MFA is switched on and the recovery
// codes are returned; they are shown exactly once and stored only as
// hashes.
func (e *Engine) ConfirmMFA(ctx context.Context, principalID, code string) (*MFAEnrollment, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	challenge, err := e.enrollments.Peek(ctx, principalID)
	if err != nil {
		if errors.Is(err, stores.ErrChallengeNotFound) {
			return nil, ErrMFANotEnabled
		}
		return nil, err
	}
	ok, _, err := e.totp.VerifyCode(challenge.Payload, code, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(internalmetrics.MetricMFAFailure)
		return nil, ErrInvalidMFACode
	}

	plaintext, records, err := mfa.GenerateRecoveryCodes(principalID)
	if err != nil {
		return nil, err
	}
	if err := e.principals.EnableMFA(ctx, principalID, challenge.Payload, records); err != nil {
		return nil, err
	}
	_ = e.enrollments.Delete(ctx, principalID)
	e.metricInc(internalmetrics.MetricMFAEnabled)
	e.emitAudit(ctx, auditEventMFAEnabled, principalID, "", true, nil, nil)
	return &MFAEnrollment{
		RecoveryCodes: plaintext,
		Enabled:       true,
	}, nil
}

// VerifyMFA checks an authenticator or recovery code for the principal.
// Recovery codes are consumed on use.
func (e *Engine) VerifyMFA(ctx context.Context, principalID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	p, err := e.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := e.checkMFACode(ctx, p, code, time.Now()); err != nil {
		e.metricInc(internalmetrics.MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAVerified, principalID, "", false, err, nil)
		return err
	}
	e.metricInc(internalmetrics.MetricMFASuccess)
	e.emitAudit(ctx, auditEventMFAVerified, principalID, "", true, nil, nil)
	return nil
}

// DisableMFA switches MFA off after one final code check. Surviving
// recovery codes are discarded with the secret.
func (e *Engine) DisableMFA(ctx context.Context, principalID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	p, err := e.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := e.checkMFACode(ctx, p, code, time.Now()); err != nil {
		e.metricInc(internalmetrics.MetricMFAFailure)
		return err
	}
	if err := e.principals.DisableMFA(ctx, principalID); err != nil {
		return err
	}
	e.metricInc(internalmetrics.MetricMFASuccess)
	e.emitAudit(ctx, auditEventMFADisabled, principalID, "", true, nil, nil)
	return nil
}

// checkMFACode accepts either a live authenticator code or an unused
// recovery code. Both paths are constant time with respect to the
// secret material.
func (e *Engine) checkMFACode(ctx context.Context, p *Principal, code string, now time.Time) error {
	if !p.MFAEnabled {
		return ErrMFANotEnabled
	}
	ok, _, err := e.totp.VerifyCode(p.MFASecret, code, now)
	if err == nil && ok {
		return nil
	}
	if slices.Contains(e.policyDoc.Load().MFASettings.AllowedMethods, "recovery") {
		used, cerr := e.principals.ConsumeRecoveryCode(ctx, p.ID, mfa.HashRecoveryCode(p.ID, code))
		if cerr != nil {
			return cerr
		}
		if used {
			e.metricInc(internalmetrics.MetricRecoveryCodeUsed)
			return nil
		}
	}
	return ErrInvalidMFACode
}
