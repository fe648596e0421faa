package authcore

import (
	"context"
	"errors"
	"time"

	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/session"
)

// ValidateToken checks an access token under the active strategy. The
// opaque and asymmetric strategies consult the session store, so
// revocation is immediate; the symmetric strategy validates signature
// and expiry only.
//
// With the asymmetric strategy and reuse recovery enabled, a
// signature-valid token whose session record is gone may be exchanged
// for a fresh pair; the replacement rides along in the result and must
// be handed to the client.
func (e *Engine) ValidateToken(ctx context.Context, access string) (*TokenValidation, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	v, err := e.sessions.Verify(ctx, access)
	e.metrics.Observe(internalmetrics.MetricValidateLatency, time.Since(start))
	if err != nil {
		e.metricInc(internalmetrics.MetricValidateFailure)
		if errors.Is(err, session.ErrInvalidSession) {
			return nil, ErrInvalidOrExpiredSession
		}
		// Store and transport failures are not a verdict on the token.
		return nil, err
	}
	e.metricInc(internalmetrics.MetricValidateSuccess)
	if v.Replacement != nil {
		e.metricInc(internalmetrics.MetricReuseRecovered)
		e.emitAudit(ctx, auditEventReuseRecovered, v.PrincipalID, v.SID, true, nil, nil)
	}
	return &TokenValidation{
		PrincipalID: v.PrincipalID,
		SessionID:   v.SID,
		Replacement: v.Replacement,
	}, nil
}

// RefreshToken exchanges a refresh token for a new access and refresh
// pair. Refresh tokens are single use; losing the race to a concurrent
// refresh fails with [ErrInvalidRefreshToken].
func (e *Engine) RefreshToken(ctx context.Context, refresh string) (*Token, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	token, err := e.sessions.Refresh(ctx, refresh)
	if err != nil {
		e.metricInc(internalmetrics.MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, "", "", false, err, nil)
		if errors.Is(err, session.ErrInvalidRefresh) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	e.metricInc(internalmetrics.MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefresh, "", "", true, nil, nil)
	return token, nil
}

// Logout destroys the session the access token belongs to. Unknown and
// already-destroyed tokens are reported as [ErrInvalidOrExpiredSession].
// Under the symmetric strategy the signed access token remains
// cryptographically valid until it expires; only its refresh token is
// revoked.
func (e *Engine) Logout(ctx context.Context, access string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.sessions.Destroy(ctx, access); err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			return ErrInvalidOrExpiredSession
		}
		return err
	}
	e.metricInc(internalmetrics.MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogout, "", "", true, nil, nil)
	return nil
}

// RevokeAllSessions destroys every session belonging to the principal
// across both token hashes and the per-principal indexes.
func (e *Engine) RevokeAllSessions(ctx context.Context, principalID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.tokens.DeleteAllForPrincipal(ctx, principalID); err != nil {
		return err
	}
	e.metricInc(internalmetrics.MetricSessionInvalidated)
	return nil
}
