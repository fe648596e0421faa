package authcore

import (
	"context"
	"time"

	internalaudit "github.com/verisella/authcore/internal/audit"
)

const (
	auditEventRegister         = "auth.register"
	auditEventLogin            = "auth.login"
	auditEventLoginRedirect    = "auth.login.redirect"
	auditEventCodeSent         = "auth.login.code_sent"
	auditEventRefresh          = "auth.refresh"
	auditEventLogout           = "auth.logout"
	auditEventReuseRecovered   = "auth.session.reuse_recovered"
	auditEventVerificationSent = "auth.verification.sent"
	auditEventVerified         = "auth.verification.confirmed"
	auditEventMFAEnrollStarted = "auth.mfa.enroll_started"
	auditEventMFAEnabled       = "auth.mfa.enabled"
	auditEventMFADisabled      = "auth.mfa.disabled"
	auditEventMFAVerified      = "auth.mfa.verified"
	auditEventPasswordChanged  = "auth.password.changed"
)

func (e *Engine) emitAudit(ctx context.Context, action, principalID, sessionID string, success bool, failure error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := internalaudit.Event{
		Timestamp:   time.Now(),
		Action:      action,
		PrincipalID: principalID,
		SessionID:   sessionID,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["user_agent"] = ua
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	e.audit.Emit(ctx, event)
}
