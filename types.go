package authcore

import (
	"github.com/verisella/authcore/identity"
	internalaudit "github.com/verisella/authcore/internal/audit"
	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/provider"
	"github.com/verisella/authcore/session"
)

// Principal is an authenticated end-user identity record.
type Principal = identity.Principal

// PrincipalStore is the interface callers implement to integrate the
// engine with their principal database.
type PrincipalStore = identity.Store

// VerificationChannel names the delivery channel of a verification code.
type VerificationChannel = identity.VerificationChannel

// Verification channels.
const (
	ChannelEmail = identity.ChannelEmail
	ChannelSMS   = identity.ChannelSMS
)

// Credentials is the credential envelope handed to providers.
type Credentials = provider.Credentials

// CodeSender delivers one-time codes; implementations are external
// collaborators such as email or SMS gateways.
type CodeSender = provider.CodeSender

// Token is one issued session pair.
type Token = session.Token

// AuthResult is the outcome of a register, login, or code validation
// call. Token is nil when the flow is not finished: RedirectTo carries
// an OAuth redirect, CodeSent marks a dispatched passwordless code, and
// PendingVerification names a channel the principal must verify first.
type AuthResult struct {
	Principal  *Principal
	Token      *Token
	RedirectTo string
	CodeSent   bool

	PendingVerification VerificationChannel
}

// TokenValidation is the outcome of validating an access token.
// Replacement is non-nil only when the asymmetric strategy's
// reuse-recovery fallback minted a fresh pair the caller must hand to
// the client.
type TokenValidation struct {
	PrincipalID string
	SessionID   string
	Replacement *Token
}

// MFAEnrollment is the result of the two-phase MFA enable flow. The
// first phase returns the provisioning secret and URI; the second
// returns the recovery codes, shown exactly once.
type MFAEnrollment struct {
	Secret        string
	ProvisionURI  string
	RecoveryCodes []string
	Enabled       bool
}

// AuditEvent is one engine audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events on a channel for the host to drain.
type ChannelSink = internalaudit.ChannelSink

// NewChannelSink creates a [ChannelSink] with the given buffer.
var NewChannelSink = internalaudit.NewChannelSink

// JSONWriterSink writes one JSON line per event.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewJSONWriterSink creates a [JSONWriterSink] over the writer.
var NewJSONWriterSink = internalaudit.NewJSONWriterSink

// MetricID identifies one engine metric.
type MetricID = internalmetrics.MetricID

// MetricsSnapshot is a point-in-time copy of all recorded metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// Metric identifiers exposed for snapshot consumers.
const (
	MetricLoginSuccess          = internalmetrics.MetricLoginSuccess
	MetricLoginFailure          = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited      = internalmetrics.MetricLoginRateLimited
	MetricRegisterSuccess       = internalmetrics.MetricRegisterSuccess
	MetricRegisterFailure       = internalmetrics.MetricRegisterFailure
	MetricRegisterRateLimited   = internalmetrics.MetricRegisterRateLimited
	MetricSessionCreated        = internalmetrics.MetricSessionCreated
	MetricSessionInvalidated    = internalmetrics.MetricSessionInvalidated
	MetricValidateSuccess       = internalmetrics.MetricValidateSuccess
	MetricValidateFailure       = internalmetrics.MetricValidateFailure
	MetricRefreshSuccess        = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure        = internalmetrics.MetricRefreshFailure
	MetricReuseRecovered        = internalmetrics.MetricReuseRecovered
	MetricVerificationSent      = internalmetrics.MetricVerificationSent
	MetricVerificationSuccess   = internalmetrics.MetricVerificationSuccess
	MetricVerificationFailure   = internalmetrics.MetricVerificationFailure
	MetricMFAEnrollStarted      = internalmetrics.MetricMFAEnrollStarted
	MetricMFAEnabled            = internalmetrics.MetricMFAEnabled
	MetricMFASuccess            = internalmetrics.MetricMFASuccess
	MetricMFAFailure            = internalmetrics.MetricMFAFailure
	MetricRecoveryCodeUsed      = internalmetrics.MetricRecoveryCodeUsed
	MetricPasswordChangeSuccess = internalmetrics.MetricPasswordChangeSuccess
	MetricPasswordChangeFailure = internalmetrics.MetricPasswordChangeFailure
	MetricKeyRotation           = internalmetrics.MetricKeyRotation
	MetricPolicyReload          = internalmetrics.MetricPolicyReload
	MetricAdminLoginSuccess     = internalmetrics.MetricAdminLoginSuccess
	MetricAdminLoginFailure     = internalmetrics.MetricAdminLoginFailure
	MetricAdminDenied           = internalmetrics.MetricAdminDenied
	MetricAdminAPIKeyUsed       = internalmetrics.MetricAdminAPIKeyUsed
	MetricValidateLatency       = internalmetrics.MetricValidateLatency
)
