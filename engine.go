package authcore

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/verisella/authcore/admin"
	internalaudit "github.com/verisella/authcore/internal/audit"
	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/internal/rate"
	"github.com/verisella/authcore/internal/stores"
	"github.com/verisella/authcore/jwt"
	"github.com/verisella/authcore/mfa"
	"github.com/verisella/authcore/password"
	"github.com/verisella/authcore/policy"
	"github.com/verisella/authcore/provider"
	"github.com/verisella/authcore/session"
)

// Engine is the authentication orchestrator. It owns the provider set,
// the session strategy, and the policy cache, and exposes every
// end-user operation as a method. Construct it with [Builder.Build];
// the zero value is not usable. All methods are safe for concurrent
// use.
type Engine struct {
	config Config

	providers  map[string]provider.Provider
	principals PrincipalStore

	policies  *policy.Store
	watcher   *policy.Watcher
	policyDoc atomic.Pointer[policy.Document]

	sessions session.Manager
	asym     *session.AsymmetricManager // nil unless the asymmetric strategy is active
	tokens   *session.Store

	limiter       *rate.RedisLimiter
	localFallback atomic.Pointer[rate.LocalLimiter]

	challenges  *stores.ChallengeStore // verification codes
	enrollments *stores.ChallengeStore // pending MFA secrets

	totp   *mfa.TOTP
	hasher *password.Argon2
	sender CodeSender

	audit   *internalaudit.Dispatcher
	metrics *internalmetrics.Metrics

	adminService *admin.Service
}

// Close stops the policy watcher and flushes the audit dispatcher.
// In-flight operations finish normally; new operations keep working
// against the last cached policy.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.watcher != nil {
		e.watcher.Close()
	}
	e.audit.Close()
}

// Policy returns the current policy document snapshot. The returned
// document is shared; callers must treat it as read-only.
func (e *Engine) Policy() *policy.Document {
	if e == nil {
		return nil
	}
	return e.policyDoc.Load()
}

// ReloadPolicy forces a synchronous refresh from the policy backend,
// bypassing the watcher interval.
func (e *Engine) ReloadPolicy(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	doc, err := e.policies.Reload(ctx)
	if err != nil {
		return err
	}
	e.policyDoc.Store(doc)
	e.metrics.Inc(internalmetrics.MetricPolicyReload)
	return nil
}

// Admin exposes the administrative plane service.
func (e *Engine) Admin() *admin.Service {
	if e == nil {
		return nil
	}
	return e.adminService
}

// JWKS returns the public key set for the asymmetric strategy, covering
// the current key and every retired one. It fails for the other
// strategies, which publish no keys.
func (e *Engine) JWKS(ctx context.Context) (jwt.JWKSDocument, error) {
	if e == nil {
		return jwt.JWKSDocument{}, ErrEngineNotReady
	}
	if e.asym == nil {
		return jwt.JWKSDocument{}, errors.New("jwks is only available with the asymmetric session strategy")
	}
	return e.asym.JWKS(ctx)
}

// MetricsSnapshot returns a copy of all recorded metrics. The snapshot
// is empty when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// rateGate enforces the named policy rate rule for the identifier. When
// Redis is unreachable the check degrades to a per-process window so an
// outage throttles instead of rejecting every request.
func (e *Engine) rateGate(ctx context.Context, rule, identifier string) error {
	doc := e.policyDoc.Load()
	r, ok := doc.Rate(rule)
	if !ok {
		return nil
	}
	if identifier == "" {
		identifier = clientIPFromContext(ctx)
	}
	if identifier == "" {
		return nil
	}
	err := e.limiter.Allow(ctx, rule, identifier, r)
	if errors.Is(err, rate.ErrRedisUnavailable) {
		err = e.fallbackLimiter().Allow(ctx, rule, identifier, r)
	}
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrRateLimitExceeded
	}
	return err
}

func (e *Engine) fallbackLimiter() *rate.LocalLimiter {
	if l := e.localFallback.Load(); l != nil {
		return l
	}
	l := rate.NewLocalLimiter()
	if e.localFallback.CompareAndSwap(nil, l) {
		return l
	}
	return e.localFallback.Load()
}

// lookupProvider resolves a registered, policy-enabled provider.
func (e *Engine) lookupProvider(name string) (provider.Provider, error) {
	p, ok := e.providers[name]
	if !ok {
		return nil, ErrInvalidProvider
	}
	if !e.policyDoc.Load().ProviderEnabled(name) {
		return nil, ErrProviderNotEnabled
	}
	return p, nil
}

// pendingVerification returns the first policy-required channel the
// principal has not verified yet.
func (e *Engine) pendingVerification(p *Principal) VerificationChannel {
	doc := e.policyDoc.Load()
	if doc.AuthPolicy.EmailVerificationRequired && !p.EmailVerified {
		return ChannelEmail
	}
	if doc.AuthPolicy.SMSVerificationRequired && !p.PhoneVerified {
		return ChannelSMS
	}
	return ""
}
