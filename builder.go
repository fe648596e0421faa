package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verisella/authcore/admin"
	"github.com/verisella/authcore/identity"
	internalaudit "github.com/verisella/authcore/internal/audit"
	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/internal/rate"
	"github.com/verisella/authcore/internal/stores"
	"github.com/verisella/authcore/jwt"
	"github.com/verisella/authcore/keystore"
	"github.com/verisella/authcore/mfa"
	"github.com/verisella/authcore/password"
	"github.com/verisella/authcore/policy"
	"github.com/verisella/authcore/provider"
	"github.com/verisella/authcore/session"
)

// Builder assembles an [Engine]. Redis is the one mandatory
// collaborator; every other one the host does not supply falls back to
// an in-memory implementation, which suits tests and single-node
// setups. Production deployments should supply a durable principal
// store and policy backend.
type Builder struct {
	config Config

	redis         redis.UniversalClient
	principals    identity.Store
	policyBackend policy.Backend
	providers     []provider.Provider
	passwordless  bool
	oauth         []oauthSpec
	keys          keystore.Store
	adminStore    admin.Store
	sender        provider.CodeSender
	auditSink     internalaudit.Sink
}

// New starts a builder with default configuration.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration tree. Call it before the other
// With methods; Build validates the final tree.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing sessions, challenges, and
// rate limiting. Required; Build fails without it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPrincipalStore supplies the principal database integration.
func (b *Builder) WithPrincipalStore(store identity.Store) *Builder {
	b.principals = store
	return b
}

// WithPolicyBackend supplies durable storage for the policy document.
func (b *Builder) WithPolicyBackend(backend policy.Backend) *Builder {
	b.policyBackend = backend
	return b
}

// WithProvider registers a credential provider. Repeatable; the last
// provider registered under a name wins. When no provider is registered
// at Build time a local password provider is installed automatically.
func (b *Builder) WithProvider(p provider.Provider) *Builder {
	b.providers = append(b.providers, p)
	return b
}

type oauthSpec struct {
	name     string
	exchange provider.Exchange
}

// WithPasswordless enables the passwordless provider. It delivers codes
// through the sender from [Builder.WithSender] and stores the pending
// challenges in Redis under the verification code TTL and attempt
// budget.
func (b *Builder) WithPasswordless() *Builder {
	b.passwordless = true
	return b
}

// WithOAuth registers an OAuth provider under the given name, backed by
// the host's token exchange. Repeatable for multiple identity
// providers.
func (b *Builder) WithOAuth(name string, exchange provider.Exchange) *Builder {
	b.oauth = append(b.oauth, oauthSpec{name: name, exchange: exchange})
	return b
}

// WithKeyStore supplies signing-key persistence for the asymmetric
// strategy. Without it keys live in process memory and rotation state is
// lost on restart.
func (b *Builder) WithKeyStore(store keystore.Store) *Builder {
	b.keys = store
	return b
}

// WithAdminStore supplies persistence for the administrative plane.
func (b *Builder) WithAdminStore(store admin.Store) *Builder {
	b.adminStore = store
	return b
}

// WithSender supplies the gateway that delivers verification and
// passwordless codes.
func (b *Builder) WithSender(sender provider.CodeSender) *Builder {
	b.sender = sender
	return b
}

// WithAuditSink supplies the destination for audit events. Events are
// dispatched asynchronously; see [AuditConfig] for buffering behavior.
func (b *Builder) WithAuditSink(sink internalaudit.Sink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration, wires the engine, and starts the
// policy watcher. The returned engine must be closed with [Engine.Close].
func (b *Builder) Build(ctx context.Context) (*Engine, error) {
	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, fmt.Errorf("%w: a redis client is required", ErrInvalidConfig)
	}
	if b.principals == nil {
		b.principals = identity.NewMemoryStore()
	}
	if b.policyBackend == nil {
		b.policyBackend = policy.NewMemoryBackend(nil)
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	policies := policy.NewStore(b.policyBackend, cfg.Policy.CacheTTL)
	doc, err := policies.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading policy document: %w", err)
	}

	e := &Engine{
		config:     cfg,
		principals: b.principals,
		policies:   policies,
		hasher:     hasher,
		sender:     b.sender,
		providers:  make(map[string]provider.Provider),
	}
	e.policyDoc.Store(doc)

	tokens := session.NewStore(b.redis, cfg.Session.RedisPrefix)
	e.tokens = tokens
	settings := func() policy.SessionSettings {
		return e.policyDoc.Load().SessionSettings
	}

	switch cfg.Session.Strategy {
	case StrategyOpaque:
		e.sessions = session.NewOpaqueManager(tokens, settings)
	case StrategySymmetric:
		signer, err := jwt.NewManager(jwt.Config{
			Method: jwt.MethodHS256,
			Secret: cfg.JWT.Secret,
			Issuer: cfg.JWT.Issuer,
			Leeway: cfg.JWT.Leeway,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		e.sessions = session.NewSymmetricManager(tokens, signer, settings)
	case StrategyAsymmetric:
		signer, err := jwt.NewManager(jwt.Config{
			Method: jwt.MethodEd25519,
			Issuer: cfg.JWT.Issuer,
			Leeway: cfg.JWT.Leeway,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if b.keys == nil {
			b.keys = keystore.NewMemoryStore()
		}
		asym := session.NewAsymmetricManager(tokens, b.keys, signer, settings,
			cfg.Keys.RotationInterval, cfg.Session.ReuseRecovery)
		asym.OnRotate(func() { e.metricInc(internalmetrics.MetricKeyRotation) })
		e.sessions = asym
		e.asym = asym
	}

	e.limiter = rate.NewRedisLimiter(b.redis)
	e.challenges = stores.NewChallengeStore(b.redis, "av")
	e.enrollments = stores.NewChallengeStore(b.redis, "am")

	e.totp = mfa.NewTOTP(mfa.TOTPConfig{
		Issuer:    cfg.TOTP.Issuer,
		Digits:    cfg.TOTP.Digits,
		Period:    cfg.TOTP.Period,
		Skew:      cfg.TOTP.Skew,
		Algorithm: cfg.TOTP.Algorithm,
	})

	for _, p := range b.providers {
		e.providers[p.Name()] = p
	}
	if b.passwordless {
		if b.sender == nil {
			return nil, fmt.Errorf("%w: the passwordless provider requires a code sender", ErrInvalidConfig)
		}
		pw := provider.NewPasswordless(b.principals,
			stores.NewChallengeStore(b.redis, "ap"),
			b.sender, cfg.Verification.CodeTTL, cfg.Verification.MaxAttempts)
		e.providers[pw.Name()] = pw
	}
	for _, spec := range b.oauth {
		oa := provider.NewOAuth(spec.name, b.principals,
			stores.NewChallengeStore(b.redis, "ao"),
			spec.exchange, hasher, 10*time.Minute)
		e.providers[oa.Name()] = oa
	}
	if len(e.providers) == 0 {
		local := provider.NewLocal(b.principals, hasher)
		e.providers[local.Name()] = local
	}

	sink := b.auditSink
	if sink == nil {
		sink = internalaudit.NoOpSink{}
	}
	e.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)
	e.metrics = internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Metrics.Enabled,
		EnableLatency: cfg.Metrics.EnableLatencyHistograms,
	})

	if b.adminStore == nil {
		b.adminStore = admin.NewMemoryStore()
	}
	adminTTL := cfg.Admin.SessionTTL
	adminSessions := session.NewOpaqueManager(
		session.NewStore(b.redis, cfg.Admin.RedisPrefix),
		func() policy.SessionSettings {
			return policy.SessionSettings{
				AccessTokenTTL:   adminTTL,
				RefreshTokenTTL:  adminTTL,
				TokenRotation:    true,
				MultipleSessions: true,
			}
		})
	e.adminService = admin.NewService(b.adminStore, hasher, adminSessions, policies, e.metrics)

	e.watcher = policy.NewWatcher(policies, cfg.Policy.PollInterval, func(d *policy.Document) {
		e.policyDoc.Store(d)
		e.metrics.Inc(internalmetrics.MetricPolicyReload)
	})
	if err := e.watcher.Start(ctx); err != nil {
		e.audit.Close()
		return nil, err
	}
	return e, nil
}

// BuildWithTimeout is a convenience wrapper for hosts without a startup
// context on hand.
func (b *Builder) BuildWithTimeout(d time.Duration) (*Engine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return b.Build(ctx)
}
