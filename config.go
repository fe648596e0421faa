package authcore

import (
	"fmt"
	"time"
)

// SessionStrategy selects how access tokens are minted and verified.
type SessionStrategy string

const (
	// StrategyOpaque issues random tokens verified by store lookup.
	StrategyOpaque SessionStrategy = "opaque"
	// StrategySymmetric issues HS256 JWTs verified statelessly.
	StrategySymmetric SessionStrategy = "symmetric"
	// StrategyAsymmetric issues kid-tagged Ed25519 JWTs with automatic
	// key rotation and a published JWKS.
	StrategyAsymmetric SessionStrategy = "asymmetric"
)

// SessionConfig selects the token strategy and its store layout.
type SessionConfig struct {
	Strategy    SessionStrategy
	RedisPrefix string
	// ReuseRecovery enables the asymmetric strategy's fallback that
	// trades a signature-valid but revoked access token for the
	// principal's surviving refresh token. Off by default: it weakens
	// reuse detection and should only be enabled for deployments that
	// need to survive partial store loss.
	ReuseRecovery bool
}

// JWTConfig holds signing parameters for the JWT strategies.
type JWTConfig struct {
	Secret []byte // required for the symmetric strategy, min 32 bytes
	Issuer string
	Leeway time.Duration
}

// KeyConfig controls asymmetric signing key rotation.
type KeyConfig struct {
	RotationInterval time.Duration
}

// PasswordConfig holds argon2id tuning parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// TOTPConfig holds authenticator-app parameters.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string
}

// VerificationConfig controls email and SMS verification codes.
type VerificationConfig struct {
	CodeTTL     time.Duration
	CodeDigits  int
	MaxAttempts int
}

// PolicyConfig controls the policy store cache and the change watcher.
type PolicyConfig struct {
	CacheTTL     time.Duration
	PollInterval time.Duration
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics registry.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// AdminConfig controls the administrative plane.
type AdminConfig struct {
	RedisPrefix string
	SessionTTL  time.Duration
}

// Config is the engine configuration tree. Construct it by mutating the
// value installed by [New] through [Builder.WithConfig]; the engine
// clones it at Build and never reads it again from the caller.
type Config struct {
	Session      SessionConfig
	JWT          JWTConfig
	Keys         KeyConfig
	Password     PasswordConfig
	TOTP         TOTPConfig
	Verification VerificationConfig
	Policy       PolicyConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Admin        AdminConfig
}

// DefaultConfig returns the configuration the builder starts from:
// opaque sessions, 90 day key rotation, and moderate argon2id cost.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Strategy:    StrategyOpaque,
			RedisPrefix: "as",
		},
		JWT: JWTConfig{
			Issuer: "authcore",
		},
		Keys: KeyConfig{
			RotationInterval: 90 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		TOTP: TOTPConfig{
			Issuer:    "authcore",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		Verification: VerificationConfig{
			CodeTTL:     10 * time.Minute,
			CodeDigits:  6,
			MaxAttempts: 5,
		},
		Policy: PolicyConfig{
			CacheTTL:     30 * time.Second,
			PollInterval: 15 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Admin: AdminConfig{
			RedisPrefix: "aa",
			SessionTTL:  time.Hour,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Session.Strategy {
	case StrategyOpaque, StrategyAsymmetric:
	case StrategySymmetric:
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("%w: symmetric strategy requires a JWT secret of at least 32 bytes", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown session strategy %q", ErrInvalidConfig, c.Session.Strategy)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return fmt.Errorf("%w: jwt leeway out of range", ErrInvalidConfig)
	}
	if c.Keys.RotationInterval < 0 {
		return fmt.Errorf("%w: key rotation interval must not be negative", ErrInvalidConfig)
	}
	if c.Verification.CodeDigits < 6 || c.Verification.CodeDigits > 10 {
		return fmt.Errorf("%w: verification code digits out of range", ErrInvalidConfig)
	}
	if c.Policy.CacheTTL <= 0 || c.Policy.PollInterval <= 0 {
		return fmt.Errorf("%w: policy cache and poll intervals must be positive", ErrInvalidConfig)
	}
	if c.Admin.SessionTTL <= 0 {
		return fmt.Errorf("%w: admin session ttl must be positive", ErrInvalidConfig)
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.JWT.Secret = append([]byte(nil), c.JWT.Secret...)
	return out
}
