package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature scheme.
type SigningMethod string

const (
	// MethodHS256 signs with a single shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with a kid-tagged Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrTokenInvalid is returned for any token that fails signature or
	// claim validation.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrMissingKID is returned when an Ed25519 token carries no kid header.
	ErrMissingKID = errors.New("missing kid header")
)

// Config holds signing and validation parameters shared by both methods.
type Config struct {
	Method SigningMethod
	Secret []byte // required for hs256
	Issuer string
	Leeway time.Duration
}

// Claims is the signed claim set carried by JWT access tokens. Subject is
// the principal ID; SID identifies the session record the token belongs to.
type Claims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager signs and parses access tokens. A Manager is immutable after
// construction and safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates the configuration and creates a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.Method {
	case MethodHS256:
		if len(cfg.Secret) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		// Key material is resolved per call through the key store.
	default:
		return nil, errors.New("unsupported signing method")
	}
	return &Manager{config: cfg}, nil
}

// Sign issues an HS256 access token for the principal and session.
func (m *Manager) Sign(principalID, sid string, ttl time.Duration) (string, error) {
	if m.config.Method != MethodHS256 {
		return "", errors.New("Sign requires hs256")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, m.claims(principalID, sid, ttl))
	return token.SignedString(m.config.Secret)
}

// SignWithKey issues an EdDSA access token, tagging the header with the
// signing key's kid so external verifiers can select the public key from
// the published JWKS.
func (m *Manager) SignWithKey(principalID, sid, kid string, priv ed25519.PrivateKey, ttl time.Duration) (string, error) {
	if m.config.Method != MethodEd25519 {
		return "", errors.New("SignWithKey requires ed25519")
	}
	if len(priv) != ed25519.PrivateKeySize {
		return "", errors.New("invalid ed25519 private key")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, m.claims(principalID, sid, ttl))
	token.Header["kid"] = kid
	return token.SignedString(priv)
}

func (m *Manager) claims(principalID, sid string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
}

// Parse validates an HS256 token against the shared secret.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	if m.config.Method != MethodHS256 {
		return nil, errors.New("Parse requires hs256")
	}
	return m.parse(tokenStr, jwt.SigningMethodHS256.Alg(), func(*jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
}

// ParseWithResolver validates an EdDSA token, resolving the verification
// key from the token's kid header.
func (m *Manager) ParseWithResolver(tokenStr string, resolve func(kid string) (ed25519.PublicKey, error)) (*Claims, error) {
	if m.config.Method != MethodEd25519 {
		return nil, errors.New("ParseWithResolver requires ed25519")
	}
	return m.parse(tokenStr, jwt.SigningMethodEdDSA.Alg(), func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMissingKID
		}
		pub, err := resolve(kid)
		if err != nil {
			return nil, err
		}
		return pub, nil
	})
}

func (m *Manager) parse(tokenStr, alg string, keyfunc jwt.Keyfunc) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrTokenInvalid)
	}
	return claims, nil
}
