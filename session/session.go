package session

import (
	"context"
	"errors"
	"time"

	"github.com/verisella/authcore/policy"
)

var (
	// ErrInvalidSession is returned when an access token is unknown,
	// revoked, or expired.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrInvalidRefresh is returned when a refresh token is unknown or
	// was already consumed. Under concurrent refresh of the same token
	// exactly one caller succeeds; the losers observe this error.
	ErrInvalidRefresh = errors.New("invalid refresh token")
)

// Token is one issued session: the access token handed to the caller and
// its companion refresh token.
type Token struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
}

// Verification is the result of checking an access token. Replacement is
// non-nil only when the asymmetric strategy's reuse-recovery fallback
// minted a fresh pair; the caller must hand the replacement to the client.
type Verification struct {
	PrincipalID string
	SID         string
	Replacement *Token
}

// SettingsFunc supplies the live session settings from the policy
// document so TTL and rotation changes take effect without rebuilds.
type SettingsFunc func() policy.SessionSettings

// Manager is the common contract of the three interchangeable session
// strategies.
type Manager interface {
	Create(ctx context.Context, principalID string) (*Token, error)
	Verify(ctx context.Context, access string) (*Verification, error)
	Refresh(ctx context.Context, refresh string) (*Token, error)
	Destroy(ctx context.Context, access string) error
}
