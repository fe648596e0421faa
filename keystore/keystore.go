package keystore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoCurrentKey is returned by [Store.Current] before the first key
	// has been generated.
	ErrNoCurrentKey = errors.New("no current signing key")
	// ErrKeyNotFound is returned by [Store.Resolve] for an unknown kid.
	ErrKeyNotFound = errors.New("signing key not found")
)

// Key is one signing key pair. At most one key is Current at a time;
// retired keys stay resolvable for verification until tokens signed with
// them have expired.
type Key struct {
	KID       string
	Algorithm string
	Private   ed25519.PrivateKey
	Public    ed25519.PublicKey
	CreatedAt time.Time
	RotatedAt time.Time // zero until the key is retired
	Current   bool
}

// Store persists signing key pairs for the asymmetric session strategy.
//
// Rotate must atomically retire the current key and install the new one.
// Multi-instance deployments sharing one store must serialize Rotate
// externally unless the implementation documents otherwise; the Postgres
// implementation under store/postgres is safe within a single database.
type Store interface {
	Current(ctx context.Context) (*Key, error)
	Rotate(ctx context.Context) (*Key, error)
	Resolve(ctx context.Context, kid string) (*Key, error)
	// List returns every key, current and retired, newest first. Retired
	// keys appear in the published JWKS so tokens signed before a
	// rotation stay verifiable by external consumers.
	List(ctx context.Context) ([]*Key, error)
}

// Generate creates a fresh Ed25519 key pair tagged with a random kid.
func Generate() (*Key, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Key{
		KID:       uuid.NewString(),
		Algorithm: "EdDSA",
		Private:   priv,
		Public:    pub,
		CreatedAt: time.Now(),
		Current:   true,
	}, nil
}

// Age returns how long the key has been current.
func (k *Key) Age(now time.Time) time.Duration {
	if k == nil {
		return 0
	}
	return now.Sub(k.CreatedAt)
}
