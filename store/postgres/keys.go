package postgres

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/verisella/authcore/keystore"
)

// KeyStore implements [keystore.Store] over PostgreSQL. The partial
// unique index on is_current makes concurrent rotations across engine
// instances safe: one transaction wins, the other fails and retries by
// reading the fresh current key.
type KeyStore struct {
	db DB
}

// NewKeyStore creates a PostgreSQL-backed signing key store.
func NewKeyStore(db DB) *KeyStore {
	return &KeyStore{db: db}
}

const keyColumns = `kid, algorithm, private_key, public_key, is_current, created_at, rotated_at`

func scanKey(row pgx.Row) (*keystore.Key, error) {
	var (
		k       keystore.Key
		private []byte
		public  []byte
		rotated *time.Time
	)
	err := row.Scan(&k.KID, &k.Algorithm, &private, &public, &k.Current, &k.CreatedAt, &rotated)
	if err != nil {
		return nil, err
	}
	k.Private = ed25519.PrivateKey(private)
	k.Public = ed25519.PublicKey(public)
	if rotated != nil {
		k.RotatedAt = *rotated
	}
	return &k, nil
}

// Current implements [keystore.Store].
func (s *KeyStore) Current(ctx context.Context) (*keystore.Key, error) {
	k, err := scanKey(s.db.QueryRow(ctx,
		`SELECT `+keyColumns+` FROM signing_keys WHERE is_current`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, keystore.ErrNoCurrentKey
	}
	if err != nil {
		return nil, fmt.Errorf("load current key: %w", err)
	}
	return k, nil
}

// Rotate implements [keystore.Store]. The retire and install happen in
// one transaction so there is never a moment with two current keys. When
// a concurrent rotation wins the race, the partial unique index on
// is_current rejects this install and the winner's key is returned.
func (s *KeyStore) Rotate(ctx context.Context) (*keystore.Key, error) {
	next, err := keystore.Generate()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin rotate: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE signing_keys SET is_current = FALSE, rotated_at = $1 WHERE is_current`,
		time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("retire current key: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO signing_keys (kid, algorithm, private_key, public_key, is_current, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)`,
		next.KID, next.Algorithm, []byte(next.Private), []byte(next.Public), next.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			_ = tx.Rollback(ctx)
			return s.Current(ctx)
		}
		return nil, fmt.Errorf("install key: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return s.Current(ctx)
		}
		return nil, fmt.Errorf("commit rotate: %w", err)
	}
	return next, nil
}

// Resolve implements [keystore.Store]. Retired keys stay resolvable so
// tokens signed before a rotation keep verifying.
func (s *KeyStore) Resolve(ctx context.Context, kid string) (*keystore.Key, error) {
	k, err := scanKey(s.db.QueryRow(ctx,
		`SELECT `+keyColumns+` FROM signing_keys WHERE kid = $1`, kid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, keystore.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve key: %w", err)
	}
	return k, nil
}

// List implements [keystore.Store].
func (s *KeyStore) List(ctx context.Context) ([]*keystore.Key, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+keyColumns+` FROM signing_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []*keystore.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}
