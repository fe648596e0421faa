package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verisella/authcore/internal"
)

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("session redis unavailable")

// ErrRecordNotFound is returned for lookups of unknown or expired token
// records.
var ErrRecordNotFound = errors.New("token record not found")

// AccessRecord binds a stored access-token hash to its principal, session
// id, signing key id, and companion refresh hash. Expiry is carried by the
// Redis TTL; the field mirrors it for callers.
type AccessRecord struct {
	PrincipalID string    `json:"principal_id"`
	SID         string    `json:"sid"`
	KID         string    `json:"kid,omitempty"`
	RefreshHash string    `json:"refresh_hash,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RefreshRecord binds a stored refresh-token hash to its principal and
// the access record it can replace.
type RefreshRecord struct {
	PrincipalID string `json:"principal_id"`
	SID         string `json:"sid"`
	AccessHash  string `json:"access_hash,omitempty"`
}

// Store is the Redis-backed token record store shared by all three
// strategies. Token values never reach Redis: every key is derived from
// the SHA-256 of the presented token, and refresh consumption uses GETDEL
// so concurrent presenters of one token resolve to exactly one winner.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a token record store. prefix namespaces the key
// layout; the admin plane uses a distinct prefix on the same client.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "as"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) accessKey(hash string) string  { return s.prefix + ":at:" + hash }
func (s *Store) refreshKey(hash string) string { return s.prefix + ":rt:" + hash }
func (s *Store) principalRefreshKey(pid string) string {
	return s.prefix + ":rp:" + pid
}
func (s *Store) principalAccessKey(pid string) string {
	return s.prefix + ":ap:" + pid
}

// SaveAccess persists the access record under the token's hash.
func (s *Store) SaveAccess(ctx context.Context, token string, rec *AccessRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	hash := internal.HashTokenString(token)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.accessKey(hash), data, ttl)
		pipe.SAdd(ctx, s.principalAccessKey(rec.PrincipalID), hash)
		pipe.Expire(ctx, s.principalAccessKey(rec.PrincipalID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetAccess looks up the live access record for a presented token.
func (s *Store) GetAccess(ctx context.Context, token string) (*AccessRecord, error) {
	data, err := s.redis.Get(ctx, s.accessKey(internal.HashTokenString(token))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	var rec AccessRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

// DeleteAccess removes the access record for a presented token.
func (s *Store) DeleteAccess(ctx context.Context, token string) error {
	return s.DeleteAccessHash(ctx, internal.HashTokenString(token))
}

// DeleteAccessHash removes an access record by its stored hash.
func (s *Store) DeleteAccessHash(ctx context.Context, hash string) error {
	if hash == "" {
		return nil
	}
	if err := s.redis.Del(ctx, s.accessKey(hash)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SaveRefresh persists the refresh record and indexes it by principal for
// the reuse-recovery path.
func (s *Store) SaveRefresh(ctx context.Context, token string, rec *RefreshRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	hash := internal.HashTokenString(token)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.refreshKey(hash), data, ttl)
		pipe.SAdd(ctx, s.principalRefreshKey(rec.PrincipalID), hash)
		pipe.Expire(ctx, s.principalRefreshKey(rec.PrincipalID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ConsumeRefresh atomically deletes and returns the refresh record for a
// presented token. GETDEL guarantees single use: the second concurrent
// presenter observes [ErrRecordNotFound].
func (s *Store) ConsumeRefresh(ctx context.Context, token string) (*RefreshRecord, error) {
	hash := internal.HashTokenString(token)
	data, err := s.redis.GetDel(ctx, s.refreshKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	var rec RefreshRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, ErrRecordNotFound
	}
	_ = s.redis.SRem(ctx, s.principalRefreshKey(rec.PrincipalID), hash).Err()
	return &rec, nil
}

// DeleteRefreshHash removes a refresh record by its stored hash.
func (s *Store) DeleteRefreshHash(ctx context.Context, pid, hash string) error {
	if hash == "" {
		return nil
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.refreshKey(hash))
		pipe.SRem(ctx, s.principalRefreshKey(pid), hash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// PopRefreshForPrincipal consumes one live refresh record belonging to
// the principal without knowing its token. This is the reuse-recovery
// lookup: a stale but structurally valid access token trades the
// principal's surviving refresh token for a fresh pair.
func (s *Store) PopRefreshForPrincipal(ctx context.Context, principalID string) (*RefreshRecord, error) {
	setKey := s.principalRefreshKey(principalID)
	for {
		hash, err := s.redis.SPop(ctx, setKey).Result()
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		data, err := s.redis.GetDel(ctx, s.refreshKey(hash)).Bytes()
		if errors.Is(err, redis.Nil) {
			// Stale index entry for an expired record; try the next one.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		var rec RefreshRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		return &rec, nil
	}
}

// DeleteAllForPrincipal revokes every live access and refresh record of
// the principal. Used when the policy disallows multiple sessions.
func (s *Store) DeleteAllForPrincipal(ctx context.Context, principalID string) error {
	accessSet := s.principalAccessKey(principalID)
	refreshSet := s.principalRefreshKey(principalID)

	accessHashes, err := s.redis.SMembers(ctx, accessSet).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	refreshHashes, err := s.redis.SMembers(ctx, refreshSet).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, h := range accessHashes {
			pipe.Del(ctx, s.accessKey(h))
		}
		for _, h := range refreshHashes {
			pipe.Del(ctx, s.refreshKey(h))
		}
		pipe.Del(ctx, accessSet, refreshSet)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
