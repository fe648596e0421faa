package stores

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrChallengeNotFound is returned when no live challenge exists for
	// the key, either because none was issued or it expired.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeMismatch is returned when the presented code does not
	// match the stored hash.
	ErrChallengeMismatch = errors.New("challenge secret mismatch")
	// ErrChallengeAttempts is returned once the attempt budget is spent;
	// the challenge is deleted at that point.
	ErrChallengeAttempts = errors.New("challenge attempts exceeded")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("challenge redis unavailable")
)

// Challenge is one short-lived, single-use secret record: a verification
// code, a magic-link code, or a pending MFA enrollment secret.
type Challenge struct {
	PrincipalID string `json:"principal_id"`
	SecretHash  []byte `json:"secret_hash"`
	Payload     []byte `json:"payload,omitempty"`
	Attempts    int    `json:"attempts"`
}

// ChallengeStore persists single-use challenges in Redis under a TTL.
// Consume is atomic: concurrent presenters of the same code see exactly
// one success.
type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewChallengeStore creates a store namespaced by prefix.
func NewChallengeStore(client redis.UniversalClient, prefix string) *ChallengeStore {
	return &ChallengeStore{redis: client, prefix: prefix}
}

func (s *ChallengeStore) key(id string) string {
	return s.prefix + ":" + id
}

// Save persists the challenge, replacing any live one for the same key.
func (s *ChallengeStore) Save(ctx context.Context, id string, ch *Challenge, ttl time.Duration) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Peek returns the live challenge without consuming it. Used by the
// two-phase MFA enable flow to re-serve the pending provisioning secret.
func (s *ChallengeStore) Peek(ctx context.Context, id string) (*Challenge, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	var ch Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, ErrChallengeNotFound
	}
	return &ch, nil
}

// Consume validates the provided hash against the stored one and deletes
// the challenge on success. Mismatches burn one attempt; spending the
// whole budget deletes the challenge. The WATCH transaction retries on
// contention so concurrent consumers resolve to one winner.
func (s *ChallengeStore) Consume(ctx context.Context, id string, providedHash []byte, maxAttempts int) (*Challenge, error) {
	const maxRetries = 4
	key := s.key(id)

	for i := 0; i < maxRetries; i++ {
		var matched *Challenge
		var attemptErr error

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			var ch Challenge
			if err := json.Unmarshal(data, &ch); err != nil {
				return redis.Nil
			}

			if subtle.ConstantTimeCompare(ch.SecretHash, providedHash) == 1 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err == nil {
					matched = &ch
				}
				return err
			}

			ch.Attempts++
			if maxAttempts > 0 && ch.Attempts >= maxAttempts {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err == nil {
					attemptErr = ErrChallengeAttempts
				}
				return err
			}

			updated, err := json.Marshal(&ch)
			if err != nil {
				return err
			}
			ttl, err := tx.PTTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				return redis.Nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			if err == nil {
				attemptErr = ErrChallengeMismatch
			}
			return err
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return nil, ErrChallengeNotFound
		case err != nil:
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		case attemptErr != nil:
			return nil, attemptErr
		default:
			return matched, nil
		}
	}

	return nil, fmt.Errorf("%w: transaction contention", ErrRedisUnavailable)
}

// Delete removes a live challenge, if any.
func (s *ChallengeStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
