package keystore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process [Store]. Key material lives only for the
// process lifetime; durable deployments use the Postgres implementation.
type MemoryStore struct {
	mu      sync.Mutex
	current *Key
	keys    map[string]*Key
}

// NewMemoryStore creates an empty in-memory key store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: map[string]*Key{}}
}

// Current implements [Store].
func (s *MemoryStore) Current(context.Context) (*Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoCurrentKey
	}
	k := *s.current
	return &k, nil
}

// Rotate implements [Store]. The previous current key, if any, is retired
// but remains resolvable.
func (s *MemoryStore) Rotate(context.Context) (*Key, error) {
	next, err := Generate()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Current = false
		s.current.RotatedAt = time.Now()
	}
	s.current = next
	s.keys[next.KID] = next

	k := *next
	return &k, nil
}

// List implements [Store].
func (s *MemoryStore) List(context.Context) ([]*Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]*Key, 0, len(s.keys))
	for _, key := range s.keys {
		k := *key
		keys = append(keys, &k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

// Resolve implements [Store].
func (s *MemoryStore) Resolve(_ context.Context, kid string) (*Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	k := *key
	return &k, nil
}
