package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBackendUnavailable wraps backend load/save failures.
var ErrBackendUnavailable = errors.New("policy backend unavailable")

// Backend persists the single authoritative policy row.
//
// Load returns [ErrNoDocument] when no row exists yet; the store then
// seeds the backend with [Default].
type Backend interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, d *Document) error
}

// ErrNoDocument is returned by [Backend.Load] when the backend holds no
// policy row.
var ErrNoDocument = errors.New("no policy document")

const defaultCacheTTL = 30 * time.Second

// Store serves the policy document from a short-lived cache and persists
// updates. Reads within the cache TTL never touch the backend; updates
// replace the cache immediately so there is no stale window after a write.
type Store struct {
	backend  Backend
	cacheTTL time.Duration

	mu        sync.RWMutex
	cached    *Document
	fetchedAt time.Time
}

// NewStore creates a policy [Store] over the given backend. cacheTTL <= 0
// selects the default 30s window.
func NewStore(backend Backend, cacheTTL time.Duration) *Store {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Store{backend: backend, cacheTTL: cacheTTL}
}

// Get returns the current policy document, serving the cached copy when it
// was fetched within the TTL window. Reloaded documents are validated
// before they replace the cache; invalid documents are rejected and the
// error surfaces as [ErrInvalidDocument].
func (s *Store) Get(ctx context.Context) (*Document, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.fetchedAt) < s.cacheTTL {
		d := s.cached.Clone()
		s.mu.RUnlock()
		return d, nil
	}
	s.mu.RUnlock()
	return s.Reload(ctx)
}

// Reload bypasses the cache, loads from the backend, validates, and
// refreshes the cache. The polling watcher uses Reload so externally
// written changes are observed within one poll interval.
func (s *Store) Reload(ctx context.Context) (*Document, error) {
	doc, err := s.backend.Load(ctx)
	if errors.Is(err, ErrNoDocument) {
		doc = Default()
		if err := s.backend.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = doc.Clone()
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return doc, nil
}

// Update merges the partial document into the current one, re-validates,
// persists, and replaces the cache. The returned document carries the new
// monotonic version.
func (s *Store) Update(ctx context.Context, patch Patch) (*Document, error) {
	current, err := s.Reload(ctx)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	patch.apply(next)
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now()

	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := s.backend.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	s.mu.Lock()
	s.cached = next.Clone()
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return next.Clone(), nil
}
