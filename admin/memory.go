package admin

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process [Store] for tests and examples.
type MemoryStore struct {
	mu      sync.Mutex
	admins  map[string]*Admin
	byEmail map[string]string
	keys    map[string]*APIKey
	audit   []AuditEntry
}

// NewMemoryStore creates an empty in-memory admin store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		admins:  map[string]*Admin{},
		byEmail: map[string]string{},
		keys:    map[string]*APIKey{},
	}
}

// CountAdmins implements [Store].
func (s *MemoryStore) CountAdmins(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.admins), nil
}

// GetAdmin implements [Store].
func (s *MemoryStore) GetAdmin(_ context.Context, id string) (*Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAdmin(a), nil
}

// GetAdminByEmail implements [Store].
func (s *MemoryStore) GetAdminByEmail(_ context.Context, email string) (*Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAdmin(s.admins[id]), nil
}

// CreateAdmin implements [Store].
func (s *MemoryStore) CreateAdmin(_ context.Context, a *Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := normalizeEmail(a.Email)
	if _, taken := s.byEmail[email]; taken {
		return ErrDuplicateEmail
	}
	now := time.Now()
	stored := cloneAdmin(a)
	stored.Email = email
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.admins[stored.ID] = stored
	s.byEmail[email] = stored.ID
	return nil
}

// UpdatePermissions implements [Store].
func (s *MemoryStore) UpdatePermissions(_ context.Context, id string, perms []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return ErrNotFound
	}
	a.Permissions = append([]string(nil), perms...)
	a.UpdatedAt = time.Now()
	return nil
}

// DeleteAdmin implements [Store].
func (s *MemoryStore) DeleteAdmin(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, a.Email)
	delete(s.admins, id)
	for kid, k := range s.keys {
		if k.AdminID == id {
			delete(s.keys, kid)
		}
	}
	return nil
}

// CreateAPIKey implements [Store].
func (s *MemoryStore) CreateAPIKey(_ context.Context, k *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneAPIKey(k)
	stored.CreatedAt = time.Now()
	s.keys[stored.ID] = stored
	return nil
}

// GetAPIKeyByPrefix implements [Store].
func (s *MemoryStore) GetAPIKeyByPrefix(_ context.Context, prefix string) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.Prefix == prefix {
			return cloneAPIKey(k), nil
		}
	}
	return nil, ErrNotFound
}

// DeleteAPIKey implements [Store].
func (s *MemoryStore) DeleteAPIKey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[id]; !ok {
		return ErrNotFound
	}
	delete(s.keys, id)
	return nil
}

// TouchAPIKey implements [Store].
func (s *MemoryStore) TouchAPIKey(_ context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return ErrNotFound
	}
	k.LastUsedAt = usedAt
	return nil
}

// AppendAudit implements [Store].
func (s *MemoryStore) AppendAudit(_ context.Context, e *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *e)
	return nil
}

// ListAudit implements [Store]. Entries are returned newest first.
func (s *MemoryStore) ListAudit(_ context.Context, limit int) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.audit)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]AuditEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneAdmin(a *Admin) *Admin {
	if a == nil {
		return nil
	}
	c := *a
	c.Permissions = append([]string(nil), a.Permissions...)
	return &c
}

func cloneAPIKey(k *APIKey) *APIKey {
	if k == nil {
		return nil
	}
	c := *k
	c.Scopes = append([]string(nil), k.Scopes...)
	return &c
}
