package identity

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

// MemoryStore is an in-process [Store] for tests and examples. Durable
// deployments use the Postgres implementation or bring their own.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]*Principal
	byIdent  map[string]string
	recovery map[string][]RecoveryCodeRecord
}

// NewMemoryStore creates an empty in-memory principal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     map[string]*Principal{},
		byIdent:  map[string]string{},
		recovery: map[string][]RecoveryCodeRecord{},
	}
}

// GetByID implements [Store].
func (s *MemoryStore) GetByID(_ context.Context, id string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePrincipal(p), nil
}

// GetByIdentifier implements [Store].
func (s *MemoryStore) GetByIdentifier(_ context.Context, identifier string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byIdent[NormalizeIdentifier(identifier)]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePrincipal(s.byID[id]), nil
}

// Create implements [Store].
func (s *MemoryStore) Create(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range []string{p.Email, p.Phone} {
		if ident == "" {
			continue
		}
		if _, taken := s.byIdent[NormalizeIdentifier(ident)]; taken {
			return ErrDuplicateIdentifier
		}
	}

	now := time.Now()
	stored := clonePrincipal(p)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.byID[stored.ID] = stored
	if stored.Email != "" {
		s.byIdent[NormalizeIdentifier(stored.Email)] = stored.ID
	}
	if stored.Phone != "" {
		s.byIdent[NormalizeIdentifier(stored.Phone)] = stored.ID
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdatePasswordHash implements [Store].
func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.PasswordHash = hash
	p.UpdatedAt = time.Now()
	return nil
}

// MarkVerified implements [Store].
func (s *MemoryStore) MarkVerified(_ context.Context, id string, ch VerificationChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	switch ch {
	case ChannelEmail:
		p.EmailVerified = true
	case ChannelSMS:
		p.PhoneVerified = true
	}
	p.UpdatedAt = time.Now()
	return nil
}

// EnableMFA implements [Store].
func (s *MemoryStore) EnableMFA(_ context.Context, id string, secret []byte, codes []RecoveryCodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.MFAEnabled = true
	p.MFASecret = append([]byte(nil), secret...)
	p.UpdatedAt = time.Now()
	s.recovery[id] = append([]RecoveryCodeRecord(nil), codes...)
	return nil
}

// DisableMFA implements [Store].
func (s *MemoryStore) DisableMFA(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.MFAEnabled = false
	p.MFASecret = nil
	p.UpdatedAt = time.Now()
	delete(s.recovery, id)
	return nil
}

// ConsumeRecoveryCode implements [Store].
func (s *MemoryStore) ConsumeRecoveryCode(_ context.Context, id string, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false, ErrNotFound
	}
	codes := s.recovery[id]
	for i, rec := range codes {
		if subtle.ConstantTimeCompare(rec.Hash[:], hash[:]) == 1 {
			s.recovery[id] = append(codes[:i:i], codes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func clonePrincipal(p *Principal) *Principal {
	if p == nil {
		return nil
	}
	c := *p
	c.Labels = append([]string(nil), p.Labels...)
	c.Teams = append([]string(nil), p.Teams...)
	c.Permissions = append([]string(nil), p.Permissions...)
	c.MFASecret = append([]byte(nil), p.MFASecret...)
	return &c
}
