package policy

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process [Backend]. It is the default for tests
// and single-process embedding; durable deployments use the Postgres
// backend under store/postgres.
type MemoryBackend struct {
	mu  sync.Mutex
	doc *Document
}

// NewMemoryBackend creates an empty in-memory backend. seed may be nil,
// in which case the first load seeds [Default].
func NewMemoryBackend(seed *Document) *MemoryBackend {
	return &MemoryBackend{doc: seed.Clone()}
}

// Load implements [Backend].
func (b *MemoryBackend) Load(context.Context) (*Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.doc == nil {
		return nil, ErrNoDocument
	}
	return b.doc.Clone(), nil
}

// Save implements [Backend].
func (b *MemoryBackend) Save(_ context.Context, d *Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc = d.Clone()
	return nil
}
