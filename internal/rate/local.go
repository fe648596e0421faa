package rate

import (
	"context"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"

	"github.com/verisella/authcore/policy"
)

type localEntry struct {
	limiter  *xrate.Limiter
	lastSeen time.Time
}

// LocalLimiter is the in-process [Limiter] used when no Redis client is
// wired. Budgets are approximated with token buckets; counters are not
// shared across processes.
type LocalLimiter struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

// NewLocalLimiter creates an empty in-process limiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{entries: map[string]*localEntry{}}
}

// Allow implements [Limiter].
func (l *LocalLimiter) Allow(_ context.Context, rule, identifier string, r policy.RateRule) error {
	if r.Requests <= 0 || r.Interval <= 0 {
		return nil
	}

	k := key(rule, identifier)
	now := time.Now()

	l.mu.Lock()
	entry, ok := l.entries[k]
	if !ok {
		entry = &localEntry{
			limiter: xrate.NewLimiter(xrate.Every(r.Interval/time.Duration(r.Requests)), r.Requests),
		}
		l.entries[k] = entry
	}
	entry.lastSeen = now
	l.evictStaleLocked(now)
	l.mu.Unlock()

	if !entry.limiter.Allow() {
		return ErrRateLimited
	}
	return nil
}

// Reset implements [Limiter].
func (l *LocalLimiter) Reset(_ context.Context, rule, identifier string) error {
	l.mu.Lock()
	delete(l.entries, key(rule, identifier))
	l.mu.Unlock()
	return nil
}

func (l *LocalLimiter) evictStaleLocked(now time.Time) {
	if len(l.entries) < 4096 {
		return
	}
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) > localEvictAfter {
			delete(l.entries, k)
		}
	}
}
