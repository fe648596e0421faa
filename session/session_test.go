package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/verisella/authcore/jwt"
	"github.com/verisella/authcore/keystore"
	"github.com/verisella/authcore/policy"
)

func newTestSessionStore(t *testing.T) (*Store, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(rdb, "as"), func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func testSettings(multiple bool) SettingsFunc {
	return func() policy.SessionSettings {
		return policy.SessionSettings{
			AccessTokenTTL:   time.Minute,
			RefreshTokenTTL:  time.Hour,
			MultipleSessions: multiple,
		}
	}
}

func newHS256Manager(t testing.TB) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		Method: jwt.MethodHS256,
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "authcore-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func newEd25519Manager(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{Method: jwt.MethodEd25519, Issuer: "authcore-test"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestOpaqueLifecycle(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	m := NewOpaqueManager(store, testSettings(true))
	tok, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if tok.Access == "" || tok.Refresh == "" {
		t.Fatal("expected non-empty token pair")
	}

	v, err := m.Verify(ctx, tok.Access)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if v.PrincipalID != "p1" || v.SID == "" {
		t.Fatalf("unexpected verification %+v", v)
	}

	if err := m.Destroy(ctx, tok.Access); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := m.Verify(ctx, tok.Access); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected invalid session after destroy, got %v", err)
	}
	if _, err := m.Refresh(ctx, tok.Refresh); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected refresh revoked with session, got %v", err)
	}
}

func TestOpaqueRefreshRotatesPair(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	m := NewOpaqueManager(store, testSettings(true))
	tok, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	v, err := m.Verify(ctx, tok.Access)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	next, err := m.Refresh(ctx, tok.Refresh)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.Access == tok.Access || next.Refresh == tok.Refresh {
		t.Fatal("refresh must mint a fresh pair")
	}

	// The old access token is revoked, the session id survives.
	if _, err := m.Verify(ctx, tok.Access); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected old access revoked, got %v", err)
	}
	nv, err := m.Verify(ctx, next.Access)
	if err != nil {
		t.Fatalf("Verify of rotated pair failed: %v", err)
	}
	if nv.SID != v.SID {
		t.Fatalf("session id changed across refresh: %s != %s", nv.SID, v.SID)
	}
}

func TestRefreshSingleUseUnderConcurrency(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	m := NewOpaqueManager(store, testSettings(true))
	tok, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const presenters = 8
	var wg sync.WaitGroup
	results := make(chan error, presenters)
	for i := 0; i < presenters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Refresh(ctx, tok.Refresh)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidRefresh):
			losses++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if wins != 1 || losses != presenters-1 {
		t.Fatalf("expected exactly one winner, got %d wins and %d losses", wins, losses)
	}
}

func TestSingleSessionPolicyEvictsPrevious(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	m := NewOpaqueManager(store, testSettings(false))
	first, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}

	if _, err := m.Verify(ctx, first.Access); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected first session evicted, got %v", err)
	}
	if _, err := m.Verify(ctx, second.Access); err != nil {
		t.Fatalf("second session must stay valid: %v", err)
	}
}

func TestSymmetricStatelessVerify(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	m := NewSymmetricManager(store, newHS256Manager(t), testSettings(true))
	tok, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	v, err := m.Verify(ctx, tok.Access)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if v.PrincipalID != "p1" || v.SID == "" {
		t.Fatalf("unexpected verification %+v", v)
	}

	if _, err := m.Verify(ctx, tok.Access+"x"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected tampered token rejected, got %v", err)
	}
}

func TestSymmetricDestroyRevokesRefresh(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	m := NewSymmetricManager(store, newHS256Manager(t), testSettings(true))
	tok, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := m.Destroy(ctx, tok.Access); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}

	// The signed access token stays verifiable until expiry, but the
	// refresh token must be gone.
	if _, err := m.Verify(ctx, tok.Access); err != nil {
		t.Fatalf("stateless verify after destroy: %v", err)
	}
	if _, err := m.Refresh(ctx, tok.Refresh); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected refresh revoked, got %v", err)
	}
}

func TestSymmetricRefreshKeepsSession(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	m := NewSymmetricManager(store, newHS256Manager(t), testSettings(true))
	tok, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	v, err := m.Verify(ctx, tok.Access)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	next, err := m.Refresh(ctx, tok.Refresh)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	nv, err := m.Verify(ctx, next.Access)
	if err != nil {
		t.Fatalf("Verify of rotated pair failed: %v", err)
	}
	if nv.SID != v.SID {
		t.Fatalf("session id changed across refresh: %s != %s", nv.SID, v.SID)
	}
	if _, err := m.Refresh(ctx, tok.Refresh); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected consumed refresh rejected, got %v", err)
	}
}

func TestAsymmetricVerifyRequiresLiveRecord(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	m := NewAsymmetricManager(store, keystore.NewMemoryStore(), newEd25519Manager(t), testSettings(true), 0, false)
	tok, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.Verify(ctx, tok.Access); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if err := m.Destroy(ctx, tok.Access); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := m.Verify(ctx, tok.Access); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected revoked token rejected despite valid signature, got %v", err)
	}
}

func TestAsymmetricRotationKeepsOldTokensVerifiable(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	keys := keystore.NewMemoryStore()
	m := NewAsymmetricManager(store, keys, newEd25519Manager(t), testSettings(true), 24*time.Hour, false)

	first, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	oldKey, err := keys.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}

	if _, err := keys.Rotate(ctx); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	second, err := m.Create(ctx, "p2")
	if err != nil {
		t.Fatalf("Create after rotation failed: %v", err)
	}

	// Both generations verify: the retired key resolves by kid.
	if _, err := m.Verify(ctx, first.Access); err != nil {
		t.Fatalf("pre-rotation token must stay valid: %v", err)
	}
	if _, err := m.Verify(ctx, second.Access); err != nil {
		t.Fatalf("post-rotation token failed: %v", err)
	}

	doc, err := m.JWKS(ctx)
	if err != nil {
		t.Fatalf("JWKS failed: %v", err)
	}
	if len(doc.Keys) != 2 {
		t.Fatalf("expected both key generations published, got %d", len(doc.Keys))
	}
	var foundRetired bool
	for _, k := range doc.Keys {
		if k.Kid == oldKey.KID {
			foundRetired = true
		}
	}
	if !foundRetired {
		t.Fatal("retired key missing from published set")
	}
}

func TestAsymmetricAutoRotatesExpiredKey(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	keys := keystore.NewMemoryStore()
	m := NewAsymmetricManager(store, keys, newEd25519Manager(t), testSettings(true), time.Nanosecond, false)

	if _, err := m.Create(ctx, "p1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	first, err := keys.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}

	time.Sleep(time.Millisecond)
	if _, err := m.Create(ctx, "p1"); err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	second, err := keys.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if first.KID == second.KID {
		t.Fatal("expected key rotation once the interval elapsed")
	}
}

func TestAsymmetricReuseRecovery(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	keys := keystore.NewMemoryStore()
	m := NewAsymmetricManager(store, keys, newEd25519Manager(t), testSettings(true), 0, true)

	tok, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Drop only the access record; the refresh record survives, as it
	// would after an eviction of the hot-path key.
	if err := store.DeleteAccess(ctx, tok.Access); err != nil {
		t.Fatalf("DeleteAccess failed: %v", err)
	}

	v, err := m.Verify(ctx, tok.Access)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if v.Replacement == nil {
		t.Fatal("expected a replacement pair")
	}
	if v.PrincipalID != "p1" {
		t.Fatalf("unexpected principal %s", v.PrincipalID)
	}
	if _, err := m.Verify(ctx, v.Replacement.Access); err != nil {
		t.Fatalf("replacement pair must verify: %v", err)
	}

	// The sacrificed refresh token is gone; a second recovery attempt
	// with the same dead token finds nothing.
	if _, err := m.Refresh(ctx, tok.Refresh); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected original refresh consumed, got %v", err)
	}
}

func TestAsymmetricReuseRecoveryDisabled(t *testing.T) {
	store, done := newTestSessionStore(t)
	defer done()
	ctx := context.Background()

	m := NewAsymmetricManager(store, keystore.NewMemoryStore(), newEd25519Manager(t), testSettings(true), 0, false)
	tok, err := m.Create(ctx, "p1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.DeleteAccess(ctx, tok.Access); err != nil {
		t.Fatalf("DeleteAccess failed: %v", err)
	}
	if _, err := m.Verify(ctx, tok.Access); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected invalid session with recovery off, got %v", err)
	}
}
