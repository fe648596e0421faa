package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/password"
	"github.com/verisella/authcore/policy"
	"github.com/verisella/authcore/session"
)

func adminPolicyDoc(initialKey bool) *policy.Document {
	doc := policy.Default()
	doc.AdminFeature = policy.AdminFeature{
		Enabled:             true,
		CreateInitialAPIKey: initialKey,
		InitialAPIKeyScopes: []string{ScopeWildcard},
	}
	return doc
}

func newTestService(t *testing.T, doc *policy.Document) (*Service, *MemoryStore, *policy.Store, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	policies := policy.NewStore(policy.NewMemoryBackend(doc), time.Minute)
	sessions := session.NewOpaqueManager(session.NewStore(rdb, "aa"), func() policy.SessionSettings {
		return policy.SessionSettings{
			AccessTokenTTL:   time.Hour,
			RefreshTokenTTL:  2 * time.Hour,
			MultipleSessions: true,
		}
	})

	store := NewMemoryStore()
	svc := NewService(store, hasher, sessions, policies, internalmetrics.New(internalmetrics.Config{Enabled: true}))
	return svc, store, policies, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestBootstrapIdempotent(t *testing.T) {
	svc, store, _, done := newTestService(t, adminPolicyDoc(false))
	defer done()
	ctx := context.Background()

	root, apiKey, err := svc.Bootstrap(ctx, "root@example.com", "rootpassword1")
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if root == nil || !root.IsSuperAdmin {
		t.Fatalf("expected super-admin, got %+v", root)
	}
	if len(root.Permissions) != 1 || root.Permissions[0] != ScopeWildcard {
		t.Fatalf("expected permissions [*], got %v", root.Permissions)
	}
	if apiKey != "" {
		t.Fatal("no initial api key was requested")
	}

	again, _, err := svc.Bootstrap(ctx, "other@example.com", "otherpassword1")
	if err != nil {
		t.Fatalf("second Bootstrap failed: %v", err)
	}
	if again != nil {
		t.Fatal("second bootstrap must be a no-op")
	}
	if n, _ := store.CountAdmins(ctx); n != 1 {
		t.Fatalf("expected exactly one admin, got %d", n)
	}
}

func TestBootstrapInitialAPIKey(t *testing.T) {
	svc, _, _, done := newTestService(t, adminPolicyDoc(true))
	defer done()
	ctx := context.Background()

	root, apiKey, err := svc.Bootstrap(ctx, "root@example.com", "rootpassword1")
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if !strings.HasPrefix(apiKey, "ak_") {
		t.Fatalf("unexpected api key shape %q", apiKey)
	}

	got, err := svc.AuthenticateAPIKey(ctx, apiKey, PermPolicyUpdate)
	if err != nil {
		t.Fatalf("AuthenticateAPIKey failed: %v", err)
	}
	if got.ID != root.ID {
		t.Fatalf("api key resolved to wrong admin %s", got.ID)
	}
}

func TestBootstrapRequiresFeature(t *testing.T) {
	svc, _, _, done := newTestService(t, policy.Default())
	defer done()

	if _, _, err := svc.Bootstrap(context.Background(), "root@example.com", "rootpassword1"); !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("expected ErrFeatureDisabled, got %v", err)
	}
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	svc, _, _, done := newTestService(t, adminPolicyDoc(false))
	defer done()
	ctx := context.Background()

	root, _, err := svc.Bootstrap(ctx, "root@example.com", "rootpassword1")
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	a, token, err := svc.Login(ctx, "root@example.com", "rootpassword1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if a.ID != root.ID || token == nil {
		t.Fatalf("unexpected login result %v %v", a, token)
	}

	got, err := svc.AuthenticateToken(ctx, token.Access)
	if err != nil {
		t.Fatalf("AuthenticateToken failed: %v", err)
	}
	if got.ID != root.ID {
		t.Fatalf("token resolved to wrong admin %s", got.ID)
	}

	if err := svc.Logout(ctx, token.Access); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := svc.AuthenticateToken(ctx, token.Access); !errors.Is(err, session.ErrInvalidSession) {
		t.Fatalf("expected session gone after logout, got %v", err)
	}

	// Unknown email and wrong password fail identically.
	if _, _, err := svc.Login(ctx, "ghost@example.com", "rootpassword1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "root@example.com", "wrongpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSuperAdminIsMonotonic(t *testing.T) {
	super := &Admin{ID: "a1", IsSuperAdmin: true, Permissions: nil}
	for _, perm := range []string{PermAdminCreate, PermAdminDelete, PermPolicyUpdate, "made:up"} {
		if !super.HasPermission(perm) {
			t.Fatalf("super-admin denied %s", perm)
		}
	}

	limited := &Admin{ID: "a2", Permissions: []string{PermAuditRead}}
	if !limited.HasPermission(PermAuditRead) {
		t.Fatal("explicit permission denied")
	}
	if limited.HasPermission(PermAdminCreate) {
		t.Fatal("missing permission granted")
	}
}

func TestAPIKeyScopeMatching(t *testing.T) {
	svc, _, _, done := newTestService(t, adminPolicyDoc(false))
	defer done()
	ctx := context.Background()

	root, _, err := svc.Bootstrap(ctx, "root@example.com", "rootpassword1")
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	scoped, _, err := svc.CreateAPIKey(ctx, root, root.ID, []string{PermAuditRead}, 0)
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}
	wildcard, _, err := svc.CreateAPIKey(ctx, root, root.ID, []string{ScopeWildcard}, 0)
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	if _, err := svc.AuthenticateAPIKey(ctx, scoped, PermAuditRead); err != nil {
		t.Fatalf("exact scope rejected: %v", err)
	}
	if _, err := svc.AuthenticateAPIKey(ctx, scoped, PermPolicyUpdate); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected out-of-scope key rejected, got %v", err)
	}
	if _, err := svc.AuthenticateAPIKey(ctx, wildcard, PermPolicyUpdate); err != nil {
		t.Fatalf("wildcard scope rejected: %v", err)
	}
	if _, err := svc.AuthenticateAPIKey(ctx, "ak_bogus_key", PermAuditRead); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected unknown key rejected, got %v", err)
	}
}

func TestAPIKeyExpiry(t *testing.T) {
	svc, store, _, done := newTestService(t, adminPolicyDoc(false))
	defer done()
	ctx := context.Background()

	root, _, err := svc.Bootstrap(ctx, "root@example.com", "rootpassword1")
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	full, key, err := svc.CreateAPIKey(ctx, root, root.ID, []string{ScopeWildcard}, time.Nanosecond)
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}
	time.Sleep(time.Millisecond)

	if _, err := svc.AuthenticateAPIKey(ctx, full, ""); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected expired key rejected, got %v", err)
	}
	if _, err := store.GetAPIKeyByPrefix(ctx, key.Prefix); err != nil {
		t.Fatalf("expired key should still be stored: %v", err)
	}
}

func TestRBACDeniesAndAudits(t *testing.T) {
	svc, store, _, done := newTestService(t, adminPolicyDoc(false))
	defer done()
	ctx := context.Background()

	root, _, err := svc.Bootstrap(ctx, "root@example.com", "rootpassword1")
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	limited, err := svc.CreateAdmin(ctx, root, "viewer@example.com", "viewerpassword1", []string{PermAuditRead}, false)
	if err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	_, err = svc.CreateAdmin(ctx, limited, "sneaky@example.com", "sneakypassword1", nil, false)
	var denied *UnauthorizedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
	if denied.Action != PermAdminCreate {
		t.Fatalf("denial must name the action, got %q", denied.Action)
	}

	entries, err := store.ListAudit(ctx, 1)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "admin.denied" || entries[0].Success {
		t.Fatalf("expected denial audited, got %+v", entries)
	}

	// Granting the permission unlocks the operation.
	if err := svc.GrantPermission(ctx, root, limited.ID, PermAdminCreate); err != nil {
		t.Fatalf("GrantPermission failed: %v", err)
	}
	granted, err := store.GetAdmin(ctx, limited.ID)
	if err != nil {
		t.Fatalf("GetAdmin failed: %v", err)
	}
	if _, err := svc.CreateAdmin(ctx, granted, "ok@example.com", "okpassword123", nil, false); err != nil {
		t.Fatalf("CreateAdmin after grant failed: %v", err)
	}
}

func TestUpdatePolicyGates(t *testing.T) {
	svc, _, policies, done := newTestService(t, adminPolicyDoc(false))
	defer done()
	ctx := context.Background()

	root, _, err := svc.Bootstrap(ctx, "root@example.com", "rootpassword1")
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	before, err := policies.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	providers := []string{"local", "passwordless"}
	doc, err := svc.UpdatePolicy(ctx, root, policy.Patch{EnabledProviders: &providers})
	if err != nil {
		t.Fatalf("UpdatePolicy failed: %v", err)
	}
	if doc.Version != before.Version+1 {
		t.Fatalf("expected version bump, got %d -> %d", before.Version, doc.Version)
	}
	if !doc.ProviderEnabled("passwordless") {
		t.Fatal("patch not applied")
	}

	limited := &Admin{ID: "a9", Permissions: []string{PermAuditRead}}
	if _, err := svc.UpdatePolicy(ctx, limited, policy.Patch{}); err == nil {
		t.Fatal("expected unauthorized policy update rejected")
	}
}

func TestCountersTrackAuthOutcomes(t *testing.T) {
	svc, _, _, done := newTestService(t, adminPolicyDoc(false))
	defer done()
	ctx := context.Background()

	root, _, err := svc.Bootstrap(ctx, "root@example.com", "rootpassword1")
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if _, _, err := svc.Login(ctx, "root@example.com", "rootpassword1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, _, err := svc.Login(ctx, "ghost@example.com", "rootpassword1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "root@example.com", "wrongpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	scoped, _, err := svc.CreateAPIKey(ctx, root, root.ID, []string{PermAuditRead}, 0)
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}
	if _, err := svc.AuthenticateAPIKey(ctx, scoped, PermAuditRead); err != nil {
		t.Fatalf("AuthenticateAPIKey failed: %v", err)
	}
	if _, err := svc.AuthenticateAPIKey(ctx, scoped, PermPolicyUpdate); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected out-of-scope key rejected, got %v", err)
	}

	limited := &Admin{ID: "a9", Permissions: []string{PermAuditRead}}
	if _, err := svc.CreateAdmin(ctx, limited, "new@example.com", "newpassword1", nil, false); err == nil {
		t.Fatal("expected unauthorized create rejected")
	}

	snap := svc.metrics.Snapshot()
	want := map[internalmetrics.MetricID]uint64{
		internalmetrics.MetricAdminLoginSuccess: 1,
		internalmetrics.MetricAdminLoginFailure: 2,
		internalmetrics.MetricAdminAPIKeyUsed:   1,
		internalmetrics.MetricAdminDenied:       2,
	}
	for id, n := range want {
		if got := snap.Counters[id]; got != n {
			t.Fatalf("counter %d = %d, want %d", id, got, n)
		}
	}
}
