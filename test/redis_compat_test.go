//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/verisella/authcore/session"
)

// redisMode describes one Redis backend the compatibility suite runs
// against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the set of Redis backends to test. miniredis is
// always available. Real Redis standalone is used when REDIS_ADDR is
// set (e.g. "127.0.0.1:6379"), cluster when REDIS_CLUSTER_ADDRS is set,
// sentinel when REDIS_SENTINEL_ADDRS is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				// Flush the test DB to avoid state leaking between runs.
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_SENTINEL_ADDRS"); addrs != "" {
		master := os.Getenv("REDIS_SENTINEL_MASTER")
		if master == "" {
			master = "mymaster"
		}
		modes = append(modes, redisMode{
			name: "sentinel",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:    master,
					SentinelAddrs: splitAddrs(addrs),
				})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis sentinel: %v", err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// TestRedisCompat_RefreshSingleUse validates GETDEL-based refresh
// consumption across backends.
func TestRedisCompat_RefreshSingleUse(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(rdb, "as")
			ctx := context.Background()

			if err := store.SaveRefresh(ctx, "rt-one", refreshRecord("p1", "sid-1", ""), time.Hour); err != nil {
				t.Fatalf("save: %v", err)
			}

			rec, err := store.ConsumeRefresh(ctx, "rt-one")
			if err != nil {
				t.Fatalf("consume: %v", err)
			}
			if rec.PrincipalID != "p1" || rec.SID != "sid-1" {
				t.Errorf("got record %+v, want p1/sid-1", rec)
			}

			_, err = store.ConsumeRefresh(ctx, "rt-one")
			if !errors.Is(err, session.ErrRecordNotFound) {
				t.Errorf("expected ErrRecordNotFound on replay, got %v", err)
			}
		})
	}
}

// TestRedisCompat_AccessRoundTrip validates access record storage and
// idempotent deletion across backends.
func TestRedisCompat_AccessRoundTrip(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(rdb, "as")
			ctx := context.Background()

			if err := store.SaveAccess(ctx, "at-one", accessRecord("p2", "sid-2", "rh"), time.Hour); err != nil {
				t.Fatalf("save: %v", err)
			}

			rec, err := store.GetAccess(ctx, "at-one")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if rec.PrincipalID != "p2" || rec.SID != "sid-2" || rec.RefreshHash != "rh" {
				t.Errorf("unexpected record %+v", rec)
			}

			if err := store.DeleteAccess(ctx, "at-one"); err != nil {
				t.Fatalf("first delete: %v", err)
			}
			if err := store.DeleteAccess(ctx, "at-one"); err != nil {
				t.Fatalf("second delete should be idempotent: %v", err)
			}
			if _, err := store.GetAccess(ctx, "at-one"); !errors.Is(err, session.ErrRecordNotFound) {
				t.Errorf("expected ErrRecordNotFound after delete, got %v", err)
			}
		})
	}
}

// TestRedisCompat_RevokeAll validates principal-wide revocation across
// backends.
func TestRedisCompat_RevokeAll(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(rdb, "as")
			ctx := context.Background()

			tokens := []string{"at-a", "at-b", "at-c"}
			for i, tok := range tokens {
				sid := "sid-" + string(rune('a'+i))
				if err := store.SaveAccess(ctx, tok, accessRecord("p3", sid, ""), time.Hour); err != nil {
					t.Fatalf("save access %s: %v", tok, err)
				}
				if err := store.SaveRefresh(ctx, "rt-"+tok, refreshRecord("p3", sid, ""), time.Hour); err != nil {
					t.Fatalf("save refresh %s: %v", tok, err)
				}
			}

			if err := store.DeleteAllForPrincipal(ctx, "p3"); err != nil {
				t.Fatalf("revoke all: %v", err)
			}

			for _, tok := range tokens {
				if _, err := store.GetAccess(ctx, tok); !errors.Is(err, session.ErrRecordNotFound) {
					t.Errorf("access %s survived revocation: %v", tok, err)
				}
				if _, err := store.ConsumeRefresh(ctx, "rt-"+tok); !errors.Is(err, session.ErrRecordNotFound) {
					t.Errorf("refresh rt-%s survived revocation: %v", tok, err)
				}
			}
		})
	}
}

// TestRedisCompat_PopRefreshForPrincipal validates the reuse-recovery
// lookup that trades a surviving refresh record for a fresh pair.
func TestRedisCompat_PopRefreshForPrincipal(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(rdb, "as")
			ctx := context.Background()

			if err := store.SaveRefresh(ctx, "rt-pop", refreshRecord("p4", "sid-pop", ""), time.Hour); err != nil {
				t.Fatalf("save: %v", err)
			}

			rec, err := store.PopRefreshForPrincipal(ctx, "p4")
			if err != nil {
				t.Fatalf("pop: %v", err)
			}
			if rec.SID != "sid-pop" {
				t.Errorf("got SID=%q, want sid-pop", rec.SID)
			}

			// Popped record is consumed: the original token is dead and
			// a second pop finds nothing.
			if _, err := store.ConsumeRefresh(ctx, "rt-pop"); !errors.Is(err, session.ErrRecordNotFound) {
				t.Errorf("expected consumed token to be dead, got %v", err)
			}
			if _, err := store.PopRefreshForPrincipal(ctx, "p4"); !errors.Is(err, session.ErrRecordNotFound) {
				t.Errorf("expected ErrRecordNotFound on empty set, got %v", err)
			}
		})
	}
}
