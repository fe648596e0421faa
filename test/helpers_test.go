//go:build integration
// +build integration

package test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/verisella/authcore/session"
)

func newIntegrationStore(t *testing.T) (*session.Store, redis.UniversalClient, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(rdb, "as")

	return store, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func accessRecord(pid, sid, refreshHash string) *session.AccessRecord {
	return &session.AccessRecord{
		PrincipalID: pid,
		SID:         sid,
		RefreshHash: refreshHash,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func refreshRecord(pid, sid, accessHash string) *session.RefreshRecord {
	return &session.RefreshRecord{
		PrincipalID: pid,
		SID:         sid,
		AccessHash:  accessHash,
	}
}
