package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/verisella/authcore/internal"
	"github.com/verisella/authcore/jwt"
)

// SymmetricManager issues HS256-signed access tokens verified statelessly
// against the shared secret. Refresh tokens stay opaque and single-use in
// the store; logout revokes the refresh row but cannot recall access
// tokens already in flight, which expire on their own TTL.
type SymmetricManager struct {
	store    *Store
	jwt      *jwt.Manager
	settings SettingsFunc
}

// NewSymmetricManager creates the symmetric-JWT strategy. The manager
// must be configured with [jwt.MethodHS256].
func NewSymmetricManager(store *Store, manager *jwt.Manager, settings SettingsFunc) *SymmetricManager {
	return &SymmetricManager{store: store, jwt: manager, settings: settings}
}

// Create implements [Manager].
func (m *SymmetricManager) Create(ctx context.Context, principalID string) (*Token, error) {
	st := m.settings()
	if !st.MultipleSessions {
		if err := m.store.DeleteAllForPrincipal(ctx, principalID); err != nil {
			return nil, err
		}
	}
	return m.issue(ctx, principalID, uuid.NewString())
}

// Verify implements [Manager]. Validation is purely cryptographic; no
// store round trip happens on the hot path.
func (m *SymmetricManager) Verify(_ context.Context, access string) (*Verification, error) {
	claims, err := m.jwt.Parse(access)
	if err != nil {
		return nil, ErrInvalidSession
	}
	return &Verification{PrincipalID: claims.Subject, SID: claims.SID}, nil
}

// Refresh implements [Manager]. The refresh token is consumed atomically;
// the replacement pair keeps the session id.
func (m *SymmetricManager) Refresh(ctx context.Context, refresh string) (*Token, error) {
	rec, err := m.store.ConsumeRefresh(ctx, refresh)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}
	_ = m.store.DeleteAccessHash(ctx, rec.AccessHash)
	return m.issue(ctx, rec.PrincipalID, rec.SID)
}

// Destroy implements [Manager]. The access record exists only to locate
// the companion refresh row; the signed token itself stays verifiable
// until it expires.
func (m *SymmetricManager) Destroy(ctx context.Context, access string) error {
	if _, err := m.jwt.Parse(access); err != nil {
		return ErrInvalidSession
	}
	rec, err := m.store.GetAccess(ctx, access)
	if errors.Is(err, ErrRecordNotFound) {
		return ErrInvalidSession
	}
	if err != nil {
		return err
	}
	if err := m.store.DeleteAccess(ctx, access); err != nil {
		return err
	}
	return m.store.DeleteRefreshHash(ctx, rec.PrincipalID, rec.RefreshHash)
}

func (m *SymmetricManager) issue(ctx context.Context, principalID, sid string) (*Token, error) {
	st := m.settings()
	access, err := m.jwt.Sign(principalID, sid, st.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := internal.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(st.AccessTokenTTL)
	accessRec := &AccessRecord{
		PrincipalID: principalID,
		SID:         sid,
		RefreshHash: internal.HashTokenString(refresh),
		ExpiresAt:   expiresAt,
	}
	if err := m.store.SaveAccess(ctx, access, accessRec, st.AccessTokenTTL); err != nil {
		return nil, err
	}
	refreshRec := &RefreshRecord{
		PrincipalID: principalID,
		SID:         sid,
		AccessHash:  internal.HashTokenString(access),
	}
	if err := m.store.SaveRefresh(ctx, refresh, refreshRec, st.RefreshTokenTTL); err != nil {
		return nil, err
	}

	return &Token{Access: access, Refresh: refresh, ExpiresAt: expiresAt}, nil
}
