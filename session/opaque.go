package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/verisella/authcore/internal"
	"github.com/verisella/authcore/policy"
)

// OpaqueManager issues random high-entropy tokens with no embedded
// claims. Verification is a server-side store lookup plus the expiry the
// store enforces through TTLs.
type OpaqueManager struct {
	store    *Store
	settings SettingsFunc
}

// NewOpaqueManager creates the opaque strategy over the given store.
func NewOpaqueManager(store *Store, settings SettingsFunc) *OpaqueManager {
	return &OpaqueManager{store: store, settings: settings}
}

// Create implements [Manager].
func (m *OpaqueManager) Create(ctx context.Context, principalID string) (*Token, error) {
	st := m.settings()
	if !st.MultipleSessions {
		if err := m.store.DeleteAllForPrincipal(ctx, principalID); err != nil {
			return nil, err
		}
	}
	return issuePair(ctx, m.store, principalID, uuid.NewString(), "", st)
}

// Verify implements [Manager].
func (m *OpaqueManager) Verify(ctx context.Context, access string) (*Verification, error) {
	rec, err := m.store.GetAccess(ctx, access)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
		_ = m.store.DeleteAccess(ctx, access)
		return nil, ErrInvalidSession
	}
	return &Verification{PrincipalID: rec.PrincipalID, SID: rec.SID}, nil
}

// Refresh implements [Manager]. The presented refresh token is consumed
// atomically; concurrent refreshes of the same token produce one winner.
func (m *OpaqueManager) Refresh(ctx context.Context, refresh string) (*Token, error) {
	rec, err := m.store.ConsumeRefresh(ctx, refresh)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}
	_ = m.store.DeleteAccessHash(ctx, rec.AccessHash)
	return issuePair(ctx, m.store, rec.PrincipalID, rec.SID, "", m.settings())
}

// Destroy implements [Manager]. Logout deletes the access row and its
// companion refresh row.
func (m *OpaqueManager) Destroy(ctx context.Context, access string) error {
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

// issuePair mints and persists an opaque access+refresh pair bound to the
// session id. kid tags the access record when an asymmetric signing key
// was involved.
func issuePair(ctx context.Context, store *Store, principalID, sid, kid string, st policy.SessionSettings) (*Token, error) {
	access, err := internal.NewOpaqueToken()
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
		KID:         kid,
		RefreshHash: internal.HashTokenString(refresh),
		ExpiresAt:   expiresAt,
	}
	if err := store.SaveAccess(ctx, access, accessRec, st.AccessTokenTTL); err != nil {
		return nil, err
	}
	refreshRec := &RefreshRecord{
		PrincipalID: principalID,
		SID:         sid,
		AccessHash:  internal.HashTokenString(access),
	}
	if err := store.SaveRefresh(ctx, refresh, refreshRec, st.RefreshTokenTTL); err != nil {
		return nil, err
	}

	return &Token{Access: access, Refresh: refresh, ExpiresAt: expiresAt}, nil
}
