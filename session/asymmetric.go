package session

import (
	"context"
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/verisella/authcore/internal"
	"github.com/verisella/authcore/jwt"
	"github.com/verisella/authcore/keystore"
)

// AsymmetricManager issues EdDSA-signed access tokens with a kid header
// pointing at the signing key. Verification checks the signature against
// the key store and then requires a live access record, so revocation is
// immediate. Keys rotate automatically once the current one outlives the
// configured interval; retired keys stay resolvable so in-flight tokens
// keep verifying.
type AsymmetricManager struct {
	store    *Store
	keys     keystore.Store
	jwt      *jwt.Manager
	settings SettingsFunc

	rotationInterval time.Duration
	reuseRecovery    bool
	onRotate         func()
}

// NewAsymmetricManager creates the asymmetric-JWT strategy. The jwt
// manager must be configured with [jwt.MethodEd25519]. reuseRecovery
// enables the fallback that trades a structurally valid but revoked
// access token for the principal's surviving refresh token.
func NewAsymmetricManager(store *Store, keys keystore.Store, manager *jwt.Manager, settings SettingsFunc, rotationInterval time.Duration, reuseRecovery bool) *AsymmetricManager {
	return &AsymmetricManager{
		store:            store,
		keys:             keys,
		jwt:              manager,
		settings:         settings,
		rotationInterval: rotationInterval,
		reuseRecovery:    reuseRecovery,
	}
}

// OnRotate registers a callback invoked after every successful key
// rotation, including the first on-demand key generation.
func (m *AsymmetricManager) OnRotate(fn func()) {
	m.onRotate = fn
}

// Create implements [Manager].
func (m *AsymmetricManager) Create(ctx context.Context, principalID string) (*Token, error) {
	st := m.settings()
	if !st.MultipleSessions {
		if err := m.store.DeleteAllForPrincipal(ctx, principalID); err != nil {
			return nil, err
		}
	}
	return m.issue(ctx, principalID, uuid.NewString())
}

// Verify implements [Manager]. A valid signature alone is not enough:
// the token's record must still be live in the store. When the record is
// gone and reuse recovery is enabled, the principal's surviving refresh
// token is consumed to mint a replacement pair, returned alongside the
// verification.
func (m *AsymmetricManager) Verify(ctx context.Context, access string) (*Verification, error) {
	claims, err := m.jwt.ParseWithResolver(access, m.resolvePublic(ctx))
	if err != nil {
		return nil, ErrInvalidSession
	}

	rec, err := m.store.GetAccess(ctx, access)
	if err == nil {
		if rec.SID != claims.SID {
			return nil, ErrInvalidSession
		}
		return &Verification{PrincipalID: rec.PrincipalID, SID: rec.SID}, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	if !m.reuseRecovery {
		return nil, ErrInvalidSession
	}
	return m.recover(ctx, claims.Subject)
}

// Refresh implements [Manager].
func (m *AsymmetricManager) Refresh(ctx context.Context, refresh string) (*Token, error) {
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

// Destroy implements [Manager].
func (m *AsymmetricManager) Destroy(ctx context.Context, access string) error {
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

// JWKS returns the published key set covering the current and retired
// signing keys.
func (m *AsymmetricManager) JWKS(ctx context.Context) (jwt.JWKSDocument, error) {
	keys, err := m.keys.List(ctx)
	if err != nil {
		return jwt.JWKSDocument{}, err
	}
	return jwt.JWKS(keys...), nil
}

func (m *AsymmetricManager) issue(ctx context.Context, principalID, sid string) (*Token, error) {
	key, err := m.signingKey(ctx)
	if err != nil {
		return nil, err
	}

	st := m.settings()
	access, err := m.jwt.SignWithKey(principalID, sid, key.KID, key.Private, st.AccessTokenTTL)
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
		KID:         key.KID,
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

// signingKey returns the current key, generating the first one on demand
// and rotating once the current key outlives the rotation interval.
func (m *AsymmetricManager) signingKey(ctx context.Context) (*keystore.Key, error) {
	key, err := m.keys.Current(ctx)
	if errors.Is(err, keystore.ErrNoCurrentKey) {
		return m.rotate(ctx)
	}
	if err != nil {
		return nil, err
	}
	if m.rotationInterval > 0 && key.Age(time.Now()) >= m.rotationInterval {
		return m.rotate(ctx)
	}
	return key, nil
}

func (m *AsymmetricManager) rotate(ctx context.Context) (*keystore.Key, error) {
	key, err := m.keys.Rotate(ctx)
	if err != nil {
		return nil, err
	}
	if m.onRotate != nil {
		m.onRotate()
	}
	return key, nil
}

func (m *AsymmetricManager) resolvePublic(ctx context.Context) func(kid string) (ed25519.PublicKey, error) {
	return func(kid string) (ed25519.PublicKey, error) {
		key, err := m.keys.Resolve(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key.Public, nil
	}
}

// recover consumes one of the principal's surviving refresh tokens and
// mints a replacement pair for a signature-valid token whose record was
// lost. When no refresh token survives the session is simply invalid.
func (m *AsymmetricManager) recover(ctx context.Context, principalID string) (*Verification, error) {
	rec, err := m.store.PopRefreshForPrincipal(ctx, principalID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	_ = m.store.DeleteAccessHash(ctx, rec.AccessHash)

	replacement, err := m.issue(ctx, rec.PrincipalID, rec.SID)
	if err != nil {
		return nil, err
	}
	return &Verification{
		PrincipalID: rec.PrincipalID,
		SID:         rec.SID,
		Replacement: replacement,
	}, nil
}
