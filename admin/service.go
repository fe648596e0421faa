package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/verisella/authcore/internal"
	internalmetrics "github.com/verisella/authcore/internal/metrics"
	"github.com/verisella/authcore/password"
	"github.com/verisella/authcore/policy"
	"github.com/verisella/authcore/session"
)

const defaultAPIKeyTTL = 0 // no expiry unless the caller sets one

// Service is the administrative plane: bootstrap, dual authentication
// (session token or API key), RBAC-guarded admin management, and the
// only path allowed to mutate the policy document at runtime. Every
// mutating operation appends an audit entry, including denied attempts.
type Service struct {
	store    Store
	hasher   *password.Argon2
	sessions session.Manager
	policies *policy.Store
	metrics  *internalmetrics.Metrics
}

// NewService wires the admin plane over its collaborators. sessions is
// an opaque-strategy manager scoped to the admin identity space. A nil
// metrics registry disables counting.
func NewService(store Store, hasher *password.Argon2, sessions session.Manager, policies *policy.Store, m *internalmetrics.Metrics) *Service {
	return &Service{store: store, hasher: hasher, sessions: sessions, policies: policies, metrics: m}
}

func (s *Service) featureEnabled(ctx context.Context) error {
	doc, err := s.policies.Get(ctx)
	if err != nil {
		return err
	}
	if !doc.AdminFeature.Enabled {
		return ErrFeatureDisabled
	}
	return nil
}

// Bootstrap creates the initial super-admin when zero admins exist. It
// is idempotent: once any admin exists it does nothing and returns no
// error. When the policy asks for it, an initial API key is minted and
// returned in plaintext exactly once.
func (s *Service) Bootstrap(ctx context.Context, email, pw string) (*Admin, string, error) {
	if err := s.featureEnabled(ctx); err != nil {
		return nil, "", err
	}
	count, err := s.store.CountAdmins(ctx)
	if err != nil {
		return nil, "", err
	}
	if count > 0 {
		return nil, "", nil
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, "", err
	}
	root := &Admin{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		IsSuperAdmin: true,
		Permissions:  []string{ScopeWildcard},
	}
	if err := s.store.CreateAdmin(ctx, root); err != nil {
		// A concurrent bootstrap won the race; that admin is the one.
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, "", nil
		}
		return nil, "", err
	}
	s.record(ctx, root.ID, "admin.bootstrap", root.ID, true, "")

	doc, err := s.policies.Get(ctx)
	if err != nil {
		return root, "", err
	}
	if !doc.AdminFeature.CreateInitialAPIKey {
		return root, "", nil
	}
	scopes := doc.AdminFeature.InitialAPIKeyScopes
	if len(scopes) == 0 {
		scopes = []string{ScopeWildcard}
	}
	full, _, err := s.mintAPIKey(ctx, root.ID, scopes, defaultAPIKeyTTL)
	if err != nil {
		return root, "", err
	}
	return root, full, nil
}

// Login authenticates an admin by email and password and issues an
// admin session token. Unknown emails and wrong passwords fail
// identically.
func (s *Service) Login(ctx context.Context, email, pw string) (*Admin, *session.Token, error) {
	if err := s.featureEnabled(ctx); err != nil {
		return nil, nil, err
	}
	a, err := s.store.GetAdminByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.metrics.Inc(internalmetrics.MetricAdminLoginFailure)
		s.record(ctx, "", "admin.login", email, false, "unknown admin")
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	ok, err := s.hasher.Verify(pw, a.PasswordHash)
	if err != nil || !ok {
		s.metrics.Inc(internalmetrics.MetricAdminLoginFailure)
		s.record(ctx, a.ID, "admin.login", a.ID, false, "bad password")
		return nil, nil, ErrInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, a.ID)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.Inc(internalmetrics.MetricAdminLoginSuccess)
	s.record(ctx, a.ID, "admin.login", a.ID, true, "")
	return a, token, nil
}

// Logout destroys an admin session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// AuthenticateToken resolves an admin session token to its admin.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (*Admin, error) {
	v, err := s.sessions.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.store.GetAdmin(ctx, v.PrincipalID)
}

// AuthenticateAPIKey resolves a presented API key, enforcing expiry and
// scope. requiredScope names the action's scope; a key carrying the
// wildcard satisfies any requirement.
func (s *Service) AuthenticateAPIKey(ctx context.Context, full, requiredScope string) (*Admin, error) {
	prefix, ok := internal.SplitAPIKey(full)
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	key, err := s.store.GetAPIKeyByPrefix(ctx, prefix)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidAPIKey
	}
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(key.Hash), []byte(internal.HashTokenString(full))) != 1 {
		return nil, ErrInvalidAPIKey
	}
	if key.Expired(time.Now()) {
		return nil, ErrInvalidAPIKey
	}
	if requiredScope != "" && !key.SatisfiesScope(requiredScope) {
		s.metrics.Inc(internalmetrics.MetricAdminDenied)
		s.record(ctx, key.AdminID, "admin.apikey", key.ID, false, "scope "+requiredScope+" denied")
		return nil, ErrInvalidAPIKey
	}
	s.metrics.Inc(internalmetrics.MetricAdminAPIKeyUsed)
	_ = s.store.TouchAPIKey(ctx, key.ID, time.Now())
	return s.store.GetAdmin(ctx, key.AdminID)
}

// CreateAdmin creates a new admin. The actor must hold admin:create.
func (s *Service) CreateAdmin(ctx context.Context, actor *Admin, email, pw string, perms []string, isSuper bool) (*Admin, error) {
	if err := s.require(ctx, actor, PermAdminCreate); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, err
	}
	a := &Admin{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		IsSuperAdmin: isSuper,
		Permissions:  append([]string(nil), perms...),
	}
	if err := s.store.CreateAdmin(ctx, a); err != nil {
		return nil, err
	}
	s.record(ctx, actor.ID, "admin.create", a.ID, true, "")
	return a, nil
}

// DeleteAdmin removes an admin and its API keys. The actor must hold
// admin:delete.
func (s *Service) DeleteAdmin(ctx context.Context, actor *Admin, id string) error {
	if err := s.require(ctx, actor, PermAdminDelete); err != nil {
		return err
	}
	if err := s.store.DeleteAdmin(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "admin.delete", id, true, "")
	return nil
}

// GrantPermission adds a permission to an admin. The actor must hold
// admin:update.
func (s *Service) GrantPermission(ctx context.Context, actor *Admin, id, perm string) error {
	if err := s.require(ctx, actor, PermAdminUpdate); err != nil {
		return err
	}
	a, err := s.store.GetAdmin(ctx, id)
	if err != nil {
		return err
	}
	if !slices.Contains(a.Permissions, perm) {
		if err := s.store.UpdatePermissions(ctx, id, append(a.Permissions, perm)); err != nil {
			return err
		}
	}
	s.record(ctx, actor.ID, "admin.grant", id, true, perm)
	return nil
}

// RevokePermission removes a permission from an admin. The actor must
// hold admin:update.
func (s *Service) RevokePermission(ctx context.Context, actor *Admin, id, perm string) error {
	if err := s.require(ctx, actor, PermAdminUpdate); err != nil {
		return err
	}
	a, err := s.store.GetAdmin(ctx, id)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(a.Permissions, func(p string) bool { return p == perm })
	if err := s.store.UpdatePermissions(ctx, id, kept); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "admin.revoke", id, true, perm)
	return nil
}

// CreateAPIKey mints an API key for an admin and returns the full key
// exactly once. The actor must hold apikey:create.
func (s *Service) CreateAPIKey(ctx context.Context, actor *Admin, adminID string, scopes []string, ttl time.Duration) (string, *APIKey, error) {
	if err := s.require(ctx, actor, PermAPIKeyCreate); err != nil {
		return "", nil, err
	}
	if _, err := s.store.GetAdmin(ctx, adminID); err != nil {
		return "", nil, err
	}
	full, key, err := s.mintAPIKey(ctx, adminID, scopes, ttl)
	if err != nil {
		return "", nil, err
	}
	s.record(ctx, actor.ID, "admin.apikey.create", key.ID, true, "")
	return full, key, nil
}

// RevokeAPIKey deletes an API key. The actor must hold apikey:revoke.
func (s *Service) RevokeAPIKey(ctx context.Context, actor *Admin, keyID string) error {
	if err := s.require(ctx, actor, PermAPIKeyRevoke); err != nil {
		return err
	}
	if err := s.store.DeleteAPIKey(ctx, keyID); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "admin.apikey.revoke", keyID, true, "")
	return nil
}

// UpdatePolicy merges a partial document into the live policy. This is
// the only runtime path that mutates authPolicy and adminFeature. The
// actor must hold policy:update.
func (s *Service) UpdatePolicy(ctx context.Context, actor *Admin, patch policy.Patch) (*policy.Document, error) {
	if err := s.featureEnabled(ctx); err != nil {
		return nil, err
	}
	if err := s.require(ctx, actor, PermPolicyUpdate); err != nil {
		return nil, err
	}
	doc, err := s.policies.Update(ctx, patch)
	if err != nil {
		s.record(ctx, actor.ID, "policy.update", "", false, err.Error())
		return nil, err
	}
	s.record(ctx, actor.ID, "policy.update", "", true, "")
	return doc, nil
}

// AuditLog returns the newest audit entries. The actor must hold
// audit:read.
func (s *Service) AuditLog(ctx context.Context, actor *Admin, limit int) ([]AuditEntry, error) {
	if err := s.require(ctx, actor, PermAuditRead); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, limit)
}

func (s *Service) mintAPIKey(ctx context.Context, adminID string, scopes []string, ttl time.Duration) (string, *APIKey, error) {
	full, prefix, err := internal.NewAPIKey()
	if err != nil {
		return "", nil, err
	}
	key := &APIKey{
		ID:      uuid.NewString(),
		AdminID: adminID,
		Prefix:  prefix,
		Hash:    internal.HashTokenString(full),
		Scopes:  append([]string(nil), scopes...),
	}
	if ttl > 0 {
		key.ExpiresAt = time.Now().Add(ttl)
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return "", nil, err
	}
	return full, key, nil
}

// require enforces a permission on the actor, auditing denials.
func (s *Service) require(ctx context.Context, actor *Admin, perm string) error {
	if actor == nil {
		return &UnauthorizedError{Action: perm}
	}
	if !actor.HasPermission(perm) {
		s.metrics.Inc(internalmetrics.MetricAdminDenied)
		s.record(ctx, actor.ID, "admin.denied", "", false, perm)
		return &UnauthorizedError{Action: perm}
	}
	return nil
}

// record appends an audit entry. Audit writes are best effort; a failed
// append never fails the operation it describes.
func (s *Service) record(ctx context.Context, adminID, action, target string, success bool, detail string) {
	_ = s.store.AppendAudit(ctx, &AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		AdminID:   adminID,
		Action:    action,
		TargetID:  target,
		Success:   success,
		Detail:    detail,
	})
}
