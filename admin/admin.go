package admin

import (
	"context"
	"errors"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned when no admin matches the lookup.
	ErrNotFound = errors.New("admin not found")
	// ErrDuplicateEmail is returned by [Store.CreateAdmin] for a taken email.
	ErrDuplicateEmail = errors.New("duplicate admin email")
	// ErrFeatureDisabled is returned when the policy document has the
	// admin feature switched off.
	ErrFeatureDisabled = errors.New("admin feature disabled")
	// ErrInitialAdminRequired is returned by operations that need at
	// least one admin before any exists.
	ErrInitialAdminRequired = errors.New("initial admin required")
	// ErrInvalidCredentials is the single failure for unknown admins and
	// wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	// ErrInvalidAPIKey covers malformed, unknown, expired, and
	// out-of-scope API keys.
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// UnauthorizedError names the denied action. It never carries the
// actor's actual permission set.
type UnauthorizedError struct {
	Action string
}

func (e *UnauthorizedError) Error() string {
	return "admin unauthorized: " + e.Action
}

// Permissions guarding the mutating admin operations. ScopeWildcard
// satisfies any permission or API key scope requirement.
const (
	ScopeWildcard = "*"

	PermAdminCreate  = "admin:create"
	PermAdminUpdate  = "admin:update"
	PermAdminDelete  = "admin:delete"
	PermAPIKeyCreate = "apikey:create"
	PermAPIKeyRevoke = "apikey:revoke"
	PermPolicyUpdate = "policy:update"
	PermAuditRead    = "audit:read"
)

// Admin is a privileged identity in the administrative plane, fully
// separate from end-user principals.
type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	IsSuperAdmin bool
	Permissions  []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPermission is monotonic in IsSuperAdmin: a super-admin passes every
// check regardless of its explicit permission array.
func (a *Admin) HasPermission(perm string) bool {
	if a == nil {
		return false
	}
	if a.IsSuperAdmin {
		return true
	}
	return slices.Contains(a.Permissions, ScopeWildcard) || slices.Contains(a.Permissions, perm)
}

// APIKey is a persisted admin API key. Only the visible prefix and the
// SHA-256 of the full key are stored; the full key is shown once at
// creation.
type APIKey struct {
	ID         string
	AdminID    string
	Prefix     string
	Hash       string
	Scopes     []string
	ExpiresAt  time.Time // zero means no expiry
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// SatisfiesScope reports whether the key covers the required scope.
func (k *APIKey) SatisfiesScope(scope string) bool {
	if k == nil {
		return false
	}
	return slices.Contains(k.Scopes, ScopeWildcard) || slices.Contains(k.Scopes, scope)
}

// Expired reports whether the key is past its expiry.
func (k *APIKey) Expired(now time.Time) bool {
	return k != nil && !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt)
}

// AuditEntry is one append-only record of a privileged action.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	AdminID   string
	Action    string
	TargetID  string
	Success   bool
	Detail    string
}

// Store persists admins, their API keys, and the append-only audit log.
type Store interface {
	CountAdmins(ctx context.Context) (int, error)
	GetAdmin(ctx context.Context, id string) (*Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)
	CreateAdmin(ctx context.Context, a *Admin) error
	UpdatePermissions(ctx context.Context, id string, perms []string) error
	DeleteAdmin(ctx context.Context, id string) error

	CreateAPIKey(ctx context.Context, k *APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error

	AppendAudit(ctx context.Context, e *AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}
