package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/verisella/authcore/admin"
)

// AdminStore implements [admin.Store] over PostgreSQL.
type AdminStore struct {
	db DB
}

// NewAdminStore creates a PostgreSQL-backed admin store.
func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

const adminColumns = `id, email, password_hash, is_super_admin, permissions, created_at, updated_at`

func scanAdmin(row pgx.Row) (*admin.Admin, error) {
	var a admin.Admin
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.IsSuperAdmin, &a.Permissions, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, admin.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	return &a, nil
}

// CountAdmins implements [admin.Store].
func (s *AdminStore) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

// GetAdmin implements [admin.Store].
func (s *AdminStore) GetAdmin(ctx context.Context, id string) (*admin.Admin, error) {
	return scanAdmin(s.db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
}

// GetAdminByEmail implements [admin.Store].
func (s *AdminStore) GetAdminByEmail(ctx context.Context, email string) (*admin.Admin, error) {
	return scanAdmin(s.db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE email = $1`, email))
}

// CreateAdmin implements [admin.Store].
func (s *AdminStore) CreateAdmin(ctx context.Context, a *admin.Admin) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO admins (id, email, password_hash, is_super_admin, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Email, a.PasswordHash, a.IsSuperAdmin, a.Permissions, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return admin.ErrDuplicateEmail
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// UpdatePermissions implements [admin.Store].
func (s *AdminStore) UpdatePermissions(ctx context.Context, id string, perms []string) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE admins SET permissions = $1, updated_at = now() WHERE id = $2`, perms, id)
	if err != nil {
		return fmt.Errorf("update permissions: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return admin.ErrNotFound
	}
	return nil
}

// DeleteAdmin implements [admin.Store]. API keys cascade.
func (s *AdminStore) DeleteAdmin(ctx context.Context, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM admins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return admin.ErrNotFound
	}
	return nil
}

// CreateAPIKey implements [admin.Store].
func (s *AdminStore) CreateAPIKey(ctx context.Context, k *admin.APIKey) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO admin_api_keys (id, admin_id, prefix, hash, scopes, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		k.ID, k.AdminID, k.Prefix, k.Hash, k.Scopes, nullableTime(k.ExpiresAt), k.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetAPIKeyByPrefix implements [admin.Store].
func (s *AdminStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*admin.APIKey, error) {
	var (
		k        admin.APIKey
		expires  *time.Time
		lastUsed *time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, admin_id, prefix, hash, scopes, expires_at, created_at, last_used_at
		FROM admin_api_keys WHERE prefix = $1`, prefix).
		Scan(&k.ID, &k.AdminID, &k.Prefix, &k.Hash, &k.Scopes, &expires, &k.CreatedAt, &lastUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, admin.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load api key: %w", err)
	}
	if expires != nil {
		k.ExpiresAt = *expires
	}
	if lastUsed != nil {
		k.LastUsedAt = *lastUsed
	}
	return &k, nil
}

// DeleteAPIKey implements [admin.Store].
func (s *AdminStore) DeleteAPIKey(ctx context.Context, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM admin_api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return admin.ErrNotFound
	}
	return nil
}

// TouchAPIKey implements [admin.Store].
func (s *AdminStore) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE admin_api_keys SET last_used_at = $1 WHERE id = $2`, usedAt, id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

// AppendAudit implements [admin.Store]. Entries are insert-only; there
// is no update or delete path.
func (s *AdminStore) AppendAudit(ctx context.Context, e *admin.AuditEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO admin_audit (ts, admin_id, action, target_id, success, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Timestamp, e.AdminID, e.Action, e.TargetID, e.Success, e.Detail)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit implements [admin.Store], newest first.
func (s *AdminStore) ListAudit(ctx context.Context, limit int) ([]admin.AuditEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, ts, admin_id, action, target_id, success, detail
		FROM admin_audit ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var entries []admin.AuditEntry
	for rows.Next() {
		var e admin.AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.AdminID, &e.Action, &e.TargetID, &e.Success, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
