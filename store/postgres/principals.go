package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/verisella/authcore/identity"
)

// PrincipalStore implements [identity.Store] over PostgreSQL.
type PrincipalStore struct {
	db DB
}

// NewPrincipalStore creates a PostgreSQL-backed principal store.
func NewPrincipalStore(db DB) *PrincipalStore {
	return &PrincipalStore{db: db}
}

const principalColumns = `id, COALESCE(email, ''), COALESCE(phone, ''), role, labels, teams, permissions,
	password_hash, email_verified, phone_verified, mfa_enabled, mfa_secret, created_at, updated_at`

// nullable maps empty identifier strings to NULL so the partial unique
// constraints only apply to principals that actually carry the channel.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *PrincipalStore) scanPrincipal(row pgx.Row) (*identity.Principal, error) {
	var p identity.Principal
	err := row.Scan(
		&p.ID, &p.Email, &p.Phone, &p.Role, &p.Labels, &p.Teams, &p.Permissions,
		&p.PasswordHash, &p.EmailVerified, &p.PhoneVerified, &p.MFAEnabled, &p.MFASecret,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan principal: %w", err)
	}
	return &p, nil
}

// GetByID implements [identity.Store].
func (s *PrincipalStore) GetByID(ctx context.Context, id string) (*identity.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`
	return s.scanPrincipal(s.db.QueryRow(ctx, query, id))
}

// GetByIdentifier implements [identity.Store]. The identifier matches
// either the email or the phone column after normalization.
func (s *PrincipalStore) GetByIdentifier(ctx context.Context, identifier string) (*identity.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE email = $1 OR phone = $1`
	return s.scanPrincipal(s.db.QueryRow(ctx, query, identity.NormalizeIdentifier(identifier)))
}

// Create implements [identity.Store].
func (s *PrincipalStore) Create(ctx context.Context, p *identity.Principal) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO principals (id, email, phone, role, labels, teams, permissions,
			password_hash, email_verified, phone_verified, mfa_enabled, mfa_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.Exec(ctx, query,
		p.ID,
		nullable(identity.NormalizeIdentifier(p.Email)),
		nullable(identity.NormalizeIdentifier(p.Phone)),
		p.Role,
		p.Labels,
		p.Teams,
		p.Permissions,
		p.PasswordHash,
		p.EmailVerified,
		p.PhoneVerified,
		p.MFAEnabled,
		p.MFASecret,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrDuplicateIdentifier
		}
		return fmt.Errorf("insert principal: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdatePasswordHash implements [identity.Store].
func (s *PrincipalStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query := `UPDATE principals SET password_hash = $1, updated_at = now() WHERE id = $2`
	ct, err := s.db.Exec(ctx, query, hash, id)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

// MarkVerified implements [identity.Store].
func (s *PrincipalStore) MarkVerified(ctx context.Context, id string, ch identity.VerificationChannel) error {
	var column string
	switch ch {
	case identity.ChannelEmail:
		column = "email_verified"
	case identity.ChannelSMS:
		column = "phone_verified"
	default:
		return fmt.Errorf("unknown verification channel %q", ch)
	}
	query := `UPDATE principals SET ` + column + ` = TRUE, updated_at = now() WHERE id = $1`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

// EnableMFA implements [identity.Store]. The secret and the full
// recovery code set replace any previous state in one transaction.
func (s *PrincipalStore) EnableMFA(ctx context.Context, id string, secret []byte, codes []identity.RecoveryCodeRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin enable mfa: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx,
		`UPDATE principals SET mfa_enabled = TRUE, mfa_secret = $1, updated_at = now() WHERE id = $2`,
		secret, id)
	if err != nil {
		return fmt.Errorf("enable mfa: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM recovery_codes WHERE principal_id = $1`, id); err != nil {
		return fmt.Errorf("clear recovery codes: %w", err)
	}
	for _, code := range codes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO recovery_codes (principal_id, code_hash) VALUES ($1, $2)`,
			id, code.Hash[:]); err != nil {
			return fmt.Errorf("insert recovery code: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// DisableMFA implements [identity.Store].
func (s *PrincipalStore) DisableMFA(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin disable mfa: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx,
		`UPDATE principals SET mfa_enabled = FALSE, mfa_secret = NULL, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("disable mfa: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM recovery_codes WHERE principal_id = $1`, id); err != nil {
		return fmt.Errorf("clear recovery codes: %w", err)
	}
	return tx.Commit(ctx)
}

// ConsumeRecoveryCode implements [identity.Store]. The DELETE is the
// atomicity guarantee: concurrent presenters of the same code race on
// one row and exactly one wins.
func (s *PrincipalStore) ConsumeRecoveryCode(ctx context.Context, id string, hash [32]byte) (bool, error) {
	ct, err := s.db.Exec(ctx,
		`DELETE FROM recovery_codes WHERE principal_id = $1 AND code_hash = $2`,
		id, hash[:])
	if err != nil {
		return false, fmt.Errorf("consume recovery code: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
