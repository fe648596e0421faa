package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/verisella/authcore/policy"
)

// The policy table holds exactly one authoritative row.
const policyRowID = 1

// PolicyBackend implements [policy.Backend] over PostgreSQL. The
// document is stored as one JSONB row; Version is mirrored into its own
// column so operators can inspect it without unpacking the JSON.
type PolicyBackend struct {
	db DB
}

// NewPolicyBackend creates a PostgreSQL-backed policy backend.
func NewPolicyBackend(db DB) *PolicyBackend {
	return &PolicyBackend{db: db}
}

// Load implements [policy.Backend].
func (b *PolicyBackend) Load(ctx context.Context) (*policy.Document, error) {
	var raw []byte
	err := b.db.QueryRow(ctx,
		`SELECT document FROM security_policy WHERE id = $1`, policyRowID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, policy.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	var doc policy.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrInvalidDocument, err)
	}
	return &doc, nil
}

// Save implements [policy.Backend].
func (b *PolicyBackend) Save(ctx context.Context, d *policy.Document) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}
	_, err = b.db.Exec(ctx, `
		INSERT INTO security_policy (id, document, version, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET document = $2, version = $3, updated_at = $4`,
		policyRowID, raw, d.Version, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	return nil
}
