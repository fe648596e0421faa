package postgres

import "context"

// Schema is the DDL for every table the stores use. Statements are
// idempotent so EnsureSchema can run on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS principals (
	id             TEXT PRIMARY KEY,
	email          TEXT UNIQUE,
	phone          TEXT UNIQUE,
	role           TEXT NOT NULL DEFAULT 'user',
	labels         TEXT[] NOT NULL DEFAULT '{}',
	teams          TEXT[] NOT NULL DEFAULT '{}',
	permissions    TEXT[] NOT NULL DEFAULT '{}',
	password_hash  TEXT NOT NULL,
	email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
	mfa_enabled    BOOLEAN NOT NULL DEFAULT FALSE,
	mfa_secret     BYTEA,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recovery_codes (
	principal_id TEXT NOT NULL REFERENCES principals(id) ON DELETE CASCADE,
	code_hash    BYTEA NOT NULL,
	PRIMARY KEY (principal_id, code_hash)
);

CREATE TABLE IF NOT EXISTS security_policy (
	id         INTEGER PRIMARY KEY,
	document   JSONB NOT NULL,
	version    BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signing_keys (
	kid         TEXT PRIMARY KEY,
	algorithm   TEXT NOT NULL,
	private_key BYTEA NOT NULL,
	public_key  BYTEA NOT NULL,
	is_current  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	rotated_at  TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS signing_keys_current_idx
	ON signing_keys (is_current) WHERE is_current;

CREATE TABLE IF NOT EXISTS admins (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	password_hash  TEXT NOT NULL,
	is_super_admin BOOLEAN NOT NULL DEFAULT FALSE,
	permissions    TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS admin_api_keys (
	id           TEXT PRIMARY KEY,
	admin_id     TEXT NOT NULL REFERENCES admins(id) ON DELETE CASCADE,
	prefix       TEXT NOT NULL UNIQUE,
	hash         TEXT NOT NULL,
	scopes       TEXT[] NOT NULL DEFAULT '{}',
	expires_at   TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_used_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS admin_audit (
	id        BIGSERIAL PRIMARY KEY,
	ts        TIMESTAMPTZ NOT NULL DEFAULT now(),
	admin_id  TEXT NOT NULL,
	action    TEXT NOT NULL,
	target_id TEXT NOT NULL DEFAULT '',
	success   BOOLEAN NOT NULL,
	detail    TEXT NOT NULL DEFAULT ''
);
`

// EnsureSchema creates every table the stores need.
func EnsureSchema(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, Schema)
	return err
}
