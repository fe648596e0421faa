package postgres

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verisella/authcore/identity"
)

func principalRows(p *identity.Principal) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "phone", "role", "labels", "teams", "permissions",
		"password_hash", "email_verified", "phone_verified", "mfa_enabled", "mfa_secret",
		"created_at", "updated_at",
	}).AddRow(
		p.ID, p.Email, p.Phone, p.Role, p.Labels, p.Teams, p.Permissions,
		p.PasswordHash, p.EmailVerified, p.PhoneVerified, p.MFAEnabled, p.MFASecret,
		p.CreatedAt, p.UpdatedAt,
	)
}

func TestPrincipalStoreGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := &identity.Principal{
		ID:            "p1",
		Email:         "alice@example.com",
		Role:          "member",
		Labels:        []string{"beta"},
		Teams:         []string{"core"},
		Permissions:   []string{"read"},
		PasswordHash:  "$argon2id$stub",
		EmailVerified: true,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
		UpdatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	mock.ExpectQuery(`SELECT .+ FROM principals WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(principalRows(want))

	store := NewPrincipalStore(mock)
	got, err := store.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.Labels, got.Labels)
	assert.True(t, got.EmailVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalStoreGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM principals WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	store := NewPrincipalStore(mock)
	_, err = store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, identity.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalStoreGetByIdentifierNormalizes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := &identity.Principal{ID: "p2", Email: "bob@example.com", Role: "member"}
	mock.ExpectQuery(`SELECT .+ FROM principals WHERE email = \$1 OR phone = \$1`).
		WithArgs("bob@example.com").
		WillReturnRows(principalRows(want))

	store := NewPrincipalStore(mock)
	got, err := store.GetByIdentifier(context.Background(), "  Bob@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "p2", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalStoreCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO principals").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPrincipalStore(mock)
	p := &identity.Principal{ID: "p3", Email: "carol@example.com", PasswordHash: "h"}
	require.NoError(t, store.Create(context.Background(), p))
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalStoreCreateDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO principals").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "principals_email_key"})

	store := NewPrincipalStore(mock)
	err = store.Create(context.Background(), &identity.Principal{ID: "p4", Email: "dup@example.com"})
	assert.ErrorIs(t, err, identity.ErrDuplicateIdentifier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalStoreMarkVerified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE principals SET email_verified = TRUE`).
		WithArgs("p5").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewPrincipalStore(mock)
	require.NoError(t, store.MarkVerified(context.Background(), "p5", identity.ChannelEmail))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalStoreMarkVerifiedNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE principals SET phone_verified = TRUE`).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPrincipalStore(mock)
	err = store.MarkVerified(context.Background(), "ghost", identity.ChannelSMS)
	assert.ErrorIs(t, err, identity.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalStoreEnableMFA(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	codes := []identity.RecoveryCodeRecord{
		{Hash: sha256.Sum256([]byte("code-a"))},
		{Hash: sha256.Sum256([]byte("code-b"))},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE principals SET mfa_enabled = TRUE`).
		WithArgs([]byte("secret"), "p6").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM recovery_codes`).
		WithArgs("p6").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for _, code := range codes {
		mock.ExpectExec(`INSERT INTO recovery_codes`).
			WithArgs("p6", code.Hash[:]).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	store := NewPrincipalStore(mock)
	require.NoError(t, store.EnableMFA(context.Background(), "p6", []byte("secret"), codes))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalStoreEnableMFANotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE principals SET mfa_enabled = TRUE`).
		WithArgs([]byte("secret"), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	store := NewPrincipalStore(mock)
	err = store.EnableMFA(context.Background(), "ghost", []byte("secret"), nil)
	assert.ErrorIs(t, err, identity.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalStoreDisableMFA(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE principals SET mfa_enabled = FALSE`).
		WithArgs("p7").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM recovery_codes`).
		WithArgs("p7").
		WillReturnResult(pgxmock.NewResult("DELETE", 8))
	mock.ExpectCommit()

	store := NewPrincipalStore(mock)
	require.NoError(t, store.DisableMFA(context.Background(), "p7"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalStoreConsumeRecoveryCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hash := sha256.Sum256([]byte("recovery"))

	mock.ExpectExec(`DELETE FROM recovery_codes WHERE principal_id = \$1 AND code_hash = \$2`).
		WithArgs("p8", hash[:]).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM recovery_codes WHERE principal_id = \$1 AND code_hash = \$2`).
		WithArgs("p8", hash[:]).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	store := NewPrincipalStore(mock)
	used, err := store.ConsumeRecoveryCode(context.Background(), "p8", hash)
	require.NoError(t, err)
	assert.True(t, used)

	used, err = store.ConsumeRecoveryCode(context.Background(), "p8", hash)
	require.NoError(t, err)
	assert.False(t, used)
	assert.NoError(t, mock.ExpectationsWereMet())
}
