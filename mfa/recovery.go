package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"strings"

	"github.com/verisella/authcore/identity"
)

// RecoveryCodeCount is how many single-use codes an enrollment mints.
const RecoveryCodeCount = 10

var recoveryEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateRecoveryCodes mints the plaintext codes shown once to the
// principal and the hashed records to persist. Hashes are bound to the
// principal id, so a leaked code from one account is useless on another.
func GenerateRecoveryCodes(principalID string) ([]string, []identity.RecoveryCodeRecord, error) {
	codes := make([]string, 0, RecoveryCodeCount)
	records := make([]identity.RecoveryCodeRecord, 0, RecoveryCodeCount)
	for i := 0; i < RecoveryCodeCount; i++ {
		raw := make([]byte, 5)
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, err
		}
		enc := strings.ToLower(recoveryEncoding.EncodeToString(raw))
		code := enc[:4] + "-" + enc[4:]
		codes = append(codes, code)
		records = append(records, identity.RecoveryCodeRecord{Hash: HashRecoveryCode(principalID, code)})
	}
	return codes, records, nil
}

// HashRecoveryCode derives the stored hash for a presented code.
func HashRecoveryCode(principalID, code string) [32]byte {
	normalized := strings.ToLower(strings.TrimSpace(code))
	return sha256.Sum256([]byte(principalID + ":" + normalized))
}
