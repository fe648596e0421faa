package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

const (
	opaqueTokenBytes  = 32
	refreshTokenBytes = 32
	apiKeySecretBytes = 24
	apiKeyPrefixChars = 8
)

// NewOpaqueToken returns a random high-entropy token string, base64url
// without padding.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewRefreshToken returns a random refresh token string.
func NewRefreshToken() (string, error) {
	var raw [refreshTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken derives the server-side lookup value for a token. Only this
// hash is ever stored; the presented token is re-hashed on lookup.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// HashTokenString returns the hex-free base64url form of [HashToken] for
// use in store keys.
func HashTokenString(token string) string {
	sum := HashToken(token)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewOTP generates a numeric one-time code of the given length.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

const prefixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewAPIKey generates an admin API key as "ak_<prefix>_<secret>". The
// prefix is stored in clear for O(1) lookup; only the SHA-256 of the full
// key is persisted.
func NewAPIKey() (full, prefix string, err error) {
	var p strings.Builder
	p.Grow(apiKeyPrefixChars)
	alpha := big.NewInt(int64(len(prefixAlphabet)))
	for i := 0; i < apiKeyPrefixChars; i++ {
		n, err := rand.Int(rand.Reader, alpha)
		if err != nil {
			return "", "", err
		}
		p.WriteByte(prefixAlphabet[n.Int64()])
	}
	prefix = p.String()

	var raw [apiKeySecretBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(raw[:])

	return "ak_" + prefix + "_" + secret, prefix, nil
}

// SplitAPIKey extracts the visible prefix from a caller-presented key.
// ok is false when the key does not match the "ak_<prefix>_<secret>"
// layout.
func SplitAPIKey(full string) (prefix string, ok bool) {
	rest, found := strings.CutPrefix(full, "ak_")
	if !found {
		return "", false
	}
	prefix, secret, found := strings.Cut(rest, "_")
	if !found || len(prefix) != apiKeyPrefixChars || secret == "" {
		return "", false
	}
	return prefix, true
}
