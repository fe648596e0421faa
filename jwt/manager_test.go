package jwt

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/verisella/authcore/keystore"
)

func TestManagerRejectsShortSecret(t *testing.T) {
	_, err := NewManager(Config{Method: MethodHS256, Secret: []byte("short")})
	if err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}
}

func TestHS256SignParseRoundTrip(t *testing.T) {
	m, err := NewManager(Config{Method: MethodHS256, Secret: bytes.Repeat([]byte("s"), 32), Issuer: "authcore"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := m.Sign("p1", "sid1", time.Minute)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != "p1" || claims.SID != "sid1" {
		t.Fatalf("unexpected claims: sub=%s sid=%s", claims.Subject, claims.SID)
	}
}

func TestHS256ParseRejectsExpired(t *testing.T) {
	m, _ := NewManager(Config{Method: MethodHS256, Secret: bytes.Repeat([]byte("s"), 32)})
	token, err := m.Sign("p1", "sid1", -time.Minute)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestEd25519KidResolution(t *testing.T) {
	m, err := NewManager(Config{Method: MethodEd25519})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	key, err := keystore.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	token, err := m.SignWithKey("p1", "sid1", key.KID, key.Private, time.Minute)
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}

	var seenKID string
	claims, err := m.ParseWithResolver(token, func(kid string) (ed25519.PublicKey, error) {
		seenKID = kid
		return key.Public, nil
	})
	if err != nil {
		t.Fatalf("ParseWithResolver failed: %v", err)
	}
	if seenKID != key.KID {
		t.Fatalf("expected resolver to receive kid %s, got %s", key.KID, seenKID)
	}
	if claims.Subject != "p1" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
}

func TestEd25519RejectsUnknownKid(t *testing.T) {
	m, _ := NewManager(Config{Method: MethodEd25519})
	key, _ := keystore.Generate()
	token, err := m.SignWithKey("p1", "sid1", key.KID, key.Private, time.Minute)
	if err != nil {
		t.Fatalf("SignWithKey failed: %v", err)
	}

	_, err = m.ParseWithResolver(token, func(string) (ed25519.PublicKey, error) {
		return nil, keystore.ErrKeyNotFound
	})
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for unknown kid, got %v", err)
	}
}

func TestJWKSContainsCurrentPublicKey(t *testing.T) {
	key, _ := keystore.Generate()
	data, err := MarshalJWKS(key)
	if err != nil {
		t.Fatalf("MarshalJWKS failed: %v", err)
	}

	var doc JWKSDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(doc.Keys) != 1 {
		t.Fatalf("expected one key, got %d", len(doc.Keys))
	}
	jwk := doc.Keys[0]
	if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" || jwk.Kid != key.KID || jwk.Use != "sig" {
		t.Fatalf("unexpected jwk: %+v", jwk)
	}
}

func TestJWKSEmptyWithoutKeys(t *testing.T) {
	doc := JWKS()
	if len(doc.Keys) != 0 {
		t.Fatalf("expected empty key set, got %d", len(doc.Keys))
	}
	data, _ := json.Marshal(doc)
	if string(data) != `{"keys":[]}` {
		t.Fatalf("expected empty keys array on the wire, got %s", data)
	}
}
