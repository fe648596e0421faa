package jwt

import (
	"encoding/base64"
	"encoding/json"

	"github.com/verisella/authcore/keystore"
)

// JWK is one JSON Web Key in a published key set. Only Ed25519 public
// keys are emitted (OKP / Ed25519 per RFC 8037).
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	X   string `json:"x"`
	Alg string `json:"alg"`
	Use string `json:"use"`
}

// JWKSDocument is the JWKS wire shape: {"keys":[...]}. Consumers locate
// the verification key by matching a token's kid header.
type JWKSDocument struct {
	Keys []JWK `json:"keys"`
}

// JWKS builds the published key set from the given keys. Keys without
// public material are skipped. Retired keys belong in the set alongside
// the current one so tokens signed before a rotation keep verifying.
func JWKS(keys ...*keystore.Key) JWKSDocument {
	doc := JWKSDocument{Keys: []JWK{}}
	for _, k := range keys {
		if k == nil || len(k.Public) == 0 {
			continue
		}
		doc.Keys = append(doc.Keys, JWK{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: k.KID,
			X:   base64.RawURLEncoding.EncodeToString(k.Public),
			Alg: "EdDSA",
			Use: "sig",
		})
	}
	return doc
}

// MarshalJWKS renders the document as JSON for serving at a JWKS endpoint.
func MarshalJWKS(keys ...*keystore.Key) ([]byte, error) {
	return json.Marshal(JWKS(keys...))
}
