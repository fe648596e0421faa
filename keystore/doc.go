// Package keystore manages the signing key pairs used by the asymmetric
// session strategy: one current key for signing, retired keys kept
// resolvable by kid for verification until their tokens expire.
package keystore
