package jwtx

import (
	"crypto/sha256"
	"encoding/base64"
)

// LeftmostHalfHash computes the OIDC at_hash / c_hash value for a token:
// the base64url encoding of the left half of the SHA-256 digest of its
// ASCII representation. Valid for RS256, ES256 and EdDSA which all pair
// with SHA-256 here.
func LeftmostHalfHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
