// Package random generates and fingerprints opaque tokens.
package random

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// TokenBytes is the entropy of an opaque token.
const TokenBytes = 32

// TokenLength is the encoded length of an opaque token.
var TokenLength = base64.RawURLEncoding.EncodedLen(TokenBytes)

// NewToken returns 256 random bits encoded as unpadded base64url.
func NewToken() (string, error) {
	var raw [TokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// WellFormed reports whether token has the shape produced by NewToken. It lets
// callers reject garbage without a store round trip.
func WellFormed(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil && len(raw) == TokenBytes
}

// HashToken returns the hex sha256 of token. Stores key on this value so raw
// tokens never reach persistence.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns a short prefix of HashToken for log correlation.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return HashToken(token)[:12]
}
