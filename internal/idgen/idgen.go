// Package idgen generates opaque credential tokens from crypto/rand.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// WithPrefix generates a random token with a type prefix (e.g. "bk_" for
// brand API keys). Result is prefix + numBytes random bytes hex-encoded.
func WithPrefix(prefix string, numBytes int) string {
	return prefix + Hex(numBytes)
}

// Hex generates a random hex string of the given byte length.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
