// Package keygen produces customer-facing license key strings.
package keygen

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	groupCount = 4
	groupLen   = 4
)

// Generate returns a license key of four hyphen-joined groups of four
// characters, each drawn independently and uniformly from [A-Z0-9]
// (e.g. "ABCD-1234-EFGH-5678").
//
// The 36^16 key space makes collisions rare but not impossible; callers
// must verify uniqueness against the store before persisting a key.
func Generate() string {
	var sb strings.Builder
	sb.Grow(groupCount*groupLen + groupCount - 1)

	for g := 0; g < groupCount; g++ {
		if g > 0 {
			sb.WriteByte('-')
		}
		for i := 0; i < groupLen; i++ {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
			if err != nil {
				panic("crypto/rand failed: " + err.Error())
			}
			sb.WriteByte(alphabet[n.Int64()])
		}
	}
	return sb.String()
}
