package keygen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var keyPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func TestGenerate_Format(t *testing.T) {
	for i := 0; i < 50; i++ {
		key := Generate()
		assert.Len(t, key, 19)
		assert.Regexp(t, keyPattern, key)
	}
}

func TestGenerate_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := Generate()
		assert.False(t, seen[key], "duplicate key %s after %d generations", key, i)
		seen[key] = true
	}
}

func TestGenerate_CoversAlphabet(t *testing.T) {
	// With 1000 keys (16k characters) every one of the 36 symbols should
	// appear; a missing symbol would indicate a biased source.
	counts := make(map[rune]int)
	for i := 0; i < 1000; i++ {
		for _, r := range Generate() {
			if r != '-' {
				counts[r]++
			}
		}
	}
	assert.Len(t, counts, 36)
}
