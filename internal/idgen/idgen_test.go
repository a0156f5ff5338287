package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHex(t *testing.T) {
	a := Hex(32)
	assert.Len(t, a, 64)
	assert.Regexp(t, `^[0-9a-f]+$`, a)
	assert.NotEqual(t, a, Hex(32))
}

func TestWithPrefix(t *testing.T) {
	token := WithPrefix("bk_", 32)
	assert.Regexp(t, `^bk_[0-9a-f]{64}$`, token)

	assert.Len(t, WithPrefix("x_", 12), 2+24)
}
