package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewArena(t *testing.T) {
	for _, sz := range []int{1, 7, 8, 31, 56, 80, 4096, 1 << 20} {
		b := NewArena(sz)
		assert.Equal(t, sz, len(b), "size=%d", sz)
		assert.Equal(t, sz, cap(b), "size=%d", sz)
		assert.True(t, isAligned(b), "size=%d", sz)
	}
	assert.Nil(t, NewArena(0))
	assert.Nil(t, NewArena(-1))
}
