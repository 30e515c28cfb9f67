package xbuf

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBuf(t *testing.T) {
	var x *XReadBuffer

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("should panic")
		}
		stack := string(debug.Stack())
		if !strings.Contains(stack, "ReadN(...)") {
			t.Fatal("should inline ReadN")
		}
	}()
	x.ReadN(10)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("should panic")
		}
		stack := string(debug.Stack())
		if !strings.Contains(stack, "CopyBytes(...)") {
			t.Fatal("should inline CopyBytes")
		}
	}()

	x.CopyBytes(make([]byte, 1))
}

func TestReadBufPoolScratch(t *testing.T) {
	p := newTestPool(t, 4096)
	initial := p.Stats()

	bufs := [][]byte{[]byte("hello "), []byte("pool"), []byte("ed world")}
	x := NewXReadBufferWithAllocator(bufs, p)

	assert.Equal(t, "hel", string(x.ReadN(3)[:3]))
	// straddles three input buffers, served from pool scratch
	got := x.ReadN(10)
	assert.Equal(t, "lo pooled ", string(got))
	_, ok := p.Offset(got)
	assert.True(t, ok)
	assert.Greater(t, p.Stats().Allocated, 0)

	tail := make([]byte, 5)
	x.CopyBytes(tail)
	assert.Equal(t, "world", string(tail))

	assert.PanicsWithValue(t, ErrXReadBufferNotEnough.Error(), func() { x.ReadN(1) })

	x.Free()
	assert.Equal(t, initial, p.Stats())
	assert.NoError(t, p.Check())
}

func TestReadBufPoolExhausted(t *testing.T) {
	p := newTestPool(t, 64)
	x := NewXReadBufferWithAllocator([][]byte{[]byte("ab"), make([]byte, 100)}, p)
	assert.PanicsWithValue(t, ErrXReadBufferNoMemory.Error(), func() { x.ReadN(64) })
	x.Free()
	require.NoError(t, p.Check())
}

func TestReadBufHeap(t *testing.T) {
	x := NewXReadBuffer([][]byte{[]byte("ab"), []byte("cd")})
	assert.Equal(t, "abc", string(x.ReadN(3)[:3]))
	assert.Equal(t, "d", string(x.ReadN(1)))
	x.Free()
}
