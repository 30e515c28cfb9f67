package malloc

import (
	"github.com/bytedance/gopkg/lang/dirtmake"

	"github.com/cloudwego/poolalloc/unsafex"
)

// NewArena returns a size-byte region whose first byte is Alignment-aligned,
// ready to be handed to NewPool. The memory is not zeroed.
func NewArena(size int) []byte {
	if size <= 0 {
		return nil
	}
	b := dirtmake.Bytes(size+Alignment, size+Alignment)
	skip := int(-unsafex.AddrOf(b) & (Alignment - 1))
	return b[skip : skip+size : skip+size]
}
