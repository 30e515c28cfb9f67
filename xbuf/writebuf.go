package xbuf

import "sync"

const padLength = 1 << 13

var xwriteBufferPool = sync.Pool{
	New: func() interface{} {
		return &XWriteBuffer{
			bufs: make([][]byte, 0, 16),
			pool: make([][]byte, 0, 16),
		}
	},
}

type XWriteBuffer struct {
	off  int // write offset of buf
	buf  []byte
	bufs [][]byte
	pool [][]byte

	alloc Allocator
}

// NewXWriteBuffer returns a buffer growing on the Go heap.
func NewXWriteBuffer() *XWriteBuffer {
	return NewXWriteBufferWithAllocator(HeapAllocator)
}

// NewXWriteBufferWithAllocator returns a buffer taking its chunks from a.
// With a fixed-capacity allocator, MallocN returns nil once a runs out of memory.
func NewXWriteBufferWithAllocator(a Allocator) *XWriteBuffer {
	b := xwriteBufferPool.Get().(*XWriteBuffer)
	b.alloc = a
	return b
}

func (b *XWriteBuffer) Bytes() [][]byte {
	if b.off > 0 {
		b.bufs = append(b.bufs, b.buf[:b.off])
		b.buf = b.buf[b.off:]
		b.off = 0
	}
	return b.bufs
}

// Free returns every chunk to the allocator. The buffer must not be used afterwards.
func (b *XWriteBuffer) Free() {
	b.off = 0
	b.buf = nil
	for i := range b.bufs {
		b.bufs[i] = nil
	}
	b.bufs = b.bufs[:0]
	for i := range b.pool {
		b.alloc.Free(b.pool[i])
		b.pool[i] = nil
	}
	b.pool = b.pool[:0]
	b.alloc = nil
	xwriteBufferPool.Put(b)
}

// MallocN malloc n bytes from buffer, if buf is not enough, it will grow.
// It returns nil if the allocator cannot serve a new chunk.
// growSlow relies on the b.off += n below to bring off back to zero on failure.
//
// MAKE SURE IT CAN BE INLINE:
// `can inline (*XWriteBuffer).MallocN with cost 79`
func (b *XWriteBuffer) MallocN(n int) (buf []byte) {
	buf = b.buf[b.off:]
	if len(buf) < n {
		buf = b.growSlow(n)
	}
	b.off += n
	return
}

func (b *XWriteBuffer) growSlow(n int) []byte {
	if b.off > 0 {
		b.buf = b.buf[:b.off]
		b.bufs = append(b.bufs, b.buf)
		b.off = 0
	}
	// refresh buf
	sz := n
	if sz < padLength {
		sz = padLength
	}
	buf := b.alloc.Alloc(sz)
	if buf == nil && sz > n {
		buf = b.alloc.Alloc(n)
	}
	if buf == nil {
		// MallocN adds n right after, leave off at zero with nothing to write into
		b.buf = nil
		b.off = -n
		return nil
	}
	buf = buf[:cap(buf)]
	b.pool = append(b.pool, buf)
	b.buf = buf
	return buf
}

func (b *XWriteBuffer) WriteDirect(buf []byte) {
	// relink buffers
	if b.off > 0 {
		b.bufs = append(b.bufs, b.buf[:b.off])
		b.buf = b.buf[b.off:]
		b.off = 0
	}

	// write directly
	b.bufs = append(b.bufs, buf)
	return
}
