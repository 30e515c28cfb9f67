package xbuf

import (
	"errors"
	"sync"
)

var (
	ErrXReadBufferNotEnough = errors.New("error xread buffer not enough")
	ErrXReadBufferNoMemory  = errors.New("error xread buffer allocator out of memory")
	xreadBufferPool         = sync.Pool{
		New: func() interface{} {
			return &XReadBuffer{
				pool: make([][]byte, 0, 16),
			}
		},
	}
)

type XReadBuffer struct {
	off  int
	buf  []byte
	bufs [][]byte
	pool [][]byte

	alloc Allocator
}

func NewXReadBuffer(bufs [][]byte) *XReadBuffer {
	return NewXReadBufferWithAllocator(bufs, HeapAllocator)
}

// NewXReadBufferWithAllocator reads from bufs, taking scratch space for reads
// that straddle two of them from a.
func NewXReadBufferWithAllocator(bufs [][]byte, a Allocator) *XReadBuffer {
	rb := xreadBufferPool.Get().(*XReadBuffer)
	rb.buf = bufs[0]
	rb.bufs = bufs[1:]
	rb.alloc = a
	return rb
}

// ReadN read n bytes from buffer, if buf is not enough, it will read from next buffer.
//
// MAKE SURE IT CAN BE INLINE:
// `can inline (*XReadBuffer).ReadN with cost 80`
func (b *XReadBuffer) ReadN(n int) (buf []byte) {
	buf = b.buf[b.off:]
	if len(buf) < n {
		buf = b.readSlow(n)
	} else {
		b.off += n
	}
	return
}

func (b *XReadBuffer) readSlow(n int) (buf []byte) {
	buf = b.alloc.Alloc(n)
	if buf == nil {
		panic(ErrXReadBufferNoMemory.Error())
	}
	b.pool = append(b.pool, buf)
	var l, m int
	if len(b.buf)-b.off > 0 {
		m = copy(buf[l:], b.buf[b.off:])
		l += m
	}
	for l < n {
		if len(b.bufs) == 0 {
			panic(ErrXReadBufferNotEnough.Error())
		}
		b.buf = b.bufs[0]
		b.off = 0
		b.bufs = b.bufs[1:]
		m = copy(buf[l:], b.buf)
		l += m
	}
	b.off += m
	return
}

// CopyBytes copy bytes from buffer, if buf is not enough, it will copy from next buffer.
//
// MAKE SURE IT CAN BE INLINE:
// `can inline (*XReadBuffer).CopyBytes with cost 80`
func (b *XReadBuffer) CopyBytes(buf []byte) {
	n := copy(buf, b.buf[b.off:])
	if len(buf) > n {
		b.copySlow(buf)
	} else {
		b.off += n
	}
}

func (b *XReadBuffer) copySlow(buf []byte) {
	m := len(b.buf) - b.off
	l := m
	for l < len(buf) {
		if len(b.bufs) == 0 {
			panic(ErrXReadBufferNotEnough.Error())
		}
		b.buf = b.bufs[0]
		b.off = 0
		b.bufs = b.bufs[1:]
		m = copy(buf[l:], b.buf)
		l += m
	}
	b.off += m
}

// Free returns the scratch space to the allocator. The input buffers are left alone.
func (b *XReadBuffer) Free() {
	b.off = 0
	b.buf = nil
	b.bufs = nil
	for i := range b.pool {
		b.alloc.Free(b.pool[i])
		b.pool[i] = nil
	}
	b.pool = b.pool[:0]
	b.alloc = nil
	xreadBufferPool.Put(b)
}
