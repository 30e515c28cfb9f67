package xbuf

import "github.com/bytedance/gopkg/lang/mcache"

// Allocator is the source of the chunks XWriteBuffer and XReadBuffer work in.
// *malloc.Pool implements it, serving every chunk from one fixed arena.
//
// Alloc returns nil when it cannot serve size bytes.
type Allocator interface {
	Alloc(size int) []byte
	Free(b []byte)
}

// HeapAllocator serves chunks from the Go heap through mcache.
var HeapAllocator Allocator = heapAllocator{}

type heapAllocator struct{}

func (heapAllocator) Alloc(size int) []byte { return mcache.Malloc(size) }

func (heapAllocator) Free(b []byte) { mcache.Free(b) }
