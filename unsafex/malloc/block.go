package malloc

import (
	"math"
	"unsafe"
)

const (
	// HeaderSize is the size of the header preceding each block's payload.
	// It does not depend on the host pointer width.
	HeaderSize = 16

	// MinAllocSize is the smallest payload a block may carry.
	MinAllocSize = 16

	// Alignment of every payload offset. Payload addresses are aligned as long as
	// the arena itself starts on an Alignment boundary, which NewPool enforces.
	Alignment = 8

	// poolMagic marks a live header. It is cleared when a header is absorbed by a neighbour.
	poolMagic uint32 = 0x504F4F4C // 'POOL'

	flagFree uint32 = 0x1

	// nilOffset terminates the free list.
	nilOffset uint32 = math.MaxUint32

	// maxPoolSize keeps every offset and block extent representable as uint32.
	maxPoolSize = math.MaxUint32 &^ (Alignment - 1)
)

// header is the in-arena block record.
//
// Layout (little or big endian, whatever the host uses):
//
//	[0:4)   payload size
//	[4:8)   offset of the next free block, nilOffset if none; meaningless while in use
//	[8:12)  flags
//	[12:16) magic
type header struct {
	size  uint32
	next  uint32
	flags uint32
	magic uint32
}

var _ [HeaderSize]byte = [unsafe.Sizeof(header{})]byte{}

func (h *header) isFree() bool { return h.flags&flagFree != 0 }

// freeBlock is a block that sits on the free list. Only free blocks expose the link.
type freeBlock struct {
	off uint32
	h   *header
}

func (b freeBlock) size() uint32 { return b.h.size }
func (b freeBlock) next() uint32 { return b.h.next }

// end returns the offset right after the block's payload.
func (b freeBlock) end() uint64 { return uint64(b.off) + HeaderSize + uint64(b.h.size) }

// take marks the block in use. The stale link is cleared so nothing can follow it.
func (b freeBlock) take() usedBlock {
	b.h.flags &^= flagFree
	b.h.next = nilOffset
	return usedBlock{off: b.off, h: b.h}
}

// absorb merges the physically adjacent free block nb into b.
func (b freeBlock) absorb(nb freeBlock) {
	b.h.size += HeaderSize + nb.h.size
	b.h.next = nb.h.next
	*nb.h = header{}
}

// usedBlock is a block handed out by Alloc.
type usedBlock struct {
	off uint32
	h   *header
}

func (b usedBlock) size() uint32 { return b.h.size }

// dataOffset returns the arena offset of the payload.
func (b usedBlock) dataOffset() int { return int(b.off) + HeaderSize }

// release marks the block free and links it in front of next.
func (b usedBlock) release(next uint32) freeBlock {
	b.h.flags |= flagFree
	b.h.next = next
	return freeBlock{off: b.off, h: b.h}
}

// hdr returns the header at off. The caller must have bounds-checked off.
func (p *Pool) hdr(off uint32) *header {
	return (*header)(unsafe.Add(p.base, off))
}

// lookup returns the header at off if it lies inside the region and looks like a live header.
func (p *Pool) lookup(off uint32) (*header, bool) {
	if off == nilOffset || off%Alignment != 0 {
		return nil, false
	}
	if uint64(off)+HeaderSize > uint64(p.size) {
		return nil, false
	}
	h := p.hdr(off)
	if h.magic != poolMagic || h.size < MinAllocSize || h.size%Alignment != 0 {
		return nil, false
	}
	if uint64(off)+HeaderSize+uint64(h.size) > uint64(p.size) {
		return nil, false
	}
	return h, true
}

// freeBlockAt types the block at off as free. Links must point strictly forward,
// so a damaged list can never make a traversal loop.
func (p *Pool) freeBlockAt(off uint32) (freeBlock, bool) {
	h, ok := p.lookup(off)
	if !ok || !h.isFree() {
		return freeBlock{}, false
	}
	if h.next != nilOffset && h.next <= off {
		return freeBlock{}, false
	}
	return freeBlock{off: off, h: h}, true
}

// usedBlockAt types the block at off as allocated.
func (p *Pool) usedBlockAt(off uint32) (usedBlock, bool) {
	h, ok := p.lookup(off)
	if !ok || h.isFree() {
		return usedBlock{}, false
	}
	return usedBlock{off: off, h: h}, true
}

// walk visits blocks in address order starting at offset 0 until fn returns false.
// It reports false if it met a header that fails lookup, i.e. if the blocks do not
// partition the region.
func (p *Pool) walk(fn func(off uint32, h *header) bool) bool {
	for off := uint64(0); off < uint64(p.size); {
		h, ok := p.lookup(uint32(off))
		if !ok {
			return false
		}
		if !fn(uint32(off), h) {
			return true
		}
		off += HeaderSize + uint64(h.size)
	}
	return true
}

// isBlock reports whether off is exactly the start of a block reachable from offset 0.
func (p *Pool) isBlock(off uint32) bool {
	found := false
	p.walk(func(cur uint32, _ *header) bool {
		if cur >= off {
			found = cur == off
			return false
		}
		return true
	})
	return found
}

func alignUp(n uint32) uint32 {
	return (n + Alignment - 1) &^ (Alignment - 1)
}
