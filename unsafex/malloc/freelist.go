package malloc

// headSlot stands for "before the first free block" when relinking.
var headSlot = freeBlock{off: nilOffset}

// relink points prev (or the list head) at next.
func (p *Pool) relink(prev freeBlock, next uint32) {
	if prev.h == nil {
		p.head = next
		return
	}
	prev.h.next = next
}

// eachFree visits the free list in order until fn returns false.
// It reports false if the list references an invalid block.
func (p *Pool) eachFree(fn func(b freeBlock) bool) bool {
	for off := p.head; off != nilOffset; {
		b, ok := p.freeBlockAt(off)
		if !ok {
			return false
		}
		if !fn(b) {
			return true
		}
		off = b.next()
	}
	return true
}

// slotFor finds the free-list neighbours of a block at off: the last free block
// below it (headSlot if none) and the offset of the first free block above it.
func (p *Pool) slotFor(off uint32) (prev freeBlock, next uint32, ok bool) {
	prev, next = headSlot, p.head
	for next != nilOffset && next < off {
		b, valid := p.freeBlockAt(next)
		if !valid {
			return headSlot, nilOffset, false
		}
		prev, next = b, b.next()
	}
	return prev, next, true
}

// coalesceForward merges b with the block right after it when that one is free.
func (p *Pool) coalesceForward(b freeBlock) {
	end := b.end()
	if end >= uint64(p.size) {
		// tail of the region, there is no forward neighbour
		return
	}
	// the list is address ordered, so a free physical successor must be b's list successor
	if uint64(b.next()) != end {
		return
	}
	nb, ok := p.freeBlockAt(b.next())
	if !ok {
		return
	}
	b.absorb(nb)
	p.free += HeaderSize
	p.blocks--
}

// coalesceBackward merges b into prev when prev ends exactly where b starts.
func (p *Pool) coalesceBackward(prev, b freeBlock) {
	if prev.h == nil || prev.end() != uint64(b.off) {
		return
	}
	prev.absorb(b)
	p.free += HeaderSize
	p.blocks--
}
