package malloc

import (
	"encoding/binary"
	"fmt"

	"github.com/bytedance/gopkg/util/xxhash3"
)

// Stats is a snapshot of pool accounting.
type Stats struct {
	// Total is the managed region size in bytes.
	Total int
	// Allocated is the sum of the payloads of blocks in use.
	Allocated int
	// Free is the sum of the payloads of free blocks. Headers are not counted.
	Free int
}

// Stats returns the current accounting of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Total: int(p.size), Allocated: p.allocated, Free: p.free}
}

// Available returns the total free payload bytes.
// Not all of it can be served by one Alloc, see LargestFree.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free
}

// FreeListLen returns the number of blocks on the free list.
func (p *Pool) FreeListLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	p.eachFree(func(freeBlock) bool {
		n++
		return true
	})
	return n
}

// FreeListTotal returns the payload bytes summed over the free list.
// It equals Stats().Free unless the pool is corrupted.
func (p *Pool) FreeListTotal() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	p.eachFree(func(b freeBlock) bool {
		total += int(b.size())
		return true
	})
	return total
}

// LargestFree returns the payload of the largest free block,
// which is the largest size a single Alloc can currently succeed with.
func (p *Pool) LargestFree() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.largestFree()
}

func (p *Pool) largestFree() int {
	largest := 0
	p.walk(func(_ uint32, h *header) bool {
		if h.isFree() && int(h.size) > largest {
			largest = int(h.size)
		}
		return true
	})
	return largest
}

// FreeBlockCount returns the number of free blocks found by walking the region.
func (p *Pool) FreeBlockCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	p.walk(func(_ uint32, h *header) bool {
		if h.isFree() {
			n++
		}
		return true
	})
	return n
}

// Fragmentation returns 1 - LargestFree/Available: 0 when all free memory is
// one block (or there is none), approaching 1 as it gets scattered.
func (p *Pool) Fragmentation() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.free == 0 {
		return 0
	}
	return 1 - float64(p.largestFree())/float64(p.free)
}

// LayoutHash fingerprints the block layout: offset, size and state of every block.
// Two pools with equal hashes are carved up the same way.
func (p *Pool) LayoutHash() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := make([]byte, 0, p.blocks*12)
	var rec [12]byte
	p.walk(func(off uint32, h *header) bool {
		binary.LittleEndian.PutUint32(rec[0:4], off)
		binary.LittleEndian.PutUint32(rec[4:8], h.size)
		binary.LittleEndian.PutUint32(rec[8:12], h.flags&flagFree)
		buf = append(buf, rec[:]...)
		return true
	})
	return xxhash3.Hash(buf)
}

// Check verifies every pool invariant and returns an error wrapping ErrCorrupted
// describing the first violation found:
//   - blocks partition the region exactly and every header is sane
//   - no two free blocks are adjacent
//   - the free list holds exactly the free blocks, once each, in address order
//   - the counters match the blocks
func (p *Pool) Check() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		blocks, used, free int
		freeOffs           []uint32
		prevFree           bool
		err                error
	)
	complete := p.walk(func(off uint32, h *header) bool {
		blocks++
		if !h.isFree() {
			used += int(h.size)
			prevFree = false
			return true
		}
		if prevFree {
			err = fmt.Errorf("%w: free block at %d follows another free block", ErrCorrupted, off)
			return false
		}
		free += int(h.size)
		freeOffs = append(freeOffs, off)
		prevFree = true
		return true
	})
	if err != nil {
		return err
	}
	if !complete {
		return fmt.Errorf("%w: blocks do not partition the region", ErrCorrupted)
	}

	i := 0
	listed := p.eachFree(func(b freeBlock) bool {
		if i >= len(freeOffs) || freeOffs[i] != b.off {
			err = fmt.Errorf("%w: free list entry %d at offset %d is out of place", ErrCorrupted, i, b.off)
			return false
		}
		i++
		return true
	})
	if err != nil {
		return err
	}
	if !listed {
		return fmt.Errorf("%w: free list references an invalid block", ErrCorrupted)
	}
	if i != len(freeOffs) {
		return fmt.Errorf("%w: %d free blocks are missing from the free list", ErrCorrupted, len(freeOffs)-i)
	}

	switch {
	case used != p.allocated:
		return fmt.Errorf("%w: allocated=%d, blocks in use hold %d", ErrCorrupted, p.allocated, used)
	case free != p.free:
		return fmt.Errorf("%w: free=%d, free blocks hold %d", ErrCorrupted, p.free, free)
	case blocks != p.blocks:
		return fmt.Errorf("%w: blocks=%d, found %d", ErrCorrupted, p.blocks, blocks)
	case used+free+blocks*HeaderSize != int(p.size):
		return fmt.Errorf("%w: %d+%d+%d*%d != %d", ErrCorrupted, used, free, blocks, HeaderSize, p.size)
	}
	return nil
}
