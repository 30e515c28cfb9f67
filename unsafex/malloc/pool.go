// Package malloc provides allocators that carve a caller-supplied arena into blocks.
package malloc

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"unsafe"

	"github.com/cloudwego/poolalloc/unsafex"
)

// PoisonByte fills freed payloads when Option.PoisonFree is set.
const PoisonByte = 0xDD

var (
	// ErrInvalidArgument is returned by NewPool for an arena it cannot manage.
	ErrInvalidArgument = errors.New("malloc: invalid argument")

	// ErrCorrupted is returned by Check when the pool bookkeeping is inconsistent.
	ErrCorrupted = errors.New("malloc: pool corrupted")
)

// reasons a Free or FreeAt call is ignored, only surfaced through Option.LogInvalidFree
var (
	errFreeNil        = errors.New("nil block")
	errFreeOutOfRange = errors.New("block out of range")
	errFreeMisaligned = errors.New("misaligned block")
	errFreeNotBlock   = errors.New("not a block start")
	errFreeDouble     = errors.New("double free")
	errFreeCorrupted  = errors.New("free list corrupted")
)

// Option configures a Pool.
type Option struct {
	// Name identifies the pool in log messages.
	Name string

	// ZeroAlloc clears every payload before Alloc returns it.
	ZeroAlloc bool

	// PoisonFree fills every freed payload with PoisonByte,
	// making use-after-free visible to whoever reads it.
	PoisonFree bool

	// LogInvalidFree reports ignored Free and FreeAt calls through Logf.
	// Free stays a silent no-op for the caller either way.
	LogInvalidFree bool

	// Logf receives diagnostics. Defaults to log.Printf.
	Logf func(format string, args ...interface{})
}

// DefaultOption returns the default values of Option.
func DefaultOption() *Option {
	return &Option{
		Name: "__default__",
		Logf: log.Printf,
	}
}

// Pool is a fixed-capacity first-fit allocator carving variable-sized blocks
// out of one caller-supplied arena. It never grows the arena and never falls
// back to the Go heap.
//
// Every block is a 16-byte header followed by its payload. Blocks partition the
// arena in address order, and the free ones are threaded through an
// address-ordered singly linked list whose links are arena offsets. Freed
// blocks are merged with free neighbours on both sides.
//
// Pool is safe for concurrent use; each method holds the pool lock for its whole duration.
type Pool struct {
	mu sync.Mutex

	arena []byte
	base  unsafe.Pointer
	size  uint32

	// head is the offset of the lowest free block.
	head uint32

	// allocated and free are payload byte sums, headers excluded.
	allocated int
	free      int
	blocks    int

	opt Option
}

// NewPool creates a Pool over arena with default options.
// The first byte of arena must be 8-byte aligned; its length is rounded down to a multiple of 8.
func NewPool(arena []byte) (*Pool, error) {
	return NewPoolWithOption(arena, nil)
}

// NewPoolWithOption creates a Pool over arena. A nil o means DefaultOption().
func NewPoolWithOption(arena []byte, o *Option) (*Pool, error) {
	if o == nil {
		o = DefaultOption()
	}
	if len(arena) == 0 {
		return nil, fmt.Errorf("%w: empty arena", ErrInvalidArgument)
	}
	if uintptr(unsafe.Pointer(&arena[0]))&(Alignment-1) != 0 {
		return nil, fmt.Errorf("%w: arena is not %d-byte aligned", ErrInvalidArgument, Alignment)
	}
	usable := len(arena) &^ (Alignment - 1)
	if usable < HeaderSize+MinAllocSize {
		return nil, fmt.Errorf("%w: arena must hold at least %d bytes, got %d",
			ErrInvalidArgument, HeaderSize+MinAllocSize, len(arena))
	}
	if uint64(usable) > maxPoolSize {
		return nil, fmt.Errorf("%w: arena larger than %d bytes", ErrInvalidArgument, uint64(maxPoolSize))
	}

	p := &Pool{
		arena: arena[:usable:usable],
		base:  unsafe.Pointer(&arena[0]),
		size:  uint32(usable),
		opt:   *o,
	}
	if p.opt.Logf == nil {
		p.opt.Logf = log.Printf
	}

	*p.hdr(0) = header{
		size:  uint32(usable - HeaderSize),
		next:  nilOffset,
		flags: flagFree,
		magic: poolMagic,
	}
	p.head = 0
	p.free = usable - HeaderSize
	p.blocks = 1
	return p, nil
}

// Alloc returns a block of exactly size bytes, or nil if size <= 0 or no free
// block is large enough. The first byte is 8-byte aligned and cap() reports the
// whole payload of the block, which is at least MinAllocSize.
func (p *Pool) Alloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alloc(size)
}

func (p *Pool) alloc(size int) []byte {
	if uint64(size) > uint64(p.size) {
		return nil
	}
	need := alignUp(uint32(size))
	if need < MinAllocSize {
		need = MinAllocSize
	}

	// first fit
	prev := headSlot
	for off := p.head; off != nilOffset; {
		b, ok := p.freeBlockAt(off)
		if !ok {
			// damaged list, fail safe
			return nil
		}
		if b.size() >= need {
			u := p.commit(prev, b, need)
			return p.payload(u, size)
		}
		prev, off = b, b.next()
	}
	return nil
}

// commit carves need bytes out of the free block b whose list predecessor is prev.
func (p *Pool) commit(prev, b freeBlock, need uint32) usedBlock {
	payload := b.size()
	repl := b.next()
	// uint64 so that need close to maxPoolSize cannot wrap
	if uint64(payload) >= uint64(need)+HeaderSize+MinAllocSize {
		// the remainder is itself a valid block and takes b's place on the list
		roff := b.off + HeaderSize + need
		*p.hdr(roff) = header{
			size:  payload - need - HeaderSize,
			next:  repl,
			flags: flagFree,
			magic: poolMagic,
		}
		repl = roff
		b.h.size = need
		p.free -= int(need) + HeaderSize
		p.blocks++
	} else {
		// a smaller remainder could not hold a block, hand over all of it
		p.free -= int(payload)
	}
	p.relink(prev, repl)
	u := b.take()
	p.allocated += int(u.size())
	return u
}

func (p *Pool) payload(u usedBlock, size int) []byte {
	start := u.dataOffset()
	end := start + int(u.size())
	buf := p.arena[start:end:end]
	if p.opt.ZeroAlloc {
		for i := range buf {
			buf[i] = 0
		}
	}
	return buf[:size]
}

// Free returns a block obtained from Alloc. Reslicing the block's end is fine;
// its first byte must be the one Alloc returned.
//
// Free never panics. A nil block, a slice outside the arena, an interior
// pointer or an already freed block is ignored.
func (p *Pool) Free(block []byte) {
	if cap(block) == 0 {
		p.rejectFree(0, errFreeNil)
		return
	}
	// len(block) may be zero
	dataPtr := unsafex.AddrOf(block)

	p.mu.Lock()
	defer p.mu.Unlock()
	// pointers below base wrap around and fail the range check
	data := uint64(dataPtr - uintptr(p.base))
	if err := p.release(data); err != nil {
		p.rejectFree(data, err)
	}
}

// FreeAt returns the block whose payload starts at dataOffset bytes from the
// start of the arena, see Offset. Invalid offsets are ignored like in Free.
func (p *Pool) FreeAt(dataOffset int) {
	if dataOffset < 0 {
		p.rejectFree(0, errFreeOutOfRange)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.release(uint64(dataOffset)); err != nil {
		p.rejectFree(uint64(dataOffset), err)
	}
}

// Offset returns the arena offset of the first byte of block,
// or false if block does not start inside the arena.
func (p *Pool) Offset(block []byte) (int, bool) {
	if cap(block) == 0 {
		return 0, false
	}
	dataPtr := unsafex.AddrOf(block)

	p.mu.Lock()
	defer p.mu.Unlock()
	data := uint64(dataPtr - uintptr(p.base))
	if data >= uint64(p.size) {
		return 0, false
	}
	return int(data), true
}

func (p *Pool) release(data uint64) error {
	if data < HeaderSize || data >= uint64(p.size) {
		return errFreeOutOfRange
	}
	if data%Alignment != 0 {
		return errFreeMisaligned
	}
	// header plus the smallest payload must fit, anything else would be a zero-length tail block
	off := data - HeaderSize
	if off+HeaderSize+MinAllocSize > uint64(p.size) {
		return errFreeOutOfRange
	}
	if !p.isBlock(uint32(off)) {
		return errFreeNotBlock
	}
	u, ok := p.usedBlockAt(uint32(off))
	if !ok {
		return errFreeDouble
	}
	prev, next, ok := p.slotFor(u.off)
	if !ok {
		return errFreeCorrupted
	}

	n := int(u.size())
	if p.opt.PoisonFree {
		buf := p.arena[data : data+uint64(n)]
		for i := range buf {
			buf[i] = PoisonByte
		}
	}
	p.allocated -= n
	p.free += n

	b := u.release(next)
	p.relink(prev, b.off)
	p.coalesceForward(b)
	p.coalesceBackward(prev, b)
	return nil
}

func (p *Pool) rejectFree(data uint64, err error) {
	if p.opt.LogInvalidFree {
		p.opt.Logf("MALLOC: pool %s: ignored free at offset %d: %v", p.opt.Name, data, err)
	}
}

// Destroy releases the arena. The pool must not be used afterwards.
// Blocks still in use at this point are reported as a leak through Option.Logf.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allocated > 0 {
		p.opt.Logf("MALLOC: pool %s destroyed with %d bytes in use", p.opt.Name, p.allocated)
	}
	p.arena = nil
	p.base = nil
	p.size = 0
	p.head = nilOffset
	p.allocated = 0
	p.free = 0
	p.blocks = 0
}
