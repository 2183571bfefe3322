package alloc

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/internal/logger"
	"github.com/joshuapare/slabkit/vmem"
)

// Options configures an Allocator.
type Options struct {
	// Source supplies the anonymous mappings slabs and large objects live in.
	// Default: vmem.System()
	Source vmem.Source

	// Logger receives slab and large-object lifecycle events at Debug level
	// and leak reports at Warn level.
	// Default: logger.L
	Logger *slog.Logger
}

// DefaultOptions returns options backed by the host mapping facility.
func DefaultOptions() Options {
	return Options{
		Source: vmem.System(),
		Logger: logger.L,
	}
}

// Allocator is a size-class slab allocator. Each instance owns its own
// size-class table and large-object list, so independent instances never
// share memory.
type Allocator struct {
	src      vmem.Source
	log      *slog.Logger
	pageSize uintptr
	pageMask uintptr

	classes [NumClasses]sizeClass

	large      uintptr // head of the large-object list
	largeCount uintptr
	largeBytes uintptr

	mapped uintptr // bytes currently mapped from src
	allocs uint64
	frees  uint64
	closed bool
}

// New creates an Allocator. A nil opts uses DefaultOptions.
func New(opts *Options) (*Allocator, error) {
	o := DefaultOptions()
	if opts != nil {
		if opts.Source != nil {
			o.Source = opts.Source
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	}

	pageSize := uintptr(o.Source.PageSize())
	if err := CheckPageSize(pageSize); err != nil {
		return nil, err
	}

	a := &Allocator{
		src:      o.Source,
		log:      o.Logger,
		pageSize: pageSize,
		pageMask: pageSize - 1,
	}
	for class := range a.classes {
		a.classes[class].init(class, pageSize)
	}
	return a, nil
}

// CheckPageSize reports whether slabs of pageSize bytes can hold the size-class
// table: a power of two with room for the header and one block of every class.
func CheckPageSize(pageSize uintptr) error {
	if !buf.IsPow2(pageSize) || pageSize < HeaderSize+MaxBlockSize+wordSize {
		return fmt.Errorf("%w: %d", ErrPageSize, pageSize)
	}
	return nil
}

// PageSize returns the mapping granularity the allocator was built for.
func (a *Allocator) PageSize() uintptr {
	return a.pageSize
}

// Alloc returns a zeroed block of at least size bytes. A size of zero is
// treated as one byte.
func (a *Allocator) Alloc(size uintptr) (unsafe.Pointer, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if size == 0 {
		size = 1
	}
	class, ok := ClassFor(size)
	if !ok {
		p, err := a.allocLarge(size)
		if err != nil {
			return nil, err
		}
		a.allocs++
		return p, nil
	}
	return a.acquire(class)
}

// acquire hands out one block of class, mapping a new slab when every block
// the class owns is in use.
func (a *Allocator) acquire(class int) (unsafe.Pointer, error) {
	sc := &a.classes[class]
	if sc.inUse == sc.capacity() {
		if err := a.growClass(class); err != nil {
			return nil, err
		}
	}

	blk := sc.pop()
	if blk == 0 {
		panic("alloc: free chain exhausted below class capacity")
	}
	hdr(a.slabOf(blk)).occupied++
	sc.inUse++
	a.allocs++
	return unsafe.Pointer(blk), nil
}

// Calloc returns a zeroed block of count*size bytes. A product that
// overflows is reported as ErrOutOfMemory.
func (a *Allocator) Calloc(count, size uintptr) (unsafe.Pointer, error) {
	total, ok := buf.MulOverflowSafe(count, size)
	if !ok {
		return nil, fmt.Errorf("%w: %d * %d overflows", ErrOutOfMemory, count, size)
	}
	return a.Alloc(total)
}

// Realloc resizes the block at ptr.
//
// A nil ptr behaves as Alloc(size). A zero size frees ptr and returns nil.
// If size still fits the block, ptr is returned unchanged. Otherwise a new
// block is allocated, min(old usable size, size) bytes are copied and ptr is
// freed. If the new allocation fails, ptr is left untouched.
func (a *Allocator) Realloc(ptr unsafe.Pointer, size uintptr) (unsafe.Pointer, error) {
	if ptr == nil {
		return a.Alloc(size)
	}
	if size == 0 {
		return nil, a.Free(ptr)
	}
	if a.closed {
		return nil, ErrClosed
	}

	h, _, err := a.lookup(uintptr(ptr))
	if err != nil {
		return nil, err
	}
	old := a.usable(h)
	if size <= old {
		return ptr, nil
	}

	np, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	buf.Copy(np, ptr, min(old, size))
	if err := a.Free(ptr); err != nil {
		// The copy is live; the old mapping is lost but the caller's data is not.
		a.log.Error("release after move failed", "ptr", fmt.Sprintf("%p", ptr), "err", err)
	}
	return np, nil
}

// Free returns the block at ptr. A nil ptr is a no-op. Freeing a pointer
// twice is undefined; pointers this allocator never handed out are reported
// as ErrBadPointer when their page does not carry a valid header.
func (a *Allocator) Free(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}
	if a.closed {
		return ErrClosed
	}

	addr := uintptr(ptr)
	h, base, err := a.lookup(addr)
	if err != nil {
		return err
	}
	a.frees++
	if h.magic == largeMagic {
		return a.releaseLarge(base)
	}

	sc := &a.classes[h.class]
	h.occupied--
	sc.inUse--
	if h.occupied == 0 {
		return a.releaseSlab(sc, base)
	}
	sc.push(addr)
	return nil
}

// UsableSize returns the number of bytes the caller may use at ptr.
func (a *Allocator) UsableSize(ptr unsafe.Pointer) (uintptr, error) {
	if a.closed {
		return 0, ErrClosed
	}
	h, _, err := a.lookup(uintptr(ptr))
	if err != nil {
		return 0, err
	}
	return a.usable(h), nil
}

// lookup finds the header of the mapping that owns addr and checks that addr
// is a pointer this allocator could have handed out.
func (a *Allocator) lookup(addr uintptr) (*header, uintptr, error) {
	if addr == 0 {
		return nil, 0, fmt.Errorf("%w: nil", ErrBadPointer)
	}
	base := a.slabOf(addr)
	h := hdr(base)
	switch h.magic {
	case largeMagic:
		if addr == base+HeaderSize {
			return h, base, nil
		}
	case slabMagic:
		if int(h.class) < NumClasses && h.occupied > 0 && a.classes[h.class].owns(base, addr) {
			return h, base, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %#x", ErrBadPointer, addr)
}

// usable returns the usable size of the block or large object behind h.
func (a *Allocator) usable(h *header) uintptr {
	if h.magic == largeMagic {
		return h.size - HeaderSize
	}
	return a.classes[h.class].blockSize
}

// Close unmaps every slab and large object. Blocks still in use are reported
// through the logger and become invalid. Close is idempotent.
func (a *Allocator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	for class := range a.classes {
		sc := &a.classes[class]
		if sc.inUse > 0 {
			a.log.Warn("leaked blocks",
				"class", class,
				"block_size", sc.blockSize,
				"blocks", sc.inUse,
				"slabs", sc.slabs)
		}
		for base := sc.head; base != 0; {
			h := hdr(base)
			next, size := h.next, h.size
			errs = append(errs, a.unmapRegion(base, size))
			base = next
		}
		sc.init(class, a.pageSize)
	}

	for base := a.large; base != 0; {
		h := hdr(base)
		next, size := h.next, h.size
		a.log.Warn("leaked large object",
			"usable", size-HeaderSize,
			"mapped", size,
			"base", fmt.Sprintf("%#x", base))
		errs = append(errs, a.unmapRegion(base, size))
		base = next
	}
	a.large, a.largeCount, a.largeBytes = 0, 0, 0

	return errors.Join(errs...)
}
