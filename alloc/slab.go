package alloc

import (
	"fmt"
	"math"
	"unsafe"
)

const (
	slabMagic  uint16 = 0x5AB5
	largeMagic uint16 = 0x1A6E
)

// header sits at the start of every mapping the allocator owns. For a slab it
// links the slab into its class chain; for a large object it links the object
// into the allocator's large-object list.
type header struct {
	magic    uint16
	class    uint8
	_        uint8
	occupied uint32  // blocks handed out from this slab
	size     uintptr // exact mapping size
	next     uintptr
	prev     uintptr
}

// hdr returns the header of the mapping at base.
func hdr(base uintptr) *header {
	return (*header)(unsafe.Pointer(base))
}

// slabOf derives the mapping base that owns addr. Every slab is exactly one
// page and page-aligned, and every large-object pointer lies in the first
// page of its mapping, which mapRegion verifies when the mapping is made.
func (a *Allocator) slabOf(addr uintptr) uintptr {
	return addr &^ a.pageMask
}

// mapRegion obtains size bytes from the source and checks that the host
// honored the page-alignment guarantee the slab lookup depends on.
func (a *Allocator) mapRegion(size uintptr) (uintptr, error) {
	if size > math.MaxInt {
		return 0, fmt.Errorf("%w: %d bytes", ErrOutOfMemory, size)
	}
	region, err := a.src.Map(int(size))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(region)))
	if uintptr(len(region)) != size || base&a.pageMask != 0 {
		_ = a.src.Unmap(region)
		return 0, fmt.Errorf("%w: base %#x len %d, page size %d", ErrMisaligned, base, len(region), a.pageSize)
	}
	a.mapped += size
	return base, nil
}

// unmapRegion returns the mapping at base to the source.
func (a *Allocator) unmapRegion(base, size uintptr) error {
	region := unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
	if err := a.src.Unmap(region); err != nil {
		return fmt.Errorf("alloc: unmap %#x: %w", base, err)
	}
	a.mapped -= size
	return nil
}

// growClass maps a new slab for class, links it after the current tail and
// makes its first block the head of the free chain. It is only called when
// every block of the class is in use, so the chain is empty.
func (a *Allocator) growClass(class int) error {
	sc := &a.classes[class]
	if sc.free != 0 {
		panic("alloc: growing a class whose free chain is not empty")
	}

	base, err := a.mapRegion(a.pageSize)
	if err != nil {
		return err
	}

	h := hdr(base)
	h.magic = slabMagic
	h.class = uint8(class)
	h.occupied = 0
	h.size = a.pageSize
	h.next = 0
	h.prev = sc.tail
	if sc.tail != 0 {
		hdr(sc.tail).next = base
	} else {
		sc.head = base
	}
	sc.tail = base
	sc.slabs++

	// Fresh link words are zero, so the rest of the slab is threaded lazily.
	sc.free = sc.firstBlock(base)

	a.log.Debug("slab mapped",
		"class", class,
		"block_size", sc.blockSize,
		"base", fmt.Sprintf("%#x", base),
		"slabs", sc.slabs)
	return nil
}

// releaseSlab drops the free-chain entries that live in the empty slab at
// base, unlinks it from its class and unmaps it.
func (a *Allocator) releaseSlab(sc *sizeClass, base uintptr) error {
	sc.purge(base)

	h := hdr(base)
	if h.prev != 0 {
		hdr(h.prev).next = h.next
	} else {
		sc.head = h.next
	}
	if h.next != 0 {
		hdr(h.next).prev = h.prev
	} else {
		sc.tail = h.prev
	}
	sc.slabs--

	class, size := int(h.class), h.size
	if err := a.unmapRegion(base, size); err != nil {
		return err
	}

	a.log.Debug("slab unmapped",
		"class", class,
		"block_size", sc.blockSize,
		"base", fmt.Sprintf("%#x", base),
		"slabs", sc.slabs)
	return nil
}
