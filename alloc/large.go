package alloc

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/slabkit/internal/buf"
)

// allocLarge serves size bytes from a dedicated mapping of size+HeaderSize
// rounded up to the page size.
func (a *Allocator) allocLarge(size uintptr) (unsafe.Pointer, error) {
	total, ok := buf.AddOverflowSafe(size, HeaderSize)
	if ok {
		total, ok = buf.AlignUp(total, a.pageSize)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes", ErrOutOfMemory, size)
	}

	base, err := a.mapRegion(total)
	if err != nil {
		return nil, err
	}

	h := hdr(base)
	h.magic = largeMagic
	h.size = total
	h.prev = 0
	h.next = a.large
	if a.large != 0 {
		hdr(a.large).prev = base
	}
	a.large = base
	a.largeCount++
	a.largeBytes += total

	a.log.Debug("large object mapped",
		"size", size,
		"mapped", total,
		"base", fmt.Sprintf("%#x", base))
	return unsafe.Pointer(base + HeaderSize), nil
}

// releaseLarge unlinks the large object at base and unmaps exactly its mapping.
func (a *Allocator) releaseLarge(base uintptr) error {
	h := hdr(base)
	if h.prev != 0 {
		hdr(h.prev).next = h.next
	} else {
		a.large = h.next
	}
	if h.next != 0 {
		hdr(h.next).prev = h.prev
	}

	size := h.size
	a.largeCount--
	a.largeBytes -= size
	if err := a.unmapRegion(base, size); err != nil {
		return err
	}

	a.log.Debug("large object unmapped",
		"mapped", size,
		"base", fmt.Sprintf("%#x", base))
	return nil
}
