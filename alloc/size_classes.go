package alloc

import (
	"math/bits"
	"unsafe"
)

const (
	// MinShift is log2 of the smallest block size.
	MinShift = 3

	// MaxShift is log2 of the largest block size.
	MaxShift = 10

	// NumClasses is the number of slab size classes.
	NumClasses = MaxShift - MinShift + 1

	// MinBlockSize is the block size of class 0.
	MinBlockSize = 1 << MinShift

	// MaxBlockSize is the block size of the last class.
	MaxBlockSize = 1 << MaxShift

	// HeaderSize is the size of the header at the start of every slab and
	// every large-object mapping.
	HeaderSize = unsafe.Sizeof(header{})

	// MaxSmall is the largest request served from a slab. Anything larger gets
	// its own mapping.
	MaxSmall = MaxBlockSize - HeaderSize

	// wordSize is the size of the free-chain link stored after each block.
	wordSize = unsafe.Sizeof(uintptr(0))
)

// ClassFor returns the smallest class whose block size is at least size.
// ok is false when size exceeds MaxSmall and must be served as a large object.
// A size of zero maps to class 0.
func ClassFor(size uintptr) (class int, ok bool) {
	if size > MaxSmall {
		return 0, false
	}
	if size <= MinBlockSize {
		return 0, true
	}
	return bits.Len(uint(size-1)) - MinShift, true
}

// BlockSize returns the block size of class.
func BlockSize(class int) uintptr {
	return 1 << (class + MinShift)
}

// Stride returns the distance between consecutive blocks of class: the block
// itself plus its free-chain link.
func Stride(class int) uintptr {
	return BlockSize(class) + wordSize
}

// SlabCapacity returns how many blocks of class fit in one slab of pageSize bytes.
func SlabCapacity(class int, pageSize uintptr) uintptr {
	return (pageSize - HeaderSize) / Stride(class)
}

// sizeClass is one entry of the size-class table. All aggregate state for the
// class lives here, never inside one of its slabs.
type sizeClass struct {
	blockSize uintptr
	stride    uintptr // block plus its link word
	perSlab   uintptr
	pageMask  uintptr

	head uintptr // first slab base, 0 when none are mapped
	tail uintptr // last slab base
	free uintptr // head of the free chain, 0 when empty

	inUse uintptr // blocks handed out across all slabs
	slabs uintptr // mapped slabs
}

func (c *sizeClass) init(class int, pageSize uintptr) {
	*c = sizeClass{
		blockSize: BlockSize(class),
		stride:    Stride(class),
		perSlab:   SlabCapacity(class, pageSize),
		pageMask:  pageSize - 1,
	}
}

// capacity returns the number of blocks across all mapped slabs.
func (c *sizeClass) capacity() uintptr {
	return c.slabs * c.perSlab
}

// firstBlock returns the address of block 0 in the slab at base.
func (c *sizeClass) firstBlock(base uintptr) uintptr {
	return base + HeaderSize
}

// owns reports whether addr is the start of a block in the slab at base.
func (c *sizeClass) owns(base, addr uintptr) bool {
	first := c.firstBlock(base)
	if addr < first {
		return false
	}
	off := addr - first
	return off%c.stride == 0 && off/c.stride < c.perSlab
}
