package alloc

import (
	"unsafe"

	"github.com/joshuapare/slabkit/internal/buf"
)

// chainEnd marks the last entry of a free chain. A zero link word means the
// block has never been threaded and its successor is the next block of the
// same slab.
const chainEnd uintptr = 1

// link returns the free-chain word stored right after the block at blk.
func (c *sizeClass) link(blk uintptr) *uintptr {
	return (*uintptr)(unsafe.Pointer(blk + c.blockSize))
}

// successor returns the chain entry after blk, or 0 at the end of the chain.
func (c *sizeClass) successor(blk uintptr) uintptr {
	switch next := *c.link(blk); next {
	case 0:
		base := blk &^ c.pageMask
		succ := blk + c.stride
		if succ >= c.firstBlock(base)+c.perSlab*c.stride {
			return 0
		}
		return succ
	case chainEnd:
		return 0
	default:
		return next
	}
}

// pop removes and returns the head of the free chain, or 0 if it is empty.
func (c *sizeClass) pop() uintptr {
	blk := c.free
	if blk == 0 {
		return 0
	}
	c.free = c.successor(blk)
	return blk
}

// push clears the block at blk and makes it the new head of the free chain.
func (c *sizeClass) push(blk uintptr) {
	buf.Clear(unsafe.Pointer(blk), c.blockSize)
	next := c.free
	if next == 0 {
		next = chainEnd
	}
	*c.link(blk) = next
	c.free = blk
}

// purge unlinks every chain entry that lives in the slab at base.
func (c *sizeClass) purge(base uintptr) {
	var prev uintptr
	for cur := c.free; cur != 0; {
		next := c.successor(cur)
		if cur&^c.pageMask != base {
			prev = cur
			cur = next
			continue
		}
		switch {
		case prev == 0:
			c.free = next
		case next == 0:
			*c.link(prev) = chainEnd
		default:
			*c.link(prev) = next
		}
		cur = next
	}
}

// chainLen walks the free chain and returns its length.
func (c *sizeClass) chainLen() uintptr {
	var n uintptr
	for cur := c.free; cur != 0; cur = c.successor(cur) {
		n++
	}
	return n
}
