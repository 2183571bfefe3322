package alloc

import "errors"

var (
	// ErrOutOfMemory indicates that the virtual-memory source refused a mapping
	// or that the requested size cannot be represented.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrBadPointer indicates a pointer that was not handed out by this allocator.
	ErrBadPointer = errors.New("alloc: pointer not owned by allocator")

	// ErrClosed indicates use of an allocator after Close.
	ErrClosed = errors.New("alloc: allocator closed")

	// ErrMisaligned indicates that the source returned a region that is not page-aligned.
	ErrMisaligned = errors.New("alloc: mapping not page-aligned")

	// ErrPageSize indicates a page size that cannot hold a slab of the largest class.
	ErrPageSize = errors.New("alloc: unsupported page size")
)
