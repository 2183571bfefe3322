/*
Package heap exposes a process-wide slab allocator with the conventional heap
entry points: Malloc, Calloc, Realloc and Free.

The default instance is created lazily by the first call into the package, or
explicitly with Init when the caller wants to choose the virtual-memory source
or logger. Teardown unmaps everything and reports blocks that were never
freed. Every entry point is serialized behind one mutex, so the package is
safe for concurrent use.

Failures follow the C allocator contract: Malloc, Calloc and Realloc return
nil when memory is exhausted or a size overflows, and Free ignores nil.

# Basic Usage

	p := heap.Malloc(64)
	if p == nil {
	    return errOutOfMemory
	}
	defer heap.Free(p)

	b := heap.Bytes(p, 64)
	copy(b, "hello")

Typed helpers:

	type point struct{ X, Y float64 }

	pts := heap.MallocType[point](100)
	defer heap.FreeType(pts)

Memory returned by this package is invisible to the garbage collector. Never
store pointers to Go-managed memory in it.
*/
package heap
