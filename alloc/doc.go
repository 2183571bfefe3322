// Package alloc implements a slab/size-class memory allocator that sources its
// memory directly from anonymous virtual-memory mappings.
//
// # Overview
//
// Memory handed out by this package lives outside the Go heap. It is never
// scanned or moved by the garbage collector and must be returned explicitly
// with Free. The allocator honors the conventional heap contract: a returned
// block is at least as large as requested, live blocks never alias, and using
// a block after it has been freed is undefined.
//
// # Allocator Interface
//
//   - Alloc(size): allocate a block of at least size bytes
//   - Calloc(count, size): allocate count*size bytes, failing on overflow
//   - Realloc(ptr, size): grow or shrink a block, moving it when needed
//   - Free(ptr): return a block
//
// Every block handed out reads as zero. Fresh mappings are zero-filled by the
// host, and blocks are cleared when they are threaded back onto a free list.
//
// # Size Classes
//
// Requests up to MaxSmall bytes are served from one of 8 size classes:
//
//	Class 0:    8 bytes
//	Class 1:   16 bytes
//	Class 2:   32 bytes
//	Class 3:   64 bytes
//	Class 4:  128 bytes
//	Class 5:  256 bytes
//	Class 6:  512 bytes
//	Class 7: 1024 bytes
//
// Each class owns a doubly linked chain of slabs. A slab is exactly one page,
// page-aligned, and starts with a small header:
//
//	+--------+----------+-----+----------+-----+----------+-----+
//	| header | block 0  | lnk | block 1  | lnk |   ...    |     |
//	+--------+----------+-----+----------+-----+----------+-----+
//
// The pointer-sized link word after each block threads free blocks into a
// per-class chain. Pushing and popping the chain is O(1). Because slabs are
// page-aligned, the owning slab of any block is found by masking its address.
//
// A slab is mapped when its class has no room left and unmapped the moment
// its last block is freed. Per-class counters live in the Allocator, never in
// a slab, so an empty slab is never pinned.
//
// # Large Objects
//
// Requests above MaxSmall get a dedicated mapping rounded up to the page size.
// The mapping's header records its exact size, and Free unmaps it directly.
//
// # Thread Safety
//
// Allocator instances are not thread-safe. Callers must synchronize access
// externally, use Locked, or give each goroutine its own Allocator.
//
// # Related Packages
//
//   - github.com/joshuapare/slabkit/vmem: the virtual-memory sources
//   - github.com/joshuapare/slabkit/pkg/heap: a process-wide default instance
package alloc
