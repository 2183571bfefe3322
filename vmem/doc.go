// Package vmem supplies the virtual-memory regions the slab allocator is
// built on.
//
// A Source hands out anonymous, zero-filled, page-aligned regions whose size
// is a multiple of the host page size, and takes them back again. The only
// failure a Source reports while mapping is that the host refused the
// request, which callers treat as out-of-memory.
//
// # Implementations
//
//   - System(): the host facility. mmap(MAP_PRIVATE|MAP_ANON) on unix-like
//     systems, VirtualAlloc(MEM_COMMIT|MEM_RESERVE) on Windows.
//   - Limited: a decorator that refuses to hand out more than a fixed number
//     of bytes. Useful to bound an allocator and to provoke out-of-memory
//     in tests.
//
// # Thread Safety
//
// System() is safe for concurrent use. Limited is not; it shares the
// single-threaded contract of the allocator that owns it.
package vmem
