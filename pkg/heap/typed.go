package heap

import "unsafe"

// SizeOf returns the size of T in bytes.
func SizeOf[T any]() uintptr {
	var t T
	return unsafe.Sizeof(t)
}

// MallocType returns a zeroed array of n values of type T, or nil. T must not
// contain Go pointers: the garbage collector does not scan this memory.
func MallocType[T any](n uintptr) *T {
	return (*T)(Calloc(n, SizeOf[T]()))
}

// FreeType frees an array returned by MallocType.
func FreeType[T any](p *T) {
	Free(unsafe.Pointer(p))
}

// Slice returns the n-element array at p as a slice.
func Slice[T any](p *T, n int) []T {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice(p, n)
}
