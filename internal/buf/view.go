package buf

import "unsafe"

// Bytes returns an n-byte slice over the memory at p. The caller must own
// those n bytes for as long as the slice is used.
func Bytes(p unsafe.Pointer, n uintptr) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// Copy copies n bytes from src to dst. The regions may overlap.
func Copy(dst, src unsafe.Pointer, n uintptr) {
	copy(Bytes(dst, n), Bytes(src, n))
}

// Clear zeroes n bytes at p.
func Clear(p unsafe.Pointer, n uintptr) {
	clear(Bytes(p, n))
}
