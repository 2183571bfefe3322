// Package buf contains overflow-checked size arithmetic and raw memory views
// shared by the allocator packages.
package buf

import "math/bits"

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow uintptr.
func AddOverflowSafe(a, b uintptr) (uintptr, bool) {
	sum, carry := bits.Add(uint(a), uint(b), 0)
	if carry != 0 {
		return 0, false
	}
	return uintptr(sum), true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow uintptr.
// This is essential for count * elementSize calculations in array allocation.
func MulOverflowSafe(a, b uintptr) (uintptr, bool) {
	hi, lo := bits.Mul(uint(a), uint(b))
	if hi != 0 {
		return 0, false
	}
	return uintptr(lo), true
}

// AlignUp rounds n up to the next multiple of align, which must be a power of two.
// ok is false when the rounded value does not fit in a uintptr.
func AlignUp(n, align uintptr) (uintptr, bool) {
	sum, ok := AddOverflowSafe(n, align-1)
	if !ok {
		return 0, false
	}
	return sum &^ (align - 1), true
}

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}
