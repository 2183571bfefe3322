package testutil

import (
	"testing"
	"unsafe"

	"github.com/joshuapare/slabkit/internal/buf"
)

// Fill sets the n bytes at p to b.
func Fill(p unsafe.Pointer, n uintptr, b byte) {
	data := buf.Bytes(p, n)
	for i := range data {
		data[i] = b
	}
}

// RequireFilled fails the test unless every one of the n bytes at p is b.
func RequireFilled(t testing.TB, p unsafe.Pointer, n uintptr, b byte) {
	t.Helper()
	for i, got := range buf.Bytes(p, n) {
		if got != b {
			t.Fatalf("byte %d at %p: got 0x%02x want 0x%02x", i, p, got, b)
		}
	}
}

// RequireZero fails the test unless the n bytes at p are all zero.
func RequireZero(t testing.TB, p unsafe.Pointer, n uintptr) {
	t.Helper()
	RequireFilled(t, p, n, 0)
}
