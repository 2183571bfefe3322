//go:build linux || darwin

package alloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/internal/testutil"
	"github.com/joshuapare/slabkit/vmem"
)

const testLimit = testutil.DefaultLimit

var (
	fill          = testutil.Fill
	requireFilled = testutil.RequireFilled
	requireZero   = testutil.RequireZero
)

// newTestAllocator returns an allocator over a Limited system source. The
// cleanup closes it and checks that every mapping went back to the host.
func newTestAllocator(t testing.TB) (*Allocator, *vmem.Limited) {
	t.Helper()
	src := testutil.LimitedSource(t, testLimit)
	a, err := New(&Options{Source: src})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, a.Close())
	})
	return a, src
}

func mustAlloc(t testing.TB, a *Allocator, size uintptr) unsafe.Pointer {
	t.Helper()
	p, err := a.Alloc(size)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

// checkInvariants walks every class and the large-object list and verifies
// the bookkeeping against the headers stored in the mappings.
func checkInvariants(t testing.TB, a *Allocator) {
	t.Helper()

	var mapped uintptr
	for class := range a.classes {
		sc := &a.classes[class]

		slabs := make(map[uintptr]bool)
		var occupied, n uintptr
		var prev uintptr
		for base := sc.head; base != 0; base = hdr(base).next {
			h := hdr(base)
			require.Equal(t, slabMagic, h.magic, "class %d slab %#x magic", class, base)
			require.Equal(t, class, int(h.class), "class %d slab %#x class", class, base)
			require.Equal(t, prev, h.prev, "class %d slab %#x prev link", class, base)
			require.Positive(t, h.occupied, "class %d slab %#x is empty but mapped", class, base)
			require.Zero(t, base&a.pageMask, "class %d slab %#x misaligned", class, base)
			slabs[base] = true
			occupied += uintptr(h.occupied)
			mapped += h.size
			prev = base
			n++
		}
		require.Equal(t, prev, sc.tail, "class %d tail", class)
		require.Equal(t, sc.slabs, n, "class %d slab count", class)
		require.Equal(t, sc.inUse, occupied, "class %d in-use vs occupied", class)

		var chain uintptr
		for cur := sc.free; cur != 0; cur = sc.successor(cur) {
			base := cur &^ a.pageMask
			require.True(t, slabs[base], "class %d chain entry %#x outside mapped slabs", class, cur)
			require.True(t, sc.owns(base, cur), "class %d chain entry %#x not on a block boundary", class, cur)
			chain++
			require.LessOrEqual(t, chain, sc.capacity(), "class %d chain longer than capacity", class)
		}
		require.Equal(t, sc.capacity()-sc.inUse, chain, "class %d free chain length", class)
	}

	var count, bytes uintptr
	var prev uintptr
	for base := a.large; base != 0; base = hdr(base).next {
		h := hdr(base)
		require.Equal(t, largeMagic, h.magic)
		require.Equal(t, prev, h.prev)
		require.Zero(t, h.size%a.pageSize)
		count++
		bytes += h.size
		prev = base
	}
	require.Equal(t, a.largeCount, count, "large object count")
	require.Equal(t, a.largeBytes, bytes, "large object bytes")
	require.Equal(t, a.mapped, mapped+bytes, "mapped bytes")
}

// fakeSource is a Source with a configurable page size that hands out Go
// memory. Only used where the allocator never dereferences the region.
type fakeSource struct {
	pageSize int
	offset   int
	unmapped int
}

func (f *fakeSource) Map(size int) ([]byte, error) {
	raw := make([]byte, size+2*f.pageSize)
	start := uintptr(unsafe.Pointer(&raw[0]))
	aligned, _ := buf.AlignUp(start, uintptr(f.pageSize))
	off := int(aligned-start) + f.offset
	return raw[off : off+size : off+size], nil
}

func (f *fakeSource) Unmap(region []byte) error {
	f.unmapped++
	return nil
}

func (f *fakeSource) PageSize() int { return f.pageSize }
