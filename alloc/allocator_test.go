//go:build linux || darwin

package alloc

import (
	"bytes"
	"log/slog"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/vmem"
)

func TestNew_Defaults(t *testing.T) {
	a, err := New(nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, uintptr(vmem.System().PageSize()), a.PageSize())
	s := a.Stats()
	require.Len(t, s.Classes, NumClasses)
	assert.Zero(t, s.MappedBytes)
	assert.Zero(t, s.Slabs())
}

func TestNew_RejectsBadPageSize(t *testing.T) {
	for _, page := range []int{1000, 1024, 3 * 4096} {
		_, err := New(&Options{Source: &fakeSource{pageSize: page}})
		require.ErrorIs(t, err, ErrPageSize, "page size %d", page)
	}
}

func TestMapRegion_RejectsMisalignedMapping(t *testing.T) {
	src := &fakeSource{pageSize: 4096, offset: 8}
	a, err := New(&Options{Source: src})
	require.NoError(t, err)

	_, err = a.Alloc(16)
	require.ErrorIs(t, err, ErrMisaligned)
	assert.Equal(t, 1, src.unmapped, "misaligned mapping must be handed back")
	assert.Zero(t, a.Stats().Slabs())
	assert.Zero(t, a.Stats().MappedBytes)
}

func TestAlloc_ClassSelection(t *testing.T) {
	a, _ := newTestAllocator(t)

	for _, size := range []uintptr{1, 5, 8, 9, 16, 17, 31, 32, 33, 64, 65, 128, 200, 256, 300, 512, 513, 1000 - 8, MaxSmall} {
		p := mustAlloc(t, a, size)
		want, ok := ClassFor(size)
		require.True(t, ok)

		usable, err := a.UsableSize(p)
		require.NoError(t, err)
		require.Equal(t, BlockSize(want), usable, "size %d", size)

		h := hdr(a.slabOf(uintptr(p)))
		require.Equal(t, slabMagic, h.magic)
		require.Equal(t, want, int(h.class), "size %d", size)

		require.NoError(t, a.Free(p))
	}
	checkInvariants(t, a)
	assert.Zero(t, a.Stats().Slabs())
}

func TestAlloc_ZeroSizeIsOneByte(t *testing.T) {
	a, _ := newTestAllocator(t)

	p := mustAlloc(t, a, 0)
	usable, err := a.UsableSize(p)
	require.NoError(t, err)
	assert.Equal(t, uintptr(MinBlockSize), usable)
	require.NoError(t, a.Free(p))
}

func TestAlloc_RoundTripIsDisjoint(t *testing.T) {
	a, _ := newTestAllocator(t)

	type live struct {
		p    unsafe.Pointer
		size uintptr
		fill byte
	}
	var blocks []live
	sizes := []uintptr{1, 8, 12, 16, 24, 40, 64, 100, 128, 250, 400, 512, 700, MaxSmall, MaxSmall + 1, 5000}
	for round := 0; round < 40; round++ {
		for i, size := range sizes {
			b := byte(round*len(sizes) + i + 1)
			p := mustAlloc(t, a, size)
			fill(p, size, b)
			blocks = append(blocks, live{p, size, b})
		}
	}
	checkInvariants(t, a)

	for _, b := range blocks {
		requireFilled(t, b.p, b.size, b.fill)
	}
	for _, b := range blocks {
		require.NoError(t, a.Free(b.p))
	}
	checkInvariants(t, a)
	assert.Zero(t, a.Stats().Live())
	assert.Zero(t, a.Stats().MappedBytes)
}

func TestAlloc_FreshSlabIsZero(t *testing.T) {
	a, _ := newTestAllocator(t)

	for class := 0; class < NumClasses; class++ {
		size := BlockSize(class)
		if size > MaxSmall {
			size = MaxSmall
		}
		n := SlabCapacity(class, a.PageSize())
		ptrs := make([]unsafe.Pointer, 0, n)
		for i := uintptr(0); i < n; i++ {
			p := mustAlloc(t, a, size)
			requireZero(t, p, BlockSize(class))
			ptrs = append(ptrs, p)
		}
		assert.Equal(t, uint64(1), a.Stats().Classes[class].Slabs, "class %d fits in one slab", class)
		for _, p := range ptrs {
			require.NoError(t, a.Free(p))
		}
	}
	checkInvariants(t, a)
}

func TestFree_ReuseKeepsNeighbours(t *testing.T) {
	a, _ := newTestAllocator(t)

	p1 := mustAlloc(t, a, 24)
	p2 := mustAlloc(t, a, 24)
	p3 := mustAlloc(t, a, 24)
	fill(p1, 32, 0x11)
	fill(p2, 32, 0x22)
	fill(p3, 32, 0x33)

	require.NoError(t, a.Free(p2))
	checkInvariants(t, a)

	p4 := mustAlloc(t, a, 30)
	assert.Equal(t, p2, p4, "freed block is reused first")
	requireZero(t, p4, 32)
	fill(p4, 32, 0x44)

	requireFilled(t, p1, 32, 0x11)
	requireFilled(t, p3, 32, 0x33)
	checkInvariants(t, a)

	for _, p := range []unsafe.Pointer{p1, p3, p4} {
		require.NoError(t, a.Free(p))
	}
}

func TestFree_Nil(t *testing.T) {
	a, _ := newTestAllocator(t)
	require.NoError(t, a.Free(nil))
}

func TestFree_BadPointer(t *testing.T) {
	a, _ := newTestAllocator(t)

	small := mustAlloc(t, a, 64)
	large := mustAlloc(t, a, 10_000)

	tests := []struct {
		name string
		ptr  unsafe.Pointer
	}{
		{"inside a block", unsafe.Add(small, 1)},
		{"on a link word", unsafe.Add(small, 64)},
		{"slab header", unsafe.Pointer(a.slabOf(uintptr(small)))},
		{"inside a large object", unsafe.Add(large, 8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, a.Free(tt.ptr), ErrBadPointer)
			_, err := a.UsableSize(tt.ptr)
			require.ErrorIs(t, err, ErrBadPointer)
		})
	}
	checkInvariants(t, a)

	require.NoError(t, a.Free(small))
	require.NoError(t, a.Free(large))
}

func TestCalloc(t *testing.T) {
	a, _ := newTestAllocator(t)

	p, err := a.Calloc(4, 8)
	require.NoError(t, err)
	usable, err := a.UsableSize(p)
	require.NoError(t, err)
	assert.Equal(t, uintptr(32), usable)
	requireZero(t, p, 32)

	// A recycled block must read as zero too.
	keep := mustAlloc(t, a, 32)
	fill(p, 32, 0xEE)
	require.NoError(t, a.Free(p))
	q, err := a.Calloc(2, 16)
	require.NoError(t, err)
	assert.Equal(t, p, q, "the freed block is reused")
	requireZero(t, q, 32)
	requireZero(t, keep, 32)

	_, err = a.Calloc(math.MaxUint/2+1, 2)
	require.ErrorIs(t, err, ErrOutOfMemory)
	_, err = a.Calloc(math.MaxUint, math.MaxUint)
	require.ErrorIs(t, err, ErrOutOfMemory)

	z, err := a.Calloc(0, 100)
	require.NoError(t, err)
	require.NotNil(t, z)

	for _, p := range []unsafe.Pointer{keep, q, z} {
		require.NoError(t, a.Free(p))
	}
}

func TestRealloc_Nil(t *testing.T) {
	a, _ := newTestAllocator(t)

	p, err := a.Realloc(nil, 100)
	require.NoError(t, err)
	usable, err := a.UsableSize(p)
	require.NoError(t, err)
	assert.Equal(t, uintptr(128), usable)
	require.NoError(t, a.Free(p))
}

func TestRealloc_GrowPreservesPrefix(t *testing.T) {
	a, _ := newTestAllocator(t)

	p := mustAlloc(t, a, 16)
	src := buf.Bytes(p, 10)
	copy(src, "0123456789")

	q, err := a.Realloc(p, 64)
	require.NoError(t, err)
	require.NotEqual(t, p, q)
	assert.Equal(t, "0123456789", string(buf.Bytes(q, 10)))
	requireZero(t, unsafe.Add(q, 16), 48)

	s := a.Stats()
	assert.Zero(t, s.Classes[1].InUse, "old block released")
	assert.Equal(t, uint64(1), s.Classes[3].InUse)
	checkInvariants(t, a)

	require.NoError(t, a.Free(q))
}

func TestRealloc_FitsInPlace(t *testing.T) {
	a, _ := newTestAllocator(t)

	p := mustAlloc(t, a, 10)
	q, err := a.Realloc(p, 16)
	require.NoError(t, err)
	assert.Equal(t, p, q, "growing within the block keeps the pointer")

	q, err = a.Realloc(p, 3)
	require.NoError(t, err)
	assert.Equal(t, p, q, "shrinking keeps the pointer")

	large := mustAlloc(t, a, 5000)
	usable, err := a.UsableSize(large)
	require.NoError(t, err)
	q, err = a.Realloc(large, usable)
	require.NoError(t, err)
	assert.Equal(t, large, q)

	require.NoError(t, a.Free(p))
	require.NoError(t, a.Free(large))
}

func TestRealloc_LargeGrowCopiesOldSize(t *testing.T) {
	a, src := newTestAllocator(t)

	p := mustAlloc(t, a, 5000)
	old, err := a.UsableSize(p)
	require.NoError(t, err)
	fill(p, old, 0x5A)

	q, err := a.Realloc(p, old*3)
	require.NoError(t, err)
	require.NotEqual(t, p, q)
	requireFilled(t, q, old, 0x5A)
	requireZero(t, unsafe.Add(q, old), old*2)

	s := a.Stats()
	assert.Equal(t, uint64(1), s.LargeObjects)
	assert.Equal(t, int(s.LargeBytes), src.InUse())

	r, err := a.Realloc(q, 100)
	require.NoError(t, err)
	assert.Equal(t, q, r, "shrinking a large object keeps its mapping")
	require.NoError(t, a.Free(r))
}

func TestRealloc_SmallToLarge(t *testing.T) {
	a, _ := newTestAllocator(t)

	p := mustAlloc(t, a, 700)
	fill(p, 1024, 0x77)
	q, err := a.Realloc(p, 3000)
	require.NoError(t, err)
	requireFilled(t, q, 1024, 0x77)
	requireZero(t, unsafe.Add(q, 1024), 3000-1024)

	s := a.Stats()
	assert.Equal(t, uint64(1), s.LargeObjects)
	assert.Zero(t, s.Slabs())
	require.NoError(t, a.Free(q))
}

func TestRealloc_ZeroFrees(t *testing.T) {
	a, _ := newTestAllocator(t)

	p := mustAlloc(t, a, 48)
	q, err := a.Realloc(p, 0)
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.Zero(t, a.Stats().Classes[3].Slabs, "only block freed, slab reclaimed")

	r := mustAlloc(t, a, 48)
	requireZero(t, r, 64)
	require.NoError(t, a.Free(r))
}

func TestRealloc_FailureKeepsOldBlock(t *testing.T) {
	a, src := newTestAllocator(t)

	p := mustAlloc(t, a, 100)
	fill(p, 100, 0x42)
	src.SetLimit(src.InUse())

	q, err := a.Realloc(p, 64<<10)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Nil(t, q)
	requireFilled(t, p, 100, 0x42)
	checkInvariants(t, a)

	src.SetLimit(testLimit)
	require.NoError(t, a.Free(p))
}

func TestLargeObject_Boundary(t *testing.T) {
	a, src := newTestAllocator(t)
	page := a.PageSize()

	p := mustAlloc(t, a, MaxSmall)
	s := a.Stats()
	assert.Equal(t, uint64(1), s.Classes[NumClasses-1].InUse, "MaxSmall is served by the last class")
	assert.Zero(t, s.LargeObjects)

	q := mustAlloc(t, a, MaxSmall+1)
	s = a.Stats()
	assert.Equal(t, uint64(1), s.LargeObjects, "one byte more gets its own mapping")
	assert.Equal(t, uint64(page), s.LargeBytes)
	usable, err := a.UsableSize(q)
	require.NoError(t, err)
	assert.Equal(t, page-HeaderSize, usable)
	fill(q, usable, 0xAB)

	before := src.InUse()
	require.NoError(t, a.Free(q))
	assert.Equal(t, before-int(page), src.InUse(), "release unmaps the whole mapping")
	assert.Zero(t, a.Stats().LargeObjects)

	require.NoError(t, a.Free(p))
	checkInvariants(t, a)
}

func TestLargeObject_RoundsToPages(t *testing.T) {
	a, _ := newTestAllocator(t)
	page := a.PageSize()

	tests := []struct {
		size  uintptr
		pages uintptr
	}{
		{page - HeaderSize, 1},
		{page - HeaderSize + 1, 2},
		{3 * page, 4},
		{10*page - HeaderSize, 10},
	}
	for _, tt := range tests {
		p := mustAlloc(t, a, tt.size)
		s := a.Stats()
		assert.Equal(t, uint64(tt.pages*page), s.LargeBytes, "size %d", tt.size)
		requireZero(t, p, tt.size)
		fill(p, tt.size, 0xCD)
		require.NoError(t, a.Free(p))
	}
	checkInvariants(t, a)
}

func TestLargeObject_HugeRequestIsOutOfMemory(t *testing.T) {
	a, _ := newTestAllocator(t)

	_, err := a.Alloc(math.MaxUint - 10)
	require.ErrorIs(t, err, ErrOutOfMemory)
	_, err = a.Alloc(math.MaxInt)
	require.ErrorIs(t, err, ErrOutOfMemory)
	_, err = a.Alloc(2 * testLimit)
	require.ErrorIs(t, err, ErrOutOfMemory, "exceeds the test source limit")
	assert.Zero(t, a.Stats().LargeObjects)
}

func TestClass_ReclaimedWhenEmpty(t *testing.T) {
	a, src := newTestAllocator(t)

	p := mustAlloc(t, a, 32)
	fill(p, 32, 0xFF)
	assert.Equal(t, uint64(1), a.Stats().Classes[2].Slabs)
	assert.Equal(t, 1, src.Live())

	require.NoError(t, a.Free(p))
	s := a.Stats()
	assert.Zero(t, s.Classes[2].Slabs)
	assert.Zero(t, s.Classes[2].InUse)
	assert.Zero(t, s.MappedBytes)
	assert.Zero(t, src.Live())

	q := mustAlloc(t, a, 32)
	requireZero(t, q, 32)
	assert.Equal(t, uint64(1), a.Stats().Classes[2].Slabs)
	require.NoError(t, a.Free(q))
}

func TestClass_GrowsPastTwoSlabs(t *testing.T) {
	a, _ := newTestAllocator(t)

	const class = 0
	per := SlabCapacity(class, a.PageSize())
	n := 3*per + 5

	ptrs := make([]unsafe.Pointer, 0, n)
	for i := uintptr(0); i < n; i++ {
		p := mustAlloc(t, a, 8)
		*(*uint64)(p) = uint64(i)
		ptrs = append(ptrs, p)
	}
	s := a.Stats()
	assert.Equal(t, uint64(4), s.Classes[class].Slabs)
	assert.Equal(t, uint64(n), s.Classes[class].InUse)
	assert.Equal(t, uint64(4*per-n), s.Classes[class].Free)
	checkInvariants(t, a)

	for i, p := range ptrs {
		require.Equal(t, uint64(i), *(*uint64)(p))
	}

	// Free in an interleaved order so every slab holds chain entries.
	for i := 0; i < len(ptrs); i += 2 {
		require.NoError(t, a.Free(ptrs[i]))
	}
	checkInvariants(t, a)
	for i := 1; i < len(ptrs); i += 2 {
		require.NoError(t, a.Free(ptrs[i]))
	}
	checkInvariants(t, a)
	assert.Zero(t, a.Stats().MappedBytes)
}

func TestClass_EmptyMiddleSlabLeavesChain(t *testing.T) {
	a, src := newTestAllocator(t)

	const class = 3
	per := SlabCapacity(class, a.PageSize())
	slabs := make([][]unsafe.Pointer, 3)
	for s := range slabs {
		for i := uintptr(0); i < per; i++ {
			slabs[s] = append(slabs[s], mustAlloc(t, a, 64))
		}
	}
	require.Equal(t, uint64(3), a.Stats().Classes[class].Slabs)

	// Thread a few entries from the outer slabs, then empty the middle one.
	require.NoError(t, a.Free(slabs[0][1]))
	require.NoError(t, a.Free(slabs[2][0]))
	for _, p := range slabs[1] {
		require.NoError(t, a.Free(p))
	}
	checkInvariants(t, a)
	assert.Equal(t, uint64(2), a.Stats().Classes[class].Slabs)

	// Without the middle slab the chain holds exactly the two outer entries.
	live := src.Live()
	got := map[unsafe.Pointer]bool{}
	for i := 0; i < 2; i++ {
		got[mustAlloc(t, a, 64)] = true
	}
	assert.True(t, got[slabs[0][1]])
	assert.True(t, got[slabs[2][0]])
	assert.Equal(t, live, src.Live(), "reusing chain entries maps nothing")
	checkInvariants(t, a)

	for p := range got {
		require.NoError(t, a.Free(p))
	}
	for _, s := range [][]unsafe.Pointer{slabs[0], slabs[2]} {
		for _, p := range s {
			if p == slabs[0][1] || p == slabs[2][0] {
				continue
			}
			require.NoError(t, a.Free(p))
		}
	}
	checkInvariants(t, a)
	assert.Zero(t, a.Stats().Slabs())
}

func TestOutOfMemory(t *testing.T) {
	a, src := newTestAllocator(t)
	page := a.PageSize()

	src.SetLimit(0)
	_, err := a.Alloc(8)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.ErrorIs(t, err, vmem.ErrLimit)
	_, err = a.Alloc(MaxSmall + 1)
	require.ErrorIs(t, err, ErrOutOfMemory)
	checkInvariants(t, a)
	assert.Zero(t, a.Stats().Slabs())

	// One page: the first slab fits, the second does not.
	src.SetLimit(int(page))
	per := SlabCapacity(7, page)
	var ptrs []unsafe.Pointer
	for i := uintptr(0); i < per; i++ {
		ptrs = append(ptrs, mustAlloc(t, a, 1000))
	}
	_, err = a.Alloc(1000)
	require.ErrorIs(t, err, ErrOutOfMemory)
	checkInvariants(t, a)
	assert.Equal(t, uint64(per), a.Stats().Classes[7].InUse)

	require.NoError(t, a.Free(ptrs[0]))
	p := mustAlloc(t, a, 1000)
	assert.Equal(t, ptrs[0], p, "a freed block satisfies the next request without mapping")
	ptrs[0] = p

	for _, p := range ptrs {
		require.NoError(t, a.Free(p))
	}
	src.SetLimit(testLimit)
}

func TestClose(t *testing.T) {
	var logs bytes.Buffer
	src := vmem.NewLimited(vmem.System(), testLimit)
	a, err := New(&Options{
		Source: src,
		Logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		mustAlloc(t, a, uintptr(i%900)+1)
	}
	mustAlloc(t, a, 20_000)
	require.Positive(t, src.Live())

	require.NoError(t, a.Close())
	assert.Zero(t, src.InUse())
	assert.Zero(t, src.Live())

	out := logs.String()
	assert.Contains(t, out, "slab mapped")
	assert.Contains(t, out, "large object mapped")
	assert.Contains(t, out, "leaked blocks")
	assert.Contains(t, out, "leaked large object")

	_, err = a.Alloc(8)
	require.ErrorIs(t, err, ErrClosed)
	_, err = a.Realloc(nil, 8)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, a.Free(unsafe.Pointer(&logs)), ErrClosed)
	require.NoError(t, a.Close(), "close is idempotent")
	assert.Zero(t, a.Stats().MappedBytes)
}

func TestStats(t *testing.T) {
	a, _ := newTestAllocator(t)
	page := a.PageSize()

	p1 := mustAlloc(t, a, 8)
	p2 := mustAlloc(t, a, 100)
	p3 := mustAlloc(t, a, 2*page)

	s := a.Stats()
	assert.Equal(t, uint64(page), s.PageSize)
	assert.Equal(t, uint64(3), s.Live())
	assert.Equal(t, uint64(2), s.Slabs())
	assert.Equal(t, uint64(1), s.Classes[0].InUse)
	assert.Equal(t, uint64(SlabCapacity(0, page)-1), s.Classes[0].Free)
	assert.Equal(t, uint64(1), s.Classes[4].InUse)
	assert.Equal(t, uint64(3*page), s.LargeBytes)
	assert.Equal(t, uint64(2*page+3*page), s.MappedBytes)
	assert.Equal(t, uint64(3), s.Allocs)

	for _, p := range []unsafe.Pointer{p1, p2, p3} {
		require.NoError(t, a.Free(p))
	}
	s = a.Stats()
	assert.Equal(t, uint64(3), s.Frees)
	assert.Zero(t, s.Live())
}
