package buddy

import (
	"testing"
	"unsafe"

	"github.com/maxmitchelson/lumos/kernel/addr"
	"github.com/maxmitchelson/lumos/kernel/boot"
)

// newTestAllocator backs an Allocator with a real Go byte slice standing in
// for physical memory. HHDM offset 0 makes PhysicalAddress.ToVirtual the
// identity function, so the allocator's overlay slices point directly at
// physMem's backing array.
//
// Tests in this package never exercise a panicking path (OutOfMemoryAtOrder,
// FreeOfUnallocated, AllocationTooLarge): kernel.Panic halts through
// cpuHaltFn, an unexported var in the kernel package that only
// kernel/panic_test.go is positioned to mock, so a hosted test here has no
// way to observe the failure side of those calls and recover from it.
func newTestAllocator(t *testing.T, pages uint64) (*Allocator, []byte) {
	t.Helper()

	defer addr.SetHHDMOffset(addr.HHDMOffset())
	addr.SetHHDMOffset(0)

	physMem := make([]byte, pages*uint64(pageSize))
	base := uint64(uintptr(unsafe.Pointer(&physMem[0])))

	entries := []boot.MemoryMapEntry{
		{Base: base, Length: pages * pageSize, Kind: boot.Usable},
	}

	var a Allocator
	if err := a.Init(entries); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return &a, physMem
}

func TestInitIsIdempotent(t *testing.T) {
	a, _ := newTestAllocator(t, 256)

	firstOrder := a.maxOrder
	if err := a.Init(nil); err != nil {
		t.Fatalf("second Init call returned an error: %v", err)
	}
	if a.maxOrder != firstOrder {
		t.Fatal("expected second Init call to be a no-op")
	}
}

func TestInitRejectsEmptyMap(t *testing.T) {
	var a Allocator
	if err := a.Init(nil); err == nil {
		t.Fatal("expected Init to fail on a memory map with no usable entries")
	}
}

// TestCoverage checks that every page-sized block in the managed region can
// be allocated exactly once.
func TestCoverage(t *testing.T) {
	const pages = 64
	a, _ := newTestAllocator(t, pages)

	seen := make(map[addr.PhysicalAddress]bool)
	for i := 0; i < int(uint64(1)<<a.maxOrder); i++ {
		p := a.AllocateExact(pageSize)
		if seen[p] {
			t.Fatalf("address 0x%x returned twice", uint64(p))
		}
		seen[p] = true
	}
}

// TestFillAndDrain allocates every page, frees them all, then verifies the
// allocator can satisfy the same total count again, which only holds if
// every Free() correctly coalesced its block back into the tree.
func TestFillAndDrain(t *testing.T) {
	const pages = 32
	a, _ := newTestAllocator(t, pages)

	total := int(uint64(1) << a.maxOrder)
	addrs := make([]addr.PhysicalAddress, 0, total)
	for i := 0; i < total; i++ {
		addrs = append(addrs, a.AllocateExact(pageSize))
	}

	for _, p := range addrs {
		a.Free(p)
	}

	if a.stateTree[1] != Free {
		t.Fatalf("expected root to be Free after draining every allocation; got %s", a.stateTree[1])
	}

	for i := 0; i < total; i++ {
		a.AllocateExact(pageSize)
	}
}

// TestWriteThrough allocates a block and checks that writes through its HHDM
// mapping land in the backing physMem slice at the expected offset.
func TestWriteThrough(t *testing.T) {
	a, physMem := newTestAllocator(t, 16)

	p := a.AllocateExact(pageSize)

	view := overlayByteSlice(p, int(pageSize))
	for i := range view {
		view[i] = 0xAB
	}

	offset := uint64(p) - uint64(uintptr(unsafe.Pointer(&physMem[0])))
	for i := uint64(0); i < pageSize; i++ {
		if physMem[offset+i] != 0xAB {
			t.Fatalf("byte %d was not written through to physMem", offset+i)
		}
	}
}

// TestSameAddressReallocation frees a block and immediately re-allocates the
// same size, which the forward-scanning marker hint guarantees will return
// the same address since nothing else has been allocated in between.
func TestSameAddressReallocation(t *testing.T) {
	a, _ := newTestAllocator(t, 8)

	p1 := a.AllocateExact(pageSize)
	a.Free(p1)

	p2 := a.AllocateExact(pageSize)

	if p1 != p2 {
		t.Fatalf("expected re-allocation to reuse address 0x%x; got 0x%x", uint64(p1), uint64(p2))
	}
}

// TestBuddyCoalescing allocates two buddy pages, frees both and checks that
// their shared parent becomes Free (not merely Split), confirming the
// ancestor rule coalesced them rather than leaving two adjacent Allocated
// leaves with a stale Split ancestor.
func TestBuddyCoalescing(t *testing.T) {
	a, _ := newTestAllocator(t, 4)

	p1 := a.AllocateExact(pageSize)
	p2 := a.AllocateExact(pageSize)

	leavesStart := uint64(1) << a.maxOrder
	i1 := leavesStart + (uint64(p1)-uint64(a.regionStart))/pageSize
	parent := i1 / 2

	a.Free(p1)
	if a.stateTree[parent] != Split {
		t.Fatalf("expected parent to be Split with one buddy still allocated; got %s", a.stateTree[parent])
	}

	a.Free(p2)
	if a.stateTree[parent] != Free {
		t.Fatalf("expected parent to coalesce to Free once both buddies are freed; got %s", a.stateTree[parent])
	}
}

// TestAncestorInvariant walks the whole tree after a handful of allocations
// and checks that every internal node's state is consistent with combine()
// applied to its two children.
func TestAncestorInvariant(t *testing.T) {
	a, _ := newTestAllocator(t, 32)

	for i := 0; i < 5; i++ {
		a.AllocateExact(pageSize)
	}

	leavesStart := uint64(1) << a.maxOrder
	for i := leavesStart - 1; i >= 1; i-- {
		want := combine(a.stateTree[2*i], a.stateTree[2*i+1])
		if a.stateTree[i] != want {
			t.Errorf("node %d: expected %s from children (%s, %s); got %s",
				i, want, a.stateTree[2*i], a.stateTree[2*i+1], a.stateTree[i])
		}
		if i == 1 {
			break
		}
	}
}

// TestMarkerMonotonicity checks that an allocation advances the per-depth
// marker past the index it just handed out, and that freeing that block
// lowers the marker back down.
func TestMarkerMonotonicity(t *testing.T) {
	a, _ := newTestAllocator(t, 16)

	depth := a.maxOrder
	before := a.markers[depth]

	p := a.AllocateExact(pageSize)
	if a.markers[depth] <= before {
		t.Fatalf("expected marker to advance past %d; got %d", before, a.markers[depth])
	}

	afterAlloc := a.markers[depth]
	a.Free(p)
	if a.markers[depth] >= afterAlloc {
		t.Fatalf("expected marker to drop back down after Free; got %d (was %d)", a.markers[depth], afterAlloc)
	}
}

// TestAddressRoundTrip checks that allocating at every order and
// reconstructing the index from the returned address (as Free does) always
// recovers a node actually marked Allocated.
func TestAddressRoundTrip(t *testing.T) {
	a, _ := newTestAllocator(t, 64)

	for depth := a.maxOrder; ; depth-- {
		p := a.AllocateExact(pageSize << (a.maxOrder - depth))

		i := a.lookupAllocatedIndexLocked(p)
		if a.stateTree[i] != Allocated {
			t.Fatalf("depth %d: round-tripped index %d is not Allocated", depth, i)
		}
		a.Free(p)

		if depth == 0 {
			break
		}
	}
}

// TestReallocateGrowPreservesContents allocates a small block, fills it,
// grows it, and checks the leading bytes survived the move.
func TestReallocateGrowPreservesContents(t *testing.T) {
	a, _ := newTestAllocator(t, 16)

	p := a.AllocateExact(pageSize)
	view := overlayByteSlice(p, int(pageSize))
	for i := range view {
		view[i] = byte(i)
	}

	grown := a.Reallocate(p, pageSize*2)
	grownView := overlayByteSlice(grown, int(pageSize))
	for i := range grownView {
		if grownView[i] != byte(i) {
			t.Fatalf("byte %d not preserved across Reallocate: expected %d, got %d", i, byte(i), grownView[i])
		}
	}
}

// TestScenarioA exercises many small same-size allocations followed by
// freeing every other one and re-allocating, checking that freed slots are
// reused and no address is handed out twice.
func TestScenarioA(t *testing.T) {
	const pages = 16
	a, _ := newTestAllocator(t, pages)

	total := int(uint64(1) << a.maxOrder)
	addrs := make([]addr.PhysicalAddress, total)
	for i := 0; i < total; i++ {
		addrs[i] = a.AllocateExact(pageSize)
	}

	for i := 0; i < total; i += 2 {
		a.Free(addrs[i])
	}

	for i := 0; i < total; i += 2 {
		addrs[i] = a.AllocateExact(pageSize)
	}

	seen := make(map[addr.PhysicalAddress]bool)
	for _, p := range addrs {
		if seen[p] {
			t.Fatalf("address 0x%x allocated twice in scenario A", uint64(p))
		}
		seen[p] = true
	}
}

// TestScenarioB allocates one block spanning the whole region, frees it, and
// confirms the freed space can then be split into two distinct half-sized
// blocks.
func TestScenarioB(t *testing.T) {
	a, _ := newTestAllocator(t, 8)

	whole := pageSize << a.maxOrder
	half := whole / 2

	p := a.AllocateExact(whole)
	a.Free(p)

	h1 := a.AllocateExact(half)
	h2 := a.AllocateExact(half)
	if h1 == h2 {
		t.Fatal("expected the two half-sized blocks to be distinct")
	}
}
