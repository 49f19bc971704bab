package buddy

import (
	"math/bits"
	"reflect"
	"unsafe"

	"github.com/maxmitchelson/lumos/kernel"
	"github.com/maxmitchelson/lumos/kernel/addr"
	"github.com/maxmitchelson/lumos/kernel/boot"
	"github.com/maxmitchelson/lumos/kernel/kfmt/early"
	"github.com/maxmitchelson/lumos/kernel/mem"
	"github.com/maxmitchelson/lumos/kernel/sync"
)

const pageSize = uint64(mem.PageSize)

// Allocator is a self-embedded binary-buddy physical frame allocator. Its
// bookkeeping (stateTree and markers) lives inside the physical memory it
// manages rather than in a heap allocation, since at the point it is
// constructed there is no heap yet.
//
// Allocator is not internally lock-free with respect to its own state: the
// exported methods acquire mu before touching stateTree or markers. The
// unexported *Locked helpers assume the caller already holds mu.
type Allocator struct {
	mu sync.Spinlock

	initialized bool

	// regionStart/regionEnd bound the span of physical memory this
	// allocator's tree actually covers. regionStart is not necessarily the
	// start of the first Usable memory-map entry: metadata placement can
	// push it forward past the entry that hosts the state tree and marker
	// array (see Init).
	regionStart addr.PhysicalAddress
	regionEnd   addr.PhysicalAddress

	// maxOrder (M) is the tree depth of the leaves: the tree has 2^(M+1)
	// cells and manages up to 2^M pages.
	maxOrder uint8

	stateTree []BlockState
	markers   []uint64
}

// Global is the process-wide allocator handle. It is lazily initialized by
// the first call to Init and is otherwise a zero-value Allocator, matching
// the "process-wide lazily-initialized handle" shape the rest of the kernel
// reaches through.
var Global Allocator

// Init initializes the global allocator from a bootloader-reported memory
// map. It is idempotent: a second call is a no-op and returns nil.
func Init(entries []boot.MemoryMapEntry) *kernel.Error {
	return Global.Init(entries)
}

// AllocateExact allocates a block of exactly size bytes, which must be a
// power-of-two multiple of the page size.
func AllocateExact(size uint64) addr.PhysicalAddress {
	return Global.AllocateExact(size)
}

// Allocate allocates a block of at least size bytes, rounding up to the
// smallest block order that fits.
func Allocate(size uint64) addr.PhysicalAddress {
	return Global.Allocate(size)
}

// Free releases a block previously returned by Allocate or AllocateExact.
func Free(p addr.PhysicalAddress) {
	Global.Free(p)
}

// Reallocate resizes a previously allocated block, preserving the
// min(oldSize, newSize) leading bytes of its contents.
func Reallocate(p addr.PhysicalAddress, newSize uint64) addr.PhysicalAddress {
	return Global.Reallocate(p, newSize)
}

// Init constructs the allocator's state tree and marker array inside the
// physical memory the map describes, then reserves everything outside the
// Usable span. It is idempotent.
func (a *Allocator) Init(entries []boot.MemoryMapEntry) *kernel.Error {
	a.mu.Acquire()
	defer a.mu.Release()

	if a.initialized {
		return nil
	}

	regionStart, regionEnd, ok := boot.UsableSpan(entries)
	if !ok {
		return errNoUsableMemory
	}

	m := computeMaxOrder(regionEnd - regionStart)
	treeSize := uint64(2) << m
	markersSize := (uint64(m) + 1) * 8

	metaBase, ok := findMetadataHome(entries, markersSize+treeSize)
	if !ok {
		return errNotEnoughAvailableMemory
	}

	metaEnd := metaBase + markersSize + treeSize
	a.regionStart = addr.PhysicalAddress(alignUp(metaEnd, pageSize))
	a.regionEnd = addr.PhysicalAddress(regionEnd)
	a.maxOrder = m

	a.markers = overlayUint64Slice(addr.PhysicalAddress(metaBase), int(m)+1)
	a.stateTree = overlayBlockStateSlice(addr.PhysicalAddress(metaBase+markersSize), int(treeSize))

	// Free == 0, so a bulk memset(0) fills every node Free in one pass;
	// BlockState reserves a non-zero discriminant (Reserved) precisely so
	// this can never silently produce a Reserved cell.
	stateTreeBase := addr.PhysicalAddress(metaBase + markersSize).ToVirtual().Pointer()
	mem.Memset(stateTreeBase, byte(Free), mem.Size(treeSize))
	a.stateTree[0] = Reserved
	for k := uint8(0); k <= m; k++ {
		a.markers[k] = uint64(1) << k
	}

	a.reserveComplementOfUsable(entries)
	a.recomputeAllAncestors()

	a.initialized = true

	early.Printf("buddy: managing %d pages (order %d) starting at 0x%x\n",
		uint64(1)<<m, uint32(m), uint64(a.regionStart))
	return nil
}

// computeMaxOrder returns the smallest M such that 2^M pages cover spanBytes.
func computeMaxOrder(spanBytes uint64) uint8 {
	var m uint8
	for (pageSize << m) < spanBytes {
		m++
	}
	return m
}

// findMetadataHome returns the base of the first Usable entry with at least
// needed bytes of room, in memory-map order.
func findMetadataHome(entries []boot.MemoryMapEntry, needed uint64) (uint64, bool) {
	var (
		base  uint64
		found bool
	)
	boot.VisitUsableEntries(entries, func(entry *boot.MemoryMapEntry) bool {
		if entry.Length >= needed {
			base = entry.Base
			found = true
			return false
		}
		return true
	})
	return base, found
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// overlayUint64Slice returns a []uint64 view over length*8 bytes of physical
// memory starting at p, reached through its HHDM virtual mapping. This is the
// same reflect.SliceHeader-over-unsafe.Pointer technique used by mem.Memset
// to operate on memory the Go allocator never touched.
func overlayUint64Slice(p addr.PhysicalAddress, length int) []uint64 {
	var s []uint64
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&s))
	hdr.Data = p.ToVirtual().Pointer()
	hdr.Len = length
	hdr.Cap = length
	return s
}

// overlayBlockStateSlice is overlayUint64Slice's counterpart for the
// single-byte-wide state tree.
func overlayBlockStateSlice(p addr.PhysicalAddress, length int) []BlockState {
	var s []BlockState
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&s))
	hdr.Data = p.ToVirtual().Pointer()
	hdr.Len = length
	hdr.Cap = length
	return s
}

// reserveComplementOfUsable marks every byte in [regionStart, regionEnd) that
// does not fall inside a Usable memory-map entry as Reserved: the gaps
// between consecutive Usable entries, and everything past the last Usable
// entry's end. The Usable entry that hosts the allocator's own metadata is
// clipped at regionStart by the same pass, so the metadata bytes themselves
// are simply outside the tracked range rather than explicit Reserved leaves.
func (a *Allocator) reserveComplementOfUsable(entries []boot.MemoryMapEntry) {
	prevEnd := uint64(a.regionStart)

	boot.VisitUsableEntries(entries, func(entry *boot.MemoryMapEntry) bool {
		start, end := entry.Base, entry.End()
		if end <= uint64(a.regionStart) || start >= uint64(a.regionEnd) {
			return true
		}
		if start < uint64(a.regionStart) {
			start = uint64(a.regionStart)
		}
		if end > uint64(a.regionEnd) {
			end = uint64(a.regionEnd)
		}
		if start > prevEnd {
			a.reserveRange(prevEnd, start)
		}
		if end > prevEnd {
			prevEnd = end
		}
		return true
	})

	if prevEnd < uint64(a.regionEnd) {
		a.reserveRange(prevEnd, uint64(a.regionEnd))
	}
}

// reserveRange marks every leaf whose page overlaps [startByte, endByte) as
// Reserved. It does not propagate ancestors; callers batch many reserveRange
// calls and finish with a single recomputeAllAncestors pass.
func (a *Allocator) reserveRange(startByte, endByte uint64) {
	if endByte <= uint64(a.regionStart) || startByte >= uint64(a.regionEnd) {
		return
	}
	if startByte < uint64(a.regionStart) {
		startByte = uint64(a.regionStart)
	}
	if endByte > uint64(a.regionEnd) {
		endByte = uint64(a.regionEnd)
	}

	first := (startByte - uint64(a.regionStart)) / pageSize
	last := (endByte - uint64(a.regionStart) + pageSize - 1) / pageSize

	leavesStart := uint64(1) << a.maxOrder
	for f := first; f < last; f++ {
		a.stateTree[leavesStart+f] = Reserved
	}
}

// recomputeAllAncestors rebuilds every internal node bottom-up from its
// children. It is O(2^(M+1)) and is only used from Init, where many leaves
// are set directly without incremental propagation.
func (a *Allocator) recomputeAllAncestors() {
	leavesStart := uint64(1) << a.maxOrder
	for i := leavesStart - 1; i >= 1; i-- {
		a.stateTree[i] = combine(a.stateTree[2*i], a.stateTree[2*i+1])
		if i == 1 {
			break
		}
	}
}

// depthOf returns floor(log2(i)), the tree depth of node i: 0 at the root,
// maxOrder at the leaves. This is the "order" parameter threaded through
// AllocateExact/allocateAtDepthLocked/markers and free's marker bookkeeping.
func depthOf(i uint64) uint8 {
	return uint8(bits.Len64(i) - 1)
}

// markSubtree sets node i and every descendant of it that is not Reserved to
// state. Reserved cells are sticky: they only change at construction time.
func (a *Allocator) markSubtree(i uint64, state BlockState) {
	if a.stateTree[i] != Reserved {
		a.stateTree[i] = state
	}
	if i < uint64(1)<<a.maxOrder {
		a.markSubtree(2*i, state)
		a.markSubtree(2*i+1, state)
	}
}

// propagateAncestors recomputes every ancestor of i, from its parent up to
// the root, using the combine rule.
func (a *Allocator) propagateAncestors(i uint64) {
	for i > 1 {
		i >>= 1
		a.stateTree[i] = combine(a.stateTree[2*i], a.stateTree[2*i+1])
	}
}
