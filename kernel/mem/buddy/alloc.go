package buddy

import (
	"math/bits"
	"reflect"
	"unsafe"

	"github.com/maxmitchelson/lumos/kernel"
	"github.com/maxmitchelson/lumos/kernel/addr"
)

// AllocateExact allocates a block of exactly size bytes. size must be a
// power-of-two multiple of the page size; this is a caller-enforced
// precondition, not a recoverable error, so a violation panics, as does
// exhaustion at the resulting order (no partial-failure contract: see the
// error taxonomy's OutOfMemoryAtOrder/AllocationTooLarge entries).
func (a *Allocator) AllocateExact(size uint64) addr.PhysicalAddress {
	if !isExactSize(size) {
		kernel.Panic(errNotExactSize)
	}

	doublings := log2Exact(size / pageSize)

	a.mu.Acquire()
	defer a.mu.Release()

	if doublings > a.maxOrder {
		kernel.Panic(errAllocationTooLarge)
	}

	depth := a.maxOrder - doublings
	found := a.allocateAtDepthLocked(depth)
	return a.addressForIndexLocked(found, depth)
}

// Allocate allocates a block of at least size bytes, rounding up to the
// smallest order that satisfies the request. Like AllocateExact, failure
// panics rather than returning an error.
func (a *Allocator) Allocate(size uint64) addr.PhysicalAddress {
	if size == 0 {
		size = pageSize
	}
	if isExactSize(size) {
		return a.AllocateExact(size)
	}

	doublings := requiredDoublings(size)

	a.mu.Acquire()
	defer a.mu.Release()

	if doublings > a.maxOrder {
		kernel.Panic(errAllocationTooLarge)
	}

	depth := a.maxOrder - doublings
	found := a.allocateAtDepthLocked(depth)
	return a.addressForIndexLocked(found, depth)
}

// Free releases a block previously returned by Allocate or AllocateExact.
// Passing an address that is not the start of a currently allocated block
// panics.
func (a *Allocator) Free(p addr.PhysicalAddress) {
	a.mu.Acquire()
	defer a.mu.Release()

	i := a.lookupAllocatedIndexLocked(p)

	depth := depthOf(i)
	if i < a.markers[depth] {
		a.markers[depth] = i
	}

	a.markSubtree(i, Free)
	a.propagateAncestors(i)
}

// Reallocate resizes a previously allocated block, copying
// min(oldSize, newSize) bytes of its contents into the new block and
// freeing the old one. The old block's physical memory is read through its
// HHDM mapping, just like the new block's is written.
func (a *Allocator) Reallocate(p addr.PhysicalAddress, newSize uint64) addr.PhysicalAddress {
	a.mu.Acquire()
	oldIndex := a.lookupAllocatedIndexLocked(p)
	oldSize := a.blockSizeForIndexLocked(oldIndex)
	a.mu.Release()

	newAddr := a.Allocate(newSize)

	copySize := oldSize
	if newSize < copySize {
		copySize = newSize
	}
	copyPhysical(newAddr, p, copySize)

	a.Free(p)
	return newAddr
}

// allocateAtDepthLocked scans [first, last) at the given tree depth for the
// first Free cell, starting from the per-depth marker hint. The caller must
// hold a.mu. Exhaustion at this depth is a hard failure: there is no
// on-demand splitting of a coarser free block to satisfy a finer request.
func (a *Allocator) allocateAtDepthLocked(depth uint8) uint64 {
	first := a.markers[depth]
	if min := uint64(1) << depth; first < min {
		first = min
	}
	last := uint64(1) << (depth + 1)

	for i := first; i < last; i++ {
		if a.stateTree[i] == Free {
			a.markers[depth] = i + 1
			a.markSubtree(i, Allocated)
			a.propagateAncestors(i)
			return i
		}
	}

	kernel.Panic(errOutOfMemoryAtOrder)
	return 0
}

// lookupAllocatedIndexLocked finds the tree node whose block starts at p.
// It first guesses the coarsest order consistent with p's alignment (via
// trailing_zeros), then descends towards the leaves along the left-child
// chain, which always shares the same start address as its parent, until it
// finds the node actually marked Allocated.
func (a *Allocator) lookupAllocatedIndexLocked(p addr.PhysicalAddress) uint64 {
	v := (uint64(p) - uint64(a.regionStart)) / pageSize

	var revOrder uint8
	if v == 0 {
		revOrder = a.maxOrder
	} else {
		revOrder = uint8(bits.TrailingZeros64(v))
		if revOrder > a.maxOrder {
			revOrder = a.maxOrder
		}
	}

	i := (uint64(1) << (a.maxOrder - revOrder)) + (v >> revOrder)

	for a.stateTree[i] != Allocated {
		i *= 2
		if i >= uint64(len(a.stateTree)) {
			kernel.Panic(errFreeOfUnallocated)
		}
	}

	return i
}

// addressForIndexLocked converts a tree node at the given depth back to the
// physical address of the block it represents.
func (a *Allocator) addressForIndexLocked(i uint64, depth uint8) addr.PhysicalAddress {
	blockSize := pageSize << (a.maxOrder - depth)
	offset := (i - uint64(1)<<depth) * blockSize
	return a.regionStart.Add(offset)
}

// blockSizeForIndexLocked returns the size in bytes of the block node i
// represents.
func (a *Allocator) blockSizeForIndexLocked(i uint64) uint64 {
	depth := depthOf(i)
	return pageSize << (a.maxOrder - depth)
}

// isExactSize reports whether size is a power-of-two multiple of the page
// size, the precondition AllocateExact enforces.
func isExactSize(size uint64) bool {
	if size == 0 || size%pageSize != 0 {
		return false
	}
	pages := size / pageSize
	return pages&(pages-1) == 0
}

// log2Exact returns log2(v) for a power-of-two v.
func log2Exact(v uint64) uint8 {
	return uint8(bits.TrailingZeros64(v))
}

// requiredDoublings returns the smallest m such that pageSize<<m >= size.
func requiredDoublings(size uint64) uint8 {
	var m uint8
	for (pageSize << m) < size {
		m++
	}
	return m
}

// copyPhysical copies n bytes from the block starting at src to the block
// starting at dst, by overlaying both with byte slices over their HHDM
// mappings.
func copyPhysical(dst, src addr.PhysicalAddress, n uint64) {
	if n == 0 {
		return
	}
	copy(overlayByteSlice(dst, int(n)), overlayByteSlice(src, int(n)))
}

func overlayByteSlice(p addr.PhysicalAddress, length int) []byte {
	var s []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&s))
	hdr.Data = p.ToVirtual().Pointer()
	hdr.Len = length
	hdr.Cap = length
	return s
}
