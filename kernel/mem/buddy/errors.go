package buddy

import "github.com/maxmitchelson/lumos/kernel"

var (
	errNoUsableMemory = &kernel.Error{
		Module:  "buddy",
		Message: "bootloader memory map reports no usable region",
	}

	errNotEnoughAvailableMemory = &kernel.Error{
		Module:  "buddy",
		Message: "no usable region is large enough to hold the allocator's own metadata",
	}

	errAllocationTooLarge = &kernel.Error{
		Module:  "buddy",
		Message: "requested size exceeds the managed region",
	}

	errNotExactSize = &kernel.Error{
		Module:  "buddy",
		Message: "AllocateExact requires a power-of-two multiple of the page size",
	}

	errOutOfMemoryAtOrder = &kernel.Error{
		Module:  "buddy",
		Message: "no free block available at the requested order",
	}

	errFreeOfUnallocated = &kernel.Error{
		Module:  "buddy",
		Message: "address does not correspond to a currently allocated block",
	}
)
