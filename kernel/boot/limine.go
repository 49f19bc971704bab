package boot

import "github.com/maxmitchelson/lumos/kernel/addr"

// Entries returns the bootloader-supplied physical memory map as
// MemoryMapEntry values, sorted by Base ascending per the package's input
// contract. Decoding the raw Limine memmap response structure is
// architecture/bootloader glue outside this package's scope; this function
// is the seam kmain calls into once that decoding has happened.
func Entries() []MemoryMapEntry

// HHDMRequestOffset returns the higher-half direct map offset reported by
// the Limine HHDM request, for addr.SetHHDMOffset.
func HHDMRequestOffset() uint64

// FramebufferInfo returns the boot framebuffer's physical base address and
// pixel dimensions from the Limine framebuffer request. Negotiating the
// request and validating the response's pixel format is bootloader glue
// outside this package's scope.
func FramebufferInfo() (base addr.PhysicalAddress, width, height uint32)
