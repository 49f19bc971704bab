// Package addr provides strongly typed wrappers for physical and virtual
// memory addresses. Keeping the two behind distinct types prevents the rest
// of the kernel from accidentally mixing up an unmapped physical address
// with a dereferenceable virtual one.
package addr

import (
	"math"

	"github.com/maxmitchelson/lumos/kernel"
)

var (
	// hhdmOffset is the process-wide higher-half direct map offset reported
	// by the bootloader. It is set exactly once via SetHHDMOffset.
	hhdmOffset uint64

	errNonCanonical = &kernel.Error{Module: "addr", Message: "virtual address is not canonical"}
)

// InvalidPhysicalAddress is returned by callers that need a sentinel value
// for "no address" without resorting to a pointer or an interface (both of
// which would require the Go allocator to be initialized).
const InvalidPhysicalAddress = PhysicalAddress(math.MaxUint64)

// PhysicalAddress is an opaque wrapper over a physical memory address.
type PhysicalAddress uint64

// IsValid reports whether p is distinct from InvalidPhysicalAddress.
func (p PhysicalAddress) IsValid() bool {
	return p != InvalidPhysicalAddress
}

// Add returns p offset by the given number of bytes.
func (p PhysicalAddress) Add(delta uint64) PhysicalAddress {
	return p + PhysicalAddress(delta)
}

// Sub returns p offset backwards by the given number of bytes.
func (p PhysicalAddress) Sub(delta uint64) PhysicalAddress {
	return p - PhysicalAddress(delta)
}

// Diff returns the distance in bytes between p and other (p - other).
func (p PhysicalAddress) Diff(other PhysicalAddress) int64 {
	return int64(p) - int64(other)
}

// Uint64 returns the raw address value.
func (p PhysicalAddress) Uint64() uint64 {
	return uint64(p)
}

// ToVirtual converts p to a VirtualAddress using the process-wide HHDM
// offset established via SetHHDMOffset. The result is always canonical
// because the HHDM window is itself canonical by construction.
func (p PhysicalAddress) ToVirtual() VirtualAddress {
	return VirtualAddress(uint64(p) + hhdmOffset)
}

// SetHHDMOffset records the offset used to translate physical addresses
// into the higher-half direct map. It is expected to be called exactly once
// during early boot, before any call to PhysicalAddress.ToVirtual.
func SetHHDMOffset(offset uint64) {
	hhdmOffset = offset
}

// HHDMOffset returns the currently configured HHDM offset.
func HHDMOffset() uint64 {
	return hhdmOffset
}

// VirtualAddress is an opaque wrapper over a canonical 48-bit virtual
// address. Every VirtualAddress value in existence is canonical: the type
// cannot be constructed with a non-canonical value without going through
// NewVirtualAddress, which fails loudly instead of silently truncating.
type VirtualAddress uint64

// NewVirtualAddress validates that raw is in canonical form (bits 48-63 are
// the sign-extension of bit 47) and returns it as a VirtualAddress. It
// panics via kernel.Panic on a non-canonical input since arithmetic that
// would produce a dangling or unmapped pointer is a kernel bug, not a
// recoverable condition.
func NewVirtualAddress(raw uint64) VirtualAddress {
	if !isCanonical(raw) {
		kernel.Panic(errNonCanonical)
	}
	return VirtualAddress(raw)
}

func isCanonical(raw uint64) bool {
	const signBit = uint64(1) << 47
	top := raw >> 48
	if raw&signBit != 0 {
		return top == 0xFFFF
	}
	return top == 0
}

// Add returns v offset by delta bytes, re-validating canonicality.
func (v VirtualAddress) Add(delta uint64) VirtualAddress {
	return NewVirtualAddress(uint64(v) + delta)
}

// Sub returns v offset backwards by delta bytes, re-validating canonicality.
func (v VirtualAddress) Sub(delta uint64) VirtualAddress {
	return NewVirtualAddress(uint64(v) - delta)
}

// Uint64 returns the raw address value.
func (v VirtualAddress) Uint64() uint64 {
	return uint64(v)
}

// Pointer returns v as a raw, untyped pointer value. Callers convert this to
// the element type they expect via unsafe.Pointer at the call site; addr
// itself stays free of the unsafe package so the canonicality invariant
// above cannot be bypassed by constructing a VirtualAddress from a pointer
// without going through NewVirtualAddress first.
func (v VirtualAddress) Pointer() uintptr {
	return uintptr(v)
}
