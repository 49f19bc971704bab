// Package boot adapts the bootloader handoff into the form the rest of the
// kernel consumes. Parsing the raw Limine protocol response structures is
// architecture/bootloader glue excluded from this package's scope; what's
// specified here is the contract the allocator builds on: an ordered,
// non-overlapping slice of usable/reserved memory regions.
package boot

// EntryKind classifies a MemoryMapEntry the way the Limine memmap response
// does: Usable regions are free for the kernel to claim, everything else is
// off-limits for one reason or another.
type EntryKind uint32

const (
	// Usable indicates RAM that is free for the kernel to use.
	Usable EntryKind = iota

	// Reserved indicates memory that must never be touched (MMIO holes,
	// firmware-reserved ranges, ...).
	Reserved

	// AcpiReclaimable indicates memory holding ACPI tables that can be
	// reclaimed once the kernel is done parsing them.
	AcpiReclaimable

	// AcpiNvs indicates memory that must be preserved across sleep states.
	AcpiNvs

	// BadMemory indicates RAM the firmware has flagged as faulty.
	BadMemory

	// BootloaderReclaimable indicates memory used by the bootloader itself
	// that becomes free once the kernel no longer needs bootloader data.
	BootloaderReclaimable

	// KernelAndModules indicates memory occupied by the loaded kernel image
	// and any boot modules.
	KernelAndModules

	// Framebuffer indicates memory backing the boot framebuffer.
	Framebuffer
)

// MemoryMapEntry describes one physical memory region reported by the
// bootloader. Entries are page-aligned, non-overlapping and sorted by Base
// ascending, per the Limine memmap response contract.
type MemoryMapEntry struct {
	Base   uint64
	Length uint64
	Kind   EntryKind
}

// End returns the exclusive end address of the entry (Base + Length).
func (e MemoryMapEntry) End() uint64 {
	return e.Base + e.Length
}

// EntryVisitor is invoked by VisitEntries for every entry in a memory map. It
// returns true to continue visiting, false to stop early.
type EntryVisitor func(entry *MemoryMapEntry) bool

// VisitEntries invokes visitor for each entry in the map, in order, until the
// visitor returns false or the map is exhausted. This mirrors the bootloader
// memory-map adapter's iterate-by-callback shape used throughout the kernel's
// memory subsystems rather than handing out a raw slice, so call sites never
// need to know whether the backing storage came from a real bootloader
// handoff or a test fixture.
func VisitEntries(entries []MemoryMapEntry, visitor EntryVisitor) {
	for i := range entries {
		if !visitor(&entries[i]) {
			return
		}
	}
}

// VisitUsableEntries is a VisitEntries specialization that skips every entry
// whose Kind is not Usable.
func VisitUsableEntries(entries []MemoryMapEntry, visitor EntryVisitor) {
	VisitEntries(entries, func(entry *MemoryMapEntry) bool {
		if entry.Kind != Usable {
			return true
		}
		return visitor(entry)
	})
}

// UsableSpan returns the start of the first Usable entry and the end of the
// last Usable entry in the map. The ok return value is false if the map
// contains no Usable entry at all.
func UsableSpan(entries []MemoryMapEntry) (start, end uint64, ok bool) {
	first := true
	VisitUsableEntries(entries, func(entry *MemoryMapEntry) bool {
		if first {
			start = entry.Base
			first = false
		}
		end = entry.End()
		return true
	})
	return start, end, !first
}

// IsSorted reports whether entries are sorted by Base in ascending order, as
// required by the memory-map input contract.
func IsSorted(entries []MemoryMapEntry) bool {
	for i := 1; i < len(entries); i++ {
		if entries[i].Base < entries[i-1].Base {
			return false
		}
	}
	return true
}
