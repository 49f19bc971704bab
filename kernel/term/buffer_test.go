package term

import (
	"testing"
	"unsafe"

	"github.com/maxmitchelson/lumos/kernel/addr"
	"github.com/maxmitchelson/lumos/kernel/boot"
	"github.com/maxmitchelson/lumos/kernel/mem/buddy"
)

// initTestAllocator points the global buddy allocator at a plain Go byte
// slice, the same substrate trick used by the buddy package's own tests, so
// TerminalBuffer's grow-by-realloc can run inside a hosted test binary.
func initTestAllocator(t *testing.T, pages uint64) {
	t.Helper()

	defer addr.SetHHDMOffset(addr.HHDMOffset())
	addr.SetHHDMOffset(0)

	physMem := make([]byte, pages*4096)
	base := uint64(uintptr(unsafe.Pointer(&physMem[0])))

	buddy.Global = buddy.Allocator{}
	if err := buddy.Global.Init([]boot.MemoryMapEntry{
		{Base: base, Length: pages * 4096, Kind: boot.Usable},
	}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
}

func TestWriteCharAndLineLength(t *testing.T) {
	initTestAllocator(t, 64)

	buf := NewTerminalBuffer(80, 4)
	if got := buf.GetLineLength(0); got != 0 {
		t.Fatalf("expected empty line length 0; got %d", got)
	}

	buf.WriteChar(0, 0, 'h', DefaultStyle)
	buf.WriteChar(0, 1, 'i', DefaultStyle)

	if got := buf.GetLineLength(0); got != 2 {
		t.Fatalf("expected line length 2; got %d", got)
	}
}

func TestWriteFormatted(t *testing.T) {
	initTestAllocator(t, 64)

	buf := NewTerminalBuffer(10, 4)
	written := buf.WriteFormatted([]rune("hello world"), 0, 0, DefaultStyle)

	if written != 10 {
		t.Fatalf("expected write to stop at column bound (10); wrote %d", written)
	}
	if got := buf.GetLineLength(0); got != 10 {
		t.Fatalf("expected line length 10; got %d", got)
	}
}

func TestClearRange(t *testing.T) {
	initTestAllocator(t, 64)

	buf := NewTerminalBuffer(10, 2)
	buf.WriteFormatted([]rune("hello"), 0, 0, DefaultStyle)
	buf.ClearRange(0, 5)

	if got := buf.GetLineLength(0); got != 0 {
		t.Fatalf("expected line length 0 after clearing; got %d", got)
	}
}

func TestGrowBufferPreservesContentsAndZeroesTail(t *testing.T) {
	initTestAllocator(t, 64)

	buf := NewTerminalBuffer(4, 2)
	buf.WriteChar(0, 0, 'x', DefaultStyle)

	// Force growth by writing into the last cell of the 2-line buffer.
	buf.WriteChar(1, 3, 'y', DefaultStyle)

	if buf.maxLines != 4 {
		t.Fatalf("expected maxLines to double to 4; got %d", buf.maxLines)
	}
	if buf.cells[buf.index(0, 0)].Ch != 'x' {
		t.Fatal("expected pre-growth contents to survive the reallocation")
	}
	if buf.cells[buf.index(1, 3)].Ch != 'y' {
		t.Fatal("expected the triggering write to have landed after growth")
	}
	if !buf.cells[buf.index(2, 0)].Empty() {
		t.Fatal("expected newly exposed tail cells to be zero-initialized")
	}
}

func TestGetView(t *testing.T) {
	initTestAllocator(t, 64)

	buf := NewTerminalBuffer(4, 4)
	buf.WriteChar(1, 0, 'a', DefaultStyle)

	view := buf.GetView(1, 2)
	if len(view) != 8 {
		t.Fatalf("expected view of 2 lines x 4 columns = 8 cells; got %d", len(view))
	}
	if view[0].Ch != 'a' {
		t.Fatalf("expected first cell of view to be 'a'; got %q", view[0].Ch)
	}
}
