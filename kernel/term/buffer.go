package term

import (
	"reflect"
	"unsafe"

	"github.com/maxmitchelson/lumos/kernel/addr"
	"github.com/maxmitchelson/lumos/kernel/mem"
	"github.com/maxmitchelson/lumos/kernel/mem/buddy"
)

var cellSize = uint64(unsafe.Sizeof(TextCell{}))

// TerminalBuffer is a dense row-major grid of TextCell, sized
// maxLines x maxColumns. Its backing store is physical memory obtained from
// the buddy allocator rather than the Go heap, and it grows by doubling
// maxLines through buddy.Reallocate when a write would run off the end.
type TerminalBuffer struct {
	maxColumns uint32
	maxLines   uint32

	backing addr.PhysicalAddress
	cells   []TextCell
}

// NewTerminalBuffer allocates a buffer of initialLines x columns cells.
func NewTerminalBuffer(columns, initialLines uint32) *TerminalBuffer {
	if initialLines == 0 {
		initialLines = 1
	}

	t := &TerminalBuffer{
		maxColumns: columns,
		maxLines:   initialLines,
	}
	t.backing = buddy.Allocate(uint64(columns) * uint64(initialLines) * cellSize)
	t.cells = overlayCells(t.backing, int(columns)*int(initialLines))
	return t
}

// Len returns the total cell count (maxLines * maxColumns).
func (t *TerminalBuffer) Len() int {
	return len(t.cells)
}

// MaxLines returns the current backing-store line count (not the visible
// window height).
func (t *TerminalBuffer) MaxLines() uint32 {
	return t.maxLines
}

// MaxColumns returns the fixed column count.
func (t *TerminalBuffer) MaxColumns() uint32 {
	return t.maxColumns
}

func (t *TerminalBuffer) index(line, col uint32) uint32 {
	return line*t.maxColumns + col
}

// Index converts (line, col) grid coordinates into the linear cell index
// used by ClearRange and GetView's callers.
func (t *TerminalBuffer) Index(line, col uint32) uint32 {
	return t.index(line, col)
}

// WriteChar places one cell at (line, col). If that index is the last cell
// in the buffer, the buffer grows before the write lands, so the write is
// always in bounds.
func (t *TerminalBuffer) WriteChar(line, col uint32, ch rune, style Style) {
	idx := t.index(line, col)
	if idx >= uint32(len(t.cells))-1 {
		t.growBuffer()
	}
	t.cells[idx] = TextCell{Style: style, Ch: ch}
}

// WriteFormatted places successive cells across the row starting at
// (line, col), growing on demand, and returns the number of cells actually
// written.
func (t *TerminalBuffer) WriteFormatted(text []rune, line, col uint32, style Style) int {
	written := 0
	for _, ch := range text {
		c := col + uint32(written)
		if c >= t.maxColumns {
			break
		}
		t.WriteChar(line, c, ch, style)
		written++
	}
	return written
}

// GetLineLength returns 1 + the index of the last non-empty cell in line, or
// 0 if the whole line is empty.
func (t *TerminalBuffer) GetLineLength(line uint32) uint32 {
	start := t.index(line, 0)
	for col := int(t.maxColumns) - 1; col >= 0; col-- {
		if !t.cells[start+uint32(col)].Empty() {
			return uint32(col) + 1
		}
	}
	return 0
}

// ClearRange sets length consecutive cells starting at start to empty.
func (t *TerminalBuffer) ClearRange(start, length uint32) {
	end := start + length
	if end > uint32(len(t.cells)) {
		end = uint32(len(t.cells))
	}
	for i := start; i < end; i++ {
		t.cells[i] = TextCell{}
	}
}

// GetView returns the slice of cells covering height lines starting at
// startLine.
func (t *TerminalBuffer) GetView(startLine, height uint32) []TextCell {
	start := t.index(startLine, 0)
	end := t.index(startLine+height, 0)
	if end > uint32(len(t.cells)) {
		end = uint32(len(t.cells))
	}
	if start > end {
		start = end
	}
	return t.cells[start:end]
}

// growBuffer doubles maxLines, moving the backing store via the frame
// allocator's reallocate and zero-initializing the newly exposed tail.
func (t *TerminalBuffer) growBuffer() {
	oldLen := len(t.cells)
	newMaxLines := t.maxLines * 2
	newSize := uint64(t.maxColumns) * uint64(newMaxLines) * cellSize

	t.backing = buddy.Reallocate(t.backing, newSize)
	t.maxLines = newMaxLines
	t.cells = overlayCells(t.backing, int(t.maxColumns)*int(newMaxLines))

	tailLen := len(t.cells) - oldLen
	if tailLen > 0 {
		tailAddr := uintptr(unsafe.Pointer(&t.cells[oldLen]))
		mem.Memset(tailAddr, 0, mem.Size(uint64(tailLen)*cellSize))
	}
}

func overlayCells(p addr.PhysicalAddress, length int) []TextCell {
	var s []TextCell
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&s))
	hdr.Data = p.ToVirtual().Pointer()
	hdr.Len = length
	hdr.Cap = length
	return s
}
