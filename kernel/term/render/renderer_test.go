package render

import (
	"testing"
	"unsafe"

	"github.com/maxmitchelson/lumos/kernel/addr"
	"github.com/maxmitchelson/lumos/kernel/boot"
	"github.com/maxmitchelson/lumos/kernel/mem/buddy"
	"github.com/maxmitchelson/lumos/kernel/term"
	"github.com/maxmitchelson/lumos/kernel/video/fb"
	"github.com/maxmitchelson/lumos/kernel/video/font"
)

// initTestAllocator points the global buddy allocator at a plain Go byte
// slice, mirroring the term package's own test setup, so TerminalBuffer
// construction works inside a hosted test binary.
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

// newTestRenderer wires a small TerminalBuffer, a software framebuffer sized
// for columns x rows at an 8x8 cell, and a solid test font.
func newTestRenderer(t *testing.T, columns, rows uint32) (*Renderer, *fb.Software) {
	t.Helper()
	initTestAllocator(t, 64)

	buf := term.NewTerminalBuffer(columns, rows)
	glyphs := font.NewSolid(8, 8)
	screen := fb.NewSoftware(columns*8, rows*8)
	return New(buf, screen, glyphs, DefaultTheme, rows), screen
}

func TestWriteAdvancesCursorAndDraws(t *testing.T) {
	r, screen := newTestRenderer(t, 10, 4)

	r.Write([]byte("hi"))

	if cur := r.Cursor(); cur.Line != 0 || cur.Column != 2 {
		t.Fatalf("expected cursor at (0,2); got %+v", cur)
	}
	if px := screen.Pixel(0, 0); px == DefaultTheme.Background {
		t.Fatal("expected the 'h' glyph to have painted a non-background pixel")
	}
}

func TestNewlineJumpsLine(t *testing.T) {
	r, _ := newTestRenderer(t, 10, 4)

	r.Write([]byte("a\nb"))

	if cur := r.Cursor(); cur.Line != 1 || cur.Column != 1 {
		t.Fatalf("expected cursor at (1,1) after newline+write; got %+v", cur)
	}
}

func TestTabWritesFourSpaces(t *testing.T) {
	r, _ := newTestRenderer(t, 10, 4)

	r.Write([]byte("\t"))

	if cur := r.Cursor(); cur.Column != 4 {
		t.Fatalf("expected tab to advance column by 4; got %d", cur.Column)
	}
}

// move_cursor_absolute clamps col to the target line's current length, so
// these tests write content first to give the target line something to
// clamp against.
func TestCsiCursorMoveAbsolute(t *testing.T) {
	r, _ := newTestRenderer(t, 10, 20)

	r.Write([]byte("\n\nabc")) // line 2 now has length 3

	r.Write([]byte("\x1b[2;3H"))

	if cur := r.Cursor(); cur.Line != 2 || cur.Column != 3 {
		t.Fatalf("expected cursor at (2,3); got %+v", cur)
	}
}

func TestCsiSplitAcrossWrites(t *testing.T) {
	r, _ := newTestRenderer(t, 10, 20)

	r.Write([]byte("\n\n\n\nabcd")) // line 4 now has length 4

	r.Write([]byte("\x1b["))
	r.Write([]byte("4;1H"))

	if cur := r.Cursor(); cur.Line != 4 || cur.Column != 1 {
		t.Fatalf("expected cursor at (4,1); got %+v", cur)
	}
}

func TestScrollRelativeFullRedraw(t *testing.T) {
	r, _ := newTestRenderer(t, 10, 4)

	for i := 0; i < 20; i++ {
		r.Write([]byte("x\n"))
	}

	before := r.Scroll()
	r.Write([]byte("\x1b[2T")) // scroll up (toward older lines)
	if r.Scroll() >= before {
		t.Fatalf("expected scroll to decrease after CSI T; before=%d after=%d", before, r.Scroll())
	}
}

func TestEraseLineAfterCursor(t *testing.T) {
	r, _ := newTestRenderer(t, 10, 4)

	r.Write([]byte("hello"))
	r.Write([]byte("\x1b[3G")) // move to column 3
	r.Write([]byte("\x1b[K"))  // erase from cursor to end of line

	if got := r.buffer.GetLineLength(0); got != 3 {
		t.Fatalf("expected line length 3 after erase-after-cursor; got %d", got)
	}
}

// recordingFB wraps a Software framebuffer and counts Fill calls, so a test
// can tell whether scrollDraw issued its own tail-clearing Fill in addition
// to the line redraw that follows it.
type recordingFB struct {
	*fb.Software
	fillCalls int
}

func (r *recordingFB) Fill(x, y, width, height uint32, rgb uint32) {
	r.fillCalls++
	r.Software.Fill(x, y, width, height, rgb)
}

// TestScrollFollowSkipsSeparateTailClear exercises spec.md's Scenario E:
// pushing input past the visible window advances scroll by exactly one line
// via scrollDraw(1, clearTail=false) plus a single lineDraw of the newly
// visible line, not a separate tail-clearing Fill from scrollDraw itself.
func TestScrollFollowSkipsSeparateTailClear(t *testing.T) {
	initTestAllocator(t, 64)
	buf := term.NewTerminalBuffer(10, 2)
	glyphs := font.NewSolid(8, 8)
	screen := &recordingFB{Software: fb.NewSoftware(10*8, 2*8)}
	r := New(buf, screen, glyphs, DefaultTheme, 2)

	r.Write([]byte("a\nb")) // fills both visible lines without crossing them

	beforeScroll := r.Scroll()
	beforeFills := screen.fillCalls

	r.Write([]byte("\n")) // cursor now lands on line 2, past the 2-row window

	if got := r.Scroll(); got != beforeScroll+1 {
		t.Fatalf("expected scroll to advance by exactly 1; before=%d after=%d", beforeScroll, got)
	}
	if got := screen.fillCalls - beforeFills; got != 1 {
		t.Fatalf("expected exactly 1 Fill call (the new line's lineDraw) with no separate scrollDraw tail-clear; got %d", got)
	}
}

func TestSgrColorChangesStyle(t *testing.T) {
	r, _ := newTestRenderer(t, 10, 4)

	r.Write([]byte("\x1b[31m"))
	if r.style.Fg != term.PaletteColor(1) {
		t.Fatalf("expected foreground palette(1) after SGR 31; got %+v", r.style.Fg)
	}

	r.Write([]byte("\x1b[0m"))
	if r.style != term.DefaultStyle {
		t.Fatalf("expected SGR 0 to reset style to default; got %+v", r.style)
	}
}
