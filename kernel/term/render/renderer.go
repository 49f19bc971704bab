// Package render drives a term.TerminalBuffer from a raw byte stream: it
// decodes ANSI CSI sequences through the ansi package, maintains a cursor
// and scroll position, and blits the result onto a framebuffer through a
// font's glyph bitmaps using a dirty-region drawing policy.
package render

import (
	"io"
	"unicode/utf8"

	"github.com/maxmitchelson/lumos/kernel/sync"
	"github.com/maxmitchelson/lumos/kernel/term"
	"github.com/maxmitchelson/lumos/kernel/term/ansi"
	"github.com/maxmitchelson/lumos/kernel/video/fb"
	"github.com/maxmitchelson/lumos/kernel/video/font"
)

const tabWidth = 4

// Renderer implements io.Writer/io.ByteWriter over a TerminalBuffer: pushed
// bytes are either control characters ('\n', '\t'), ESC-introduced CSI
// sequences fed to an ansi.Decoder, or plain characters written at the
// cursor. It owns the single framebuffer lock for the duration of a draw.
type Renderer struct {
	mu sync.Spinlock

	buffer  *term.TerminalBuffer
	decoder *ansi.Decoder
	fbdev   fb.Framebuffer
	glyphs  font.Font
	theme   Theme

	style    term.Style
	cursor   term.Cursor
	scroll   uint32
	height   uint32
	inEscape bool
}

var (
	_ io.Writer     = (*Renderer)(nil)
	_ io.ByteWriter = (*Renderer)(nil)
)

// New constructs a Renderer over buffer, drawing through fbdev using glyphs,
// with visibleHeight rows on screen at once.
func New(buffer *term.TerminalBuffer, fbdev fb.Framebuffer, glyphs font.Font, theme Theme, visibleHeight uint32) *Renderer {
	r := &Renderer{
		buffer:  buffer,
		decoder: ansi.New(),
		fbdev:   fbdev,
		glyphs:  glyphs,
		theme:   theme,
		style:   term.DefaultStyle,
		height:  visibleHeight,
	}
	r.fullDraw()
	return r
}

// Write implements io.Writer: p is decoded as UTF-8 and each code point is
// pushed through the input loop.
func (r *Renderer) Write(p []byte) (int, error) {
	r.mu.Acquire()
	defer r.mu.Release()

	for i := 0; i < len(p); {
		ch, size := utf8.DecodeRune(p[i:])
		r.pushRune(ch)
		i += size
	}
	return len(p), nil
}

// WriteByte implements io.ByteWriter, treating b as a single code point.
// Multi-byte UTF-8 text should go through Write instead.
func (r *Renderer) WriteByte(b byte) error {
	r.mu.Acquire()
	defer r.mu.Release()

	r.pushRune(rune(b))
	return nil
}

// Cursor returns the current cursor position, in buffer coordinates.
func (r *Renderer) Cursor() term.Cursor {
	r.mu.Acquire()
	defer r.mu.Release()
	return r.cursor
}

// Scroll returns the index of the topmost visible buffer line.
func (r *Renderer) Scroll() uint32 {
	r.mu.Acquire()
	defer r.mu.Release()
	return r.scroll
}

// Clear wipes the whole buffer and redraws.
func (r *Renderer) Clear() {
	r.mu.Acquire()
	defer r.mu.Release()

	r.buffer.ClearRange(0, uint32(r.buffer.Len()))
	r.cursor = term.Cursor{}
	r.scroll = 0
	r.fullDraw()
}

func (r *Renderer) pushRune(ch rune) {
	if r.inEscape {
		r.feedDecoder(byte(ch))
		return
	}

	switch ch {
	case '\n':
		r.jumpLine()
	case '\t':
		for i := 0; i < tabWidth; i++ {
			r.writeAndAdvance(' ')
		}
	case 0x1B:
		r.inEscape = true
		r.feedDecoder(byte(ch))
	default:
		r.writeAndAdvance(ch)
	}
}

func (r *Renderer) writeAndAdvance(ch rune) {
	r.buffer.WriteChar(r.cursor.Line, r.cursor.Column, ch, r.style)
	r.advanceCursorWrapping(1)
}

func (r *Renderer) feedDecoder(b byte) {
	result := r.decoder.Feed(b)
	switch result.Kind {
	case ansi.Incomplete:
		return
	case ansi.Valid:
		r.inEscape = false
		r.applyCommand(result.Command)
	case ansi.Error:
		r.inEscape = false
	}
}

func (r *Renderer) applyCommand(cmd ansi.Command) {
	switch cmd.Kind {
	case ansi.ResetGraphicRendition:
		r.style = term.DefaultStyle
	case ansi.SetForeground:
		r.style.Fg = cmd.Color
	case ansi.SetBackground:
		r.style.Bg = cmd.Color
	case ansi.EraseDisplay:
		r.eraseDisplay(cmd.EraseMode)
	case ansi.EraseLine:
		r.eraseLine(cmd.EraseMode)
	case ansi.CursorMoveRelative:
		dl, dc := directionDelta(cmd.Direction, cmd.Amount)
		r.moveCursorRelative(dl, dc)
	case ansi.CursorMoveAbsolute:
		r.moveCursorAbsolute(cmd.Line, cmd.Column)
	case ansi.CursorMoveColumnAbsolute:
		r.moveCursorAbsolute(r.cursor.Line, cmd.Column)
	case ansi.ScrollRelative:
		amount := int32(cmd.Amount)
		if cmd.Direction == ansi.Up {
			amount = -amount
		}
		r.scrollRelative(amount)
	}
}

func directionDelta(d ansi.Direction, amount uint32) (dl, dc int32) {
	switch d {
	case ansi.Up:
		return -int32(amount), 0
	case ansi.Down:
		return int32(amount), 0
	case ansi.Left:
		return 0, -int32(amount)
	case ansi.Right:
		return 0, int32(amount)
	}
	return 0, 0
}

// jumpLine moves the cursor to the start of the next line ('\n' handling).
func (r *Renderer) jumpLine() {
	oldLine := r.cursor.Line
	r.cursor.Column = 0
	r.cursor.Line++
	r.afterCursorMove(oldLine)
}

// advanceCursorWrapping increments the cursor column by n, wrapping to
// successive lines modulo max_columns on overflow.
func (r *Renderer) advanceCursorWrapping(n uint32) {
	oldLine := r.cursor.Line
	cols := r.buffer.MaxColumns()

	total := r.cursor.Column + n
	r.cursor.Line += total / cols
	r.cursor.Column = total % cols

	r.afterCursorMove(oldLine)
}

// afterCursorMove applies the scroll-follows-cursor rule and redraws
// whichever lines became dirty.
func (r *Renderer) afterCursorMove(oldLine uint32) {
	if r.cursor.Line >= r.scroll+r.height {
		delta := r.cursor.Line - (r.scroll + r.height) + 1
		r.scroll += delta
		if delta == 1 {
			// The line scrolling into view is about to be lineDraw'n anyway,
			// so the band scrollDraw exposes doesn't need a separate clear.
			r.scrollDraw(1, false)
			r.lineDraw(r.cursor.Line)
		} else {
			r.fullDraw()
		}
		return
	}
	if oldLine != r.cursor.Line {
		r.lineDraw(oldLine)
	}
	r.lineDraw(r.cursor.Line)
}

func (r *Renderer) moveCursorAbsolute(line, col uint32) {
	oldLine := r.cursor.Line

	if line < r.scroll {
		line = r.scroll
	}
	if max := r.scroll + r.height; line > max {
		line = max
	}
	if lineLen := r.buffer.GetLineLength(line); col > lineLen {
		col = lineLen
	}

	r.cursor.Line, r.cursor.Column = line, col
	r.lineDraw(oldLine)
	r.lineDraw(r.cursor.Line)
}

func (r *Renderer) moveCursorRelative(dl, dc int32) {
	oldLine := r.cursor.Line

	line := saturatingAdd(r.cursor.Line, dl, r.buffer.MaxLines()-1)
	col := saturatingAdd(r.cursor.Column, dc, r.buffer.GetLineLength(line))

	r.cursor.Line, r.cursor.Column = line, col
	r.lineDraw(oldLine)
	r.lineDraw(r.cursor.Line)
}

func (r *Renderer) scrollRelative(d int32) {
	r.scroll = saturatingAdd(r.scroll, d, r.buffer.MaxLines())
	r.fullDraw()
}

func saturatingAdd(v uint32, delta int32, max uint32) uint32 {
	result := int64(v) + int64(delta)
	if result < 0 {
		return 0
	}
	if uint32(result) > max {
		return max
	}
	return uint32(result)
}

// eraseLine clears cells on the cursor's current line per mode.
func (r *Renderer) eraseLine(mode ansi.EraseMode) {
	cols := r.buffer.MaxColumns()
	line := r.cursor.Line

	switch mode {
	case ansi.BeforeCursor:
		r.buffer.ClearRange(r.buffer.Index(line, 0), r.cursor.Column+1)
	case ansi.All, ansi.AllPurgeScrollback:
		r.buffer.ClearRange(r.buffer.Index(line, 0), cols)
	default:
		r.buffer.ClearRange(r.buffer.Index(line, r.cursor.Column), cols-r.cursor.Column)
	}
	r.lineDraw(line)
}

// eraseDisplay clears cells across the whole buffer per mode. Purging the
// scrollback only resets the cursor and scroll position and clears cell
// contents; it does not shrink the buffer's backing allocation.
func (r *Renderer) eraseDisplay(mode ansi.EraseMode) {
	switch mode {
	case ansi.BeforeCursor:
		end := r.buffer.Index(r.cursor.Line, r.cursor.Column) + 1
		r.buffer.ClearRange(0, end)
	case ansi.All:
		r.buffer.ClearRange(0, uint32(r.buffer.Len()))
	case ansi.AllPurgeScrollback:
		r.buffer.ClearRange(0, uint32(r.buffer.Len()))
		r.scroll = 0
		r.cursor = term.Cursor{}
	default:
		start := r.buffer.Index(r.cursor.Line, r.cursor.Column)
		r.buffer.ClearRange(start, uint32(r.buffer.Len())-start)
	}
	r.fullDraw()
}

// lineDraw clears and re-rasterizes one buffer line, if it is currently
// visible.
func (r *Renderer) lineDraw(line uint32) {
	if line < r.scroll || line >= r.scroll+r.height {
		return
	}
	row := line - r.scroll
	glyphW, glyphH := r.glyphs.CellSize()

	r.fbdev.Fill(0, row*uint32(glyphH), r.buffer.MaxColumns()*uint32(glyphW), uint32(glyphH), r.theme.Background)

	for col, cell := range r.buffer.GetView(line, 1) {
		if cell.Empty() {
			continue
		}
		r.blitCell(uint32(col), row, cell)
	}
}

// scrollDraw shifts the framebuffer's rows by delta*glyph_height pixels
// (upward for positive delta, downward for negative), optionally clearing
// the band it exposes.
func (r *Renderer) scrollDraw(delta int32, clearTail bool) {
	_, glyphH := r.glyphs.CellSize()
	width, height := r.fbdev.Dimensions()
	shift := delta * int32(glyphH)

	switch {
	case shift > 0:
		amount := uint32(shift)
		for y := uint32(0); y+amount < height; y++ {
			for x := uint32(0); x < width; x++ {
				r.fbdev.SetPixel(x, y, r.fbdev.Pixel(x, y+amount))
			}
		}
		if clearTail {
			r.fbdev.Fill(0, height-amount, width, amount, r.theme.Background)
		}
	case shift < 0:
		amount := uint32(-shift)
		for y := height; y > amount; y-- {
			for x := uint32(0); x < width; x++ {
				r.fbdev.SetPixel(x, y-1, r.fbdev.Pixel(x, y-1-amount))
			}
		}
		if clearTail {
			r.fbdev.Fill(0, 0, width, amount, r.theme.Background)
		}
	}
}

// fullDraw fills the visible area with the background color and
// rasterizes every visible cell from scratch.
func (r *Renderer) fullDraw() {
	glyphW, glyphH := r.glyphs.CellSize()
	r.fbdev.Fill(0, 0, r.buffer.MaxColumns()*uint32(glyphW), r.height*uint32(glyphH), r.theme.Background)

	for row := uint32(0); row < r.height; row++ {
		line := r.scroll + row
		if line >= r.buffer.MaxLines() {
			break
		}
		for col, cell := range r.buffer.GetView(line, 1) {
			if cell.Empty() {
				continue
			}
			r.blitCell(uint32(col), row, cell)
		}
	}
}

// blitCell rasterizes one cell's glyph at grid position (col, row), alpha-
// blending the font's foreground/background per bit against the cell's
// resolved style colors.
func (r *Renderer) blitCell(col, row uint32, cell term.TextCell) {
	glyph, ok := r.glyphs.Glyph(cell.Ch)
	if !ok {
		return
	}
	glyphW, glyphH := r.glyphs.CellSize()
	ox := col * uint32(glyphW)
	oy := row * uint32(glyphH)

	fg := r.theme.Resolve(cell.Style.Fg)
	bg := r.theme.Resolve(cell.Style.Bg)
	rowBytes := (int(glyph.Width) + 7) / 8

	for y := 0; y < int(glyph.Height); y++ {
		for x := 0; x < int(glyph.Width); x++ {
			byteIdx := y*rowBytes + x/8
			var alpha uint8
			if glyph.Bitmap[byteIdx]&(0x80>>uint(x%8)) != 0 {
				alpha = 255
			}
			r.fbdev.SetPixel(ox+uint32(x), oy+uint32(y), blend(fg, bg, alpha))
		}
	}
}

// blend combines fg and bg per channel as (fg*alpha + bg*(255-alpha))/255.
func blend(fg, bg uint32, alpha uint8) uint32 {
	fr, fgc, fb2 := channels(fg)
	br, bgc, bb := channels(bg)
	a := uint32(alpha)

	r := (fr*a + br*(255-a)) / 255
	g := (fgc*a + bgc*(255-a)) / 255
	b := (fb2*a + bb*(255-a)) / 255
	return r<<16 | g<<8 | b
}

func channels(rgb uint32) (r, g, b uint32) {
	return (rgb >> 16) & 0xFF, (rgb >> 8) & 0xFF, rgb & 0xFF
}
