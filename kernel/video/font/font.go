// Package font describes the glyph-lookup contract the renderer draws
// through. Rasterizing an actual bitmap font is excluded from this
// repository's scope; Glyph only needs to hand back enough bits for a caller
// to blit, however it chooses to do that.
package font

// Glyph is a single fixed-size bitmap character cell: Width*Height bits,
// row-major, one bit per pixel, packed into Bitmap.
type Glyph struct {
	Width, Height uint8
	Bitmap        []byte
}

// Font looks up glyphs by rune. A real implementation might decode a PSF
// font image baked into the kernel binary; that decoding is rasterization
// glue outside this repository's scope.
type Font interface {
	// Glyph returns the bitmap for ch, and ok=false if the font has no
	// glyph for it.
	Glyph(ch rune) (g Glyph, ok bool)

	// CellSize returns the fixed pixel dimensions every glyph occupies.
	CellSize() (width, height uint8)
}

// Solid is a Font standing in for a real bitmap font in tests: every
// printable rune maps to a fully-set glyph of a fixed size, so callers can
// exercise glyph rasterization without baking in real font data.
type Solid struct {
	width, height uint8
	bitmap        []byte
}

// NewSolid builds a Solid font of the given cell size.
func NewSolid(width, height uint8) *Solid {
	rowBytes := (int(width) + 7) / 8
	bitmap := make([]byte, rowBytes*int(height))
	for i := range bitmap {
		bitmap[i] = 0xFF
	}
	return &Solid{width: width, height: height, bitmap: bitmap}
}

// Glyph implements Font: every rune except the space and NUL code points
// resolves to the solid bitmap.
func (f *Solid) Glyph(ch rune) (Glyph, bool) {
	if ch == 0 || ch == ' ' {
		return Glyph{}, false
	}
	return Glyph{Width: f.width, Height: f.height, Bitmap: f.bitmap}, true
}

// CellSize implements Font.
func (f *Solid) CellSize() (uint8, uint8) {
	return f.width, f.height
}
