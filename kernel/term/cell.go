// Package term implements the paged scrollback terminal buffer: a dense
// cell grid with per-cell style that grows its own backing store through the
// physical frame allocator as more lines are written.
package term

// AnsiColorKind discriminates the four color forms a cell's foreground or
// background can take.
type AnsiColorKind uint8

const (
	// KindDefaultFg resolves to the active theme's foreground color.
	KindDefaultFg AnsiColorKind = iota
	// KindDefaultBg resolves to the active theme's background color.
	KindDefaultBg
	// KindPalette resolves to one of the theme's 16 ANSI palette entries.
	KindPalette
	// KindRgb carries an explicit 24-bit color.
	KindRgb
)

// AnsiColor is a closed variant over the four color forms a style can carry.
// Palette is only meaningful when Kind is KindPalette; R/G/B only when Kind
// is KindRgb.
type AnsiColor struct {
	Kind    AnsiColorKind
	Palette uint8
	R, G, B uint8
}

// DefaultForeground and DefaultBackground are the two sentinel colors that
// defer resolution to whatever theme is active at draw time.
var (
	DefaultForeground = AnsiColor{Kind: KindDefaultFg}
	DefaultBackground = AnsiColor{Kind: KindDefaultBg}
)

// PaletteColor constructs a KindPalette color for index idx (0..16).
func PaletteColor(idx uint8) AnsiColor {
	return AnsiColor{Kind: KindPalette, Palette: idx}
}

// RgbColor constructs an explicit 24-bit color.
func RgbColor(r, g, b uint8) AnsiColor {
	return AnsiColor{Kind: KindRgb, R: r, G: g, B: b}
}

// Style is the pair of colors a cell is drawn with.
type Style struct {
	Fg, Bg AnsiColor
}

// DefaultStyle resolves both channels to the theme's defaults.
var DefaultStyle = Style{Fg: DefaultForeground, Bg: DefaultBackground}

// TextCell is one grid cell. The zero value (Ch == 0) represents an empty
// cell; there is no separate boxed "empty" variant, since nothing here can
// allocate on the Go heap before the frame allocator exists.
type TextCell struct {
	Style Style
	Ch    rune
}

// Empty reports whether the cell holds no character.
func (c TextCell) Empty() bool {
	return c.Ch == 0
}

// Cursor is a position in buffer coordinates, not view coordinates: Line
// counts from the top of the whole backing store, not the visible window.
type Cursor struct {
	Line, Column uint32
}
