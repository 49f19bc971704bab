package render

import "github.com/maxmitchelson/lumos/kernel/term"

// Theme carries the fixed colors a renderer resolves symbolic AnsiColor
// values against: the 16-entry ANSI palette plus the foreground/background
// pair DefaultFg/DefaultBg defer to.
type Theme struct {
	AnsiColors [16]uint32
	Foreground uint32
	Background uint32
}

// DefaultTheme is a VGA-like 16-color palette: the 8 standard colors
// followed by their bright variants.
var DefaultTheme = Theme{
	AnsiColors: [16]uint32{
		0x000000, 0xAA0000, 0x00AA00, 0xAA5500,
		0x0000AA, 0xAA00AA, 0x00AAAA, 0xAAAAAA,
		0x555555, 0xFF5555, 0x55FF55, 0xFFFF55,
		0x5555FF, 0xFF55FF, 0x55FFFF, 0xFFFFFF,
	},
	Foreground: 0xAAAAAA,
	Background: 0x000000,
}

// Resolve maps a cell color to a packed RGB888 value under this theme.
func (th Theme) Resolve(c term.AnsiColor) uint32 {
	switch c.Kind {
	case term.KindPalette:
		idx := c.Palette
		if int(idx) >= len(th.AnsiColors) {
			idx = 0
		}
		return th.AnsiColors[idx]
	case term.KindRgb:
		return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	case term.KindDefaultBg:
		return th.Background
	default:
		return th.Foreground
	}
}
