// Package hal exposes the process-wide singletons the rest of the kernel
// treats as hardware: right now just the active terminal.
package hal

import (
	"github.com/maxmitchelson/lumos/kernel/boot"
	"github.com/maxmitchelson/lumos/kernel/term"
	"github.com/maxmitchelson/lumos/kernel/term/render"
	"github.com/maxmitchelson/lumos/kernel/video/fb"
	"github.com/maxmitchelson/lumos/kernel/video/font"
)

const (
	glyphWidth  = 8
	glyphHeight = 16
	bufferLines = 25
)

// Terminal is the minimal surface kfmt/early and klog need from whatever
// terminal is currently active.
type Terminal interface {
	Write(p []byte) (int, error)
	WriteByte(b byte) error
	Clear()
}

// ActiveTerminal points to the currently active terminal. It is nil until
// InitTerminal has run.
var ActiveTerminal Terminal

// InitTerminal wires a TerminalBuffer to the boot framebuffer so the kernel
// can emit output. It falls back to a solid-block font rather than a real
// bitmap font, since decoding an actual font image is rasterization glue
// outside this repository's scope; the terminal is otherwise fully
// functional without one.
func InitTerminal() {
	base, width, height := boot.FramebufferInfo()
	device := fb.NewHardware(base, width, height)

	columns := width / glyphWidth
	rows := height / glyphHeight

	buf := term.NewTerminalBuffer(columns, bufferLines)
	glyphs := font.NewSolid(glyphWidth, glyphHeight)

	ActiveTerminal = render.New(buf, device, glyphs, render.DefaultTheme, rows)
}
