// Package fb describes the pixel-level contract the renderer draws through.
// Acquiring a framebuffer from the bootloader and blitting glyphs onto it is
// bootloader/rasterization glue outside this repository's scope; what's
// specified here is the narrow interface the renderer needs, a software
// test double that satisfies it without any real hardware, and a Hardware
// implementation overlaid on an already-known framebuffer base address.
package fb

import (
	"reflect"
	"unsafe"

	"github.com/maxmitchelson/lumos/kernel/addr"
)

// Framebuffer is the pixel surface the renderer draws glyph cells onto. An
// implementation backed by a real Limine boot framebuffer response only
// needs to satisfy this interface; how it acquires its backing memory and
// rasterizes glyphs is deliberately not specified here.
type Framebuffer interface {
	// Dimensions returns the framebuffer's width and height in pixels.
	Dimensions() (width, height uint32)

	// SetPixel writes a single packed RGB888 pixel at (x, y). Coordinates
	// outside Dimensions() are a no-op.
	SetPixel(x, y uint32, rgb uint32)

	// Pixel reads back the packed RGB888 pixel at (x, y).
	Pixel(x, y uint32) uint32

	// Fill sets every pixel in the rectangle [x, x+width) x [y, y+height)
	// to rgb.
	Fill(x, y, width, height uint32, rgb uint32)
}

// Software is a Framebuffer backed by a plain Go slice, standing in for a
// real boot framebuffer in tests and in any build without display hardware.
type Software struct {
	width, height uint32
	pixels        []uint32
}

// NewSoftware allocates a Software framebuffer of the given dimensions,
// cleared to black.
func NewSoftware(width, height uint32) *Software {
	return &Software{
		width:  width,
		height: height,
		pixels: make([]uint32, uint64(width)*uint64(height)),
	}
}

// Dimensions implements Framebuffer.
func (s *Software) Dimensions() (uint32, uint32) {
	return s.width, s.height
}

// SetPixel implements Framebuffer.
func (s *Software) SetPixel(x, y uint32, rgb uint32) {
	if x >= s.width || y >= s.height {
		return
	}
	s.pixels[uint64(y)*uint64(s.width)+uint64(x)] = rgb
}

// Pixel implements Framebuffer.
func (s *Software) Pixel(x, y uint32) uint32 {
	if x >= s.width || y >= s.height {
		return 0
	}
	return s.pixels[uint64(y)*uint64(s.width)+uint64(x)]
}

// Fill implements Framebuffer.
func (s *Software) Fill(x, y, width, height uint32, rgb uint32) {
	maxY := y + height
	if maxY > s.height {
		maxY = s.height
	}
	maxX := x + width
	if maxX > s.width {
		maxX = s.width
	}
	for row := y; row < maxY; row++ {
		for col := x; col < maxX; col++ {
			s.pixels[uint64(row)*uint64(s.width)+uint64(col)] = rgb
		}
	}
}

// Hardware is a Framebuffer overlaid directly on the boot framebuffer's
// physical memory, the way a real Limine framebuffer response would be
// consumed. Acquiring base/width/height from the bootloader handoff is
// bootloader glue outside this package's scope; NewHardware only does the
// pointer overlay once those values are known.
type Hardware struct {
	width, height uint32
	pixels        []uint32
}

// NewHardware overlays a Hardware framebuffer onto the packed-RGB888 pixel
// memory starting at base.
func NewHardware(base addr.PhysicalAddress, width, height uint32) *Hardware {
	var pixels []uint32
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&pixels))
	hdr.Data = base.ToVirtual().Pointer()
	hdr.Len = int(width) * int(height)
	hdr.Cap = hdr.Len

	return &Hardware{width: width, height: height, pixels: pixels}
}

// Dimensions implements Framebuffer.
func (h *Hardware) Dimensions() (uint32, uint32) {
	return h.width, h.height
}

// SetPixel implements Framebuffer.
func (h *Hardware) SetPixel(x, y uint32, rgb uint32) {
	if x >= h.width || y >= h.height {
		return
	}
	h.pixels[uint64(y)*uint64(h.width)+uint64(x)] = rgb
}

// Pixel implements Framebuffer.
func (h *Hardware) Pixel(x, y uint32) uint32 {
	if x >= h.width || y >= h.height {
		return 0
	}
	return h.pixels[uint64(y)*uint64(h.width)+uint64(x)]
}

// Fill implements Framebuffer.
func (h *Hardware) Fill(x, y, width, height uint32, rgb uint32) {
	maxY := y + height
	if maxY > h.height {
		maxY = h.height
	}
	maxX := x + width
	if maxX > h.width {
		maxX = h.width
	}
	for row := y; row < maxY; row++ {
		for col := x; col < maxX; col++ {
			h.pixels[uint64(row)*uint64(h.width)+uint64(col)] = rgb
		}
	}
}
