package ansi

import "github.com/maxmitchelson/lumos/kernel/term"

// maxParams bounds how many semicolon-separated fields a single CSI
// sequence may carry; a sixth field is rejected as Unsupported.
const maxParams = 5

// paramBufSize is the fixed capacity of the parameter accumulator; a longer
// run of parameter bytes overflows rather than growing.
const paramBufSize = 20

type state uint8

const (
	stateEscape state = iota
	stateCtrlSequenceID
	stateParameters
)

// Decoder is a CSI state machine: Escape -> CtrlSequenceId -> Parameters ->
// (Intermediate | Final). It is fed one byte at a time via Feed, starting
// from the ESC (0x1B) byte itself.
type Decoder struct {
	state    state
	paramBuf [paramBufSize]byte
	paramLen int
}

// New returns a Decoder ready to accept an ESC byte.
func New() *Decoder {
	return &Decoder{state: stateEscape}
}

func (d *Decoder) reset() {
	d.state = stateEscape
	d.paramLen = 0
}

// Feed advances the state machine by one byte and returns whether the
// sequence completed (Valid), needs more input (Incomplete), or failed
// (Error). On Valid or Error the decoder resets itself and is ready to
// accept a fresh ESC byte.
func (d *Decoder) Feed(b byte) Result {
	switch d.state {
	case stateEscape:
		if b != 0x1B {
			d.reset()
			return Result{Kind: Error, Err: Unsupported}
		}
		d.state = stateCtrlSequenceID
		return Result{Kind: Incomplete}

	case stateCtrlSequenceID:
		if b != '[' {
			d.reset()
			return Result{Kind: Error, Err: Unsupported}
		}
		d.state = stateParameters
		d.paramLen = 0
		return Result{Kind: Incomplete}

	case stateParameters:
		switch {
		case b >= 0x30 && b < 0x40:
			if d.paramLen >= len(d.paramBuf) {
				d.reset()
				return Result{Kind: Error, Err: BufferOverflow}
			}
			d.paramBuf[d.paramLen] = b
			d.paramLen++
			return Result{Kind: Incomplete}

		case b >= 0x20 && b < 0x30:
			// Intermediate byte: no intermediates are implemented in this
			// decoder, so any byte in this range is unsupported.
			d.reset()
			return Result{Kind: Error, Err: Unsupported}

		case b >= 0x40 && b < 0x80:
			result := d.finalize(b)
			d.reset()
			return result

		default:
			d.reset()
			return Result{Kind: Error, Err: Unsupported}
		}

	default:
		d.reset()
		return Result{Kind: Error, Err: Unsupported}
	}
}

// parseParams splits the accumulated parameter bytes on ';' into up to
// maxParams non-negative integers, defaulting empty fields to 0.
func (d *Decoder) parseParams() (params [maxParams]uint32, count int, ok bool) {
	var cur uint32
	for i := 0; i < d.paramLen; i++ {
		c := d.paramBuf[i]
		if c == ';' {
			if count >= maxParams {
				return params, count, false
			}
			params[count] = cur
			count++
			cur = 0
			continue
		}
		if c < '0' || c > '9' {
			return params, count, false
		}
		cur = cur*10 + uint32(c-'0')
	}
	if count >= maxParams {
		return params, count, false
	}
	params[count] = cur
	count++
	return params, count, true
}

func (d *Decoder) finalize(final byte) Result {
	params, count, ok := d.parseParams()
	if !ok {
		return Result{Kind: Error, Err: Unsupported}
	}

	switch final {
	case 'm':
		return sgrCommand(params, count)
	case 'J':
		return Result{Kind: Valid, Command: Command{Kind: EraseDisplay, EraseMode: eraseMode(params, count, true)}}
	case 'K':
		return Result{Kind: Valid, Command: Command{Kind: EraseLine, EraseMode: eraseMode(params, count, false)}}
	case 'A':
		return Result{Kind: Valid, Command: Command{Kind: CursorMoveRelative, Direction: Up, Amount: moveAmount(params, count)}}
	case 'B':
		return Result{Kind: Valid, Command: Command{Kind: CursorMoveRelative, Direction: Down, Amount: moveAmount(params, count)}}
	case 'C':
		return Result{Kind: Valid, Command: Command{Kind: CursorMoveRelative, Direction: Right, Amount: moveAmount(params, count)}}
	case 'D':
		return Result{Kind: Valid, Command: Command{Kind: CursorMoveRelative, Direction: Left, Amount: moveAmount(params, count)}}
	case 'H', 'f':
		var line, col uint32
		if count > 0 {
			line = params[0]
		}
		if count > 1 {
			col = params[1]
		}
		return Result{Kind: Valid, Command: Command{Kind: CursorMoveAbsolute, Line: line, Column: col}}
	case 'G':
		var col uint32
		if count > 0 {
			col = params[0]
		}
		return Result{Kind: Valid, Command: Command{Kind: CursorMoveColumnAbsolute, Column: col}}
	case 'S':
		return Result{Kind: Valid, Command: Command{Kind: ScrollRelative, Direction: Down, Amount: moveAmount(params, count)}}
	case 'T':
		return Result{Kind: Valid, Command: Command{Kind: ScrollRelative, Direction: Up, Amount: moveAmount(params, count)}}
	default:
		return Result{Kind: Error, Err: Unsupported}
	}
}

func moveAmount(params [maxParams]uint32, count int) uint32 {
	if count == 0 || params[0] == 0 {
		return 1
	}
	return params[0]
}

func eraseMode(params [maxParams]uint32, count int, allowPurge bool) EraseMode {
	if count == 0 {
		return AfterCursor
	}
	switch params[0] {
	case 1:
		return BeforeCursor
	case 2:
		return All
	case 3:
		if allowPurge {
			return AllPurgeScrollback
		}
		return All
	default:
		return AfterCursor
	}
}

func sgrCommand(params [maxParams]uint32, count int) Result {
	if count == 0 || params[0] == 0 {
		return Result{Kind: Valid, Command: Command{Kind: ResetGraphicRendition}}
	}

	switch {
	case params[0] >= 30 && params[0] <= 37:
		return Result{Kind: Valid, Command: Command{Kind: SetForeground, Color: term.PaletteColor(uint8(params[0] - 30))}}
	case params[0] >= 90 && params[0] <= 97:
		return Result{Kind: Valid, Command: Command{Kind: SetForeground, Color: term.PaletteColor(uint8(params[0]-90) + 8)}}
	case params[0] >= 40 && params[0] <= 47:
		return Result{Kind: Valid, Command: Command{Kind: SetBackground, Color: term.PaletteColor(uint8(params[0] - 40))}}
	case params[0] >= 100 && params[0] <= 107:
		return Result{Kind: Valid, Command: Command{Kind: SetBackground, Color: term.PaletteColor(uint8(params[0]-100) + 8)}}
	case params[0] == 38:
		color, ok := extendedColor(params, count, 1)
		if !ok {
			return Result{Kind: Error, Err: InvalidParameters}
		}
		return Result{Kind: Valid, Command: Command{Kind: SetForeground, Color: color}}
	case params[0] == 48:
		color, ok := extendedColor(params, count, 1)
		if !ok {
			return Result{Kind: Error, Err: InvalidParameters}
		}
		return Result{Kind: Valid, Command: Command{Kind: SetBackground, Color: color}}
	default:
		return Result{Kind: Error, Err: Unsupported}
	}
}

// extendedColor decodes the "5;n" (256-color) or "2;r;g;b" (RGB) tail of an
// SGR 38/48 sequence, starting at params[at].
func extendedColor(params [maxParams]uint32, count, at int) (term.AnsiColor, bool) {
	if count <= at {
		return term.AnsiColor{}, false
	}
	switch params[at] {
	case 5:
		if count <= at+1 {
			return term.AnsiColor{}, false
		}
		return resolve256(uint8(params[at+1])), true
	case 2:
		if count <= at+3 {
			return term.AnsiColor{}, false
		}
		return term.RgbColor(uint8(params[at+1]), uint8(params[at+2]), uint8(params[at+3])), true
	default:
		return term.AnsiColor{}, false
	}
}

// resolve256 maps an xterm 256-color index to an AnsiColor: 0..16 stay
// within the 16-entry palette, 16..232 is the 6x6x6 color cube, and
// 232..256 is the grayscale ramp.
func resolve256(n uint8) term.AnsiColor {
	switch {
	case n < 16:
		return term.PaletteColor(n)
	case n < 232:
		idx := int(n) - 16
		r, g, b := idx/36, (idx/6)%6, idx%6
		return term.RgbColor(cubeLevel(r), cubeLevel(g), cubeLevel(b))
	default:
		level := uint8(8 + (int(n)-232)*10)
		return term.RgbColor(level, level, level)
	}
}

func cubeLevel(v int) uint8 {
	if v == 0 {
		return 0
	}
	return uint8(55 + v*40)
}
