// Package ansi implements the CSI (Control Sequence Introducer) decoder: a
// small state machine that turns an ESC-prefixed byte stream into terminal
// commands the renderer applies to a term.TerminalBuffer.
package ansi

import "github.com/maxmitchelson/lumos/kernel/term"

// CommandKind discriminates the command variants a finished CSI sequence can
// produce.
type CommandKind uint8

const (
	ResetGraphicRendition CommandKind = iota
	SetForeground
	SetBackground
	EraseDisplay
	EraseLine
	CursorMoveRelative
	CursorMoveAbsolute
	CursorMoveColumnAbsolute
	ScrollRelative
)

// EraseMode selects how much of a line or display an erase command clears.
type EraseMode uint8

const (
	AfterCursor EraseMode = iota
	BeforeCursor
	All
	AllPurgeScrollback
)

// Direction is the axis a relative cursor move or scroll operates on.
type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Command is a closed variant over every CSI sequence this decoder
// recognizes. Only the fields relevant to Kind are meaningful.
type Command struct {
	Kind CommandKind

	Color     term.AnsiColor
	EraseMode EraseMode
	Direction Direction
	Amount    uint32
	Line      uint32
	Column    uint32
}

// ErrorKind classifies why a CSI sequence was rejected.
type ErrorKind uint8

const (
	Unsupported ErrorKind = iota
	InvalidParameters
	BufferOverflow
)

// ResultKind discriminates a Feed call's outcome.
type ResultKind uint8

const (
	Incomplete ResultKind = iota
	Valid
	Error
)

// Result is what Feed returns for each byte: either the sequence needs more
// bytes, it completed into a Command, or it failed with an ErrorKind.
type Result struct {
	Kind    ResultKind
	Command Command
	Err     ErrorKind
}
