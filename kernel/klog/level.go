// Package klog implements the kernel's level-filtered logging facade: a
// static minimum level, a "[LEVEL]: message\n" line format, and an
// ANSI-colored level token, written through any io.Writer (in practice the
// active terminal).
package klog

// Level orders the severities a log line can carry, from least to most
// severe.
type Level uint8

const (
	Debug Level = iota
	Info
	Warn
	Error
	Critical
)

// String returns the bare level token, e.g. "WARN".
func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ansiCode returns the SGR color code the level token is wrapped in.
func (l Level) ansiCode() string {
	switch l {
	case Debug, Info:
		return "32"
	case Warn:
		return "33"
	case Error:
		return "91"
	case Critical:
		return "31"
	default:
		return "0"
	}
}
