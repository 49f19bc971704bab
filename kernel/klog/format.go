package klog

import "io"

// writeFormatted is a small, allocation-free subset of Printf adapted from
// kfmt/early's verb handling, parameterized over the destination writer
// instead of the early-boot terminal: log lines need the same restriction
// (no fmt package, no reflect) since klog itself doesn't pretend it has a Go
// runtime's full formatting machinery, but don't need early's width/padding
// support since log messages are short and rarely columnar.
func writeFormatted(w io.Writer, format string, args []interface{}) {
	var argIndex int
	fmtLen := len(format)

	for i := 0; i < fmtLen; i++ {
		ch := format[i]
		if ch != '%' {
			io.WriteString(w, string(ch))
			continue
		}

		i++
		if i >= fmtLen {
			break
		}

		if format[i] == '%' {
			io.WriteString(w, "%")
			continue
		}

		if argIndex >= len(args) {
			io.WriteString(w, "%!(MISSING)")
			continue
		}
		writeArg(w, format[i], args[argIndex])
		argIndex++
	}
}

func writeArg(w io.Writer, verb byte, arg interface{}) {
	switch verb {
	case 's':
		writeString(w, arg)
	case 'd':
		writeInt(w, arg, 10)
	case 'x':
		writeInt(w, arg, 16)
	case 'o':
		writeInt(w, arg, 8)
	case 't':
		writeBool(w, arg)
	default:
		io.WriteString(w, "%!(NOVERB)")
	}
}

func writeString(w io.Writer, v interface{}) {
	switch s := v.(type) {
	case string:
		io.WriteString(w, s)
	case []byte:
		w.Write(s)
	default:
		io.WriteString(w, "%!(WRONGTYPE)")
	}
}

func writeBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	if !ok {
		io.WriteString(w, "%!(WRONGTYPE)")
		return
	}
	if b {
		io.WriteString(w, "true")
		return
	}
	io.WriteString(w, "false")
}

func writeInt(w io.Writer, v interface{}, base uint64) {
	uval, neg, ok := asInt(v)
	if !ok {
		io.WriteString(w, "%!(WRONGTYPE)")
		return
	}

	var buf [20]byte
	pos := len(buf)
	if uval == 0 {
		pos--
		buf[pos] = '0'
	}
	for uval > 0 {
		digit := uval % base
		pos--
		if digit < 10 {
			buf[pos] = byte(digit) + '0'
		} else {
			buf[pos] = byte(digit-10) + 'a'
		}
		uval /= base
	}

	if neg {
		pos--
		buf[pos] = '-'
	}
	w.Write(buf[pos:])
}

func asInt(v interface{}) (uval uint64, neg bool, ok bool) {
	switch n := v.(type) {
	case int:
		return signedToUnsigned(int64(n))
	case int8:
		return signedToUnsigned(int64(n))
	case int16:
		return signedToUnsigned(int64(n))
	case int32:
		return signedToUnsigned(int64(n))
	case int64:
		return signedToUnsigned(n)
	case uint:
		return uint64(n), false, true
	case uint8:
		return uint64(n), false, true
	case uint16:
		return uint64(n), false, true
	case uint32:
		return uint64(n), false, true
	case uint64:
		return n, false, true
	case uintptr:
		return uint64(n), false, true
	default:
		return 0, false, false
	}
}

func signedToUnsigned(v int64) (uint64, bool, bool) {
	if v < 0 {
		return uint64(-v), true, true
	}
	return uint64(v), false, true
}
