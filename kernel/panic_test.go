package kernel

import (
	"bytes"
	"testing"

	"github.com/maxmitchelson/lumos/kernel/cpu"
	"github.com/maxmitchelson/lumos/kernel/hal"
)

// bufferTerminal is a minimal hal.Terminal test double that just records
// every byte written to it, without any of the real terminal's buffering,
// ANSI decoding, or framebuffer rendering.
type bufferTerminal struct {
	bytes.Buffer
}

func (b *bufferTerminal) Clear() {
	b.Buffer.Reset()
}

func TestPanic(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
	}()

	var cpuHaltCalled bool
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}

	t.Run("with error", func(t *testing.T) {
		cpuHaltCalled = false
		term := &bufferTerminal{}
		hal.ActiveTerminal = term
		err := &Error{Module: "test", Message: "panic test"}

		Panic(err)

		exp := "\n-----------------------------------\n[test] unrecoverable error: panic test\n*** kernel panic: system halted ***\n-----------------------------------\n"
		if got := term.String(); got != exp {
			t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
		}
		if !cpuHaltCalled {
			t.Fatal("expected cpu.Halt() to be called by Panic")
		}
	})

	t.Run("without error", func(t *testing.T) {
		cpuHaltCalled = false
		term := &bufferTerminal{}
		hal.ActiveTerminal = term

		Panic(nil)

		exp := "\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------\n"
		if got := term.String(); got != exp {
			t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
		}
		if !cpuHaltCalled {
			t.Fatal("expected cpu.Halt() to be called by Panic")
		}
	})
}
