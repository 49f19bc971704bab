package kernel

import (
	_ "unsafe" // required for go:linkname

	"github.com/maxmitchelson/lumos/kernel/addr"
	"github.com/maxmitchelson/lumos/kernel/boot"
	"github.com/maxmitchelson/lumos/kernel/hal"
	"github.com/maxmitchelson/lumos/kernel/kfmt/early"
	"github.com/maxmitchelson/lumos/kernel/klog"
	"github.com/maxmitchelson/lumos/kernel/mem/buddy"
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. This function is invoked by the rt0 assembly code
// after setting up the GDT and a minimal g0 struct that allows Go code to
// run using the 4K stack allocated by the assembly code.
//
// The Limine protocol hands the kernel its boot information through
// response structures the bootloader populates before jumping here, rather
// than through an argument, so Kmain takes nothing and reads the memory map
// and HHDM offset through the kernel/boot seam.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the
// CPU.
//
//go:noinline
func Kmain() {
	addr.SetHHDMOffset(boot.HHDMRequestOffset())

	if err := buddy.Init(boot.Entries()); err != nil {
		Panic(err)
	}

	hal.InitTerminal()
	hal.ActiveTerminal.Clear()
	early.Printf("Starting lumos\n")

	log := klog.New(hal.ActiveTerminal, klog.Info)
	log.Info("buddy allocator and terminal initialized")

	// Prevent Kmain from returning
	for {
	}
}
