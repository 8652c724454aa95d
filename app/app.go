// Package app wires the board, the kernel and the system threads into a
// running OS.
package app

import (
	"ember/boot"
	"ember/console"
	"ember/cpu"
	"ember/flashfs"
	"ember/hal"
	"ember/kernel"
	"ember/lib"
	"ember/shell"
)

// Config selects the console port and optional loader stage.
type Config struct {
	// Serial overrides the HAL serial port (the windowed console).
	Serial hal.Serial
	// Loader runs the boot loader REPL before starting the kernel.
	Loader bool
}

// Run boots the OS and blocks until the kernel goes down.
func Run(h hal.HAL, cfg Config) {
	serial := cfg.Serial
	if serial == nil {
		serial = h.Serial()
	}

	// A broken flash volume only disables the file commands.
	vol, err := flashfs.Mount(h.Flash())
	if err != nil {
		vol = nil
	}

	if cfg.Loader {
		boot.New(serial, vol).Run()
	}

	c := cpu.New()
	k := kernel.New(c, serial)
	drv := console.NewDriver(c, serial)
	sh := shell.New(vol)

	lib.Puts(serial, "ember boot succeed!\n")

	k.Start(func(ctx *kernel.Context, args []string) int {
		ctx.Run(drv.Main, "consdrv", 1, 0x400, nil)
		ctx.Run(sh.Main, "command", 8, 0x400, nil)

		// Drop to the idle level and sleep the CPU between interrupts.
		ctx.ChangePriority(kernel.PriorityNum - 1)
		ctx.EnableInterrupts()
		for {
			ctx.Idle()
		}
	}, "idle", 0, 0x100, nil)
}
