//go:build !tinygo

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"ember/app"
	"ember/hal"
	"ember/internal/buildinfo"
	"ember/term"
)

func main() {
	var headless bool
	var hcfg hal.HeadlessConfig
	var cfg hal.Config
	var loader bool
	flag.BoolVar(&headless, "headless", false, "Run on stdio instead of a window.")
	flag.IntVar(&hcfg.Hz, "hz", 60, "Tick rate in headless mode.")
	flag.Uint64Var(&hcfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.BoolVar(&loader, "loader", false, "Run the boot loader before starting the kernel.")
	flag.StringVar(&cfg.FlashPath, "flash", "flash.img", "Flash image file (empty = memory only).")
	flag.Parse()

	if headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err := hal.RunHeadless(ctx, cfg, hcfg, func(h hal.HAL) {
			app.Run(h, app.Config{Loader: loader})
		})
		if err != nil && err != context.Canceled {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	err := hal.RunWindow("Ember ("+buildinfo.Short()+")", cfg, func(h hal.HAL) {
		app.Run(h, app.Config{
			Serial: term.NewSerial(h.Display(), h.Input()),
			Loader: loader,
		})
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
