//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Hz    int
	Ticks uint64
}

// RunHeadless runs the OS on the stdio serial port without a window.
// start is expected to block until the OS goes down; RunHeadless returns
// when it does, when the tick budget is exhausted, or when ctx is
// cancelled.
func RunHeadless(ctx context.Context, cfg Config, hcfg HeadlessConfig, start func(HAL)) error {
	if hcfg.Hz <= 0 {
		hcfg.Hz = 60
	}

	hh, err := New(cfg)
	if err != nil {
		return err
	}
	h := hh.(*hostHAL)

	restore, err := h.serial.RawMode()
	if err != nil {
		return fmt.Errorf("raw console: %w", err)
	}
	defer restore()

	done := make(chan struct{})
	go func() {
		defer close(done)
		start(h)
	}()

	d := time.Second / time.Duration(hcfg.Hz)
	t := time.NewTicker(d)
	defer t.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-t.C:
			h.t.step()
			tick++
			if hcfg.Ticks > 0 && tick >= hcfg.Ticks {
				return nil
			}
		}
	}
}
