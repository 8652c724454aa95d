//go:build !tinygo

package hal

import "os"

// Config selects the host board devices.
type Config struct {
	// FlashPath is the backing file for the flash image; empty keeps
	// the image in memory only.
	FlashPath string
	// FlashSize is the flash image size in bytes (default 1 MiB).
	FlashSize uint32
	// Window attaches a framebuffer and keyboard for the windowed
	// console.
	Window bool
}

type hostHAL struct {
	serial *hostSerial
	flash  *hostFlash
	t      *hostTime
	fb     *hostFramebuffer
	kbd    *hostKeyboard
}

// New returns a host HAL implementation.
func New(cfg Config) (HAL, error) {
	if cfg.FlashSize == 0 {
		cfg.FlashSize = 1 << 20
	}
	flash, err := newHostFlash(cfg.FlashPath, cfg.FlashSize)
	if err != nil {
		return nil, err
	}

	h := &hostHAL{
		serial: newHostSerial(os.Stdin, os.Stdout),
		flash:  flash,
		t:      newHostTime(),
	}
	if cfg.Window {
		h.fb = newHostFramebuffer(480, 320)
		h.kbd = newHostKeyboard()
	}
	return h, nil
}

func (h *hostHAL) Serial() Serial { return h.serial }
func (h *hostHAL) Flash() Flash   { return h.flash }
func (h *hostHAL) Time() Time     { return h.t }

func (h *hostHAL) Display() Display {
	if h.fb == nil {
		return nil
	}
	return hostDisplay{fb: h.fb}
}

func (h *hostHAL) Input() Input {
	if h.kbd == nil {
		return nil
	}
	return hostInput{kbd: h.kbd}
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd *hostKeyboard
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }
