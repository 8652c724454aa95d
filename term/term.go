// Package term implements the windowed serial console: a hal.Serial
// whose output side renders through a VT100 terminal widget into the HAL
// framebuffer and whose input side is fed by the HAL keyboard.
package term

import (
	"sync"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"

	"ember/hal"
)

// Serial is the windowed console port.
type Serial struct {
	mu sync.Mutex
	t  *tinyterm.Terminal

	in chan byte
}

// NewSerial builds the console over a display and keyboard. Both must be
// present (window mode).
func NewSerial(disp hal.Display, in hal.Input) *Serial {
	fb := disp.Framebuffer()
	fb.ClearRGB(0, 0, 0)

	t := tinyterm.NewTerminal(newFBDisplay(fb))
	t.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        10,
		FontOffset:        8,
		UseSoftwareScroll: true,
	})

	s := &Serial{t: t, in: make(chan byte, 256)}
	go s.pumpKeys(in.Keyboard())
	return s
}

// Read blocks until at least one keystroke byte is available.
func (s *Serial) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, ok := <-s.in
	if !ok {
		return 0, hal.ErrNotImplemented
	}
	n := 0
	p[n] = b
	n++
	for n < len(p) {
		select {
		case b := <-s.in:
			p[n] = b
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

// Write renders bytes into the terminal.
func (s *Serial) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Write(p)
}

func (s *Serial) pumpKeys(kbd hal.Keyboard) {
	for ev := range kbd.Events() {
		if !ev.Press {
			continue
		}
		switch {
		case ev.Code == hal.KeyEnter:
			s.push('\n')
		case ev.Code == hal.KeyBackspace:
			s.push(0x7f)
		case ev.Code == hal.KeyEscape:
			s.push(0x1b)
		case ev.Code == hal.KeyTab:
			s.push('\t')
		case ev.Rune != 0:
			// ASCII console; multi-byte runes are dropped.
			if ev.Rune < 0x80 {
				s.push(byte(ev.Rune))
			}
		}
	}
}

func (s *Serial) push(b byte) {
	select {
	case s.in <- b:
	default:
	}
}
