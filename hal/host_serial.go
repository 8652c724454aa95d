//go:build !tinygo

package hal

import (
	"os"
	"sync"
)

type hostSerial struct {
	mu sync.Mutex
	r  *os.File
	w  *os.File

	restore func()
}

func newHostSerial(r, w *os.File) *hostSerial {
	return &hostSerial{r: r, w: w}
}

func (s *hostSerial) Read(p []byte) (int, error) {
	if s.r == nil {
		return 0, ErrNotImplemented
	}
	return s.r.Read(p)
}

func (s *hostSerial) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, ErrNotImplemented
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// RawMode puts the input side into raw (unbuffered, no-echo) mode when it
// is a terminal, so the OS sees keystrokes byte by byte the way a UART
// would deliver them. The returned restore function undoes it.
func (s *hostSerial) RawMode() (restore func(), err error) {
	if s.r == nil {
		return func() {}, nil
	}
	return rawMode(int(s.r.Fd()))
}
