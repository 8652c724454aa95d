//go:build !linux && !tinygo

package hal

// rawMode is a no-op where termios is unavailable.
func rawMode(fd int) (restore func(), err error) {
	return func() {}, nil
}
