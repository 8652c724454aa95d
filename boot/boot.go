// Package boot is the pre-kernel loader: a small REPL on the raw serial
// port that receives an image over XMODEM, inspects it, and stores it on
// the flash volume before the kernel starts.
package boot

import (
	"strings"

	"ember/flashfs"
	"ember/hal"
	"ember/lib"
	"ember/xmodem"
)

const bufferSize = 64 * 1024

// Loader holds the serial port, the optional flash volume and the load
// buffer.
type Loader struct {
	serial hal.Serial
	vol    *flashfs.Volume

	buf  []byte
	size int
}

func New(serial hal.Serial, vol *flashfs.Volume) *Loader {
	return &Loader{serial: serial, vol: vol, buf: make([]byte, bufferSize), size: -1}
}

// Run serves loader commands until "boot" (or end of input) and then
// returns so the kernel can start.
func (l *Loader) Run() {
	lib.Puts(l.serial, "ember loader started.\n")

	for {
		lib.Puts(l.serial, "loader> ")
		line, ok := l.gets()
		if !ok {
			return
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "load":
			n, err := xmodem.Receive(l.serial, l.buf)
			if err != nil {
				l.size = -1
				lib.Puts(l.serial, "\nXMODEM receive error!\n")
				continue
			}
			l.size = n
			lib.Puts(l.serial, "\nXMODEM receive succeeded.\n")

		case "dump":
			lib.Puts(l.serial, "size: ")
			lib.PutXval(l.serial, uint32(l.size), 0)
			lib.Puts(l.serial, "\n")
			l.dump()

		case "save":
			if len(args) < 2 {
				lib.Puts(l.serial, "save: missing name.\n")
				continue
			}
			l.save(args[1])

		case "boot":
			return

		default:
			lib.Puts(l.serial, "unknown.\n")
		}
	}
}

func (l *Loader) save(name string) {
	if l.size < 0 {
		lib.Puts(l.serial, "no data.\n")
		return
	}
	if l.vol == nil {
		lib.Puts(l.serial, "no filesystem.\n")
		return
	}
	if err := l.vol.WriteFile(name, l.buf[:l.size]); err != nil {
		lib.Puts(l.serial, "save failed.\n")
		return
	}
	lib.Puts(l.serial, "saved.\n")
}

// dump hex-dumps the loaded image, sixteen bytes per line.
func (l *Loader) dump() {
	if l.size < 0 {
		lib.Puts(l.serial, "no data.\n")
		return
	}
	for i := 0; i < l.size; i++ {
		lib.PutXval(l.serial, uint32(l.buf[i]), 2)
		switch {
		case i&0xf == 15:
			lib.Puts(l.serial, "\n")
		case i&0xf == 7:
			lib.Puts(l.serial, "  ")
		default:
			lib.Puts(l.serial, " ")
		}
	}
	lib.Puts(l.serial, "\n")
}

// gets reads one echoed line; false means the input stream ended.
func (l *Loader) gets() (string, bool) {
	var line []byte
	var b [1]byte
	for {
		if _, err := l.serial.Read(b[:]); err != nil {
			return "", false
		}
		switch b[0] {
		case '\r', '\n':
			lib.Puts(l.serial, "\n")
			return string(line), true
		case 0x7f, 0x08:
			if len(line) > 0 {
				line = line[:len(line)-1]
				lib.Puts(l.serial, "\b \b")
			}
		default:
			if b[0] >= 0x20 && len(line) < 80 {
				line = append(line, b[0])
				lib.Puts(l.serial, string(rune(b[0])))
			}
		}
	}
}
