// Package console is the interrupt-driven serial console driver: a
// kernel thread serving write requests from the ConsOutput box, plus a
// receive-interrupt handler that cooks keystrokes into lines and posts
// them to ConsInput through service calls.
package console

import (
	"ember/cpu"
	"ember/hal"
	"ember/kernel"
)

// Driver commands, first payload byte of every ConsOutput message.
const (
	CmdUse   = 'u'
	CmdWrite = 'w'
)

const lineMax = 128

// Driver is the console driver state shared between the driver thread
// and the receive-interrupt handler. The kernel serializes both.
type Driver struct {
	cpu    *cpu.CPU
	serial hal.Serial

	rx chan byte

	line     []byte
	attached bool
}

func NewDriver(c *cpu.CPU, serial hal.Serial) *Driver {
	return &Driver{
		cpu:    c,
		serial: serial,
		rx:     make(chan byte, 256),
		line:   make([]byte, 0, lineMax),
	}
}

// Main is the driver thread entry point: install the receive interrupt,
// start the receive pump, then serve write requests forever.
func (d *Driver) Main(ctx *kernel.Context, args []string) int {
	ctx.SetIntr(cpu.Serintr, d.intr)
	go d.pump()

	for {
		_, size, p := ctx.Recv(kernel.ConsOutput)
		buf := ctx.Bytes(p, size)
		if len(buf) > 0 {
			switch buf[0] {
			case CmdUse:
				d.attached = true
			case CmdWrite:
				_, _ = d.serial.Write(buf[1:])
			}
		}
		ctx.Kmfree(p)
	}
}

// pump moves bytes from the serial port into the receive ring and raises
// the serial interrupt. Runs on its own device goroutine; it touches no
// kernel state.
func (d *Driver) pump() {
	buf := make([]byte, 64)
	for {
		n, err := d.serial.Read(buf)
		for _, b := range buf[:n] {
			select {
			case d.rx <- b:
			default:
			}
		}
		if n > 0 {
			d.cpu.Raise(cpu.Serintr)
		}
		if err != nil {
			return
		}
	}
}

// intr runs in interrupt context. Interrupt requests coalesce, so it
// drains everything buffered.
func (d *Driver) intr(sc *kernel.SrvContext) {
	for {
		select {
		case b := <-d.rx:
			d.input(sc, b)
		default:
			return
		}
	}
}

func (d *Driver) input(sc *kernel.SrvContext, b byte) {
	if !d.attached {
		return
	}
	switch b {
	case '\r', '\n':
		d.echo("\n")
		d.line = append(d.line, '\n')
		d.flush(sc)
	case 0x7f, 0x08:
		if len(d.line) > 0 {
			d.line = d.line[:len(d.line)-1]
			d.echo("\b \b")
		}
	default:
		if b < 0x20 {
			return
		}
		if len(d.line) >= lineMax-1 {
			return
		}
		d.line = append(d.line, b)
		d.echo(string(rune(b)))
	}
}

// flush posts the cooked line to ConsInput; the receiver frees it.
func (d *Driver) flush(sc *kernel.SrvContext) {
	p := sc.Kmalloc(len(d.line))
	if p == 0 {
		d.line = d.line[:0]
		return
	}
	copy(sc.Bytes(p, len(d.line)), d.line)
	sc.Send(kernel.ConsInput, len(d.line), p)
	d.line = d.line[:0]
}

func (d *Driver) echo(s string) {
	_, _ = d.serial.Write([]byte(s))
}

// Use attaches the calling thread's console: echo and line delivery
// start after this.
func Use(ctx *kernel.Context) int {
	p := ctx.Kmalloc(1)
	if p == 0 {
		return -1
	}
	ctx.Bytes(p, 1)[0] = CmdUse
	return ctx.Send(kernel.ConsOutput, 1, p)
}

// Write sends s to the console driver for output. Ownership of the
// buffer transfers to the driver.
func Write(ctx *kernel.Context, s string) int {
	p := ctx.Kmalloc(1 + len(s))
	if p == 0 {
		return -1
	}
	buf := ctx.Bytes(p, 1+len(s))
	buf[0] = CmdWrite
	copy(buf[1:], s)
	return ctx.Send(kernel.ConsOutput, 1+len(s), p)
}
