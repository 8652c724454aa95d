// Package cpu simulates a single-core MCU behind the soft-vector facade.
//
// The kernel sees the same contract a bare-metal port would provide: a
// table of soft-vector handlers, a trap instruction that enters the
// installed handler with the saved stack pointer, a dispatch routine that
// resumes a suspended context, and a sleep instruction that waits for the
// next interrupt. Thread contexts are goroutines; at most one of them is
// unparked at any time.
package cpu

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Type identifies a soft-vector slot.
type Type uint8

const (
	Softerr Type = iota
	Syscall
	Serintr
	TypeNum
)

// Handler is a low-level dispatch target installed with SetIntr. It runs
// with the interrupted context's general registers already saved and sp
// pointing at the saved frame.
type Handler func(typ Type, sp uint32)

// Context is the per-thread slice of CPU state. SP is the saved stack
// pointer while the context is suspended; the register file lives in the
// context's goroutine.
type Context struct {
	SP uint32

	entry   func()
	resume  chan struct{}
	started bool
	boot    bool
}

// CPU is a simulated single-core processor.
type CPU struct {
	vectors [TypeNum]Handler
	pending chan Type
	intrOn  atomic.Bool

	running *Context

	stopOnce sync.Once
	stopped  chan struct{}
}

func New() *CPU {
	return &CPU{
		pending: make(chan Type, 64),
		stopped: make(chan struct{}),
	}
}

// SetIntr installs handler as the low-level dispatch target for typ.
func (c *CPU) SetIntr(typ Type, handler Handler) int {
	if typ >= TypeNum {
		return -1
	}
	c.vectors[typ] = handler
	return 0
}

// Trap raises a synchronous exception on the calling goroutine: the
// installed vector runs with the given saved stack pointer. A trap works
// even while interrupts are masked.
func (c *CPU) Trap(typ Type, sp uint32) {
	if typ < TypeNum && c.vectors[typ] != nil {
		c.vectors[typ](typ, sp)
	}
}

// Raise requests an asynchronous interrupt. Safe to call from any device
// goroutine. Requests coalesce when the request queue is full, so handlers
// must drain their device state on every delivery.
func (c *CPU) Raise(typ Type) {
	select {
	case c.pending <- typ:
	default:
	}
}

// EnableInterrupts clears the live interrupt-mask bit.
func (c *CPU) EnableInterrupts() { c.intrOn.Store(true) }

// DisableInterrupts sets the live interrupt-mask bit.
func (c *CPU) DisableInterrupts() { c.intrOn.Store(false) }

// InterruptsEnabled reports the live interrupt-mask bit. The kernel
// pushes it into the interrupted thread's frame at trap entry and
// restores it from the winner's frame at dispatch, the way a
// return-from-exception reloads the status register.
func (c *CPU) InterruptsEnabled() bool { return c.intrOn.Load() }

// SetInterruptsEnabled loads the live interrupt-mask bit (dispatch path).
func (c *CPU) SetInterruptsEnabled(on bool) { c.intrOn.Store(on) }

// Pending pops one pending interrupt request. The kernel polls this at
// trap boundaries after deciding the dispatched thread accepts
// interrupts.
func (c *CPU) Pending() (Type, bool) {
	select {
	case typ := <-c.pending:
		return typ, true
	default:
		return 0, false
	}
}

// Halt is the CPU sleep instruction: it blocks until an interrupt request
// is pending and returns its vector so the caller can enter the trap
// path. Returns false once the CPU has been stopped.
func (c *CPU) Halt() (Type, bool) {
	select {
	case typ := <-c.pending:
		return typ, true
	case <-c.stopped:
		return 0, false
	}
}

// Reset prepares the CPU for a cold start and returns the boot context:
// the calling goroutine itself, which parks on the first dispatch and
// unwinds when the CPU stops.
func (c *CPU) Reset() *Context {
	boot := &Context{boot: true, started: true, resume: make(chan struct{}, 1)}
	c.running = boot
	c.intrOn.Store(false)
	return boot
}

// InitContext prepares ctx so that its first dispatch enters entry with
// the crafted frame at sp.
func (c *CPU) InitContext(ctx *Context, sp uint32, entry func()) {
	ctx.SP = sp
	ctx.entry = entry
	ctx.resume = make(chan struct{}, 1)
	ctx.started = false
	ctx.boot = false
}

// DestroyContext releases a context whose thread has been terminated. If
// the context's goroutine is currently executing (a thread destroying
// itself in trap context), it exits at its next park.
func (c *CPU) DestroyContext(ctx *Context) {
	if ctx.resume != nil {
		close(ctx.resume)
		ctx.resume = nil
	}
}

// Dispatch resumes next and suspends the calling context. It returns only
// when the caller is dispatched again; for a destroyed caller it never
// returns (the goroutine exits), and for the boot context it returns once
// the CPU stops.
func (c *CPU) Dispatch(next *Context) {
	prev := c.running
	c.running = next
	if next != prev {
		if !next.started {
			next.started = true
			go next.entry()
		} else {
			next.resume <- struct{}{}
		}
		c.park(prev)
	}
}

func (c *CPU) park(ctx *Context) {
	if ctx == nil {
		return
	}
	resume := ctx.resume
	if resume == nil {
		// Destroyed before parking.
		runtime.Goexit()
	}
	select {
	case _, ok := <-resume:
		if !ok {
			runtime.Goexit()
		}
	case <-c.stopped:
		if !ctx.boot {
			runtime.Goexit()
		}
	}
}

// Stop halts the CPU for good. The boot context unwinds; every other
// caller's goroutine exits here.
func (c *CPU) Stop() {
	c.stopOnce.Do(func() { close(c.stopped) })
	if c.running == nil || !c.running.boot {
		runtime.Goexit()
	}
}

// Stopped is closed once the CPU has halted fatally.
func (c *CPU) Stopped() <-chan struct{} { return c.stopped }
