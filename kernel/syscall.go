package kernel

import (
	"io"
	"runtime"

	"ember/cpu"
)

type syscallType int

const (
	syscallRun syscallType = iota
	syscallExit
	syscallWait
	syscallSleep
	syscallWakeup
	syscallGetID
	syscallChangePriority
	syscallKmalloc
	syscallKmfree
	syscallSend
	syscallRecv
	syscallSetIntr
)

// syscallParams is the per-call parameter block, one variant per system
// call, each with its own ret slot. It lives on the calling goroutine's
// stack across the trap; blocking calls get their results written while
// the caller is suspended.
type syscallParams struct {
	run struct {
		fn        Func
		name      string
		priority  int
		stackSize int
		args      []string
		ret       ThreadID
	}
	wait struct {
		ret int
	}
	sleep struct {
		ret int
	}
	wakeup struct {
		id  ThreadID
		ret int
	}
	getid struct {
		ret ThreadID
	}
	chpri struct {
		priority int
		ret      int
	}
	kmalloc struct {
		size int
		ret  Ptr
	}
	kmfree struct {
		p   Ptr
		ret int
	}
	send struct {
		id   MsgBoxID
		size int
		p    Ptr
		ret  int
	}
	recv struct {
		id   MsgBoxID
		ret  ThreadID
		size int
		p    Ptr
	}
	setintr struct {
		typ     cpu.Type
		handler Handler
		ret     int
	}
}

// callFunctions runs one primitive. The primitives reassign current, so
// nothing here may cache it across the call.
func (k *Kernel) callFunctions(typ syscallType, p *syscallParams) {
	switch typ {
	case syscallRun:
		p.run.ret = k.threadRun(p.run.fn, p.run.name, p.run.priority,
			p.run.stackSize, p.run.args)
	case syscallExit:
		// The TCB is gone afterwards; there is no ret to write.
		k.threadExit()
	case syscallWait:
		p.wait.ret = k.threadWait()
	case syscallSleep:
		p.sleep.ret = k.threadSleep()
	case syscallWakeup:
		p.wakeup.ret = k.threadWakeup(p.wakeup.id)
	case syscallGetID:
		p.getid.ret = k.threadGetID()
	case syscallChangePriority:
		p.chpri.ret = k.threadChangePriority(p.chpri.priority)
	case syscallKmalloc:
		p.kmalloc.ret = k.threadKmalloc(p.kmalloc.size)
	case syscallKmfree:
		p.kmfree.ret = k.threadKmfree(p.kmfree.p)
	case syscallSend:
		p.send.ret = k.threadSend(p.send.id, p.send.size, p.send.p)
	case syscallRecv:
		p.recv.ret = k.threadRecv(p.recv.id)
	case syscallSetIntr:
		p.setintr.ret = k.threadSetIntr(p.setintr.typ, p.setintr.handler)
	}
}

// syscallProc services a trap: the caller is removed from its ready
// queue first, so a primitive that keeps the caller runnable must put it
// back before returning.
func (k *Kernel) syscallProc(typ syscallType, p *syscallParams) {
	k.removeCurrent()
	k.callFunctions(typ, p)
}

// srvcallProc services a service call from interrupt context. current is
// cleared so primitives that record a caller (send, in particular) see an
// unambiguous "no caller"; the scheduler resets it on the way out of the
// interrupt.
func (k *Kernel) srvcallProc(typ syscallType, p *syscallParams) {
	k.current = nil
	k.callFunctions(typ, p)
}

// Context is a thread's handle on the kernel: the system-call stubs. Each
// stub writes the request into the thread's own TCB and executes the trap
// instruction.
type Context struct {
	k    *Kernel
	self *tcb
}

func (c *Context) syscall(typ syscallType, p *syscallParams) {
	c.self.syscall.typ = typ
	c.self.syscall.param = p
	c.k.cpu.Trap(cpu.Syscall, c.self.context.SP)
}

// Run creates a thread and returns its handle, -1 on failure.
func (c *Context) Run(fn Func, name string, priority, stackSize int, args []string) ThreadID {
	var p syscallParams
	p.run.fn = fn
	p.run.name = name
	p.run.priority = priority
	p.run.stackSize = stackSize
	p.run.args = args
	c.syscall(syscallRun, &p)
	return p.run.ret
}

// Exit terminates the calling thread. It does not return.
func (c *Context) Exit() {
	var p syscallParams
	c.syscall(syscallExit, &p)
}

// Wait yields the CPU: the caller is requeued at the tail of its
// priority.
func (c *Context) Wait() int {
	var p syscallParams
	c.syscall(syscallWait, &p)
	return p.wait.ret
}

// Sleep blocks the caller until another thread wakes it.
func (c *Context) Sleep() int {
	var p syscallParams
	c.syscall(syscallSleep, &p)
	return p.sleep.ret
}

// Wakeup makes a sleeping thread runnable again.
func (c *Context) Wakeup(id ThreadID) int {
	var p syscallParams
	p.wakeup.id = id
	c.syscall(syscallWakeup, &p)
	return p.wakeup.ret
}

// GetID returns the caller's handle.
func (c *Context) GetID() ThreadID {
	var p syscallParams
	c.syscall(syscallGetID, &p)
	return p.getid.ret
}

// ChangePriority sets the caller's priority (ignored if negative) and
// returns the old one.
func (c *Context) ChangePriority(priority int) int {
	var p syscallParams
	p.chpri.priority = priority
	c.syscall(syscallChangePriority, &p)
	return p.chpri.ret
}

// Kmalloc allocates from the kernel heap; null on exhaustion.
func (c *Context) Kmalloc(size int) Ptr {
	var p syscallParams
	p.kmalloc.size = size
	c.syscall(syscallKmalloc, &p)
	return p.kmalloc.ret
}

// Kmfree returns a heap block.
func (c *Context) Kmfree(ptr Ptr) int {
	var p syscallParams
	p.kmfree.p = ptr
	c.syscall(syscallKmfree, &p)
	return p.kmfree.ret
}

// Send appends a message to a box; ownership of the payload transfers to
// the receiver. Returns size.
func (c *Context) Send(id MsgBoxID, size int, ptr Ptr) int {
	var p syscallParams
	p.send.id = id
	p.send.size = size
	p.send.p = ptr
	c.syscall(syscallSend, &p)
	return p.send.ret
}

// Recv takes the next message from a box, blocking while it is empty.
// Returns the sender's handle, the payload size and the payload pointer.
func (c *Context) Recv(id MsgBoxID) (ThreadID, int, Ptr) {
	var p syscallParams
	p.recv.id = id
	c.syscall(syscallRecv, &p)
	return p.recv.ret, p.recv.size, p.recv.p
}

// SetIntr installs a user interrupt handler for a soft vector.
func (c *Context) SetIntr(typ cpu.Type, handler Handler) int {
	var p syscallParams
	p.setintr.typ = typ
	p.setintr.handler = handler
	c.syscall(syscallSetIntr, &p)
	return p.setintr.ret
}

// Idle executes the CPU sleep instruction: wait for an interrupt, then
// enter the kernel through the trap path. The idle-thread convention is
// to drop to the lowest priority and loop on Idle.
func (c *Context) Idle() {
	typ, ok := c.k.cpu.Halt()
	if !ok {
		// The CPU stopped while we slept.
		runtime.Goexit()
	}
	c.k.cpu.Trap(typ, c.self.context.SP)
}

// EnableInterrupts clears the CPU's global interrupt mask.
func (c *Context) EnableInterrupts() { c.k.cpu.EnableInterrupts() }

// Bytes returns the payload bytes behind a heap pointer.
func (c *Context) Bytes(p Ptr, n int) []byte { return c.k.Bytes(p, n) }

// Console returns the raw console stream.
func (c *Context) Console() io.Writer { return c.k.cons }

// SrvContext is the service-call interface handed to interrupt handlers:
// the same primitive set, executed synchronously in interrupt context
// with no calling thread.
type SrvContext struct {
	k *Kernel
}

func (s *SrvContext) srvcall(typ syscallType, p *syscallParams) {
	s.k.srvcallProc(typ, p)
}

// Send is the service-call variant of Context.Send; the message carries
// no sender.
func (s *SrvContext) Send(id MsgBoxID, size int, ptr Ptr) int {
	var p syscallParams
	p.send.id = id
	p.send.size = size
	p.send.p = ptr
	s.srvcall(syscallSend, &p)
	return p.send.ret
}

// Wakeup is the service-call variant of Context.Wakeup.
func (s *SrvContext) Wakeup(id ThreadID) int {
	var p syscallParams
	p.wakeup.id = id
	s.srvcall(syscallWakeup, &p)
	return p.wakeup.ret
}

// Kmalloc is the service-call variant of Context.Kmalloc.
func (s *SrvContext) Kmalloc(size int) Ptr {
	var p syscallParams
	p.kmalloc.size = size
	s.srvcall(syscallKmalloc, &p)
	return p.kmalloc.ret
}

// Kmfree is the service-call variant of Context.Kmfree.
func (s *SrvContext) Kmfree(ptr Ptr) int {
	var p syscallParams
	p.kmfree.p = ptr
	s.srvcall(syscallKmfree, &p)
	return p.kmfree.ret
}

// Bytes returns the payload bytes behind a heap pointer.
func (s *SrvContext) Bytes(p Ptr, n int) []byte { return s.k.Bytes(p, n) }
