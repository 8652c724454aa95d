// Package kernel implements a small preemptive real-time kernel: a fixed
// pool of threads multiplexed over one simulated CPU, priority FIFO
// scheduling, a trap-based system-call interface, a kernel heap, and
// rendezvous message boxes.
//
// All kernel state lives in a Kernel value. Kernel code runs either in
// trap context on the calling thread's goroutine or in interrupt context;
// the CPU port guarantees at most one of those at a time, which is the
// only locking discipline the kernel needs.
package kernel

import (
	"io"

	"ember/cpu"
	"ember/lib"
)

const (
	threadNum      = 6
	threadNameSize = 15

	// PriorityNum is the number of scheduling priorities. 0 is highest
	// and runs with interrupts masked; PriorityNum-1 is the idle level.
	PriorityNum = 16

	userStackSize = 64 * 1024
)

// ThreadID is an opaque thread handle. 0 means "no thread"; Run returns
// -1 when no thread control block is free.
type ThreadID int

// Func is a thread entry point.
type Func func(ctx *Context, args []string) int

// Handler is a user interrupt handler installed with Context.SetIntr. It
// runs in interrupt context and may issue service calls through sc.
type Handler func(sc *SrvContext)

// Kernel is the whole kernel state: thread control blocks, ready queues,
// soft-vector handlers, message boxes, the heap and the stack arena.
type Kernel struct {
	cpu  *cpu.CPU
	cons io.Writer

	threads  [threadNum]tcb
	readyque [PriorityNum]threadQueue
	current  *tcb

	handlers [cpu.TypeNum]Handler

	msgboxes [MsgBoxNum]msgbox

	mem kmem

	stackArena []byte
	stackTop   uint32
}

type threadQueue struct {
	head *tcb
	tail *tcb
}

// New creates a kernel bound to a CPU port and a console for boot, exit
// and panic messages.
func New(c *cpu.CPU, cons io.Writer) *Kernel {
	return &Kernel{cpu: c, cons: cons}
}

// Console returns the raw console the kernel prints to.
func (k *Kernel) Console() io.Writer { return k.cons }

// Stopped is closed when the kernel has gone down fatally.
func (k *Kernel) Stopped() <-chan struct{} { return k.cpu.Stopped() }

// Start initializes the kernel and runs fn as the initial thread. It
// blocks until the CPU stops.
func (k *Kernel) Start(fn Func, name string, priority, stackSize int, args []string) {
	k.cpu.Reset()
	k.initState()

	k.threadSetIntr(cpu.Syscall, func(sc *SrvContext) { sc.k.syscallIntr() })
	k.threadSetIntr(cpu.Softerr, func(sc *SrvContext) { sc.k.softerrIntr() })

	// No trap is possible yet, so the initial thread is created by
	// calling the primitive directly.
	id := k.threadRun(fn, name, priority, stackSize, args)
	if id < 0 {
		k.sysdown()
		return
	}
	k.current = k.thread(id)

	k.cpu.SetInterruptsEnabled(!k.threadMasked(k.current))
	k.cpu.Dispatch(&k.current.context)
}

func (k *Kernel) initState() {
	k.mem.init()
	k.current = nil
	k.readyque = [PriorityNum]threadQueue{}
	k.threads = [threadNum]tcb{}
	k.handlers = [cpu.TypeNum]Handler{}
	k.msgboxes = [MsgBoxNum]msgbox{}
	k.stackArena = make([]byte, userStackSize)
	k.stackTop = 0
}

// sysdown is the fatal stop: report and halt the CPU.
func (k *Kernel) sysdown() {
	lib.Puts(k.cons, "system error!\n")
	k.cpu.Stop()
}

// interruptEntry is the common entry for every soft vector. It records
// the interrupted thread's stack pointer, runs the handler for the
// vector, drains any deliverable pending interrupts, then schedules and
// dispatches the winner. It does not return to the interrupted code
// directly; control resumes through dispatch.
func (k *Kernel) interruptEntry(typ cpu.Type, sp uint32) {
	for {
		if k.current != nil {
			k.current.context.SP = sp
			k.savePSW(k.current)
		}

		if h := k.handlers[typ]; h != nil {
			h(&SrvContext{k: k})
		}

		k.schedule()

		if k.threadMasked(k.current) {
			break
		}
		next, ok := k.cpu.Pending()
		if !ok {
			break
		}
		// Taking the pending interrupt is a fresh exception on the
		// winner: reload its status word first.
		k.cpu.SetInterruptsEnabled(!k.threadMasked(k.current))
		typ = next
		sp = k.current.context.SP
	}

	// Return-from-exception reloads the winner's status word.
	k.cpu.SetInterruptsEnabled(!k.threadMasked(k.current))
	k.cpu.Dispatch(&k.current.context)
}

func (k *Kernel) syscallIntr() {
	k.syscallProc(k.current.syscall.typ, k.current.syscall.param)
}

func (k *Kernel) softerrIntr() {
	lib.Puts(k.cons, k.current.Name()+" DOWN.\n")
	k.removeCurrent()
	k.threadExit()
}

// schedule picks the head of the lowest-numbered non-empty ready queue.
// An empty ready set is fatal: the kernel has no idle fallback.
func (k *Kernel) schedule() {
	for i := 0; i < PriorityNum; i++ {
		if t := k.readyque[i].head; t != nil {
			k.current = t
			return
		}
	}
	k.sysdown()
}
