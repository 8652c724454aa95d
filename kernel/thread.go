package kernel

import (
	"encoding/binary"

	"ember/cpu"
	"ember/lib"
)

const flagReady uint32 = 1 << 0

// Initial stack frame, one 32-bit word each, from the saved stack pointer
// upward: R0 (carries the thread handle) .. R6, the program-status word,
// and the exit-trampoline slot. The register file itself lives in the
// context's goroutine; the frame carries what the first dispatch and the
// mask check need.
const (
	frameWords  = 9
	frameSize   = frameWords * 4
	framePSWOff = 7 * 4

	pswIntrMask byte = 0xc0
)

// tcb is a thread control block. A slot is free iff init.fn is nil;
// termination zeroes the whole block.
type tcb struct {
	next     *tcb
	name     [threadNameSize + 1]byte
	priority int
	stack    uint32
	flags    uint32

	init struct {
		fn   Func
		args []string
	}

	syscall struct {
		typ   syscallType
		param *syscallParams
	}

	context cpu.Context
}

func (t *tcb) Name() string {
	n := 0
	for n < len(t.name) && t.name[n] != 0 {
		n++
	}
	return string(t.name[:n])
}

func (t *tcb) ready() bool { return t.flags&flagReady != 0 }

// thread maps a handle back to its control block, nil for anything that
// does not name a live thread.
func (k *Kernel) thread(id ThreadID) *tcb {
	if id <= 0 || int(id) > threadNum {
		return nil
	}
	t := &k.threads[id-1]
	if t.init.fn == nil {
		return nil
	}
	return t
}

func (k *Kernel) idOf(t *tcb) ThreadID {
	for i := range k.threads {
		if &k.threads[i] == t {
			return ThreadID(i + 1)
		}
	}
	return 0
}

// removeCurrent unlinks the current thread from its ready queue. The
// current thread is always the head of its queue.
func (k *Kernel) removeCurrent() int {
	if k.current == nil {
		return -1
	}
	if !k.current.ready() {
		return 1
	}

	q := &k.readyque[k.current.priority]
	q.head = k.current.next
	if q.head == nil {
		q.tail = nil
	}
	k.current.flags &^= flagReady
	k.current.next = nil

	return 0
}

// putCurrent links the current thread to the tail of its priority's
// ready queue.
func (k *Kernel) putCurrent() int {
	if k.current == nil {
		return -1
	}
	if k.current.ready() {
		return 1
	}

	q := &k.readyque[k.current.priority]
	if q.tail != nil {
		q.tail.next = k.current
	} else {
		q.head = k.current
	}
	q.tail = k.current
	k.current.flags |= flagReady

	return 0
}

// savePSW pushes the live interrupt-mask bit into t's saved frame, the
// way the hardware pushes the status register at exception entry.
func (k *Kernel) savePSW(t *tcb) {
	off := int(t.context.SP) + framePSWOff
	if off < 0 || off >= len(k.stackArena) {
		return
	}
	var psw byte
	if !k.cpu.InterruptsEnabled() {
		psw = pswIntrMask
	}
	k.stackArena[off] = psw
}

// threadMasked reports whether t runs with interrupts masked, read from
// the program-status word in its saved frame.
func (k *Kernel) threadMasked(t *tcb) bool {
	if t == nil {
		return false
	}
	off := int(t.context.SP) + framePSWOff
	if off < 0 || off >= len(k.stackArena) {
		return false
	}
	return k.stackArena[off]&pswIntrMask != 0
}

// threadEntry is the startup trampoline: run the entry function, then
// issue exit on its behalf.
func (k *Kernel) threadEntry(t *tcb) {
	ctx := &Context{k: k, self: t}
	t.init.fn(ctx, t.init.args)
	ctx.Exit()
}

// threadRun creates a thread: find a free TCB, carve and zero a stack
// from the bump arena, craft the initial frame, and requeue both the
// creator and the new thread.
func (k *Kernel) threadRun(fn Func, name string, priority, stackSize int, args []string) ThreadID {
	var thp *tcb
	i := 0
	for ; i < threadNum; i++ {
		thp = &k.threads[i]
		if thp.init.fn == nil {
			break
		}
	}
	if i == threadNum || fn == nil || priority < 0 || priority >= PriorityNum {
		// The caller stays runnable on failure.
		k.putCurrent()
		return -1
	}
	if stackSize < frameSize {
		stackSize = frameSize
	}

	*thp = tcb{}

	copy(thp.name[:threadNameSize], name)
	thp.priority = priority
	thp.init.fn = fn
	thp.init.args = args

	// Stack carving is monotonic: nothing is reclaimed on exit, so
	// repeated create/destroy eventually exhausts the arena.
	if k.stackTop+uint32(stackSize) > uint32(len(k.stackArena)) {
		k.sysdown()
		return -1
	}
	base := k.stackTop
	for j := base; j < base+uint32(stackSize); j++ {
		k.stackArena[j] = 0
	}
	k.stackTop += uint32(stackSize)
	thp.stack = k.stackTop

	// Initial frame: first dispatch pops it and lands in the startup
	// trampoline with the handle in the first argument register and
	// interrupts masked iff the thread has priority 0.
	sp := thp.stack - frameSize
	binary.BigEndian.PutUint32(k.stackArena[sp:], uint32(ThreadID(i+1)))
	var psw byte
	if priority == 0 {
		psw = pswIntrMask
	}
	k.stackArena[sp+framePSWOff] = psw

	k.cpu.InitContext(&thp.context, sp, func() { k.threadEntry(thp) })

	// Requeue the creator, then the new thread.
	k.putCurrent()

	k.current = thp
	k.putCurrent()

	return ThreadID(i + 1)
}

// threadExit destroys the current thread. It is not requeued; message
// buffers it still owns are leaked, so callers free before exiting.
func (k *Kernel) threadExit() int {
	lib.Puts(k.cons, k.current.Name()+" EXIT.\n")
	k.cpu.DestroyContext(&k.current.context)
	*k.current = tcb{}
	return 0
}

func (k *Kernel) threadWait() int {
	k.putCurrent()
	return 0
}

// threadSleep leaves the caller off every ready queue until a wakeup.
func (k *Kernel) threadSleep() int {
	return 0
}

func (k *Kernel) threadWakeup(id ThreadID) int {
	k.putCurrent()

	k.current = k.thread(id)
	k.putCurrent()

	return 0
}

func (k *Kernel) threadGetID() ThreadID {
	k.putCurrent()
	return k.idOf(k.current)
}

func (k *Kernel) threadChangePriority(priority int) int {
	old := k.current.priority
	if priority >= 0 && priority < PriorityNum {
		k.current.priority = priority
	}

	k.putCurrent()
	return old
}

func (k *Kernel) threadSetIntr(typ cpu.Type, handler Handler) int {
	k.cpu.SetIntr(typ, k.interruptEntry)
	k.handlers[typ] = handler

	k.putCurrent()
	return 0
}
