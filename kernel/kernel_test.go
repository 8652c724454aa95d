package kernel

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"ember/cpu"
	"ember/lib"
)

// consoleLog captures kernel console output across goroutines.
type consoleLog struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *consoleLog) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *consoleLog) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// runScenario boots a kernel around fn and waits for it to go down.
func runScenario(t *testing.T, name string, priority int, fn Func) string {
	t.Helper()

	w := &consoleLog{}
	k := New(cpu.New(), w)

	done := make(chan struct{})
	go func() {
		defer close(done)
		k.Start(fn, name, priority, 0x400, nil)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("kernel did not stop")
	}
	return w.String()
}

func TestScenarioHello(t *testing.T) {
	out := runScenario(t, "hello", 1, func(ctx *Context, args []string) int {
		lib.Puts(ctx.Console(), "Hello World!\n")
		ctx.Sleep()
		return 0
	})

	if !strings.HasPrefix(out, "Hello World!\n") {
		t.Fatalf("output = %q, want prefix %q", out, "Hello World!\n")
	}
	if !strings.Contains(out, "system error!\n") {
		t.Fatalf("output = %q, want starvation panic", out)
	}
}

func TestScenarioExitVisibility(t *testing.T) {
	out := runScenario(t, "command", 8, func(ctx *Context, args []string) int {
		return 0
	})

	if !strings.Contains(out, "command EXIT.\n") {
		t.Fatalf("output = %q, want %q", out, "command EXIT.\n")
	}
	if strings.Count(out, "EXIT.") != 1 {
		t.Fatalf("output = %q, want exactly one EXIT", out)
	}
}

func TestScenarioStarvationPanic(t *testing.T) {
	out := runScenario(t, "lonely", 1, func(ctx *Context, args []string) int {
		return 0
	})

	if !strings.Contains(out, "system error!\n") {
		t.Fatalf("output = %q, want %q", out, "system error!\n")
	}
}

func TestScenarioPriorityPreemption(t *testing.T) {
	var bID ThreadID

	out := runScenario(t, "boot", 0, func(ctx *Context, args []string) int {
		bID = ctx.Run(func(ctx *Context, args []string) int {
			lib.Puts(ctx.Console(), "B:start\n")
			ctx.Sleep()
			lib.Puts(ctx.Console(), "B:woken\n")
			return 0
		}, "beta", 1, 0x400, nil)

		ctx.Run(func(ctx *Context, args []string) int {
			lib.Puts(ctx.Console(), "A:before\n")
			ctx.Wakeup(bID)
			lib.Puts(ctx.Console(), "A:after\n")
			return 0
		}, "alpha", 8, 0x400, nil)

		ctx.Sleep()
		return 0
	})

	want := "B:start\nA:before\nB:woken\nbeta EXIT.\nA:after\nalpha EXIT.\nsystem error!\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestScenarioRendezvousReceiverFirst(t *testing.T) {
	var (
		sent     Ptr
		recvP    Ptr
		recvSize int
		sendRet  int
	)

	out := runScenario(t, "boot", 0, func(ctx *Context, args []string) int {
		ctx.Run(func(ctx *Context, args []string) int {
			_, size, p := ctx.Recv(MsgBox1)
			recvSize = size
			recvP = p
			lib.Puts(ctx.Console(), "R:"+string(ctx.Bytes(p, size)))
			ctx.Kmfree(p)
			return 0
		}, "recvr", 1, 0x400, nil)

		ctx.Run(func(ctx *Context, args []string) int {
			p := ctx.Kmalloc(15)
			copy(ctx.Bytes(p, 15), "static memory\n")
			sent = p
			sendRet = ctx.Send(MsgBox1, 15, p)
			return 0
		}, "sendr", 2, 0x400, nil)

		ctx.Sleep()
		return 0
	})

	if sendRet != 15 {
		t.Fatalf("send ret = %d, want 15", sendRet)
	}
	if recvSize != 15 || recvP != sent {
		t.Fatalf("recv = (%d,%#x), want (15,%#x)", recvSize, recvP, sent)
	}
	if !strings.Contains(out, "R:static memory\n") {
		t.Fatalf("output = %q, want the delivered payload", out)
	}
}

func TestScenarioRendezvousSenderFirst(t *testing.T) {
	var (
		k        *Kernel
		sent     [2]Ptr
		received [2]Ptr
	)

	w := &consoleLog{}
	k = New(cpu.New(), w)

	done := make(chan struct{})
	go func() {
		defer close(done)
		k.Start(func(ctx *Context, args []string) int {
			ctx.Run(func(ctx *Context, args []string) int {
				for i := 0; i < 2; i++ {
					p := ctx.Kmalloc(18)
					copy(ctx.Bytes(p, 18), "allocated memory\n")
					sent[i] = p
					ctx.Send(MsgBox2, 18, p)
				}
				return 0
			}, "sendr", 1, 0x400, nil)

			ctx.Run(func(ctx *Context, args []string) int {
				for i := 0; i < 2; i++ {
					_, _, p := ctx.Recv(MsgBox2)
					received[i] = p
					ctx.Kmfree(p)
				}
				return 0
			}, "recvr", 2, 0x400, nil)

			ctx.Sleep()
			return 0
		}, "boot", 0, 0x400, nil)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("kernel did not stop")
	}

	if received != sent {
		t.Fatalf("received %#v, want FIFO order %#v", received, sent)
	}
	// Everything was freed, so the heap is back to its initial state.
	if got := k.mem.freeBytes(); got != kmemArenaSize {
		t.Fatalf("freeBytes() = %d after the exchange, want %d", got, kmemArenaSize)
	}
}

func TestScenarioSoftErrDestroysThread(t *testing.T) {
	out := runScenario(t, "boot", 0, func(ctx *Context, args []string) int {
		ctx.Run(func(ctx *Context, args []string) int {
			// A software-error trap hits this thread mid-run.
			ctx.k.cpu.Trap(cpu.Softerr, ctx.self.context.SP)
			return 0
		}, "faulty", 1, 0x400, nil)

		ctx.Sleep()
		return 0
	})

	if !strings.Contains(out, "faulty DOWN.\n") {
		t.Fatalf("output = %q, want %q", out, "faulty DOWN.\n")
	}
	if !strings.Contains(out, "faulty EXIT.\n") {
		t.Fatalf("output = %q, want the faulty thread destroyed", out)
	}
}

func TestScenarioRunFailureReturnsMinusOne(t *testing.T) {
	var got ThreadID

	runScenario(t, "boot", 0, func(ctx *Context, args []string) int {
		for i := 0; i < threadNum-1; i++ {
			ctx.Run(func(ctx *Context, args []string) int {
				ctx.Sleep()
				return 0
			}, "filler", 5, 0x100, nil)
		}
		got = ctx.Run(nopThread, "overflow", 5, 0x100, nil)
		ctx.Sleep()
		return 0
	})

	if got != -1 {
		t.Fatalf("Run() with a full thread table = %d, want -1", got)
	}
}
