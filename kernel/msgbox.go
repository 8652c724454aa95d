package kernel

import "encoding/binary"

// MsgBoxID names one of the compile-time message boxes.
type MsgBoxID int

const (
	ConsInput MsgBoxID = iota
	ConsOutput
	MsgBox1
	MsgBox2
	MsgBoxNum
)

// A message envelope lives on the kernel heap from send to the matching
// recv: next pointer, sender handle, payload size, payload pointer, one
// 32-bit word each. The payload itself is never copied.
const msgbufSize = 16

type msgbox struct {
	receiver *tcb
	head     Ptr
	tail     Ptr
}

func (k *Kernel) msgbufWrite(mp Ptr, next Ptr, sender ThreadID, size int, p Ptr) {
	b := k.Bytes(mp, msgbufSize)
	binary.BigEndian.PutUint32(b[0:], uint32(next))
	binary.BigEndian.PutUint32(b[4:], uint32(sender))
	binary.BigEndian.PutUint32(b[8:], uint32(size))
	binary.BigEndian.PutUint32(b[12:], uint32(p))
}

func (k *Kernel) msgbufRead(mp Ptr) (next Ptr, sender ThreadID, size int, p Ptr) {
	b := k.Bytes(mp, msgbufSize)
	next = Ptr(binary.BigEndian.Uint32(b[0:]))
	sender = ThreadID(int32(binary.BigEndian.Uint32(b[4:])))
	size = int(int32(binary.BigEndian.Uint32(b[8:])))
	p = Ptr(binary.BigEndian.Uint32(b[12:]))
	return next, sender, size, p
}

func (k *Kernel) msgbufSetNext(mp Ptr, next Ptr) {
	binary.BigEndian.PutUint32(k.Bytes(mp, 4), uint32(next))
}

// sendmsg builds an envelope for (size, p) from thp and appends it to the
// box FIFO. The send path cannot tolerate heap exhaustion.
func (k *Kernel) sendmsg(boxp *msgbox, thp *tcb, size int, p Ptr) {
	mp := k.mem.alloc(msgbufSize)
	if mp == 0 {
		k.sysdown()
		return
	}

	var sender ThreadID
	if thp != nil {
		sender = k.idOf(thp)
	}
	k.msgbufWrite(mp, 0, sender, size, p)

	if boxp.tail != 0 {
		k.msgbufSetNext(boxp.tail, mp)
	} else {
		boxp.head = mp
	}
	boxp.tail = mp
}

// recvmsg pops the head envelope, writes the parked receiver's return
// parameters, clears the receiver slot and frees the envelope.
func (k *Kernel) recvmsg(boxp *msgbox) {
	mp := boxp.head
	next, sender, size, p := k.msgbufRead(mp)
	boxp.head = next
	if boxp.head == 0 {
		boxp.tail = 0
	}

	pr := boxp.receiver.syscall.param
	pr.recv.ret = sender
	pr.recv.size = size
	pr.recv.p = p

	boxp.receiver = nil

	k.mem.release(mp)
}

func (k *Kernel) threadSend(id MsgBoxID, size int, p Ptr) int {
	boxp := &k.msgboxes[id]

	k.putCurrent()
	k.sendmsg(boxp, k.current, size, p)

	// Deliver immediately to a parked receiver and unblock it.
	if boxp.receiver != nil {
		k.current = boxp.receiver
		k.recvmsg(boxp)
		k.putCurrent()
	}

	return size
}

func (k *Kernel) threadRecv(id MsgBoxID) ThreadID {
	boxp := &k.msgboxes[id]

	// A second receiver on the same box is a protocol violation.
	if boxp.receiver != nil {
		k.sysdown()
		return -1
	}

	boxp.receiver = k.current

	if boxp.head == 0 {
		// Nothing to deliver: stay off the ready queue; the matching
		// send writes the real result before the caller runs again.
		return -1
	}

	k.recvmsg(boxp)
	k.putCurrent()

	return k.current.syscall.param.recv.ret
}
