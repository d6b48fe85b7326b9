// Package ipc implements the kernel's mailbox message queues (spec.md
// §4.I): at-most-once, in-order, bounded per-destination delivery between
// threads, with no blocking primitive at the kernel boundary.
package ipc

import (
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel/sync"
	"github.com/tas0dev/SwiftCore-sub000/kernel/task"
)

const (
	// mailboxCapacity bounds the number of messages buffered per
	// destination before Send starts returning EAGAIN.
	mailboxCapacity = 64
	// maxMessageSize bounds a single message's payload.
	maxMessageSize = 256
	// maxMailboxes sizes the mailbox table 1:1 with the thread table,
	// since a mailbox is addressed by destination thread id.
	maxMailboxes = 1024
)

// Errno values returned by Send/Recv, shared with kernel/syscall's error
// convention (negated POSIX errno, returned unsigned).
const (
	EINVAL = ^uint64(22 - 1)
	EAGAIN = ^uint64(11 - 1)
)

// message is one queued mailbox entry.
type message struct {
	from task.ThreadID
	len  int
	data [maxMessageSize]byte
}

// mailbox is a fixed-capacity ring buffer of messages.
type mailbox struct {
	head, tail, count int
	buf               [mailboxCapacity]message
}

func (m *mailbox) push(msg message) bool {
	if m.count >= mailboxCapacity {
		return false
	}
	m.buf[m.tail] = msg
	m.tail = (m.tail + 1) % mailboxCapacity
	m.count++
	return true
}

func (m *mailbox) pop() (message, bool) {
	if m.count == 0 {
		return message{}, false
	}
	msg := m.buf[m.head]
	m.head = (m.head + 1) % mailboxCapacity
	m.count--
	return msg, true
}

var (
	lock      sync.Spinlock
	mailboxes [maxMailboxes]mailbox
)

// mailboxIndex maps a thread id to its mailbox slot; thread ids start at 1
// (spec.md §4.I: "array index = dest_tid - 1").
func mailboxIndex(id task.ThreadID) (int, bool) {
	if id == 0 {
		return 0, false
	}
	idx := int(id) - 1
	if idx >= maxMailboxes {
		return 0, false
	}
	return idx, true
}

// Send copies buf (at most maxMessageSize bytes) into dest's mailbox, tagging the message with the calling thread's id. It
// returns EINVAL for a bad destination or oversized payload, EAGAIN if the
// destination's mailbox is full.
func Send(dest task.ThreadID, buf []byte) uint64 {
	if len(buf) > maxMessageSize {
		return EINVAL
	}
	idx, ok := mailboxIndex(dest)
	if !ok {
		return EINVAL
	}
	sender, ok := task.CurrentThreadID()
	if !ok {
		return EINVAL
	}

	var msg message
	msg.from = sender
	msg.len = copy(msg.data[:], buf)

	lock.Acquire()
	defer lock.Release()
	if !mailboxes[idx].push(msg) {
		return EAGAIN
	}
	return 0
}

// Recv pops the oldest message from the calling thread's own mailbox and
// copies up to min(msg.len, len(out)) bytes into out. It packs the sender's
// id and the copied length into a single value: (sender << 32) | copied.
// EAGAIN is returned if the mailbox is empty, EINVAL if there is no current
// thread.
func Recv(out []byte) uint64 {
	receiver, ok := task.CurrentThreadID()
	if !ok {
		return EINVAL
	}
	idx, ok := mailboxIndex(receiver)
	if !ok {
		return EINVAL
	}

	lock.Acquire()
	msg, ok := mailboxes[idx].pop()
	lock.Release()
	if !ok {
		return EAGAIN
	}

	n := copy(out, msg.data[:msg.len])
	return (uint64(msg.from) << 32) | uint64(n)
}

// SendFromUserPtr is the syscall-facing entry point: it validates and reads
// the sender's payload directly out of user memory given a raw pointer and
// length, then calls Send. The user address space is identity-accessible
// from ring 0 on this kernel (spec.md §4.G), so no copy_from_user fault
// path is required beyond bounding len.
func SendFromUserPtr(dest task.ThreadID, bufPtr uintptr, length uint64) uint64 {
	if length > maxMessageSize {
		return EINVAL
	}
	var buf []byte
	if length > 0 && bufPtr != 0 {
		buf = unsafe.Slice((*byte)(unsafe.Pointer(bufPtr)), int(length))
	}
	return Send(dest, buf)
}

// RecvToUserPtr is the syscall-facing entry point for Recv, writing directly
// into the caller's user buffer.
func RecvToUserPtr(bufPtr uintptr, maxLen uint64) uint64 {
	var out []byte
	if maxLen > 0 && bufPtr != 0 {
		out = unsafe.Slice((*byte)(unsafe.Pointer(bufPtr)), int(maxLen))
	}
	return Recv(out)
}
