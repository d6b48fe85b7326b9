package task

import (
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel/cpu"
	"github.com/tas0dev/SwiftCore-sub000/kernel/ctxswitch"
	"github.com/tas0dev/SwiftCore-sub000/kernel/sync"
)

// funcAddr recovers the code address of a package-level function, used to
// populate a thread's initial RIP.
func funcAddr(fn func()) uint64 {
	return uint64(reflect.ValueOf(fn).Pointer())
}

// maxThreads bounds the thread table the same way gopheros-style fixed
// allocators avoid runtime growth: a slot table sized for any workload this
// core is expected to run.
const maxThreads = 1024

// kstackPoolSize backs every thread's kernel stack out of one static pool;
// the kernel has no free() and never needs one (threads outlive the boot
// image for the lifetime of the run, per spec.md's leak-forever model).
const kstackPoolSize = 4096 * 64

var (
	kstackPool       [kstackPoolSize]byte
	nextKStackOffset uint64
)

// AllocateKernelStack reserves size bytes (rounded up to 16) from the
// shared kernel-stack pool and returns the base (bottom) address of the
// reservation, or false if the pool is exhausted.
func AllocateKernelStack(size uintptr) (uintptr, bool) {
	if size == 0 || size > kstackPoolSize {
		return 0, false
	}
	size = (size + 0xF) &^ 0xF

	off := atomic.AddUint64(&nextKStackOffset, uint64(size)) - uint64(size)
	if off+uint64(size) > kstackPoolSize {
		return 0, false
	}
	return uintptr(&kstackPool[0]) + uintptr(off), true
}

// threadExitHandler is the return address planted at the top of every
// thread's kernel stack. A thread's entry point is declared never to
// return; reaching here means it did anyway, which this kernel treats the
// same as any other unrecoverable condition this early: halt.
func threadExitHandler() {
	for {
		cpu.Halt()
	}
}

// Thread is a lightweight unit of execution within a process. Threads of
// the same process share its address space.
type Thread struct {
	id        ThreadID
	processID ProcessID
	name      string
	state     ThreadState
	context   ctxswitch.Context

	kernelStack     uintptr
	kernelStackSize uintptr

	// userEntry/userStack are non-zero only for ring-3 threads.
	userEntry uint64
	userStack uint64
}

// NewThread creates a core (ring-0) thread whose kernel context jumps
// directly to entryPoint the first time it is scheduled.
func NewThread(processID ProcessID, name string, entryPoint func(), kernelStack uintptr, kernelStackSize uintptr) *Thread {
	stackTop := (kernelStack + kernelStackSize) &^ 0xF
	stackPtr := stackTop - 8
	*(*uint64)(unsafe.Pointer(stackPtr)) = funcAddr(threadExitHandler)

	return &Thread{
		id:              newThreadID(),
		processID:       processID,
		name:            name,
		state:           ThreadReady,
		kernelStack:     kernelStack,
		kernelStackSize: kernelStackSize,
		context: ctxswitch.Context{
			RSP:    stackPtr,
			RBP:    stackTop,
			RIP:    funcAddr(entryPoint),
			RFlags: 0x202, // IF set
		},
	}
}

// NewUserModeThread creates a ring-3 thread. Its kernel context jumps to
// usermodeEntryTrampoline, which reads this thread's user entry/stack back
// out of the thread table and hands off to ring 3.
func NewUserModeThread(processID ProcessID, name string, userEntry, userStack uint64, kernelStack, kernelStackSize uintptr) *Thread {
	stackTop := (kernelStack + kernelStackSize) &^ 0xF
	stackPtr := stackTop - 8
	*(*uint64)(unsafe.Pointer(stackPtr)) = funcAddr(threadExitHandler)

	return &Thread{
		id:              newThreadID(),
		processID:       processID,
		name:            name,
		state:           ThreadReady,
		kernelStack:     kernelStack,
		kernelStackSize: kernelStackSize,
		userEntry:       userEntry,
		userStack:       userStack,
		context: ctxswitch.Context{
			RSP:    stackPtr,
			RBP:    stackTop,
			RIP:    funcAddr(usermodeEntryTrampoline),
			RFlags: 0x202,
		},
	}
}

// ID returns the thread's id.
func (t *Thread) ID() ThreadID { return t.id }

// ProcessID returns the id of the process this thread belongs to.
func (t *Thread) ProcessID() ProcessID { return t.processID }

// Name returns the thread's name.
func (t *Thread) Name() string { return t.name }

// State returns the thread's current scheduling state.
func (t *Thread) State() ThreadState { return t.state }

// SetState updates the thread's scheduling state.
func (t *Thread) SetState(s ThreadState) { t.state = s }

// Context returns a pointer to the thread's saved register context, the
// value the context switcher reads from and writes into.
func (t *Thread) Context() *ctxswitch.Context { return &t.context }

// IsUserMode reports whether this thread runs in ring 3.
func (t *Thread) IsUserMode() bool { return t.userEntry != 0 }

// UserEntry returns the ring-3 entry point, or 0 for a core thread.
func (t *Thread) UserEntry() uint64 { return t.userEntry }

// UserStack returns the ring-3 stack top, or 0 for a core thread.
func (t *Thread) UserStack() uint64 { return t.userStack }

// KernelStackTop returns the address the TSS's RSP0 should be set to
// while this thread is the one scheduled to run, so a ring-3-to-ring-0
// transition lands on this thread's own kernel stack.
func (t *Thread) KernelStackTop() uint64 {
	return uint64((t.kernelStack + t.kernelStackSize) &^ 0xF)
}

// usermodeEntryTrampoline is the RIP every new user-mode thread's context
// starts at. It is never called directly; its address is only ever read
// via funcAddr and installed as a thread's initial RIP.
func usermodeEntryTrampoline() {
	id, ok := CurrentThreadID()
	if !ok {
		panic("usermodeEntryTrampoline: no current thread")
	}
	entry, stack, ok := WithThread(id, func(t *Thread) (uint64, uint64) {
		return t.userEntry, t.userStack
	})
	if !ok {
		panic("usermodeEntryTrampoline: thread not found")
	}
	jumpToUsermodeFn(entry, stack)
}

// ThreadQueue holds every thread known to the kernel in a fixed-capacity
// slot table, scanned linearly for add/get/remove under a single lock
// (spec.md §4.D).
type ThreadQueue struct {
	threads [maxThreads]*Thread
	count   int
}

// Push inserts thread into the first free slot and returns its id, or
// false if the table is full.
func (q *ThreadQueue) Push(t *Thread) (ThreadID, bool) {
	if q.count >= maxThreads {
		return 0, false
	}
	for i := range q.threads {
		if q.threads[i] == nil {
			q.threads[i] = t
			q.count++
			return t.id, true
		}
	}
	return 0, false
}

// Get returns the thread with the given id, if present.
func (q *ThreadQueue) Get(id ThreadID) *Thread {
	for _, t := range q.threads {
		if t != nil && t.id == id {
			return t
		}
	}
	return nil
}

// Remove deletes the thread with the given id from the table and returns
// it, or nil if it wasn't present.
func (q *ThreadQueue) Remove(id ThreadID) *Thread {
	for i, t := range q.threads {
		if t != nil && t.id == id {
			q.threads[i] = nil
			q.count--
			return t
		}
	}
	return nil
}

// PeekNextAfter returns the next Ready thread in round-robin order
// starting just after currentID (wrapping), or the first Ready thread if
// currentID is not present / not given.
func (q *ThreadQueue) PeekNextAfter(currentID ThreadID, hasCurrent bool) *Thread {
	if hasCurrent {
		startIdx := -1
		for i, t := range q.threads {
			if t != nil && t.id == currentID {
				startIdx = i
				break
			}
		}
		if startIdx >= 0 {
			for step := 1; step <= maxThreads; step++ {
				i := (startIdx + step) % maxThreads
				if t := q.threads[i]; t != nil && t.state == ThreadReady {
					return t
				}
			}
			return nil
		}
	}
	for _, t := range q.threads {
		if t != nil && t.state == ThreadReady {
			return t
		}
	}
	return nil
}

// CountByState counts threads currently in the given state.
func (q *ThreadQueue) CountByState(state ThreadState) int {
	n := 0
	for _, t := range q.threads {
		if t != nil && t.state == state {
			n++
		}
	}
	return n
}

// Count returns the number of threads currently tracked.
func (q *ThreadQueue) Count() int { return q.count }

var (
	threadQueueLock sync.Spinlock
	threadQueue     ThreadQueue

	currentThreadLock sync.Spinlock
	currentThreadID   ThreadID
	hasCurrentThread  bool
)

// AddThread registers t in the global thread table.
func AddThread(t *Thread) (ThreadID, bool) {
	threadQueueLock.Acquire()
	defer threadQueueLock.Release()
	return threadQueue.Push(t)
}

// WithThread runs f with read access to the thread identified by id,
// under the thread table's lock, and reports whether id was found.
func WithThread[R any](id ThreadID, f func(*Thread) R) (R, bool) {
	threadQueueLock.Acquire()
	defer threadQueueLock.Release()
	var zero R
	t := threadQueue.Get(id)
	if t == nil {
		return zero, false
	}
	return f(t), true
}

// WithThreadMut runs f with mutable access to the thread identified by
// id, under the thread table's lock, and reports whether id was found.
func WithThreadMut(id ThreadID, f func(*Thread)) bool {
	threadQueueLock.Acquire()
	defer threadQueueLock.Release()
	t := threadQueue.Get(id)
	if t == nil {
		return false
	}
	f(t)
	return true
}

// ThreadPtr returns the raw *Thread for id, for callers like the scheduler
// that must hold a stable pointer across a context switch (the lock is
// released before the caller can use it, but the table never moves or
// frees a live thread's storage).
func ThreadPtr(id ThreadID) (*Thread, bool) {
	threadQueueLock.Acquire()
	defer threadQueueLock.Release()
	t := threadQueue.Get(id)
	if t == nil {
		return nil, false
	}
	return t, true
}

// RemoveThread deletes id from the global thread table.
func RemoveThread(id ThreadID) *Thread {
	threadQueueLock.Acquire()
	defer threadQueueLock.Release()
	return threadQueue.Remove(id)
}

// PeekNextThread returns the id of the next Ready thread after current
// (round-robin, wrapping), or false if none is ready.
func PeekNextThread(current ThreadID, hasCurrent bool) (ThreadID, bool) {
	threadQueueLock.Acquire()
	defer threadQueueLock.Release()
	t := threadQueue.PeekNextAfter(current, hasCurrent)
	if t == nil {
		return 0, false
	}
	return t.id, true
}

// CountThreadsByState counts threads currently in the given state.
func CountThreadsByState(state ThreadState) int {
	threadQueueLock.Acquire()
	defer threadQueueLock.Release()
	return threadQueue.CountByState(state)
}

// ThreadCount returns the number of threads currently tracked.
func ThreadCount() int {
	threadQueueLock.Acquire()
	defer threadQueueLock.Release()
	return threadQueue.Count()
}

// CurrentThreadID returns the id of the thread currently scheduled on this
// core, if any.
func CurrentThreadID() (ThreadID, bool) {
	currentThreadLock.Acquire()
	defer currentThreadLock.Release()
	return currentThreadID, hasCurrentThread
}

// SetCurrentThread records which thread is currently scheduled on this
// core.
func SetCurrentThread(id ThreadID, has bool) {
	currentThreadLock.Acquire()
	defer currentThreadLock.Release()
	currentThreadID, hasCurrentThread = id, has
}

// jumpToUsermodeFn is mocked by tests, which cannot execute a real ring-3
// IRETQ transition outside a CPU running the real kernel.
var jumpToUsermodeFn = ctxswitch.JumpToUsermode
