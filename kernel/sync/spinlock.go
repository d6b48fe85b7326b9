// Package sync provides synchronization primitives used by the kernel:
// interrupt-disabling spinlocks. Unlike a hosted Go program, the kernel
// cannot park a goroutine on a channel while waiting for a lock held by code
// running on the same core, so every lock here is a busy-wait.
package sync

import (
	"sync/atomic"

	"github.com/tas0dev/SwiftCore-sub000/kernel/cpu"
)

var (
	// disableInterruptsFn and enableInterruptsFn are mocked by tests, which
	// cannot execute the privileged CLI/STI instructions outside ring 0.
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// until the lock becomes available. Because the scheduler preempts threads
// on a timer interrupt (spec.md §5), a thread holding a spinlock must not be
// preempted while it holds it: an interrupt arriving inside the critical
// section could schedule another thread that tries to acquire the same
// lock, deadlocking the core. Acquire therefore disables interrupts for as
// long as the lock is held and Release restores them.
type Spinlock struct {
	state uint32
}

// Acquire disables interrupts and blocks until the lock can be acquired by
// the currently active task. Any attempt to re-acquire a lock already held
// by the current task will cause a deadlock.
func (l *Spinlock) Acquire() {
	disableInterruptsFn()
	archAcquireSpinlock(&l.state, 1)
}

// TryToAcquire attempts to acquire the lock without disabling interrupts and
// returns true if the lock could be acquired or false otherwise. Callers
// that succeed are responsible for disabling interrupts themselves before
// entering the critical section.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock, re-enabling interrupts, allowing other
// tasks to acquire it. Calling Release while the lock is free has no effect
// beyond re-enabling interrupts.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
	enableInterruptsFn()
}

// archAcquireSpinlock is an arch-specific implementation for acquiring the
// lock. It spins on an atomic XCHG; after each failed attempt it executes
// attemptsBeforeYielding PAUSE instructions before retrying, to reduce
// contention on the memory bus.
func archAcquireSpinlock(state *uint32, attemptsBeforeYielding uint32)
