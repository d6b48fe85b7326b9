// Package sched implements the kernel's single global, round-robin
// scheduler (spec.md §4.E) and drives the cooperative and timer-preemptive
// context switches (spec.md §4.F) between the threads in kernel/task.
package sched

import (
	"sync/atomic"

	"github.com/tas0dev/SwiftCore-sub000/kernel/cpu"
	"github.com/tas0dev/SwiftCore-sub000/kernel/ctxswitch"
	"github.com/tas0dev/SwiftCore-sub000/kernel/gdt"
	"github.com/tas0dev/SwiftCore-sub000/kernel/irq"
	"github.com/tas0dev/SwiftCore-sub000/kernel/kfmt/early"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem/vmm"
	"github.com/tas0dev/SwiftCore-sub000/kernel/sync"
	"github.com/tas0dev/SwiftCore-sub000/kernel/task"
)

// msPerTick is the PIT's configured interval; DefaultTimeSlice ticks of
// this make up one scheduling quantum (10 * 10ms = 100ms, spec.md §4.E).
const msPerTick = 10

// tickCount counts every timer IRQ since boot, independent of whether
// preemption is enabled, backing the get-ticks syscall's wall-clock proxy.
var tickCount uint64

// Ticks returns the number of milliseconds elapsed since the timer IRQ was
// first enabled.
func Ticks() uint64 {
	return atomic.LoadUint64(&tickCount) * msPerTick
}

// DefaultTimeSlice is the number of timer ticks (10 ms each) a thread runs
// before being preempted: 10 ticks = 100 ms.
const DefaultTimeSlice = 10

type schedulerState struct {
	enabled      bool
	timeSlice    uint64
	currentSlice uint64
}

var (
	lock  sync.Spinlock
	state = schedulerState{timeSlice: DefaultTimeSlice}
)

// Enable turns on preemptive scheduling.
func Enable() {
	lock.Acquire()
	state.enabled = true
	lock.Release()
}

// Disable turns off preemptive scheduling: tick stops expiring time
// slices and Yield/ScheduleAndSwitch stop switching threads.
func Disable() {
	lock.Acquire()
	state.enabled = false
	lock.Release()
}

// IsEnabled reports whether the scheduler is currently active.
func IsEnabled() bool {
	lock.Acquire()
	defer lock.Release()
	return state.enabled
}

// SetTimeSlice changes the number of timer ticks a thread runs before
// preemption.
func SetTimeSlice(n uint64) {
	lock.Acquire()
	state.timeSlice = n
	lock.Release()
}

// tick increments the current time-slice counter and reports whether it
// has expired, resetting it if so.
func tick() bool {
	lock.Acquire()
	defer lock.Release()
	if !state.enabled {
		return false
	}
	state.currentSlice++
	if state.currentSlice >= state.timeSlice {
		state.currentSlice = 0
		return true
	}
	return false
}

func resetSlice() {
	lock.Acquire()
	state.currentSlice = 0
	lock.Release()
}

// Schedule marks the current Running thread Ready, selects the next Ready
// thread in round-robin order starting just after it and marks that one
// Running. It reports false if no thread is ready to run.
func Schedule() (task.ThreadID, bool) {
	current, hasCurrent := task.CurrentThreadID()
	if hasCurrent {
		task.WithThreadMut(current, func(t *task.Thread) {
			if t.State() == task.ThreadRunning {
				t.SetState(task.ThreadReady)
			}
		})
	}

	next, ok := task.PeekNextThread(current, hasCurrent)
	if !ok {
		return 0, false
	}
	task.WithThreadMut(next, func(t *task.Thread) { t.SetState(task.ThreadRunning) })
	resetSlice()
	return next, true
}

// Yield is the cooperative path: it runs Schedule and, if a different
// thread was picked, switches to it.
func Yield() {
	if !IsEnabled() {
		return
	}

	current, hasCurrent := task.CurrentThreadID()
	next, ok := Schedule()
	if !ok {
		return
	}
	if !hasCurrent || next != current {
		task.SetCurrentThread(next, true)
		switchToThread(current, hasCurrent, next)
	}
}

// BlockCurrentThread marks the running thread Blocked and yields.
func BlockCurrentThread() {
	if id, ok := task.CurrentThreadID(); ok {
		task.WithThreadMut(id, func(t *task.Thread) { t.SetState(task.ThreadBlocked) })
		Yield()
	}
}

// SleepThread marks id Sleeping.
func SleepThread(id task.ThreadID) {
	task.WithThreadMut(id, func(t *task.Thread) { t.SetState(task.ThreadSleeping) })
}

// WakeThread moves a Sleeping or Blocked thread back to Ready.
func WakeThread(id task.ThreadID) {
	task.WithThreadMut(id, func(t *task.Thread) {
		if s := t.State(); s == task.ThreadSleeping || s == task.ThreadBlocked {
			t.SetState(task.ThreadReady)
		}
	})
}

// TerminateThread marks id Terminated, reschedules away from it if it was
// running, and removes it from the thread table.
func TerminateThread(id task.ThreadID) {
	task.WithThreadMut(id, func(t *task.Thread) { t.SetState(task.ThreadTerminated) })
	if current, ok := task.CurrentThreadID(); ok && current == id {
		task.SetCurrentThread(0, false)
		Yield()
	}
	task.RemoveThread(id)
}

// ExitCurrentTask terminates the calling thread (the exit syscall's
// implementation) and switches straight into the next ready thread without
// saving the exiting thread's context, since nothing will ever resume it.
// It never returns; with no other thread ready, the core halts forever.
func ExitCurrentTask(exitCode uint64) {
	if current, ok := task.CurrentThreadID(); ok {
		early.Printf("sched: thread %d exiting with code %d\n", current, exitCode)

		task.WithThreadMut(current, func(t *task.Thread) { t.SetState(task.ThreadTerminated) })
		task.SetCurrentThread(0, false)

		if next, ok := Schedule(); ok {
			task.SetCurrentThread(next, true)
			task.RemoveThread(current)
			switchToThread(0, false, next)
			panic("sched: switchToThread returned")
		}
		task.RemoveThread(current)
	}

	early.Printf("sched: no more threads, halting\n")
	for {
		cpu.Halt()
	}
}

// ScheduleAndSwitch is invoked by the timer IRQ handler once a time slice
// has expired: it picks the next thread and, if different, switches to
// it.
func ScheduleAndSwitch() {
	if !IsEnabled() {
		return
	}

	current, hasCurrent := task.CurrentThreadID()
	next, ok := Schedule()
	if !ok {
		return
	}
	if !hasCurrent || next != current {
		task.SetCurrentThread(next, true)
		switchToThread(current, hasCurrent, next)
	}
}

// StartScheduling selects the first ready thread and jumps to it. It never
// returns.
func StartScheduling() {
	first, ok := task.PeekNextThread(0, false)
	if !ok {
		panic("sched: no threads to schedule")
	}
	task.SetCurrentThread(first, true)
	task.WithThreadMut(first, func(t *task.Thread) { t.SetState(task.ThreadRunning) })

	t, _ := task.ThreadPtr(first)
	setKernelStack(t.KernelStackTop())
	activateAddressSpace(first)
	jumpToContextFn(t.Context())
	panic("sched: jumpToContextFn returned")
}

// activateAddressSpace loads the page table of the process that owns
// thread id, if it has one of its own (spec.md §4.H); threads belonging to
// processes sharing the kernel's address space, like the idle process,
// leave CR3 untouched.
func activateAddressSpace(id task.ThreadID) {
	procID, ok := task.WithThread(id, func(t *task.Thread) task.ProcessID { return t.ProcessID() })
	if !ok {
		return
	}
	var pdtAddr uintptr
	hasPDT, ok := task.WithProcess(procID, func(p *task.Process) bool {
		addr, has := p.PageTable()
		pdtAddr = addr
		return has
	})
	if !ok || !hasPDT {
		return
	}
	activatePageTableFn(pdtAddr)
}

// switchToThread performs the cooperative context switch from the current
// thread (if any) to next, first pointing the TSS's RSP0 at the incoming
// thread's kernel stack so a later ring-3-to-ring-0 transition lands on
// it (spec.md §4.F).
func switchToThread(currentID task.ThreadID, hasCurrent bool, nextID task.ThreadID) {
	next, ok := task.ThreadPtr(nextID)
	if !ok {
		return
	}
	setKernelStack(next.KernelStackTop())
	activateAddressSpace(nextID)

	if !hasCurrent {
		jumpToContextFn(next.Context())
		return
	}
	current, ok := task.ThreadPtr(currentID)
	if !ok {
		jumpToContextFn(next.Context())
		return
	}
	switchContextFn(current.Context(), next.Context())
}

// timerIRQHandler is registered against irq.TimerIRQ. It ticks the
// scheduler's time slice and reschedules once it expires.
func timerIRQHandler(_ *irq.Frame, _ *irq.Regs) {
	atomic.AddUint64(&tickCount, 1)
	if tick() {
		ScheduleAndSwitch()
	}
}

// Init programs the PIT to fire every msPerTick milliseconds, registers the
// timer IRQ handler and enables the scheduler. It must run after irq.Init
// and before StartScheduling.
func Init() {
	// PIT channel 0, lobyte/hibyte access, mode 3; input clock 1193182 Hz.
	const pitDivisor = 1193182 / (1000 / msPerTick)
	cpu.OutB(0x43, 0x36)
	cpu.OutB(0x40, uint8(pitDivisor&0xff))
	cpu.OutB(0x40, uint8(pitDivisor>>8))
	irq.HandleIRQ(irq.TimerIRQ, timerIRQHandler)
	Enable()
}

var (
	// setKernelStackFn, jumpToContextFn and switchContextFn are mocked by
	// tests, which cannot execute the privileged TSS update or the raw asm
	// context switch outside ring 0.
	setKernelStackFn    = gdt.SetKernelStack
	jumpToContextFn     = ctxswitch.JumpToContext
	switchContextFn     = ctxswitch.SwitchContext
	activatePageTableFn = vmm.ActivatePageTable

	kernelStackHooks []func(uint64)
)

// RegisterKernelStackHook adds f to the set of callbacks invoked with a
// thread's kernel-stack top every time the scheduler switches onto it, in
// addition to the TSS RSP0 update. kernel/syscall uses this to keep the
// SYSCALL fast path's kernel-stack pointer in sync without kernel/sched
// importing kernel/syscall.
func RegisterKernelStackHook(f func(uint64)) {
	kernelStackHooks = append(kernelStackHooks, f)
}

func setKernelStack(rsp uint64) {
	setKernelStackFn(rsp)
	for _, f := range kernelStackHooks {
		f(rsp)
	}
}
