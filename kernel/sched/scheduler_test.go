package sched

import (
	"testing"

	"github.com/tas0dev/SwiftCore-sub000/kernel/ctxswitch"
	"github.com/tas0dev/SwiftCore-sub000/kernel/task"
)

func mockSwitchFns(t *testing.T) (kstacks *[]uint64, jumps *[]*ctxswitch.Context, switches *[]*ctxswitch.Context) {
	t.Helper()
	origSetKernelStack, origJumpToContext, origSwitchContext, origActivatePageTable :=
		setKernelStackFn, jumpToContextFn, switchContextFn, activatePageTableFn
	t.Cleanup(func() {
		setKernelStackFn, jumpToContextFn, switchContextFn, activatePageTableFn =
			origSetKernelStack, origJumpToContext, origSwitchContext, origActivatePageTable
	})

	var gotKStacks []uint64
	var gotJumps, gotSwitches []*ctxswitch.Context
	setKernelStackFn = func(rsp uint64) { gotKStacks = append(gotKStacks, rsp) }
	jumpToContextFn = func(next *ctxswitch.Context) { gotJumps = append(gotJumps, next) }
	switchContextFn = func(old, next *ctxswitch.Context) { gotSwitches = append(gotSwitches, next) }
	activatePageTableFn = func(uintptr) {}

	return &gotKStacks, &gotJumps, &gotSwitches
}

func newSchedTestThread(t *testing.T, procID task.ProcessID, name string) *task.Thread {
	t.Helper()
	stack, ok := task.AllocateKernelStack(4096)
	if !ok {
		t.Fatal("failed to allocate kernel stack")
	}
	return task.NewThread(procID, name, func() {}, stack, 4096)
}

func resetSchedState(t *testing.T) {
	t.Helper()
	task.SetCurrentThread(0, false)
	Disable()
	SetTimeSlice(DefaultTimeSlice)
	t.Cleanup(func() {
		task.SetCurrentThread(0, false)
		Disable()
	})
}

func TestScheduleRoundRobin(t *testing.T) {
	resetSchedState(t)

	a := newSchedTestThread(t, 1, "a")
	b := newSchedTestThread(t, 1, "b")
	idA, _ := task.AddThread(a)
	idB, _ := task.AddThread(b)
	defer task.RemoveThread(idA)
	defer task.RemoveThread(idB)

	task.SetCurrentThread(idA, true)
	task.WithThreadMut(idA, func(t *task.Thread) { t.SetState(task.ThreadRunning) })

	next, ok := Schedule()
	if !ok || next != idB {
		t.Fatalf("expected schedule to pick b; got %d, %v", next, ok)
	}
	if state, _ := task.WithThread(idA, func(t *task.Thread) task.ThreadState { return t.State() }); state != task.ThreadReady {
		t.Errorf("expected a to be marked Ready; got %v", state)
	}
	if state, _ := task.WithThread(idB, func(t *task.Thread) task.ThreadState { return t.State() }); state != task.ThreadRunning {
		t.Errorf("expected b to be marked Running; got %v", state)
	}
}

func TestScheduleNoneReady(t *testing.T) {
	resetSchedState(t)

	a := newSchedTestThread(t, 1, "only")
	a.SetState(task.ThreadBlocked)
	idA, _ := task.AddThread(a)
	defer task.RemoveThread(idA)

	if _, ok := Schedule(); ok {
		t.Error("expected Schedule to report no ready thread")
	}
}

func TestYieldSwitchesWhenEnabled(t *testing.T) {
	resetSchedState(t)
	_, jumps, switches := mockSwitchFns(t)

	a := newSchedTestThread(t, 1, "a")
	b := newSchedTestThread(t, 1, "b")
	idA, _ := task.AddThread(a)
	idB, _ := task.AddThread(b)
	defer task.RemoveThread(idA)
	defer task.RemoveThread(idB)

	task.SetCurrentThread(idA, true)
	task.WithThreadMut(idA, func(t *task.Thread) { t.SetState(task.ThreadRunning) })
	Enable()

	Yield()

	if len(*switches) != 1 {
		t.Fatalf("expected exactly one cooperative context switch; got %d", len(*switches))
	}
	if len(*jumps) != 0 {
		t.Errorf("expected no bare jump when a current thread exists; got %d", len(*jumps))
	}
	if current, _ := task.CurrentThreadID(); current != idB {
		t.Errorf("expected current thread to become b; got %d", current)
	}
}

func TestYieldNoopWhenDisabled(t *testing.T) {
	resetSchedState(t)
	_, _, switches := mockSwitchFns(t)

	Disable()
	Yield()

	if len(*switches) != 0 {
		t.Error("expected Yield to do nothing while the scheduler is disabled")
	}
}

func TestTickExpiryTriggersReschedule(t *testing.T) {
	resetSchedState(t)
	SetTimeSlice(2)
	Enable()

	if tick() {
		t.Fatal("expected the first tick not to expire a 2-tick slice")
	}
	if !tick() {
		t.Fatal("expected the second tick to expire the slice")
	}
	if tick() {
		t.Fatal("expected the slice counter to have reset after expiry")
	}
}

func TestStartSchedulingJumpsToFirstReadyThread(t *testing.T) {
	resetSchedState(t)
	kstacks, jumps, _ := mockSwitchFns(t)

	a := newSchedTestThread(t, 1, "first")
	idA, _ := task.AddThread(a)
	defer task.RemoveThread(idA)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected StartScheduling to panic after the mocked jump returns, since it never returns for real")
		}
		if len(*jumps) != 1 {
			t.Errorf("expected exactly one initial jump; got %d", len(*jumps))
		}
		if len(*kstacks) != 1 {
			t.Errorf("expected the TSS kernel stack to be set once; got %d", len(*kstacks))
		}
		if current, _ := task.CurrentThreadID(); current != idA {
			t.Errorf("expected current thread to be set to the first ready thread; got %d", current)
		}
	}()
	StartScheduling()
}

func TestWakeThreadFromSleepAndBlocked(t *testing.T) {
	resetSchedState(t)

	a := newSchedTestThread(t, 1, "sleeper")
	idA, _ := task.AddThread(a)
	defer task.RemoveThread(idA)

	SleepThread(idA)
	if state, _ := task.WithThread(idA, func(t *task.Thread) task.ThreadState { return t.State() }); state != task.ThreadSleeping {
		t.Fatalf("expected Sleeping; got %v", state)
	}

	WakeThread(idA)
	if state, _ := task.WithThread(idA, func(t *task.Thread) task.ThreadState { return t.State() }); state != task.ThreadReady {
		t.Fatalf("expected Ready after wake; got %v", state)
	}
}
