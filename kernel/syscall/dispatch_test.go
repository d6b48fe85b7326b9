package syscall

import (
	"testing"
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel/task"
)

func mockSetFSBase(t *testing.T) *[]uint64 {
	t.Helper()
	orig := setFSBaseFn
	t.Cleanup(func() { setFSBaseFn = orig })
	var got []uint64
	setFSBaseFn = func(addr uint64) { got = append(got, addr) }
	return &got
}

func newDispatchTestThread(t *testing.T, procID task.ProcessID, name string) task.ThreadID {
	t.Helper()
	stack, ok := task.AllocateKernelStack(4096)
	if !ok {
		t.Fatal("failed to allocate kernel stack")
	}
	th := task.NewThread(procID, name, func() {}, stack, 4096)
	id, ok := task.AddThread(th)
	if !ok {
		t.Fatal("failed to add thread")
	}
	t.Cleanup(func() { task.RemoveThread(id) })
	return id
}

func TestDispatchUnknownNumberReturnsENOSYS(t *testing.T) {
	if got := Dispatch(9999, 0, 0, 0, 0, 0); got != ENOSYS {
		t.Fatalf("Dispatch(9999) = %#x, want ENOSYS", got)
	}
}

func TestDispatchGetPidGetTid(t *testing.T) {
	proc := task.NewProcess("dispatch-test", task.Core, 0, false, 0)
	pid, ok := task.AddProcess(proc)
	if !ok {
		t.Fatal("failed to add process")
	}
	defer task.RemoveProcess(pid)

	tid := newDispatchTestThread(t, pid, "t")
	task.SetCurrentThread(tid, true)
	defer task.SetCurrentThread(0, false)

	if got := Dispatch(uint64(GetPid), 0, 0, 0, 0, 0); got != uint64(pid) {
		t.Fatalf("GetPid = %d, want %d", got, pid)
	}
	if got := Dispatch(uint64(GetTid), 0, 0, 0, 0, 0); got != uint64(tid) {
		t.Fatalf("GetTid = %d, want %d", got, tid)
	}
}

func TestDispatchGetPidNoCurrentThreadReturnsEINVAL(t *testing.T) {
	task.SetCurrentThread(0, false)
	if got := Dispatch(uint64(GetPid), 0, 0, 0, 0, 0); got != EINVAL {
		t.Fatalf("GetPid with no current thread = %#x, want EINVAL", got)
	}
}

func TestDispatchArchPrctlSetFS(t *testing.T) {
	got := mockSetFSBase(t)
	const archSetFS = 0x1002
	if rc := Dispatch(uint64(ArchPrctl), archSetFS, 0xdeadbeef, 0, 0, 0); rc != Success {
		t.Fatalf("ArchPrctl = %#x, want Success", rc)
	}
	if len(*got) != 1 || (*got)[0] != 0xdeadbeef {
		t.Fatalf("setFSBaseFn calls = %v, want [0xdeadbeef]", *got)
	}
}

func TestDispatchArchPrctlUnsupportedCode(t *testing.T) {
	mockSetFSBase(t)
	if rc := Dispatch(uint64(ArchPrctl), 0xbad, 0, 0, 0, 0); rc != EINVAL {
		t.Fatalf("ArchPrctl unsupported code = %#x, want EINVAL", rc)
	}
}

func TestDispatchFindProcessByNameMissing(t *testing.T) {
	buf := []byte("no-such-process")
	ptr := uint64(uintptr(unsafe.Pointer(&buf[0])))
	if got := Dispatch(uint64(FindProcessByName), ptr, uint64(len(buf)), 0, 0, 0); got != ENOENT {
		t.Fatalf("FindProcessByName(missing) = %#x, want ENOENT", got)
	}
}

func TestDispatchRtSigIsAcceptedAndIgnored(t *testing.T) {
	if got := Dispatch(uint64(RtSigaction), 0, 0, 0, 0, 0); got != Success {
		t.Fatalf("RtSigaction = %#x, want Success", got)
	}
	if got := Dispatch(uint64(RtSigprocmask), 0, 0, 0, 0, 0); got != Success {
		t.Fatalf("RtSigprocmask = %#x, want Success", got)
	}
}

func TestIsError(t *testing.T) {
	if IsError(Success) {
		t.Fatal("Success should not be an error")
	}
	if !IsError(ENOSYS) {
		t.Fatal("ENOSYS should be an error")
	}
	if !IsError(EINVAL) {
		t.Fatal("EINVAL should be an error")
	}
}
