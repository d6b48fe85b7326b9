package elf

import (
	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/task"
)

// defaultKernelStackSize is the kernel-mode stack a spawned user thread
// uses while it's in the kernel (syscall handling, page faults); it never
// runs deeply nested code, so it gets the same reservation as the idle
// thread.
const defaultKernelStackSize = 4096 * 4

var errNoKernelStack = &kernel.Error{Module: "elf", Message: "failed to allocate kernel stack for spawned process"}

// Spawn loads data as an ELF64 executable into a brand-new address space
// and creates the ring-3 process and thread that run it (spec.md §4.H). The
// new process has no parent recorded; callers that need process trees
// (spawned services, shells) should call task.NewProcess directly and use
// LoadInto instead. argv defaults to a single entry (name) when empty,
// matching what a shell's fork+exec would pass.
func Spawn(name string, data []byte, argv, envp []string) (task.ProcessID, task.ThreadID, *kernel.Error) {
	proc := task.NewProcess(name, task.User, 0, false, 0)
	pid, ok := task.AddProcess(proc)
	if !ok {
		return 0, 0, &kernel.Error{Module: "elf", Message: "process table full"}
	}

	if len(argv) == 0 {
		argv = []string{name}
	}

	tid, err := LoadInto(pid, name, data, argv, envp)
	if err != nil {
		task.RemoveProcess(pid)
		return 0, 0, err
	}
	return pid, tid, nil
}

// LoadInto loads data into a fresh address space owned by the already
// registered process pid and creates the ring-3 thread that runs it,
// without creating a new process record (used when a parent process has
// already been set up, e.g. by a service supervisor).
func LoadInto(pid task.ProcessID, name string, data []byte, argv, envp []string) (task.ThreadID, *kernel.Error) {
	pdt, pdtPhysAddr, err := NewAddressSpace()
	if err != nil {
		return 0, err
	}

	image, err := Load(pdt, data, argv, envp)
	if err != nil {
		return 0, err
	}

	task.WithProcessMut(pid, func(p *task.Process) { p.SetPageTable(pdtPhysAddr) })

	kstack, ok := task.AllocateKernelStack(defaultKernelStackSize)
	if !ok {
		return 0, errNoKernelStack
	}

	th := task.NewUserModeThread(pid, name, image.Entry, image.StackTop, kstack, defaultKernelStackSize)
	tid, ok := task.AddThread(th)
	if !ok {
		return 0, &kernel.Error{Module: "elf", Message: "thread table full"}
	}
	return tid, nil
}
