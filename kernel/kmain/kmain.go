package kmain

import (
	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/cpu"
	"github.com/tas0dev/SwiftCore-sub000/kernel/driver/console"
	"github.com/tas0dev/SwiftCore-sub000/kernel/ext2"
	"github.com/tas0dev/SwiftCore-sub000/kernel/gdt"
	"github.com/tas0dev/SwiftCore-sub000/kernel/hal"
	"github.com/tas0dev/SwiftCore-sub000/kernel/hal/multiboot"
	"github.com/tas0dev/SwiftCore-sub000/kernel/irq"
	"github.com/tas0dev/SwiftCore-sub000/kernel/kfmt/early"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem/pmm/allocator"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem/vmm"
	"github.com/tas0dev/SwiftCore-sub000/kernel/sched"
	"github.com/tas0dev/SwiftCore-sub000/kernel/syscall"
	"github.com/tas0dev/SwiftCore-sub000/kernel/task"
)

// idleKernelStackSize is the stack handed to the idle thread; it never
// makes deep calls, so a 16 KiB reservation is enough.
const idleKernelStackSize = 4096 * 4

// idleThread is the entry point of the kernel's bootstrap thread. With no
// other thread runnable it is what every timer tick reschedules back to.
func idleThread() {
	for {
		cpu.Halt()
	}
}

var errNoIdleStack = &kernel.Error{Module: "kmain", Message: "failed to allocate idle thread kernel stack"}

// ext2BlockSize is the block size RAMBlockDevice presents to kernel/ext2;
// 1024 matches ext2's minimum block size, so readFSBlock never has to
// stitch together multiple device reads per filesystem block.
const ext2BlockSize = 1024

// mountRootFilesystem looks for the bootloader module carrying the root
// filesystem image (loaded via grub's "module2" directive, spec.md §4.J)
// and mounts it as kernel/syscall's root. A missing or unmountable module
// is not fatal: the kernel still boots, just with every file syscall
// failing closed (Open returns ENXIO).
func mountRootFilesystem() {
	var modStart, modEnd uint32
	found := false
	multiboot.VisitModules(func(m multiboot.ModuleEntry) bool {
		modStart, modEnd = m.StartAddr, m.EndAddr
		found = true
		return false
	})
	if !found {
		early.Printf("SwiftCore: no root filesystem module, file syscalls disabled\n")
		return
	}

	dev := ext2.NewRAMBlockDevice(uintptr(modStart), uintptr(modEnd), ext2BlockSize)
	fs, err := ext2.New(dev)
	if err != nil {
		early.Printf("SwiftCore: failed to mount root filesystem: %s\n", err.Error())
		return
	}
	syscall.MountRoot(fs)
	early.Printf("SwiftCore: mounted root filesystem\n")
}

// Kmain is the only Go symbol visible (exported) from the rt0 initialization
// code. It is invoked by the rt0 assembly code once a minimal g0 struct has
// been set up, using the 4K stack the assembly trampoline allocated.
//
// The rt0 code passes the address of the multiboot2 info payload the
// bootloader provides, plus the physical addresses spanning the kernel
// image so the boot memory allocator can skip them.
//
// Kmain is not expected to return: it builds the idle thread and process,
// starts the scheduler and jumps into it. Control never comes back here.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	var serial console.Serial
	serial.Init(console.COM1)
	hal.SetActiveConsole(&serial)

	hal.InitFromMultiboot(multibootInfoPtr, kernelEnd)

	allocator.Init()
	gdt.Init()

	if err := vmm.Init(); err != nil {
		kernel.Panic(err)
	}

	irq.Init()
	mountRootFilesystem()

	early.Printf("SwiftCore: boot sequence complete\n")

	kernelProc := task.NewProcess("kernel", task.Core, 0, false, 0)
	task.AddProcess(kernelProc)

	kstack, ok := task.AllocateKernelStack(idleKernelStackSize)
	if !ok {
		kernel.Panic(errNoIdleStack)
	}
	idle := task.NewThread(kernelProc.ID(), "idle", idleThread, kstack, idleKernelStackSize)
	task.AddThread(idle)

	sched.Init()
	syscall.Init()
	cpu.EnableInterrupts()
	sched.StartScheduling()
}
