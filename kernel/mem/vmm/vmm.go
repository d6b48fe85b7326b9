// Package vmm implements the page-table manager (spec.md §4.B): mapping and
// unmapping virtual pages, translating addresses, and giving each process
// its own address space via PageDirectoryTable.
package vmm

import (
	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/cpu"
	"github.com/tas0dev/SwiftCore-sub000/kernel/diag"
	"github.com/tas0dev/SwiftCore-sub000/kernel/irq"
	"github.com/tas0dev/SwiftCore-sub000/kernel/kfmt/early"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem/pmm"
)

var (
	// frameAllocator points to a frame allocator function registered using
	// SetFrameAllocator.
	frameAllocator FrameAllocatorFn

	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	panicFn                   = kernel.Panic
	handleExceptionWithCodeFn = irq.HandleExceptionWithCode
	readCR2Fn                 = cpu.ReadCR2
	disassembleFn             = diag.DisassembleAt
)

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (pmm.Frame, *kernel.Error)

// SetFrameAllocator registers a frame allocator function that will be used by
// the vmm code when new physical frames need to be allocated.
func SetFrameAllocator(allocFn FrameAllocatorFn) {
	frameAllocator = allocFn
}

// pageFaultHandler reports the faulting address and registers before
// handing off to kernel.Panic. Unlike gopheros, no mapping here is ever
// copy-on-write, so a page fault is always an error: either the page was
// never mapped, or the access violated its protection flags.
func pageFaultHandler(errorCode uint64, frame *irq.Frame, regs *irq.Regs) {
	faultAddress := uintptr(readCR2Fn())

	early.Printf("\nPage fault while accessing address: 0x%16x\nReason: ", faultAddress)
	switch errorCode {
	case 0:
		early.Printf("read from non-present page")
	case 1:
		early.Printf("page protection violation (read)")
	case 2:
		early.Printf("write to non-present page")
	case 3:
		early.Printf("page protection violation (write)")
	case 4:
		early.Printf("page-fault in user-mode")
	case 8:
		early.Printf("page table has reserved bit set")
	case 16:
		early.Printf("instruction fetch")
	default:
		early.Printf("unknown")
	}

	early.Printf("\n\nRegisters:\n")
	regs.Print()
	frame.Print()
	early.Printf("Faulting instruction: %s\n", disassembleFn(uintptr(frame.RIP)))

	panicFn(kernel.ErrPageFault)
}

func generalProtectionFaultHandler(_ uint64, frame *irq.Frame, regs *irq.Regs) {
	early.Printf("\nGeneral protection fault while accessing address: 0x%x\n", readCR2Fn())
	early.Printf("Registers:\n")
	regs.Print()
	frame.Print()
	early.Printf("Faulting instruction: %s\n", disassembleFn(uintptr(frame.RIP)))

	panicFn(kernel.ErrGeneralProtectionFault)
}

// Init installs the page-fault and general-protection-fault exception
// handlers. It must be called once the IDT has been set up and before any
// user-mode code runs.
func Init() *kernel.Error {
	handleExceptionWithCodeFn(irq.PageFaultException, pageFaultHandler)
	handleExceptionWithCodeFn(irq.GPFException, generalProtectionFaultHandler)
	return nil
}
