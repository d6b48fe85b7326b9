// Package gdt builds the kernel's Global Descriptor Table and Task State
// Segment (spec.md §4.B/§4.C): the kernel/user code and data segments that
// back ring 0/ring 3 separation, and the TSS that supplies the ring-0 stack
// the CPU switches to on a ring-3-to-ring-0 transition (interrupt, exception
// or int 0x80).
package gdt

import "unsafe"

// Segment selectors. The ordering (kernel code, kernel data, user data, user
// code) is fixed: it matches the layout the SYSCALL/SYSRET instructions
// require (user code = user data + 8), so the same GDT serves both the
// int 0x80 trap gate and the SYSCALL/SYSRET fast path in kernel/syscall.
const (
	KernelCodeSelector = 0x08
	KernelDataSelector = 0x10
	UserDataSelector   = 0x18 | 3
	UserCodeSelector   = 0x20 | 3
	TSSSelector        = 0x28
)

// doubleFaultISTIndex selects the interrupt-stack-table slot the double
// fault gate runs on, so a double fault triggered by a corrupted kernel
// stack still has a valid stack to execute on.
const doubleFaultISTIndex = 0

const (
	doubleFaultStackSize = 4096 * 5
	kernelStackSize      = 4096 * 4
)

var (
	doubleFaultStack [doubleFaultStackSize]byte
	bootKernelStack  [kernelStackSize]byte
)

// segDescriptor is a classic 8-byte GDT segment descriptor.
type segDescriptor uint64

const (
	flagPresent    = 1 << 47
	flagUserSeg    = 1 << 44 // code/data (S bit), not a system descriptor
	flagExecutable = 1 << 43
	flagReadWrite  = 1 << 41
	flagLongMode   = 1 << 53
	dpl3           = 3 << 45
)

func kernelCodeDescriptor() segDescriptor {
	return segDescriptor(flagPresent | flagUserSeg | flagExecutable | flagReadWrite | flagLongMode)
}

func kernelDataDescriptor() segDescriptor {
	return segDescriptor(flagPresent | flagUserSeg | flagReadWrite)
}

func userCodeDescriptor() segDescriptor {
	return kernelCodeDescriptor() | dpl3
}

func userDataDescriptor() segDescriptor {
	return kernelDataDescriptor() | dpl3
}

// tss mirrors the x86-64 Task State Segment layout the CPU reads directly;
// field order and sizes must match the hardware definition exactly.
type tss struct {
	reserved0 uint32
	rsp       [3]uint64
	reserved1 uint64
	ist       [7]uint64
	reserved2 uint64
	reserved3 uint16
	ioMapBase uint16
}

var theTSS tss

// tssDescriptor is the 16-byte system-segment descriptor a TSS occupies in
// the GDT (it spans two regular 8-byte slots).
type tssDescriptor struct {
	low  uint64
	high uint64
}

func newTSSDescriptor(base uint64, limit uint32) tssDescriptor {
	const (
		tssPresent    = 1 << 47
		tssTypeAvail  = 0x9 << 40 // 64-bit TSS (available)
		limitLowMask  = 0xFFFF
		limitHighMask = 0xF
	)

	low := uint64(limit&limitLowMask) |
		((base & 0xFFFFFF) << 16) |
		tssPresent | tssTypeAvail |
		(uint64((limit>>16)&limitHighMask) << 48) |
		((base >> 24 & 0xFF) << 56)

	high := base >> 32

	return tssDescriptor{low: low, high: high}
}

type gdtTable struct {
	null       segDescriptor
	kernelCode segDescriptor
	kernelData segDescriptor
	userData   segDescriptor
	userCode   segDescriptor
	tss        tssDescriptor
}

var theGDT gdtTable

// gdtr is the operand LGDT loads into GDTR.
type gdtr struct {
	limit uint16
	base  uint64
}

// lgdtFn and ltrFn are mocked by tests, which cannot execute the privileged
// LGDT/LTR instructions (or reload segment registers) outside ring 0.
var (
	lgdtFn           = lgdt
	ltrFn            = ltr
	reloadSegmentsFn = reloadSegments
)

// Init builds the GDT and TSS, installs the double-fault IST stack and the
// initial ring-0 stack, loads both tables into the CPU and reloads every
// segment register to point at the new kernel code/data selectors.
func Init() {
	theTSS = tss{}
	theTSS.ist[doubleFaultISTIndex] = uint64(uintptr(unsafe.Pointer(&doubleFaultStack[0]))) + doubleFaultStackSize
	theTSS.rsp[0] = uint64(uintptr(unsafe.Pointer(&bootKernelStack[0]))) + kernelStackSize

	theGDT = gdtTable{
		kernelCode: kernelCodeDescriptor(),
		kernelData: kernelDataDescriptor(),
		userData:   userDataDescriptor(),
		userCode:   userCodeDescriptor(),
		tss:        newTSSDescriptor(uint64(uintptr(unsafe.Pointer(&theTSS))), uint32(unsafe.Sizeof(theTSS))-1),
	}

	descriptor := gdtr{
		limit: uint16(unsafe.Sizeof(theGDT)) - 1,
		base:  uint64(uintptr(unsafe.Pointer(&theGDT))),
	}
	lgdtFn(&descriptor)
	reloadSegmentsFn(KernelCodeSelector, KernelDataSelector)
	ltrFn(TSSSelector)
}

// SetKernelStack updates TSS.RSP0, the stack the CPU switches to on a
// ring-3-to-ring-0 transition. The scheduler calls this before resuming a
// thread, pointing it at that thread's own kernel stack (spec.md §5/§9).
func SetKernelStack(rsp uint64) {
	theTSS.rsp[0] = rsp
}

// lgdt loads GDTR with the table described by d.
func lgdt(d *gdtr)

// ltr loads the task register with the given TSS selector.
func ltr(selector uint16)

// reloadSegments performs a far return to reload CS with codeSelector and
// loads DS/ES/FS/GS/SS with dataSelector.
func reloadSegments(codeSelector, dataSelector uint16)
