package syscall

import (
	"reflect"
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel/cpu"
)

const (
	msrEFER  = 0xC0000080
	msrSTAR  = 0xC0000081
	msrLSTAR = 0xC0000082
	msrFMASK = 0xC0000084

	efSCE = 1 << 0
)

// syscallKernelStack backs the SYSCALL fast path's kernel stack before the
// scheduler has switched to a real thread; initFastPath points
// syscallKernelRSP at its top, and UpdateKernelRSP repoints it at each
// thread's own kernel stack from then on.
var syscallKernelStack [4096 * 8]byte

// syscallKernelRSP, syscallTempUserRSP, syscallSavedUserRIP and
// syscallSavedUserRFlags are scratch cells syscallEntry (fastpath_amd64.s)
// reads and writes directly by symbol name, the same way isrCommon builds
// Regs and Frame straight out of the saved register state.
var (
	syscallKernelRSP       uint64
	syscallTempUserRSP     uint64
	syscallSavedUserRIP    uint64
	syscallSavedUserRFlags uint64
)

// UpdateKernelRSP points the SYSCALL fast path's kernel stack at rsp. It is
// registered with sched.RegisterKernelStackHook from Init, so every
// scheduler switch keeps it current the same way the TSS's RSP0 is kept
// current for the int 0x80 path.
func UpdateKernelRSP(rsp uint64) {
	syscallKernelRSP = rsp
}

// syscallEntry is the SYSCALL instruction's target, loaded into IA32_LSTAR
// by initFastPath. Implemented in fastpath_amd64.s.
func syscallEntry()

// initFastPath enables the SYSCALL/SYSRET instructions and points them at
// syscallEntry (spec.md §4.G). IA32_STAR packs the kernel and user CS/SS
// selector pairs SYSCALL/SYSRET derive their segments from; the pairing
// matches gdt's selector layout exactly (gdt.KernelCodeSelector=0x08 and
// the user code selector's RPL-stripped value=0x20), which is why gdt lays
// the GDT out in SYSCALL/SYSRET order even though this kernel currently
// enters through int 0x80 as well.
func initFastPath() {
	top := uintptr(unsafe.Pointer(&syscallKernelStack[0])) + uintptr(len(syscallKernelStack))
	UpdateKernelRSP(uint64(top))

	efer := cpu.ReadMSR(msrEFER)
	cpu.WriteMSR(msrEFER, efer|efSCE)

	// STAR[47:32] = kernel CS (SS = kernel CS+8 on SYSCALL), STAR[63:48] =
	// user CS base (SS = base+8, CS = base+16 on SYSRET), per the SYSCALL/
	// SYSRET selector convention.
	const star = uint64(0x0008)<<32 | uint64(0x0010)<<48
	cpu.WriteMSR(msrSTAR, star)

	entry := uint64(reflect.ValueOf(syscallEntry).Pointer())
	cpu.WriteMSR(msrLSTAR, entry)

	// FMASK clears RFLAGS.IF on entry so the fast path starts with
	// interrupts off, same as a trap gate with IST would.
	cpu.WriteMSR(msrFMASK, 0x200)
}

// dispatchFromSyscall is syscallEntry's only call into Go, once the stub has
// reordered the raw SYSCALL registers (RAX=num, RDI/RSI/RDX/R10/R8=
// arg0..arg4) into Dispatch's parameter order.
func dispatchFromSyscall(num, arg0, arg1, arg2, arg3, arg4 uint64) uint64 {
	return Dispatch(num, arg0, arg1, arg2, arg3, arg4)
}
