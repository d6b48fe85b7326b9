package irq

// ExceptionNum identifies a CPU exception vector that can be passed to
// HandleException or HandleExceptionWithCode.
type ExceptionNum uint8

const (
	// DivideByZero occurs when dividing by zero using the DIV or IDIV
	// instruction.
	DivideByZero = ExceptionNum(0)

	// NMI is a non-maskable hardware interrupt indicating a RAM or other
	// unrecoverable hardware problem.
	NMI = ExceptionNum(2)

	// Overflow occurs when the INTO instruction is executed with RFLAGS.OF set.
	Overflow = ExceptionNum(4)

	// BoundRangeExceeded occurs when the BOUND instruction's index operand
	// is out of range.
	BoundRangeExceeded = ExceptionNum(5)

	// InvalidOpcode occurs when the CPU decodes an invalid or undefined
	// instruction.
	InvalidOpcode = ExceptionNum(6)

	// DeviceNotAvailable occurs when an FPU/MMX/SSE instruction is executed
	// while CR0.TS or CR0.EM disables the relevant unit.
	DeviceNotAvailable = ExceptionNum(7)

	// DoubleFault occurs when an exception is unhandled or when an
	// exception occurs while the CPU is already servicing one.
	DoubleFault = ExceptionNum(8)

	// InvalidTSS occurs when the TSS referenced by a task or interrupt gate
	// is malformed.
	InvalidTSS = ExceptionNum(10)

	// SegmentNotPresent occurs when a segment descriptor's present bit is
	// clear.
	SegmentNotPresent = ExceptionNum(11)

	// StackSegmentFault occurs on a non-canonical stack access or a stack
	// segment limit violation.
	StackSegmentFault = ExceptionNum(12)

	// GPFException is raised when a general protection fault occurs.
	GPFException = ExceptionNum(13)

	// PageFaultException is raised when a PDT or PDT entry is not present
	// or when a privilege and/or RW protection check fails.
	PageFaultException = ExceptionNum(14)

	// FloatingPointException occurs on an unmasked x87 FP exception while
	// CR0.NE is set.
	FloatingPointException = ExceptionNum(16)

	// AlignmentCheck occurs when alignment checking is enabled and an
	// unaligned memory access is performed.
	AlignmentCheck = ExceptionNum(17)

	// MachineCheck occurs when the CPU detects an internal error.
	MachineCheck = ExceptionNum(18)

	// SIMDFloatingPointException occurs on an unmasked SSE exception while
	// CR4.OSXMMEXCPT is set.
	SIMDFloatingPointException = ExceptionNum(19)

	// TimerIRQ is the vector the legacy PIT timer is remapped to and drives
	// preemptive scheduling (spec.md §5).
	TimerIRQ = ExceptionNum(irqBase + 0)

	// KeyboardIRQ is the vector the PS/2 keyboard controller is remapped to.
	KeyboardIRQ = ExceptionNum(irqBase + 1)

	// SyscallVector is the int 0x80 trap gate user-space threads use to
	// enter the kernel (spec.md §4.G). Unlike the exception and IRQ gates
	// it is installed with DPL=3 so ring-3 code may invoke it directly.
	SyscallVector = ExceptionNum(0x80)
)

// hasErrorCode reports whether the CPU automatically pushes an error code
// onto the stack for this exception vector before invoking its handler.
func (e ExceptionNum) hasErrorCode() bool {
	switch e {
	case DoubleFault, InvalidTSS, SegmentNotPresent, StackSegmentFault, GPFException, PageFaultException, AlignmentCheck:
		return true
	default:
		return false
	}
}

// ExceptionHandler handles an exception that does not push an error code. If
// the handler returns, modifications it made to frame/regs are restored by
// IRETQ at the point the exception occurred.
type ExceptionHandler func(frame *Frame, regs *Regs)

// ExceptionHandlerWithCode handles an exception that pushes an error code.
type ExceptionHandlerWithCode func(errorCode uint64, frame *Frame, regs *Regs)

// HandleException registers handler for exceptionNum, which must not be one
// of the vectors that carries a hardware error code.
func HandleException(exceptionNum ExceptionNum, handler ExceptionHandler) {
	handlers[exceptionNum].plain = handler
}

// HandleExceptionWithCode registers handler for exceptionNum, which must be
// one of the vectors that carries a hardware error code.
func HandleExceptionWithCode(exceptionNum ExceptionNum, handler ExceptionHandlerWithCode) {
	handlers[exceptionNum].withCode = handler
}

// HandleIRQ registers handler for a remapped hardware interrupt line. The EOI
// for the line is sent automatically after handler returns.
func HandleIRQ(line ExceptionNum, handler ExceptionHandler) {
	handlers[line].plain = handler
	handlers[line].isIRQ = true
}

// isrStub0..isrStub128 are the assembly entry points the IDT gates built by
// Init point at. Each saves the register state, builds a Frame/Regs pair and
// calls dispatchVector before restoring state and returning via IRETQ.
func isrStub0()
func isrStub2()
func isrStub4()
func isrStub5()
func isrStub6()
func isrStub7()
func isrStub8()
func isrStub10()
func isrStub11()
func isrStub12()
func isrStub13()
func isrStub14()
func isrStub16()
func isrStub17()
func isrStub18()
func isrStub19()
func isrStub32()
func isrStub33()
func isrStub128()
