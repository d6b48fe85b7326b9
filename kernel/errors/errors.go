// Package errors implements the kernel's nested tagged-union error model:
// a caller can classify a failure by Kind/Code without string matching, and
// fatal/retryable classification is uniform across Memory, Process, Device
// and Elf failures. No other kernel package imports it at present; the
// subsystems in this tree (elf, ext2, vfs, vmm and the rest) return the
// heap-free *kernel.Error (see kernel/error.go).
package errors

// Kind identifies which branch of the tagged union an Error belongs to.
type Kind uint8

const (
	// KindMemory covers frame-allocator and page-table failures.
	KindMemory Kind = iota
	// KindProcess covers process/thread table and IPC failures.
	KindProcess
	// KindService covers the process sub-union of service-manager errors.
	KindService
	// KindDevice covers driver/hardware failures.
	KindDevice
	// KindELF covers ELF64 parsing and loading failures.
	KindELF
	// KindOther covers everything that does not belong to a more specific kind.
	KindOther
)

// String returns a short human-readable name for k.
func (k Kind) String() string {
	switch k {
	case KindMemory:
		return "memory"
	case KindProcess:
		return "process"
	case KindService:
		return "service"
	case KindDevice:
		return "device"
	case KindELF:
		return "elf"
	default:
		return "other"
	}
}

// Code is a Kind-scoped error code. Two errors of different Kind may share
// the same numeric Code; callers must always inspect Kind and Code together.
type Code uint8

// Memory codes.
const (
	MemOutOfMemory Code = iota
	MemInvalidAddress
	MemPermissionDenied
	MemAlreadyMapped
	MemNotMapped
	MemAlignmentError
)

// Process codes.
const (
	ProcInvalidPid Code = iota
	ProcNotFound
	ProcMaxProcessesReached
	ProcInsufficientPrivilege
	ProcIpcError
	ProcTimeout
)

// Service codes (the Process.Service sub-union).
const (
	ServiceNotFound Code = iota
	ServiceAlreadyRunning
	ServiceStartFailed
)

// Device codes.
const (
	DevBusy Code = iota
	DevHardwareFailure
	DevTimeout
	DevNotFound
	DevDriverLoadFailure
	DevDisconnected
	DevUnsupported
)

// Elf codes.
const (
	ElfInvalidFormat Code = iota
	ElfUnsupportedType
	ElfSegmentLoadFailure
	ElfSymbolResolutionFailure
	ElfInsufficientLength
)

// Other codes.
const (
	OtherInvalidParam Code = iota
	OtherNotImplemented
	OtherUnknownError
)

// Error is a heap-free (all instances are package-level *Error values, never
// constructed on the fly with dynamic messages) kernel error carrying a
// Kind/Code tag pair plus a static message.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// IsFatal reports whether the error indicates a condition the kernel cannot
// recover from (out-of-memory, hardware failure). A fatal error observed
// during boot should propagate to kernel.Panic; one observed while servicing
// a syscall should still only fail that syscall unless it occurred while
// building kernel-only state.
func (e *Error) IsFatal() bool {
	switch {
	case e.Kind == KindMemory && e.Code == MemOutOfMemory:
		return true
	case e.Kind == KindDevice && e.Code == DevHardwareFailure:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether the caller may reasonably retry the operation
// that produced the error (device busy/timeout).
func (e *Error) IsRetryable() bool {
	switch {
	case e.Kind == KindDevice && e.Code == DevBusy:
		return true
	case e.Kind == KindDevice && e.Code == DevTimeout:
		return true
	default:
		return false
	}
}

var (
	// Memory errors.
	ErrOutOfMemory       = &Error{Kind: KindMemory, Code: MemOutOfMemory, Message: "out of memory"}
	ErrInvalidAddress    = &Error{Kind: KindMemory, Code: MemInvalidAddress, Message: "invalid address"}
	ErrPermissionDenied  = &Error{Kind: KindMemory, Code: MemPermissionDenied, Message: "permission denied"}
	ErrAlreadyMapped     = &Error{Kind: KindMemory, Code: MemAlreadyMapped, Message: "virtual page already mapped"}
	ErrNotMapped         = &Error{Kind: KindMemory, Code: MemNotMapped, Message: "virtual page not mapped"}
	ErrAlignmentError    = &Error{Kind: KindMemory, Code: MemAlignmentError, Message: "address is not page-aligned"}

	// Process errors.
	ErrInvalidPid             = &Error{Kind: KindProcess, Code: ProcInvalidPid, Message: "invalid process or thread id"}
	ErrProcessNotFound        = &Error{Kind: KindProcess, Code: ProcNotFound, Message: "process not found"}
	ErrMaxProcessesReached    = &Error{Kind: KindProcess, Code: ProcMaxProcessesReached, Message: "process table is full"}
	ErrInsufficientPrivilege  = &Error{Kind: KindProcess, Code: ProcInsufficientPrivilege, Message: "insufficient privilege"}
	ErrIpcError               = &Error{Kind: KindProcess, Code: ProcIpcError, Message: "ipc operation failed"}
	ErrProcessTimeout         = &Error{Kind: KindProcess, Code: ProcTimeout, Message: "operation timed out"}

	// Service sub-union.
	ErrServiceNotFound       = &Error{Kind: KindService, Code: ServiceNotFound, Message: "service not found"}
	ErrServiceAlreadyRunning = &Error{Kind: KindService, Code: ServiceAlreadyRunning, Message: "service already running"}
	ErrServiceStartFailed    = &Error{Kind: KindService, Code: ServiceStartFailed, Message: "service failed to start"}

	// Device errors.
	ErrDeviceBusy           = &Error{Kind: KindDevice, Code: DevBusy, Message: "device busy"}
	ErrHardwareFailure      = &Error{Kind: KindDevice, Code: DevHardwareFailure, Message: "hardware failure"}
	ErrDeviceTimeout        = &Error{Kind: KindDevice, Code: DevTimeout, Message: "device timeout"}
	ErrDeviceNotFound       = &Error{Kind: KindDevice, Code: DevNotFound, Message: "device not found"}
	ErrDriverLoadFailure    = &Error{Kind: KindDevice, Code: DevDriverLoadFailure, Message: "driver failed to load"}
	ErrDisconnected         = &Error{Kind: KindDevice, Code: DevDisconnected, Message: "device disconnected"}
	ErrUnsupported          = &Error{Kind: KindDevice, Code: DevUnsupported, Message: "device operation unsupported"}

	// Elf errors.
	ErrInvalidFormat          = &Error{Kind: KindELF, Code: ElfInvalidFormat, Message: "invalid ELF format"}
	ErrUnsupportedType        = &Error{Kind: KindELF, Code: ElfUnsupportedType, Message: "unsupported ELF type"}
	ErrSegmentLoadFailure     = &Error{Kind: KindELF, Code: ElfSegmentLoadFailure, Message: "failed to load ELF segment"}
	ErrSymbolResolutionFailure = &Error{Kind: KindELF, Code: ElfSymbolResolutionFailure, Message: "failed to resolve ELF symbol"}
	ErrInsufficientLength     = &Error{Kind: KindELF, Code: ElfInsufficientLength, Message: "ELF image too short"}

	// Other errors.
	ErrInvalidParamValue = &Error{Kind: KindOther, Code: OtherInvalidParam, Message: "invalid parameter value"}
	ErrNotImplemented    = &Error{Kind: KindOther, Code: OtherNotImplemented, Message: "not implemented"}
	ErrUnknown           = &Error{Kind: KindOther, Code: OtherUnknownError, Message: "unknown error"}
)
