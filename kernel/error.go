package kernel

// Error describes a kernel kerror. All kernel errors must be defined as global
// variables that are pointers to the Error structure. This requirement stems
// from the fact that the Go allocator is not available to us so we cannot use
// errors.New.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

var (
	// ErrPageFault is reported to Panic when the page-fault handler
	// observes a fault it cannot recover from. Every page fault is
	// unrecoverable: this kernel never maps a page copy-on-write, so a
	// fault always indicates a missing or protection-violating mapping.
	ErrPageFault = &Error{Module: "vmm", Message: "unrecoverable page fault"}

	// ErrGeneralProtectionFault is reported to Panic by the GP-fault handler.
	ErrGeneralProtectionFault = &Error{Module: "vmm", Message: "general protection fault"}
)
