package irq

import "github.com/tas0dev/SwiftCore-sub000/kernel"

var (
	panicFn = kernel.Panic

	errUnhandledVector = &kernel.Error{Module: "irq", Message: "unhandled interrupt vector"}
)

type handlerEntry struct {
	plain    ExceptionHandler
	withCode ExceptionHandlerWithCode
	isIRQ    bool
}

var handlers [256]handlerEntry

// dispatchVector is called by the isrCommon assembly trampoline for every
// vector this kernel installs a gate for. frame and regs point into the
// trampoline's own stack frame; a handler that modifies them changes what
// IRETQ restores at the interrupted location.
func dispatchVector(vector uint8, errCode uint64, frame *Frame, regs *Regs) {
	h := &handlers[vector]
	switch {
	case h.withCode != nil:
		h.withCode(errCode, frame, regs)
	case h.plain != nil:
		h.plain(frame, regs)
	default:
		panicFn(errUnhandledVector)
		return
	}

	if h.isIRQ {
		sendEOI(ExceptionNum(vector))
	}
}
