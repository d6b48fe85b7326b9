// Package ctxswitch implements the cooperative CPU context switch (spec.md
// §4.F): the hand-rolled machine code that saves one thread's
// callee-saved registers and return address, loads another's, and jumps.
package ctxswitch

import "github.com/tas0dev/SwiftCore-sub000/kernel/gdt"

// Context holds the callee-saved register set, instruction pointer and
// flags that survive a cooperative function call per the System V ABI.
// Field order matches the layout SwitchContext's assembly indexes by
// offset; it must not be reordered without updating context_amd64.s.
type Context struct {
	RSP    uint64
	RBP    uint64
	RBX    uint64
	R12    uint64
	R13    uint64
	R14    uint64
	R15    uint64
	RIP    uint64
	RFlags uint64
}

// SwitchContext saves the calling thread's register state into old, loads
// next's, and jumps to next.RIP. Interrupts are disabled for the duration
// of the switch; old must not be nil (use JumpToContext for the first
// thread a core ever runs, which has no prior context to save).
func SwitchContext(old, next *Context)

// JumpToContext loads next's register state and jumps to next.RIP without
// saving anything. It never returns; it is used to start the very first
// thread scheduled on a core.
func JumpToContext(next *Context)

// JumpToUsermode builds an IRETQ frame that drops to ring 3 at entry
// running on stack, loading the user data selectors from kernel/gdt into
// ds/es/fs/gs first. It never returns.
func JumpToUsermode(entry, stack uint64) {
	jumpToUsermode(entry, stack, gdt.UserCodeSelector, gdt.UserDataSelector)
}

// jumpToUsermode is the asm primitive JumpToUsermode wraps; it takes the
// selectors explicitly so the assembly itself has no dependency on
// kernel/gdt's layout.
func jumpToUsermode(entry, stack uint64, codeSelector, dataSelector uint16)
