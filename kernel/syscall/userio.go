package syscall

import (
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel/cpu"
)

// setFSBaseFn is mocked by tests, which cannot execute the privileged
// IA32_FS_BASE MSR write outside ring 0.
var setFSBaseFn = cpu.SetFSBase

// readUserString copies a fixed-length byte range out of user memory and
// returns it as a string. User pages are always mapped into the kernel's
// own address space on this kernel (spec.md §4.G), so this is a plain
// local read, not a copy-from-user fault path.
func readUserString(ptr, length uint64) string {
	if ptr == 0 || length == 0 {
		return ""
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), int(length))
	return string(buf)
}

// writeUserBytes copies up to max bytes of data into user memory at ptr and
// returns how many bytes were actually written.
func writeUserBytes(ptr, max uint64, data []byte) int {
	if ptr == 0 || max == 0 || len(data) == 0 {
		return 0
	}
	n := len(data)
	if uint64(n) > max {
		n = int(max)
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), n)
	copy(dst, data)
	return n
}

// userBuf returns a byte slice view over length bytes of user memory at
// ptr, for syscalls that fill a caller-supplied buffer directly (Read,
// Readdir) rather than copying from an already-built []byte.
func userBuf(ptr, length uint64) []byte {
	if ptr == 0 || length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), int(length))
}
