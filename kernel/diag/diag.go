// Package diag formats the faulting instruction at a crash site for the
// panic dump kernel/mem/vmm's exception handlers print (spec.md §4.C):
// given the RIP an exception frame reports, it disassembles the bytes
// sitting at that address, the same direct-physical-access idiom
// kernel/hal/multiboot and kernel/ext2 use to read bootloader-supplied
// memory as a plain byte slice.
package diag

import (
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

// maxInstructionLen is the longest an x86-64 instruction can legally be
// encoded as; reading this many bytes past rip is always safe to attempt a
// decode, even though most instructions are much shorter.
const maxInstructionLen = 15

// decodeOne decodes a single instruction out of data (which must be at
// least maxInstructionLen bytes, or however many remain at the end of a
// mapped page) and renders it as GNU-syntax text, addressed at pc. Split
// out from the unsafe-memory-reading entry points below so tests can drive
// it directly against ordinary Go byte slices.
func decodeOne(data []byte, pc uint64) (text string, length int, ok bool) {
	inst, err := x86asm.Decode(data, 64)
	if err != nil {
		return "<undecodable instruction>", 1, false
	}
	return x86asm.GNUSyntax(inst, pc, nil), inst.Len, true
}

// DisassembleAt decodes the single instruction at the given virtual address
// and returns its GNU-syntax text, or a placeholder string if the bytes
// there don't decode as valid x86-64 (a corrupted return address, a fault
// inside data rather than code, or a decoder gap).
func DisassembleAt(rip uintptr) string {
	if rip == 0 {
		return "<no instruction: nil rip>"
	}
	window := unsafe.Slice((*byte)(unsafe.Pointer(rip)), maxInstructionLen)
	text, _, _ := decodeOne(window, uint64(rip))
	return text
}

// DumpAround returns the disassembly of the count instructions starting at
// rip, one per line, advancing by each decoded instruction's own length so
// a misaligned guess doesn't compound across the window.
func DumpAround(rip uintptr, count int) []string {
	if rip == 0 || count <= 0 {
		return nil
	}
	lines := make([]string, 0, count)
	addr := rip
	for i := 0; i < count; i++ {
		window := unsafe.Slice((*byte)(unsafe.Pointer(addr)), maxInstructionLen)
		text, length, _ := decodeOne(window, uint64(addr))
		lines = append(lines, text)
		addr += uintptr(length)
	}
	return lines
}
