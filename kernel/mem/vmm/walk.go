package vmm

import (
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel/mem"
)

// ptePtrFn is a mockable indirection to the unsafe pointer conversion used by
// walk; tests substitute it with a function backed by a Go slice so the
// 4-level walk can be exercised without a real page table mapped at
// pdtVirtualAddr.
var ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
	return unsafe.Pointer(entryAddr)
}

// pageTableWalker is invoked once per paging level while walking the table
// hierarchy for a virtual address. Returning false aborts the walk early.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk descends the 4-level page table hierarchy for virtAddr, starting from
// the recursively-mapped PDT at pdtVirtualAddr, invoking walkFn once per
// level (PML4, PDPT, PD, PT).
func walk(virtAddr uintptr, walkFn pageTableWalker) {
	var (
		level                            uint8
		tableAddr, entryAddr, entryIndex uintptr
		ok                               bool
	)

	for level, tableAddr = uint8(0), pdtVirtualAddr; level < pageLevels; level, tableAddr = level+1, entryAddr {
		entryIndex = (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryAddr = tableAddr + (entryIndex << mem.PointerShift)

		if ok = walkFn(level, (*pageTableEntry)(ptePtrFn(entryAddr))); !ok {
			return
		}

		entryAddr <<= pageLevelBits[level]
	}
}
