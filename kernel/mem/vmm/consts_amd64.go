package vmm

import "math"

// The amd64 page table hierarchy has 4 levels (PML4, PDPT, PD, PT), each
// indexed by 9 bits of the virtual address, with the low 12 bits selecting
// a byte within the final 4 KiB page.
const (
	pageLevels = 4

	// ptePhysPageMask extracts the physical frame address from a page table
	// entry, masking out both the low flag bits and the high NX/reserved bits.
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	// tempMappingAddr is the reserved virtual address used by MapTemporary to
	// expose a single physical frame (e.g. an inactive PDT's frame) through
	// the currently active page table.
	tempMappingAddr = uintptr(0xffffff7ffffff000)
)

var (
	// pdtVirtualAddr is the virtual address at which the active page
	// directory table appears, exploiting the fact that its own last entry
	// is set up to point back to itself (the "recursive mapping" trick).
	pdtVirtualAddr = uintptr(math.MaxUint64 &^ ((1 << 12) - 1))

	// pageLevelBits holds, for each paging level, the number of virtual
	// address bits used to index into that level's table.
	pageLevelBits = [pageLevels]uint8{9, 9, 9, 9}

	// pageLevelShifts holds, for each paging level, the bit offset at which
	// its index field begins within the virtual address.
	pageLevelShifts = [pageLevels]uint8{39, 30, 21, 12}
)

// PageTableEntryFlag bit assignments. FlagCopyOnWrite is intentionally absent:
// this kernel never shares a physical frame copy-on-write between two
// address spaces (see SPEC_FULL.md Non-goals); every mapping request copies
// or zero-fills its frame up front instead of deferring the copy to a fault.
const (
	// FlagPresent marks the entry as mapped to a physical frame.
	FlagPresent PageTableEntryFlag = 1 << iota
	// FlagRW marks the mapped page as writable; when clear the page is
	// read-only to the code that walks this entry.
	FlagRW
	// FlagUserAccessible allows ring-3 code to access the mapped page.
	FlagUserAccessible
	// FlagWriteThroughCaching enables write-through caching for the page.
	FlagWriteThroughCaching
	// FlagDoNotCache disables caching for the page.
	FlagDoNotCache
	// FlagAccessed is set by the CPU the first time the page is accessed.
	FlagAccessed
	// FlagDirty is set by the CPU the first time the page is written to.
	FlagDirty
	// FlagHugePage marks a PD/PDPT entry as mapping a huge page directly
	// instead of pointing to a lower-level table. This kernel never creates
	// huge-page mappings; the flag exists only so Map/Unmap can detect and
	// reject one encountered while walking a table, per spec.md's fixed
	// 4 KiB frame granularity.
	FlagHugePage
	// FlagGlobal prevents the TLB from flushing the entry on a PDT switch.
	FlagGlobal
)

// FlagNoExecute marks the mapped page as non-executable. It occupies the
// architecturally-defined NX bit (63), well past the contiguous iota block
// above.
const FlagNoExecute PageTableEntryFlag = 1 << 63
