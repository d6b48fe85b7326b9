package vmm

import (
	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem"
)

var (
	// earlyReserveLastUsed tracks the last reserved page address and is
	// decreased after each allocation request. It starts at tempMappingAddr,
	// which coincides with the end of the kernel's address space.
	earlyReserveLastUsed = tempMappingAddr

	errEarlyReserveNoSpace = &kernel.Error{Module: "early_reserve", Message: "remaining virtual address space not large enough to satisfy reservation request"}
)

// EarlyReserveRegion reserves a page-aligned contiguous virtual memory region
// of the requested size in the kernel address space and returns its virtual
// address, without mapping it to any physical frame. If size is not a
// multiple of mem.PageSize it is rounded up.
//
// Regions are carved out from the top of the kernel address space downwards.
// It is intended for bootstrapping the Go runtime's allocator (kernel/goruntime)
// before a general-purpose virtual memory manager exists.
func EarlyReserveRegion(size mem.Size) (uintptr, *kernel.Error) {
	size = (size + (mem.PageSize - 1)) & ^(mem.PageSize - 1)

	if uintptr(size) > earlyReserveLastUsed {
		return 0, errEarlyReserveNoSpace
	}

	earlyReserveLastUsed -= uintptr(size)
	return earlyReserveLastUsed, nil
}
