package allocator

import (
	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/hal/multiboot"
	"github.com/tas0dev/SwiftCore-sub000/kernel/kfmt/early"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem/pmm"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem/vmm"
)

var (
	// EarlyAllocator points to a static instance of the boot memory allocator
	// which is used to bootstrap the kernel and remains its only physical
	// frame allocator afterwards.
	EarlyAllocator BootMemAllocator

	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
)

// BootMemAllocator implements a rudimentary physical memory allocator which is used
// to bootstrap the kernel.
//
// The allocator implementation uses the memory region information provided by
// the bootloader to detect free memory blocks and return the next available
// free frame.
//
// Allocations are tracked via an internal counter that contains the last
// allocated frame index.  The system memory regions are mapped into a linear
// page index by aligning the region start address to the system's page size
// and then dividing by the page size.
//
// Due to the way that the allocator works, it is not possible to free
// allocated pages, and no other allocator takes over from it later.
type BootMemAllocator struct {
	// allocCount tracks the total number of allocated frames.
	allocCount uint64

	// lastAllocIndex tracks the last allocated frame index.
	lastAllocIndex int64
}

// Init sets up the boot memory allocator internal state and prints out the
// system memory map.
func (alloc *BootMemAllocator) Init() {
	alloc.lastAllocIndex = -1

	early.Printf("[boot_mem_alloc] system memory map:\n")
	var totalFree mem.Size
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		early.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.PhysAddress, region.PhysAddress+region.Length, region.Length, region.Type.String())

		if region.Type == multiboot.MemAvailable {
			totalFree += mem.Size(region.Length)
		}
		return true
	})
	early.Printf("[boot_mem_alloc] free memory: %dKb\n", uint64(totalFree/mem.Kb))
}

// AllocFrame scans the system memory regions reported by the bootloader and
// reserves the next available free frame. Frames are always 4 KiB; this
// kernel never requests or tracks multi-frame ("huge") allocations.
//
// AllocFrame returns an error if no more memory can be allocated. Allocated
// frames are never freed: once the kernel's own bootstrap is complete, every
// remaining frame belongs to a process's address space for the lifetime of
// that process (spec.md §9 fixes the allocator at this granularity; demand
// paging and frame reclamation are Non-goals).
func (alloc *BootMemAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	var (
		foundPageIndex                           int64 = -1
		regionStartPageIndex, regionEndPageIndex int64
	)
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		// Align region start address to a page boundary and find the start
		// and end page indices for the region
		regionStartPageIndex = int64(((mem.Size(region.PhysAddress) + (mem.PageSize - 1)) & ^(mem.PageSize - 1)) >> mem.PageShift)
		regionEndPageIndex = int64(((mem.Size(region.PhysAddress+region.Length) - (mem.PageSize - 1)) & ^(mem.PageSize - 1)) >> mem.PageShift)

		// Ignore already allocated regions
		if alloc.lastAllocIndex >= regionEndPageIndex {
			return true
		}

		// We found a block that can be allocated. The last allocated
		// index will be either pointing to a previous region or will
		// point inside this region. In the first case we just need to
		// select the regionStartPageIndex. In the latter case we can
		// simply select the next available page in the current region.
		if alloc.lastAllocIndex < regionStartPageIndex {
			foundPageIndex = regionStartPageIndex
		} else {
			foundPageIndex = alloc.lastAllocIndex + 1
		}
		return false
	})

	if foundPageIndex == -1 {
		return pmm.InvalidFrame, errBootAllocOutOfMemory
	}

	alloc.allocCount++
	alloc.lastAllocIndex = foundPageIndex

	return pmm.Frame(foundPageIndex), nil
}

// AllocFrame delegates to EarlyAllocator. It is passed to vmm.SetFrameAllocator
// as a free function rather than a bound method so the compiler's escape
// analysis does not decide that EarlyAllocator itself escapes to the heap.
func AllocFrame() (pmm.Frame, *kernel.Error) {
	return EarlyAllocator.AllocFrame()
}

// Init wires EarlyAllocator in as the frame allocator used by the vmm package
// and logs the memory map reported by the bootloader. It must run once the
// multiboot tag stream has been parsed and before any code calls vmm.Map.
func Init() {
	EarlyAllocator.Init()
	vmm.SetFrameAllocator(AllocFrame)
}
