package vmm

import (
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem/pmm"
)

// MapAndCopySegment maps the virtual page range [vaddr, vaddr+memsz) into pdt
// using freshly allocated frames, copies the first filesz bytes of data into
// it and zero-fills the remainder (memsz may exceed filesz, e.g. for a .bss
// segment folded into a data segment). Pages are always mapped present,
// writable and user-accessible while the copy happens; writable is cleared
// afterwards unless writable is true, matching the ELF program header's
// PF_W flag (spec.md §4.B/§4.H).
func MapAndCopySegment(pdt *PageDirectoryTable, vaddr uintptr, filesz, memsz uint64, data []byte, writable, executable bool) *kernel.Error {
	var (
		startPage = PageFromAddress(vaddr)
		endPage   = PageFromAddress(vaddr + uintptr(memsz) - 1)
	)

	for page := startPage; page <= endPage; page++ {
		frame, err := frameAllocator()
		if err != nil {
			return err
		}

		if err := pdt.Map(page, frame, FlagPresent|FlagRW|FlagUserAccessible, frameAllocator); err != nil {
			return err
		}

		tmpPage, err := mapTemporaryFn(frame, frameAllocator)
		if err != nil {
			return err
		}
		mem.Memset(tmpPage.Address(), 0, mem.PageSize)

		pageStart := page.Address()
		pageEnd := pageStart + uintptr(mem.PageSize)

		segStart := vaddr
		segFileEnd := vaddr + uintptr(filesz)

		copyStart := pageStart
		if copyStart < segStart {
			copyStart = segStart
		}
		copyEnd := pageEnd
		if copyEnd > segFileEnd {
			copyEnd = segFileEnd
		}

		if copyEnd > copyStart {
			srcOff := copyStart - segStart
			dstOff := copyStart - pageStart
			n := mem.Size(copyEnd - copyStart)
			srcAddr := uintptr(unsafe.Pointer(&data[srcOff]))
			mem.Memcopy(srcAddr, tmpPage.Address()+dstOff, n)
		}

		unmapFn(tmpPage)

		if !writable {
			pte, err := pteForAddress(page.Address())
			if err == nil {
				pte.ClearFlags(FlagRW)
				flushTLBEntryFn(page.Address())
			}
		}

		if !executable {
			pte, err := pteForAddress(page.Address())
			if err == nil {
				pte.SetFlags(FlagNoExecute)
				flushTLBEntryFn(page.Address())
			}
		}
	}

	return nil
}

// WriteMapped copies data into pdt's address space starting at vaddr,
// assuming every page it touches is already present (mapped by a prior
// MapAndCopySegment call). Unlike MapAndCopySegment, it never allocates a
// frame or installs a mapping of its own: it looks up each page's existing
// frame and writes through the same temporary-mapping mechanism Map/Unmap
// use for an inactive PageDirectoryTable, so it works whether or not pdt is
// the currently active address space.
func WriteMapped(pdt *PageDirectoryTable, vaddr uintptr, data []byte) *kernel.Error {
	if len(data) == 0 {
		return nil
	}

	var (
		activePdtFrame   = pmm.Frame(activePDTFn() >> mem.PageShift)
		lastPdtEntryAddr uintptr
		lastPdtEntry     *pageTableEntry
	)
	retargeted := activePdtFrame != pdt.pdtFrame
	if retargeted {
		lastPdtEntryAddr = activePdtFrame.Address() + (((1 << pageLevelBits[0]) - 1) << mem.PointerShift)
		lastPdtEntry = (*pageTableEntry)(unsafe.Pointer(lastPdtEntryAddr))
		lastPdtEntry.SetFrame(pdt.pdtFrame)
		flushTLBEntryFn(lastPdtEntryAddr)
	}

	var (
		err         *kernel.Error
		regionStart = vaddr
		regionEnd   = vaddr + uintptr(len(data))
		startPage   = PageFromAddress(regionStart)
		endPage     = PageFromAddress(regionEnd - 1)
	)

	for page := startPage; page <= endPage; page++ {
		pte, perr := pteForAddress(page.Address())
		if perr != nil {
			err = perr
			break
		}

		tmpPage, terr := mapTemporaryFn(pte.Frame(), frameAllocator)
		if terr != nil {
			err = terr
			break
		}

		pageStart := page.Address()
		pageEnd := pageStart + uintptr(mem.PageSize)

		copyStart := regionStart
		if copyStart < pageStart {
			copyStart = pageStart
		}
		copyEnd := regionEnd
		if copyEnd > pageEnd {
			copyEnd = pageEnd
		}

		if copyEnd > copyStart {
			srcOff := copyStart - regionStart
			dstOff := copyStart - pageStart
			n := mem.Size(copyEnd - copyStart)
			srcAddr := uintptr(unsafe.Pointer(&data[srcOff]))
			mem.Memcopy(srcAddr, tmpPage.Address()+dstOff, n)
		}

		unmapFn(tmpPage)
	}

	if retargeted {
		lastPdtEntry.SetFrame(activePdtFrame)
		flushTLBEntryFn(lastPdtEntryAddr)
	}

	return err
}
