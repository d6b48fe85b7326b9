package elf

import (
	"encoding/binary"

	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem/pmm/allocator"
	"github.com/tas0dev/SwiftCore-sub000/kernel/mem/vmm"
)

// userStackPages is the number of 4K pages reserved for a loaded image's
// initial stack (8 pages = 32KiB), matching the original loader's fixed
// stack allocation.
const userStackPages = 8

// userStackTop is the fixed virtual address every loaded image's stack
// starts at, just below the canonical address space's midpoint so it never
// collides with a PIE-free executable's own PT_LOAD segments.
const userStackTop uintptr = 0x0000_7000_0000_0000

// Image describes a successfully mapped executable, ready to become a
// thread's entry point and initial stack.
type Image struct {
	Entry    uint64
	StackTop uint64
}

var errNoLoadableSegments = &kernel.Error{Module: "elf", Message: "no PT_LOAD segments found"}

// Load parses data as an ELF64 executable, maps every PT_LOAD segment into
// pdt, applies a PIE image's relocations and builds a stack carrying argv,
// envp and a terminating auxv entry, returning the entry point and initial
// stack pointer a new thread should start with (spec.md §4.H).
func Load(pdt *vmm.PageDirectoryTable, data []byte, argv, envp []string) (*Image, *kernel.Error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	segs, err := loadableSegments(data, h)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, errNoLoadableSegments
	}

	// ET_DYN (PIE) images are position-independent: every segment's vaddr
	// and the entry point itself are relative to a load bias the loader
	// picks, and a DT_RELA table needs patching afterwards. ET_EXEC images
	// carry no bias at all.
	var loadBias uint64
	if h.typ == etDyn {
		loadBias = pieLoadBias
	}

	for _, seg := range segs {
		fileBytes := data[seg.Offset : seg.Offset+seg.FileSize]
		vaddr := uintptr(seg.VAddr + loadBias)
		if err := vmm.MapAndCopySegment(pdt, vaddr, seg.FileSize, seg.MemSize, fileBytes, seg.Writable, seg.Exec); err != nil {
			return nil, err
		}
	}

	if loadBias != 0 {
		relocs, err := parseRelocations(data, h, segs, loadBias)
		if err != nil {
			return nil, err
		}
		for _, r := range relocs {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], r.value)
			if err := vmm.WriteMapped(pdt, r.dest, buf[:]); err != nil {
				return nil, err
			}
		}
	}

	rsp, err := mapUserStack(pdt, argv, envp)
	if err != nil {
		return nil, err
	}

	return &Image{
		Entry:    h.entry + loadBias,
		StackTop: uint64(rsp),
	}, nil
}

// errStackTooSmall is returned when argv/envp don't fit in the fixed
// userStackPages budget.
var errStackTooSmall = &kernel.Error{Module: "elf", Message: "argv/envp do not fit in the user stack"}

// mapUserStack maps userStackPages zero-filled, writable, non-executable
// pages ending at userStackTop into pdt, then writes the argv/envp/auxv
// layout spec.md §4.H step 4 describes into the top of that region,
// returning the initial stack pointer (the address of argc).
func mapUserStack(pdt *vmm.PageDirectoryTable, argv, envp []string) (uintptr, *kernel.Error) {
	stackBottom := userStackTop - uintptr(userStackPages)*uintptr(mem.PageSize)
	if err := vmm.MapAndCopySegment(pdt, stackBottom, 0, uint64(userStackPages)*uint64(mem.PageSize), nil, true, false); err != nil {
		return 0, err
	}

	blob, rsp, err := buildStackLayout(argv, envp, userStackTop)
	if err != nil {
		return 0, err
	}
	if rsp < stackBottom {
		return 0, errStackTooSmall
	}
	if err := vmm.WriteMapped(pdt, rsp, blob); err != nil {
		return 0, err
	}
	return rsp, nil
}

// buildStackLayout lays out argv, envp and a terminating auxv entry from
// top (the high address, exclusive) downward: the string area, 16-byte
// alignment padding, the Elf64_auxv_t{0,0} terminator, envp's NULL
// terminator and pointer array, argv's NULL terminator and pointer array,
// and finally argc — the System V layout a freshly exec'd process expects
// at its initial stack pointer (spec.md §4.H step 4). It returns the
// fully-built blob and the address (rsp) it must be written at, i.e. the
// address of argc.
func buildStackLayout(argv, envp []string, top uintptr) (blob []byte, rsp uintptr, err *kernel.Error) {
	var strs []byte
	argvOff := make([]int, len(argv))
	envpOff := make([]int, len(envp))
	for i, s := range argv {
		argvOff[i] = len(strs)
		strs = append(strs, s...)
		strs = append(strs, 0)
	}
	for i, s := range envp {
		envpOff[i] = len(strs)
		strs = append(strs, s...)
		strs = append(strs, 0)
	}

	const auxvTerminatorSize = 16
	ptrArraysSize := 8 + 8*len(argv) + 8 + 8*len(envp) + 8 + auxvTerminatorSize
	unpadded := len(strs) + ptrArraysSize
	pad := (16 - unpadded%16) % 16
	total := len(strs) + pad + ptrArraysSize

	if uintptr(total) > uintptr(userStackPages)*uintptr(mem.PageSize) {
		return nil, 0, errStackTooSmall
	}

	rsp = top - uintptr(total)
	stringAreaStart := uint64(top) - uint64(len(strs))

	blob = make([]byte, total)
	w := 0
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(blob[w:w+8], v)
		w += 8
	}

	putU64(uint64(len(argv)))
	for _, off := range argvOff {
		putU64(stringAreaStart + uint64(off))
	}
	putU64(0)
	for _, off := range envpOff {
		putU64(stringAreaStart + uint64(off))
	}
	putU64(0)
	putU64(0) // auxv terminator: a_type
	putU64(0) // auxv terminator: a_val
	w += pad
	copy(blob[w:], strs)

	return blob, rsp, nil
}

// NewAddressSpace allocates and bootstraps a fresh page table directory
// for a process that should not share the kernel's address space.
func NewAddressSpace() (*vmm.PageDirectoryTable, uintptr, *kernel.Error) {
	frame, err := allocator.AllocFrame()
	if err != nil {
		return nil, 0, err
	}
	var pdt vmm.PageDirectoryTable
	if err := pdt.Init(frame, allocator.AllocFrame); err != nil {
		return nil, 0, err
	}
	return &pdt, frame.Address(), nil
}
