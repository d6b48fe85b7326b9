// Package elf implements the kernel's ELF64 loader and process creation
// (spec.md §4.H): parsing a statically linked executable's headers,
// mapping its PT_LOAD segments into a fresh address space and spawning the
// thread that runs it.
package elf

import (
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel"
)

// magic is the four leading bytes every ELF file starts with.
var magic = [4]byte{0x7F, 'E', 'L', 'F'}

const (
	// ptLoad marks a program header describing a segment the loader must
	// map into memory; every other segment type is skipped.
	ptLoad uint32 = 1

	// ptDynamic marks the program header that points at the image's
	// .dynamic section; only present on ET_DYN (PIE) images, and only
	// consulted for its DT_RELA table.
	ptDynamic uint32 = 2

	// pfExecute and pfWrite are the program header permission bits this
	// loader cares about (PF_X and PF_W); PF_R is implied unconditionally.
	pfExecute uint32 = 1 << 0
	pfWrite   uint32 = 1 << 1
)

const (
	// etDyn is the e_type value shared by every PIE executable; static
	// executables use ET_EXEC (2) instead and never carry a load bias.
	etDyn uint16 = 3

	// pieLoadBias is the fixed, nonzero virtual address every ET_DYN image
	// is loaded at. Real loaders pick this at random (ASLR); this kernel
	// has no entropy source wired up yet, so every PIE image lands at the
	// same address, matching the original loader.
	pieLoadBias uint64 = 0x2000_0000
)

// Elf64_Dyn tags this loader understands; only the ones needed to locate a
// DT_RELA table are given names.
const (
	dtNull    int64 = 0
	dtRela    int64 = 7
	dtRelasz  int64 = 8
	dtRelaent int64 = 9
)

// rX86_64Relative is the only relocation type this loader supports; a
// DT_RELA table containing any other type fails the load (spec.md §4.H: "no
// other relocation types are supported and must be absent").
const rX86_64Relative uint32 = 8

const (
	dynEntrySize  = 16
	relaEntrySize = 24
)

// header mirrors Elf64_Ehdr's on-disk layout exactly so it can be overlaid
// directly onto a loaded image's first 64 bytes, the same way
// kernel/hal/multiboot overlays its tag structs onto the multiboot info
// buffer.
type header struct {
	ident     [16]byte
	typ       uint16
	machine   uint16
	version   uint32
	entry     uint64
	phoff     uint64
	shoff     uint64
	flags     uint32
	ehsize    uint16
	phentsize uint16
	phnum     uint16
	shentsize uint16
	shnum     uint16
	shstrndx  uint16
}

// programHeader mirrors Elf64_Phdr's on-disk layout.
type programHeader struct {
	typ    uint32
	flags  uint32
	offset uint64
	vaddr  uint64
	paddr  uint64
	filesz uint64
	memsz  uint64
	align  uint64
}

// dynEntry mirrors one Elf64_Dyn tag/value pair out of a PT_DYNAMIC segment.
type dynEntry struct {
	tag int64
	val uint64
}

// relaEntry mirrors one Elf64_Rela relocation record out of a DT_RELA table.
type relaEntry struct {
	offset uint64
	info   uint64
	addend int64
}

const (
	headerSize        = 64
	programHeaderSize = 56
)

var (
	errTooShort   = &kernel.Error{Module: "elf", Message: "image shorter than an ELF64 header"}
	errBadMagic   = &kernel.Error{Module: "elf", Message: "missing \\x7fELF magic"}
	errNot64Bit   = &kernel.Error{Module: "elf", Message: "not a 64-bit (ELFCLASS64) image"}
	errBadPhdr    = &kernel.Error{Module: "elf", Message: "program header table extends past the image"}
	errBadSegment = &kernel.Error{Module: "elf", Message: "segment file range extends past the image"}
)

// parseHeader overlays data's first 64 bytes onto a header struct and
// validates the magic and class fields.
func parseHeader(data []byte) (*header, *kernel.Error) {
	if len(data) < headerSize {
		return nil, errTooShort
	}
	h := (*header)(unsafe.Pointer(&data[0]))
	if h.ident[0] != magic[0] || h.ident[1] != magic[1] || h.ident[2] != magic[2] || h.ident[3] != magic[3] {
		return nil, errBadMagic
	}
	const elfClass64 = 2
	if h.ident[4] != elfClass64 {
		return nil, errNot64Bit
	}
	return h, nil
}

// segment describes one PT_LOAD program header, decoupled from the on-disk
// struct layout so callers don't need package-private types.
type segment struct {
	VAddr    uint64
	FileSize uint64
	MemSize  uint64
	Offset   uint64
	Writable bool
	Exec     bool
}

// loadableSegments returns every PT_LOAD segment in data's program header
// table, in file order.
func loadableSegments(data []byte, h *header) ([]segment, *kernel.Error) {
	var segs []segment
	for i := uint16(0); i < h.phnum; i++ {
		off := int(h.phoff) + int(i)*int(h.phentsize)
		if off+programHeaderSize > len(data) {
			return nil, errBadPhdr
		}
		ph := (*programHeader)(unsafe.Pointer(&data[off]))
		if ph.typ != ptLoad || ph.memsz == 0 {
			continue
		}
		if int(ph.offset)+int(ph.filesz) > len(data) {
			return nil, errBadSegment
		}
		segs = append(segs, segment{
			VAddr:    ph.vaddr,
			FileSize: ph.filesz,
			MemSize:  ph.memsz,
			Offset:   ph.offset,
			Writable: ph.flags&pfWrite != 0,
			Exec:     ph.flags&pfExecute != 0,
		})
	}
	return segs, nil
}

// dynamicSegment returns the file offset and size of data's PT_DYNAMIC
// program header, if it has one. Only ET_DYN images carry one.
func dynamicSegment(data []byte, h *header) (offset, size uint64, ok bool, err *kernel.Error) {
	for i := uint16(0); i < h.phnum; i++ {
		off := int(h.phoff) + int(i)*int(h.phentsize)
		if off+programHeaderSize > len(data) {
			return 0, 0, false, errBadPhdr
		}
		ph := (*programHeader)(unsafe.Pointer(&data[off]))
		if ph.typ != ptDynamic {
			continue
		}
		if int(ph.offset)+int(ph.filesz) > len(data) {
			return 0, 0, false, errBadSegment
		}
		return ph.offset, ph.filesz, true, nil
	}
	return 0, 0, false, nil
}

// vaddrToOffset translates a virtual address the PT_DYNAMIC segment reports
// (e.g. DT_RELA's value) into a file offset, by finding the PT_LOAD segment
// whose mapped range contains it.
func vaddrToOffset(segs []segment, vaddr uint64) (uint64, bool) {
	for _, seg := range segs {
		if vaddr >= seg.VAddr && vaddr < seg.VAddr+seg.MemSize {
			return seg.Offset + (vaddr - seg.VAddr), true
		}
	}
	return 0, false
}

var (
	errBadDynamic       = &kernel.Error{Module: "elf", Message: "PT_DYNAMIC segment is malformed"}
	errRelaOutOfRange   = &kernel.Error{Module: "elf", Message: "DT_RELA table extends past the image"}
	errRelaNotMapped    = &kernel.Error{Module: "elf", Message: "DT_RELA table's address is not covered by any PT_LOAD segment"}
	errUnsupportedReloc = &kernel.Error{Module: "elf", Message: "relocation type other than R_X86_64_RELATIVE present"}
)

// relocation is a single resolved write the loader must apply to the mapped
// address space: value goes at dest.
type relocation struct {
	dest  uintptr
	value uint64
}

// parseRelocations walks data's PT_DYNAMIC segment, if any, for a DT_RELA
// table and returns every entry as an already load-bias-shifted (dest,
// value) pair, the applied form of "memory at load_bias + r_offset equals
// load_bias + r_addend" (spec.md §8). It returns (nil, nil) for an image
// with no PT_DYNAMIC segment; loadBias is 0 for every non-PIE image, which
// never has one.
func parseRelocations(data []byte, h *header, segs []segment, loadBias uint64) ([]relocation, *kernel.Error) {
	dynOff, dynSize, ok, err := dynamicSegment(data, h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var (
		relaVAddr, relaSize uint64
		relaEnt             = uint64(relaEntrySize)
		haveRela            bool
	)
	for off := dynOff; off+dynEntrySize <= dynOff+dynSize; off += dynEntrySize {
		if off+dynEntrySize > uint64(len(data)) {
			return nil, errBadDynamic
		}
		d := (*dynEntry)(unsafe.Pointer(&data[off]))
		if d.tag == dtNull {
			break
		}
		switch d.tag {
		case dtRela:
			relaVAddr = d.val
			haveRela = true
		case dtRelasz:
			relaSize = d.val
		case dtRelaent:
			relaEnt = d.val
		}
	}
	if !haveRela || relaSize == 0 {
		return nil, nil
	}
	if relaEnt == 0 {
		relaEnt = relaEntrySize
	}

	relaOff, ok := vaddrToOffset(segs, relaVAddr)
	if !ok {
		return nil, errRelaNotMapped
	}
	if relaOff+relaSize > uint64(len(data)) {
		return nil, errRelaOutOfRange
	}

	var relocs []relocation
	for off := relaOff; off+relaEnt <= relaOff+relaSize; off += relaEnt {
		r := (*relaEntry)(unsafe.Pointer(&data[off]))
		if uint32(r.info&0xffff_ffff) != rX86_64Relative {
			return nil, errUnsupportedReloc
		}
		relocs = append(relocs, relocation{
			dest:  uintptr(loadBias + r.offset),
			value: loadBias + uint64(r.addend),
		})
	}
	return relocs, nil
}
