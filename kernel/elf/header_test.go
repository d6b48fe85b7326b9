package elf

import (
	"encoding/binary"
	"testing"
)

// buildImage assembles a minimal synthetic ELF64 image with the given
// program headers and a data blob right after the header/phdr tables, for
// exercising parseHeader/loadableSegments without a real compiled binary.
func buildImage(t *testing.T, entry uint64, phdrs []programHeader, payload []byte) []byte {
	t.Helper()
	phoff := uint64(headerSize)
	dataOff := phoff + uint64(len(phdrs))*programHeaderSize

	buf := make([]byte, dataOff+uint64(len(payload)))
	copy(buf[0:4], magic[:])
	buf[4] = 2 // ELFCLASS64
	le := binary.LittleEndian
	le.PutUint16(buf[16:18], 2) // ET_EXEC
	le.PutUint16(buf[18:20], 0x3e)
	le.PutUint32(buf[20:24], 1)
	le.PutUint64(buf[24:32], entry)
	le.PutUint64(buf[32:40], phoff)
	le.PutUint16(buf[54:56], programHeaderSize)
	le.PutUint16(buf[56:58], uint16(len(phdrs)))

	for i, ph := range phdrs {
		off := int(phoff) + i*programHeaderSize
		le.PutUint32(buf[off:off+4], ph.typ)
		le.PutUint32(buf[off+4:off+8], ph.flags)
		le.PutUint64(buf[off+8:off+16], ph.offset)
		le.PutUint64(buf[off+16:off+24], ph.vaddr)
		le.PutUint64(buf[off+24:off+32], ph.paddr)
		le.PutUint64(buf[off+32:off+40], ph.filesz)
		le.PutUint64(buf[off+40:off+48], ph.memsz)
		le.PutUint64(buf[off+48:off+56], ph.align)
	}
	copy(buf[dataOff:], payload)
	return buf
}

func TestParseHeaderRejectsShortImage(t *testing.T) {
	if _, err := parseHeader(make([]byte, 10)); err != errTooShort {
		t.Fatalf("got %v, want errTooShort", err)
	}
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	img := buildImage(t, 0x1000, nil, nil)
	img[0] = 0
	if _, err := parseHeader(img); err != errBadMagic {
		t.Fatalf("got %v, want errBadMagic", err)
	}
}

func TestParseHeaderAcceptsValidImage(t *testing.T) {
	img := buildImage(t, 0x4010_00, nil, nil)
	h, err := parseHeader(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.entry != 0x4010_00 {
		t.Fatalf("entry = %#x, want 0x40_10_00", h.entry)
	}
}

func TestLoadableSegmentsFiltersNonLoadAndEmpty(t *testing.T) {
	payload := []byte("hello, kernel")
	const numPhdrs = 3
	dataOff := uint64(headerSize + numPhdrs*programHeaderSize)
	phdrs := []programHeader{
		{typ: ptLoad, flags: pfExecute, offset: dataOff, vaddr: 0x400000, filesz: uint64(len(payload)), memsz: uint64(len(payload)) + 8},
		{typ: 2 /* PT_DYNAMIC, skipped */, vaddr: 0x500000, memsz: 16},
		{typ: ptLoad, memsz: 0}, // zero memsz, skipped
	}
	img := buildImage(t, 0x400000, phdrs, payload)

	h, err := parseHeader(img)
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	segs, err := loadableSegments(img, h)
	if err != nil {
		t.Fatalf("loadableSegments: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].VAddr != 0x400000 || segs[0].FileSize != uint64(len(payload)) || segs[0].MemSize != uint64(len(payload))+8 {
		t.Fatalf("unexpected segment: %+v", segs[0])
	}
	if !segs[0].Exec || segs[0].Writable {
		t.Fatalf("unexpected flags: %+v", segs[0])
	}
}

func TestLoadableSegmentsRejectsTruncatedFileRange(t *testing.T) {
	phdrs := []programHeader{
		{typ: ptLoad, offset: 1_000_000, filesz: 4096, memsz: 4096},
	}
	img := buildImage(t, 0x400000, phdrs, nil)
	h, err := parseHeader(img)
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	if _, err := loadableSegments(img, h); err != errBadSegment {
		t.Fatalf("got %v, want errBadSegment", err)
	}
}

// buildPIEImage assembles a synthetic ET_DYN image with one PT_LOAD segment
// covering [0, loadSegSize) and a PT_DYNAMIC segment whose DT_RELA table
// holds relaEntries, for exercising dynamicSegment/parseRelocations without
// a real compiled PIE binary.
func buildPIEImage(t *testing.T, loadSegSize uint64, relaEntries []relaEntry) (img []byte, relaVAddr uint64) {
	t.Helper()

	const loadVAddr = 0x1000
	relaVAddr = loadVAddr + loadSegSize // lands inside the PT_LOAD segment's memsz

	relaBytes := make([]byte, len(relaEntries)*relaEntrySize)
	for i, r := range relaEntries {
		off := i * relaEntrySize
		binary.LittleEndian.PutUint64(relaBytes[off:off+8], r.offset)
		binary.LittleEndian.PutUint64(relaBytes[off+8:off+16], r.info)
		binary.LittleEndian.PutUint64(relaBytes[off+16:off+24], uint64(r.addend))
	}

	dynEntries := []dynEntry{
		{tag: dtRela, val: relaVAddr},
		{tag: dtRelasz, val: uint64(len(relaBytes))},
		{tag: dtRelaent, val: relaEntrySize},
		{tag: dtNull, val: 0},
	}
	dynBytes := make([]byte, len(dynEntries)*dynEntrySize)
	for i, d := range dynEntries {
		off := i * dynEntrySize
		binary.LittleEndian.PutUint64(dynBytes[off:off+8], uint64(d.tag))
		binary.LittleEndian.PutUint64(dynBytes[off+8:off+16], d.val)
	}

	phoff := uint64(headerSize)
	numPhdrs := 2
	dataOff := phoff + uint64(numPhdrs)*programHeaderSize

	// The PT_LOAD segment's file range holds [zero-padding up to
	// loadSegSize][rela table], since relaVAddr (loadVAddr+loadSegSize)
	// must translate to a file offset inside it. The PT_DYNAMIC segment's
	// own Elf64_Dyn entries live in a separate range right after that,
	// addressed by its own program header's offset/filesz rather than by
	// vaddr.
	payload := make([]byte, loadSegSize)
	payload = append(payload, relaBytes...)
	dynOff := dataOff + uint64(len(payload))

	phdrs := []programHeader{
		{typ: ptLoad, flags: pfExecute | pfWrite, offset: dataOff, vaddr: loadVAddr, filesz: uint64(len(payload)), memsz: uint64(len(payload))},
		{typ: ptDynamic, offset: dynOff, vaddr: loadVAddr + loadSegSize + 0x1000, filesz: uint64(len(dynBytes)), memsz: uint64(len(dynBytes))},
	}

	buf := make([]byte, dynOff+uint64(len(dynBytes)))
	copy(buf[0:4], magic[:])
	buf[4] = 2
	le := binary.LittleEndian
	le.PutUint16(buf[16:18], etDyn)
	le.PutUint16(buf[18:20], 0x3e)
	le.PutUint32(buf[20:24], 1)
	le.PutUint64(buf[24:32], 0x100)
	le.PutUint64(buf[32:40], phoff)
	le.PutUint16(buf[54:56], programHeaderSize)
	le.PutUint16(buf[56:58], uint16(len(phdrs)))

	for i, ph := range phdrs {
		off := int(phoff) + i*programHeaderSize
		le.PutUint32(buf[off:off+4], ph.typ)
		le.PutUint32(buf[off+4:off+8], ph.flags)
		le.PutUint64(buf[off+8:off+16], ph.offset)
		le.PutUint64(buf[off+16:off+24], ph.vaddr)
		le.PutUint64(buf[off+24:off+32], ph.paddr)
		le.PutUint64(buf[off+32:off+40], ph.filesz)
		le.PutUint64(buf[off+40:off+48], ph.memsz)
		le.PutUint64(buf[off+48:off+56], ph.align)
	}
	copy(buf[dataOff:], payload)
	copy(buf[dynOff:], dynBytes)

	return buf, relaVAddr
}

func TestDynamicSegmentFound(t *testing.T) {
	img, _ := buildPIEImage(t, 4096, []relaEntry{{offset: 0x10, info: uint64(rX86_64Relative), addend: 0x20}})
	h, err := parseHeader(img)
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	_, _, ok, err := dynamicSegment(img, h)
	if err != nil {
		t.Fatalf("dynamicSegment: %v", err)
	}
	if !ok {
		t.Fatal("expected a PT_DYNAMIC segment to be found")
	}
}

func TestParseRelocationsAppliesLoadBias(t *testing.T) {
	const loadBias = 0x2000_0000
	img, _ := buildPIEImage(t, 4096, []relaEntry{
		{offset: 0x10, info: uint64(rX86_64Relative), addend: 0x20},
		{offset: 0x18, info: uint64(rX86_64Relative), addend: -8},
	})
	h, err := parseHeader(img)
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	segs, err := loadableSegments(img, h)
	if err != nil {
		t.Fatalf("loadableSegments: %v", err)
	}

	relocs, err := parseRelocations(img, h, segs, loadBias)
	if err != nil {
		t.Fatalf("parseRelocations: %v", err)
	}
	if len(relocs) != 2 {
		t.Fatalf("got %d relocations, want 2", len(relocs))
	}
	if relocs[0].dest != uintptr(loadBias+0x10) || relocs[0].value != loadBias+0x20 {
		t.Fatalf("unexpected relocation 0: %+v", relocs[0])
	}
	if relocs[1].dest != uintptr(loadBias+0x18) || relocs[1].value != uint64(loadBias-8) {
		t.Fatalf("unexpected relocation 1: %+v", relocs[1])
	}
}

func TestParseRelocationsRejectsUnsupportedType(t *testing.T) {
	const rX86_64_64 = 1
	img, _ := buildPIEImage(t, 4096, []relaEntry{{offset: 0x10, info: rX86_64_64, addend: 0x20}})
	h, err := parseHeader(img)
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	segs, err := loadableSegments(img, h)
	if err != nil {
		t.Fatalf("loadableSegments: %v", err)
	}
	if _, err := parseRelocations(img, h, segs, 0x2000_0000); err != errUnsupportedReloc {
		t.Fatalf("got %v, want errUnsupportedReloc", err)
	}
}

func TestParseRelocationsNoDynamicSegmentIsNoop(t *testing.T) {
	img := buildImage(t, 0x400000, []programHeader{
		{typ: ptLoad, flags: pfExecute, offset: headerSize, vaddr: 0x400000, filesz: 8, memsz: 8},
	}, make([]byte, 8))
	h, err := parseHeader(img)
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	segs, err := loadableSegments(img, h)
	if err != nil {
		t.Fatalf("loadableSegments: %v", err)
	}
	relocs, err := parseRelocations(img, h, segs, 0)
	if err != nil || relocs != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", relocs, err)
	}
}
