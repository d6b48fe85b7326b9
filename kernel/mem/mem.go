// Package mem defines the basic units (page size, byte-size helpers) shared
// by every other memory-management package. Unlike gopheros, this kernel
// never requests multi-frame ("huge") allocations: spec.md fixes the frame
// granularity at 4 KiB and the frame allocator never grows or shrinks it, so
// there is no PageOrder concept here.
package mem

const (
	// PageShift is log2(PageSize); used to convert between addresses and
	// page/frame numbers.
	PageShift = 12

	// PageSize is the system's fixed page size in bytes.
	PageSize = Size(1 << PageShift)

	// PointerShift is log2(unsafe.Sizeof(uintptr(0))) and is used when
	// indexing into a table of 8-byte page-table entries.
	PointerShift = 3
)
