package ext2

import (
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel"
)

// BlockDevice abstracts the storage ext2 reads from, mirroring the
// original fs service's own BlockDevice trait. This kernel has no disk
// controller driver yet, so the only implementation is RAMBlockDevice,
// backed by a bootloader-supplied module image.
type BlockDevice interface {
	// BlockSize returns the device's native block size in bytes (512 for a
	// real disk; RAMBlockDevice uses 1024 to match ext2's minimum block
	// size so no sub-block buffering is ever needed).
	BlockSize() int

	// ReadBlock reads exactly one BlockSize()-sized block into buf.
	ReadBlock(blockNum uint64, buf []byte) *kernel.Error
}

var errShortRead = &kernel.Error{Module: "ext2", Message: "read past end of block device"}

// RAMBlockDevice treats a fixed region of already-resident memory as a disk:
// the filesystem image a bootloader module (spec.md §4.J) loaded alongside
// the kernel. The memory is accessed directly, the same
// direct-physical-access idiom kernel/hal/multiboot and kernel/elf use;
// ReadBlock copies each block out of it into the caller's buffer.
type RAMBlockDevice struct {
	data      []byte
	blockSize int
}

// NewRAMBlockDevice wraps the physical memory range [startAddr, endAddr) as
// a block device with the given block size.
func NewRAMBlockDevice(startAddr, endAddr uintptr, blockSize int) *RAMBlockDevice {
	size := int(endAddr - startAddr)
	return &RAMBlockDevice{
		data:      unsafe.Slice((*byte)(unsafe.Pointer(startAddr)), size),
		blockSize: blockSize,
	}
}

// NewRAMBlockDeviceFromBytes wraps an already-addressable byte slice as a
// block device; used by tests to exercise the filesystem against a
// synthetic image without touching raw memory.
func NewRAMBlockDeviceFromBytes(data []byte, blockSize int) *RAMBlockDevice {
	return &RAMBlockDevice{data: data, blockSize: blockSize}
}

// BlockSize implements BlockDevice.
func (d *RAMBlockDevice) BlockSize() int { return d.blockSize }

// ReadBlock implements BlockDevice.
func (d *RAMBlockDevice) ReadBlock(blockNum uint64, buf []byte) *kernel.Error {
	start := blockNum * uint64(d.blockSize)
	end := start + uint64(d.blockSize)
	if end > uint64(len(d.data)) {
		return errShortRead
	}
	copy(buf, d.data[start:end])
	return nil
}
