package ext2

import (
	"encoding/binary"
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/vfs"
)

// Inode mode type bits (the high nibble of i_mode).
const (
	modeTypeMask uint16 = 0xF000
	modeIFReg    uint16 = 0x8000
	modeIFDir    uint16 = 0x4000
	modeIFLnk    uint16 = 0xA000
)

// inode mirrors Ext2Inode's on-disk layout.
type inode struct {
	mode        uint16
	uid         uint16
	size        uint32
	atime       uint32
	ctime       uint32
	mtime       uint32
	dtime       uint32
	gid         uint16
	linksCount  uint16
	blocks      uint32
	flags       uint32
	osd1        uint32
	block       [15]uint32
	generation  uint32
	fileACL     uint32
	dirACL      uint32
	faddr       uint32
	osd2        [12]byte
}

const onDiskInodeSize = 128

var (
	errInvalidInode  = &kernel.Error{Module: "ext2", Message: "invalid inode number"}
	errInodeNotFound = &kernel.Error{Module: "ext2", Message: "inode out of range of the block group table"}
	errNotDir        = &kernel.Error{Module: "ext2", Message: "inode is not a directory"}
	errNotRegular    = &kernel.Error{Module: "ext2", Message: "inode is not a regular file"}
	errTripleIndirect = &kernel.Error{Module: "ext2", Message: "triple-indirect block pointers are not supported"}
)

// fileTypeOf maps an on-disk i_mode's type bits onto vfs.FileType.
func fileTypeOf(mode uint16) vfs.FileType {
	switch mode & modeTypeMask {
	case modeIFDir:
		return vfs.Directory
	case modeIFLnk:
		return vfs.SymbolicLink
	default:
		return vfs.RegularFile
	}
}

// readInode locates and reads the on-disk inode record for inodeNum
// (spec.md §4.J): it derives the owning block group and in-group offset
// from inodesPerGroup, then the inode table block and byte offset within
// it from inodeSize.
func (fs *FS) readInode(inodeNum uint64) (*inode, *kernel.Error) {
	if inodeNum == 0 {
		return nil, errInvalidInode
	}

	inodeIdx := inodeNum - 1
	group := inodeIdx / uint64(fs.inodesPerGroup)
	localIdx := inodeIdx % uint64(fs.inodesPerGroup)

	if group >= uint64(len(fs.groupDescs)) {
		return nil, errInodeNotFound
	}
	gd := fs.groupDescs[group]

	inodeOffset := int(localIdx) * fs.inodeSize
	blockOffset := inodeOffset / fs.blockSize
	byteOffset := inodeOffset % fs.blockSize

	buf := make([]byte, fs.blockSize)
	if err := fs.readFSBlock(gd.inodeTable+uint32(blockOffset), buf); err != nil {
		return nil, err
	}
	if byteOffset+onDiskInodeSize > len(buf) {
		return nil, errInodeNotFound
	}

	in := (*inode)(unsafe.Pointer(&buf[byteOffset]))
	// Copy out of the block buffer rather than returning the overlay
	// directly, so callers aren't holding a pointer into a buffer sized
	// for one read and reused by the next.
	cp := *in
	return &cp, nil
}

// getBlockNum resolves a logical block index within inode to a physical
// filesystem block number, walking direct (0-11), single-indirect (12) and
// double-indirect (13) pointers in turn; a zero return means a hole in a
// sparse file. Triple-indirect pointers are not supported, matching the
// original driver.
func (fs *FS) getBlockNum(in *inode, blockIdx uint32) (uint32, *kernel.Error) {
	if blockIdx < 12 {
		return in.block[blockIdx], nil
	}

	ptrsPerBlock := uint32(fs.blockSize / 4)

	if blockIdx < 12+ptrsPerBlock {
		indirect := in.block[12]
		if indirect == 0 {
			return 0, nil
		}
		buf := make([]byte, fs.blockSize)
		if err := fs.readFSBlock(indirect, buf); err != nil {
			return 0, err
		}
		off := (blockIdx - 12) * 4
		return binary.LittleEndian.Uint32(buf[off : off+4]), nil
	}

	if blockIdx < 12+ptrsPerBlock+ptrsPerBlock*ptrsPerBlock {
		doubleIndirect := in.block[13]
		if doubleIndirect == 0 {
			return 0, nil
		}

		idx := blockIdx - 12 - ptrsPerBlock
		indirectIdx := idx / ptrsPerBlock
		innerOffset := idx % ptrsPerBlock

		buf := make([]byte, fs.blockSize)
		if err := fs.readFSBlock(doubleIndirect, buf); err != nil {
			return 0, err
		}
		off := indirectIdx * 4
		indirectBlock := binary.LittleEndian.Uint32(buf[off : off+4])
		if indirectBlock == 0 {
			return 0, nil
		}

		if err := fs.readFSBlock(indirectBlock, buf); err != nil {
			return 0, err
		}
		off = innerOffset * 4
		return binary.LittleEndian.Uint32(buf[off : off+4]), nil
	}

	return 0, errTripleIndirect
}

// readAllBlocks reads an inode's data blocks (direct through
// double-indirect) into a single buffer sized to its declared byte size,
// the same whole-buffer-then-scan approach lookup/readdir both use to walk
// directory entries.
func (fs *FS) readAllBlocks(in *inode) ([]byte, *kernel.Error) {
	size := int(in.size)
	data := make([]byte, size)

	readOffset := 0
	blockIdx := uint32(0)
	for readOffset < size {
		blockNum, err := fs.getBlockNum(in, blockIdx)
		if err != nil {
			return nil, err
		}
		if blockNum == 0 {
			break
		}

		block := make([]byte, fs.blockSize)
		if err := fs.readFSBlock(blockNum, block); err != nil {
			return nil, err
		}

		toCopy := fs.blockSize
		if remaining := size - readOffset; remaining < toCopy {
			toCopy = remaining
		}
		copy(data[readOffset:readOffset+toCopy], block[:toCopy])

		readOffset += toCopy
		blockIdx++
	}

	return data, nil
}
