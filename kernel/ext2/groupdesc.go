package ext2

import (
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel"
)

// groupDescSize is sizeof(Ext2GroupDesc) on disk.
const groupDescSize = 32

// groupDesc mirrors one block group descriptor table entry.
type groupDesc struct {
	blockBitmap     uint32
	inodeBitmap     uint32
	inodeTable      uint32
	freeBlockCount  uint16
	freeInodeCount  uint16
	usedDirsCount   uint16
	pad             uint16
	reserved        [3]uint32
}

// readGroupDescTable loads the block group descriptor table that follows
// the superblock: it starts at block 2 for a 1024-byte filesystem block
// size, block 1 for any larger block size (the superblock otherwise shares
// block 0 with the boot sector).
func (fs *FS) readGroupDescTable(numGroups int) ([]groupDesc, *kernel.Error) {
	gdtBlock := uint32(1)
	if fs.blockSize == 1024 {
		gdtBlock = 2
	}

	tableSize := numGroups * groupDescSize
	blocksNeeded := (tableSize + fs.blockSize - 1) / fs.blockSize

	raw := make([]byte, blocksNeeded*fs.blockSize)
	for i := 0; i < blocksNeeded; i++ {
		if err := fs.readFSBlock(gdtBlock+uint32(i), raw[i*fs.blockSize:(i+1)*fs.blockSize]); err != nil {
			return nil, err
		}
	}

	descs := make([]groupDesc, numGroups)
	for i := 0; i < numGroups; i++ {
		off := i * groupDescSize
		descs[i] = *(*groupDesc)(unsafe.Pointer(&raw[off]))
	}
	return descs, nil
}
