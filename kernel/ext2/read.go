package ext2

import (
	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/vfs"
)

// Read implements vfs.FileSystem: it copies up to len(buf) bytes of
// inodeNum's content starting at offset into buf, block by block, zero-
// filling any sparse (hole) blocks it encounters along the way.
func (fs *FS) Read(inodeNum uint64, offset uint64, buf []byte) (int, *kernel.Error) {
	in, err := fs.readInode(inodeNum)
	if err != nil {
		return 0, err
	}
	if in.mode&modeTypeMask != modeIFReg {
		return 0, vfs.ErrIsDirectory
	}

	fileSize := uint64(in.size)
	if offset >= fileSize {
		return 0, nil
	}

	toRead := len(buf)
	if remaining := fileSize - offset; uint64(toRead) > remaining {
		toRead = int(remaining)
	}

	startBlock := uint32(offset / uint64(fs.blockSize))
	blockOffset := int(offset % uint64(fs.blockSize))

	bytesRead := 0
	currentBlock := startBlock
	for bytesRead < toRead {
		blockNum, err := fs.getBlockNum(in, currentBlock)
		if err != nil {
			return bytesRead, err
		}

		start := 0
		if currentBlock == startBlock {
			start = blockOffset
		}
		remaining := toRead - bytesRead
		toCopy := fs.blockSize - start
		if toCopy > remaining {
			toCopy = remaining
		}

		if blockNum == 0 {
			for i := 0; i < toCopy; i++ {
				buf[bytesRead+i] = 0
			}
		} else {
			block := make([]byte, fs.blockSize)
			if err := fs.readFSBlock(blockNum, block); err != nil {
				return bytesRead, err
			}
			copy(buf[bytesRead:bytesRead+toCopy], block[start:start+toCopy])
		}

		bytesRead += toCopy
		currentBlock++
	}

	return bytesRead, nil
}
