package ext2

import (
	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/vfs"
)

// rootInodeNum is the inode number of an ext2 volume's root directory; it
// never changes.
const rootInodeNum = 2

// FS is a mounted, read-only ext2 volume. It implements vfs.FileSystem.
type FS struct {
	device         BlockDevice
	sb             *superblock
	blockSize      int
	inodesPerGroup uint32
	blocksPerGroup uint32
	inodeSize      int
	groupDescs     []groupDesc
}

var errShortDevice = &kernel.Error{Module: "ext2", Message: "block group count implies a device larger than backing storage"}

// New parses dev's superblock and block group descriptor table and returns
// a mounted, ready-to-query filesystem (spec.md §4.J).
func New(dev BlockDevice) (*FS, *kernel.Error) {
	sb, err := parseSuperblock(dev)
	if err != nil {
		return nil, err
	}

	fs := &FS{
		device:         dev,
		sb:             sb,
		blockSize:      sb.blockSize(),
		inodesPerGroup: sb.inodesPerGroup,
		blocksPerGroup: sb.blocksPerGroup,
		inodeSize:      sb.effectiveInodeSize(),
	}

	if fs.blocksPerGroup == 0 {
		return nil, errShortDevice
	}
	numGroups := int((sb.blocksCount + fs.blocksPerGroup - 1) / fs.blocksPerGroup)
	if numGroups <= 0 {
		return nil, errShortDevice
	}

	descs, err := fs.readGroupDescTable(numGroups)
	if err != nil {
		return nil, err
	}
	fs.groupDescs = descs
	return fs, nil
}

// Name implements vfs.FileSystem.
func (fs *FS) Name() string { return "ext2" }

// RootInode implements vfs.FileSystem.
func (fs *FS) RootInode() uint64 { return rootInodeNum }

// Stat implements vfs.FileSystem.
func (fs *FS) Stat(inodeNum uint64) (vfs.Attr, *kernel.Error) {
	in, err := fs.readInode(inodeNum)
	if err != nil {
		return vfs.Attr{}, err
	}
	return vfs.Attr{
		Type:   fileTypeOf(in.mode),
		Size:   uint64(in.size),
		Blocks: uint64(in.blocks),
		ATime:  in.atime,
		MTime:  in.mtime,
		CTime:  in.ctime,
		Mode:   in.mode,
		UID:    uint32(in.uid),
		GID:    uint32(in.gid),
		NLink:  uint32(in.linksCount),
	}, nil
}

// readFSBlock reads one filesystem block (fs.blockSize bytes) into buf,
// translating the filesystem block number into however many of the
// underlying device's own blocks it spans.
func (fs *FS) readFSBlock(blockNum uint32, buf []byte) *kernel.Error {
	if len(buf) < fs.blockSize {
		return &kernel.Error{Module: "ext2", Message: "block buffer shorter than the filesystem block size"}
	}
	devBlockSize := fs.device.BlockSize()
	blocksPerFSBlock := fs.blockSize / devBlockSize
	startBlock := uint64(blockNum) * uint64(blocksPerFSBlock)

	for i := 0; i < blocksPerFSBlock; i++ {
		off := i * devBlockSize
		if err := fs.device.ReadBlock(startBlock+uint64(i), buf[off:off+devBlockSize]); err != nil {
			return err
		}
	}
	return nil
}
