package ext2

import (
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/vfs"
)

// dirEntrySize is sizeof(Ext2DirEntry)'s fixed header, excluding the
// variable-length name that immediately follows it on disk.
const dirEntrySize = 8

// dirEntry mirrors Ext2DirEntry's fixed-size header.
type dirEntry struct {
	inode    uint32
	recLen   uint16
	nameLen  uint8
	fileType uint8
}

// direntFileType maps ext2's on-disk file_type byte onto vfs.FileType; 0
// means "unknown", which this driver falls back to RegularFile for, same
// as the original.
func direntFileType(b uint8) vfs.FileType {
	switch b {
	case 2:
		return vfs.Directory
	case 7:
		return vfs.SymbolicLink
	default:
		return vfs.RegularFile
	}
}

// Lookup implements vfs.FileSystem: it scans parentInode's directory-entry
// stream for name and returns the matching inode number.
func (fs *FS) Lookup(parentInode uint64, name string) (uint64, *kernel.Error) {
	parent, err := fs.readInode(parentInode)
	if err != nil {
		return 0, err
	}
	if parent.mode&modeTypeMask != modeIFDir {
		return 0, vfs.ErrNotDirectory
	}

	data, err := fs.readAllBlocks(parent)
	if err != nil {
		return 0, err
	}

	found, ok := scanDirEntries(data, func(entryName string, inodeNum uint32, _ vfs.FileType) bool {
		return entryName == name
	})
	if !ok {
		return 0, vfs.ErrNotFound
	}
	return uint64(found), nil
}

// ReadDir implements vfs.FileSystem: it returns every live entry in
// inodeNum's directory-entry stream.
func (fs *FS) ReadDir(inodeNum uint64) ([]vfs.DirEntry, *kernel.Error) {
	in, err := fs.readInode(inodeNum)
	if err != nil {
		return nil, err
	}
	if in.mode&modeTypeMask != modeIFDir {
		return nil, vfs.ErrNotDirectory
	}

	data, err := fs.readAllBlocks(in)
	if err != nil {
		return nil, err
	}

	var entries []vfs.DirEntry
	scanDirEntries(data, func(entryName string, inodeNum uint32, ft vfs.FileType) bool {
		entries = append(entries, vfs.DirEntry{Name: entryName, Inode: uint64(inodeNum), Type: ft})
		return false
	})
	return entries, nil
}

// scanDirEntries walks data as a stream of rec_len-delimited Ext2DirEntry
// records, calling visit(name, inode, type) for every live (inode != 0,
// name_len > 0) entry. If visit returns true, the scan stops early and
// scanDirEntries reports the match via (inodeNum, true); a scan that runs
// to completion (every visit call returning false, or collecting a full
// listing) reports (0, false).
func scanDirEntries(data []byte, visit func(name string, inodeNum uint32, ft vfs.FileType) bool) (uint32, bool) {
	size := len(data)
	offset := 0
	for offset+dirEntrySize <= size {
		entry := (*dirEntry)(unsafe.Pointer(&data[offset]))
		if entry.recLen == 0 {
			break
		}

		if entry.inode != 0 && entry.nameLen > 0 {
			nameOffset := offset + dirEntrySize
			nameEnd := nameOffset + int(entry.nameLen)
			if nameEnd <= size {
				name := string(data[nameOffset:nameEnd])
				if visit(name, entry.inode, direntFileType(entry.fileType)) {
					return entry.inode, true
				}
			}
		}

		offset += int(entry.recLen)
	}
	return 0, false
}
