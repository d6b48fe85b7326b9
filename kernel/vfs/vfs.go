// Package vfs defines the filesystem-independent interface the kernel's
// file-related syscalls dispatch through (spec.md §4.J): a single mounted
// FileSystem resolved by inode number, addressed by slash-separated paths
// from a fixed root.
package vfs

import "github.com/tas0dev/SwiftCore-sub000/kernel"

// FileType classifies a directory entry or inode.
type FileType uint8

const (
	RegularFile FileType = iota
	Directory
	SymbolicLink
	BlockDevice
	CharDevice
)

// Attr describes an inode's metadata, independent of the backing
// filesystem's on-disk inode layout.
type Attr struct {
	Type   FileType
	Size   uint64
	Blocks uint64
	ATime  uint32
	MTime  uint32
	CTime  uint32
	Mode   uint16
	UID    uint32
	GID    uint32
	NLink  uint32
}

// DirEntry is one record yielded by FileSystem.ReadDir.
type DirEntry struct {
	Name  string
	Inode uint64
	Type  FileType
}

// Errors a FileSystem implementation returns. Every kernel/ext2 failure maps
// onto one of these; kernel/syscall maps them onto POSIX errno values.
var (
	ErrNotFound      = &kernel.Error{Module: "vfs", Message: "no such file or directory"}
	ErrNotDirectory  = &kernel.Error{Module: "vfs", Message: "not a directory"}
	ErrIsDirectory   = &kernel.Error{Module: "vfs", Message: "is a directory"}
	ErrInvalidArg    = &kernel.Error{Module: "vfs", Message: "invalid argument"}
	ErrIO            = &kernel.Error{Module: "vfs", Message: "i/o error"}
	ErrReadOnly      = &kernel.Error{Module: "vfs", Message: "filesystem is read-only"}
	ErrNotSupported  = &kernel.Error{Module: "vfs", Message: "operation not supported"}
	ErrNameTooLong   = &kernel.Error{Module: "vfs", Message: "name too long"}
)

// FileSystem is the interface a mountable filesystem implements. Mutating
// operations exist so the interface can express a writable filesystem, but
// kernel/ext2's implementation is read-only and returns ErrReadOnly for all
// of them (spec.md §4.J names no write path).
type FileSystem interface {
	Name() string
	RootInode() uint64
	Stat(inode uint64) (Attr, *kernel.Error)
	Lookup(parentInode uint64, name string) (uint64, *kernel.Error)
	Read(inode uint64, offset uint64, buf []byte) (int, *kernel.Error)
	ReadDir(inode uint64) ([]DirEntry, *kernel.Error)
}

// SplitPath breaks path into its non-empty slash-separated components.
func SplitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// ResolvePath walks fs from its root inode through each component of path in
// turn, following Lookup at every step, and returns the inode path names.
func ResolvePath(fs FileSystem, path string) (uint64, *kernel.Error) {
	components := SplitPath(path)
	if len(components) == 0 {
		return fs.RootInode(), nil
	}

	current := fs.RootInode()
	for _, component := range components {
		attr, err := fs.Stat(current)
		if err != nil {
			return 0, err
		}
		if attr.Type != Directory {
			return 0, ErrNotDirectory
		}
		next, err := fs.Lookup(current, component)
		if err != nil {
			return 0, err
		}
		current = next
	}
	return current, nil
}
