package syscall

import (
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel"
	"github.com/tas0dev/SwiftCore-sub000/kernel/kfmt/early"
	"github.com/tas0dev/SwiftCore-sub000/kernel/task"
	"github.com/tas0dev/SwiftCore-sub000/kernel/vfs"
)

// fdStdout and fdStderr are the only descriptors Write ever treats as
// implicitly open: this kernel's vfs.FileSystem has no Write method (the
// ext2 reader mounts its volume read-only, spec.md §4.J), so fd doesn't
// resolve to a real file at all here — it's wired straight to the early
// console.
const (
	fdStdout = 1
	fdStderr = 2
)

// rootFS is the single filesystem mounted at "/" (spec.md §4.J names no
// multi-mount support). It is nil until MountRoot runs, which happens once,
// from kmain, after the boot module holding the root image is found.
var rootFS vfs.FileSystem

// MountRoot installs fs as the filesystem every file-related syscall
// resolves paths against.
func MountRoot(fs vfs.FileSystem) {
	rootFS = fs
}

// vfsErrno maps a vfs error onto the POSIX errno dispatch returns to
// userspace. vfs errors are always one of the package's sentinel values, so
// this is a direct pointer comparison rather than a string match.
func vfsErrno(err *kernel.Error) uint64 {
	switch err {
	case vfs.ErrNotFound:
		return ENOENT
	case vfs.ErrNotDirectory:
		return ENOTDIR
	case vfs.ErrIsDirectory:
		return EINVAL
	case vfs.ErrReadOnly:
		return EROFS
	case vfs.ErrNameTooLong, vfs.ErrInvalidArg, vfs.ErrNotSupported:
		return EINVAL
	default:
		return EIO
	}
}

// absPath resolves path against proc's current working directory, per the
// usual rule that a leading slash means the path is already absolute.
func absPath(proc *task.Process, path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path
	}
	cwd := proc.Cwd()
	if cwd == "/" {
		return "/" + path
	}
	return cwd + "/" + path
}

// currentProcess returns the task.Process owning the calling thread, or
// false if the calling context has no associated process (should not
// happen for any thread that can reach Dispatch).
func currentProcess() (*task.Process, bool) {
	tid, ok := task.CurrentThreadID()
	if !ok {
		return nil, false
	}
	pid, ok := task.WithThread(tid, func(t *task.Thread) task.ProcessID { return t.ProcessID() })
	if !ok {
		return nil, false
	}
	var proc *task.Process
	found := task.WithProcessMut(pid, func(p *task.Process) { proc = p })
	return proc, found
}

// openFileSyscall implements Open: resolve (pathPtr, pathLen) against the
// calling process's cwd, stat the result, and allocate a descriptor for it.
// There is no O_CREAT: the mounted filesystem is read-only (spec.md §4.J).
func openFileSyscall(pathPtr, pathLen uint64) uint64 {
	if rootFS == nil {
		return ENXIO
	}
	proc, ok := currentProcess()
	if !ok {
		return EINVAL
	}
	path := readUserString(pathPtr, pathLen)
	if path == "" {
		return EINVAL
	}
	inode, err := vfs.ResolvePath(rootFS, absPath(proc, path))
	if err != nil {
		return vfsErrno(err)
	}
	fd, ok := proc.AllocFD(inode)
	if !ok {
		return EBADF
	}
	return uint64(fd)
}

// closeFileSyscall implements Close for a file descriptor fd.
func closeFileSyscall(fd uint64) uint64 {
	proc, ok := currentProcess()
	if !ok {
		return EINVAL
	}
	if !proc.CloseFD(int(fd)) {
		return EBADF
	}
	return Success
}

// readFileSyscall implements the Read syscall when fd refers to an open
// file rather than a console stream; it fills up to count bytes of user
// memory at bufPtr starting at the descriptor's current offset and advances
// it by however much was actually read.
func readFileSyscall(fd, bufPtr, count uint64) uint64 {
	if rootFS == nil {
		return ENXIO
	}
	proc, ok := currentProcess()
	if !ok {
		return EINVAL
	}
	inode, offset, ok := proc.FD(int(fd))
	if !ok {
		return EBADF
	}
	dst := userBuf(bufPtr, count)
	if dst == nil {
		return EFAULT
	}
	n, err := rootFS.Read(inode, offset, dst)
	if err != nil {
		return vfsErrno(err)
	}
	proc.SetFDOffset(int(fd), offset+uint64(n))
	return uint64(n)
}

// writeFileSyscall implements Write. fd 1/2 go straight to the console;
// every other fd must be an already-open vfs descriptor, and since the
// mounted filesystem is read-only every such write fails with EROFS rather
// than actually writing (mirroring mkdirSyscall/rmdirSyscall below).
func writeFileSyscall(fd, bufPtr, count uint64) uint64 {
	src := userBuf(bufPtr, count)
	if src == nil {
		return EFAULT
	}

	switch fd {
	case fdStdout, fdStderr:
		early.Printf("%s", string(src))
		return uint64(len(src))
	}

	proc, ok := currentProcess()
	if !ok {
		return EINVAL
	}
	if _, _, ok := proc.FD(int(fd)); !ok {
		return EBADF
	}
	return EROFS
}

// statBuf is the fixed layout Fstat writes into user memory: a compact
// stand-in for struct stat, not byte-compatible with any POSIX ABI since
// this kernel has no libc consumer to match.
type statBuf struct {
	size   uint64
	blocks uint64
	mode   uint16
	fType  uint8
	_      [5]byte // pad to 24 bytes
	uid    uint32
	gid    uint32
	nlink  uint32
	atime  uint32
	mtime  uint32
	ctime  uint32
}

// fstatSyscall implements Fstat: write fd's vfs.Attr into the statBuf at
// statPtr.
func fstatSyscall(fd, statPtr uint64) uint64 {
	if rootFS == nil {
		return ENXIO
	}
	proc, ok := currentProcess()
	if !ok {
		return EINVAL
	}
	inode, _, ok := proc.FD(int(fd))
	if !ok {
		return EBADF
	}
	attr, err := rootFS.Stat(inode)
	if err != nil {
		return vfsErrno(err)
	}
	dst := userBuf(statPtr, uint64(unsafe.Sizeof(statBuf{})))
	if dst == nil {
		return EFAULT
	}
	sb := (*statBuf)(unsafe.Pointer(&dst[0]))
	sb.size = attr.Size
	sb.blocks = attr.Blocks
	sb.mode = attr.Mode
	sb.fType = uint8(attr.Type)
	sb.uid = attr.UID
	sb.gid = attr.GID
	sb.nlink = attr.NLink
	sb.atime = attr.ATime
	sb.mtime = attr.MTime
	sb.ctime = attr.CTime
	return Success
}

// Whence values for Lseek, matching the usual POSIX constants.
const (
	seekSet = 0
	seekCur = 1
	seekEnd = 2
)

// lseekSyscall implements Lseek. whence == seekEnd requires a Stat call to
// learn the file's size.
func lseekSyscall(fd, offset, whence uint64) uint64 {
	proc, ok := currentProcess()
	if !ok {
		return EINVAL
	}
	inode, cur, ok := proc.FD(int(fd))
	if !ok {
		return EBADF
	}

	var base uint64
	switch whence {
	case seekSet:
		base = 0
	case seekCur:
		base = cur
	case seekEnd:
		if rootFS == nil {
			return ENXIO
		}
		attr, err := rootFS.Stat(inode)
		if err != nil {
			return vfsErrno(err)
		}
		base = attr.Size
	default:
		return EINVAL
	}

	newOffset := int64(base) + int64(offset)
	if newOffset < 0 {
		return EINVAL
	}
	proc.SetFDOffset(int(fd), uint64(newOffset))
	return uint64(newOffset)
}

// getcwdSyscall implements Getcwd: copy the calling process's cwd, plus a
// NUL terminator, into user memory at bufPtr, bounded by size.
func getcwdSyscall(bufPtr, size uint64) uint64 {
	proc, ok := currentProcess()
	if !ok {
		return EINVAL
	}
	cwd := proc.Cwd()
	if uint64(len(cwd))+1 > size {
		return EINVAL
	}
	n := writeUserBytes(bufPtr, size, append([]byte(cwd), 0))
	return uint64(n)
}

// chdirSyscall implements Chdir: resolve (pathPtr, pathLen), confirm it
// names a directory, and update the calling process's cwd.
func chdirSyscall(pathPtr, pathLen uint64) uint64 {
	if rootFS == nil {
		return ENXIO
	}
	proc, ok := currentProcess()
	if !ok {
		return EINVAL
	}
	path := readUserString(pathPtr, pathLen)
	if path == "" {
		return EINVAL
	}
	resolved := absPath(proc, path)
	inode, err := vfs.ResolvePath(rootFS, resolved)
	if err != nil {
		return vfsErrno(err)
	}
	attr, err := rootFS.Stat(inode)
	if err != nil {
		return vfsErrno(err)
	}
	if attr.Type != vfs.Directory {
		return ENOTDIR
	}
	proc.SetCwd(resolved)
	return Success
}

// dirEntHeader is the fixed-size prefix of each record readdirSyscall packs
// into the caller's buffer; the entry's name follows immediately, not
// NUL-terminated.
type dirEntHeader struct {
	inode   uint64
	fType   uint8
	nameLen uint8
}

// readdirSyscall implements Readdir: pack every entry of the directory open
// on fd into the caller's buffer as a stream of dirEntHeader-prefixed
// records, stopping (and keeping the remainder for a future call) once no
// more entries fit. Unlike a regular Read, this always starts from the
// beginning of the directory: the fd's stored offset isn't a meaningful
// byte position against the packed wire format readdirSyscall itself
// defines, so it is reused here as an entry index instead of a byte offset.
func readdirSyscall(fd, bufPtr, bufLen uint64) uint64 {
	if rootFS == nil {
		return ENXIO
	}
	proc, ok := currentProcess()
	if !ok {
		return EINVAL
	}
	inode, startIdx, ok := proc.FD(int(fd))
	if !ok {
		return EBADF
	}
	entries, err := rootFS.ReadDir(inode)
	if err != nil {
		return vfsErrno(err)
	}
	dst := userBuf(bufPtr, bufLen)
	if dst == nil {
		return EFAULT
	}

	written := 0
	idx := int(startIdx)
	headerSize := int(unsafe.Sizeof(dirEntHeader{}))
	for ; idx < len(entries); idx++ {
		e := entries[idx]
		need := headerSize + len(e.Name)
		if written+need > len(dst) {
			break
		}
		hdr := (*dirEntHeader)(unsafe.Pointer(&dst[written]))
		hdr.inode = e.Inode
		hdr.fType = uint8(e.Type)
		hdr.nameLen = uint8(len(e.Name))
		copy(dst[written+headerSize:written+need], e.Name)
		written += need
	}
	proc.SetFDOffset(int(fd), uint64(idx))
	return uint64(written)
}

// mkdirSyscall and rmdirSyscall always fail: kernel/ext2 mounts its volume
// read-only (spec.md §4.J), matching the original's stubbed mutating
// methods.
func mkdirSyscall(uint64, uint64) uint64 { return EROFS }
func rmdirSyscall(uint64, uint64) uint64 { return EROFS }
