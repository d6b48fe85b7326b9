// Package syscall implements the kernel's system-call dispatch table
// (spec.md §4.G): the Linux-compatible subset plus an SwiftCore-private
// number range, reachable through both the legacy int 0x80 trap gate and
// the SYSCALL/SYSRET fast path.
package syscall

// Number identifies a system call.
type Number uint64

// Linux-compatible numbers. Only the subset spec.md §4.G names is given an
// identifier; any other value in the Linux range falls through dispatch's
// default case and returns ENOSYS.
const (
	Read          Number = 0
	Write         Number = 1
	Open          Number = 2
	Close         Number = 3
	Fstat         Number = 5
	Lseek         Number = 8
	Mmap          Number = 9
	Munmap        Number = 11
	Brk           Number = 12
	RtSigaction   Number = 13
	RtSigprocmask Number = 14
	Clone         Number = 56
	Fork          Number = 57
	Execve        Number = 59
	Wait          Number = 61
	GetPid        Number = 39
	GetTid        Number = 186
	ArchPrctl     Number = 158
	ClockGettime  Number = 228
	Futex         Number = 202
	Exit          Number = 60
	ExitGroup     Number = 231
	Getcwd        Number = 79
)

// SwiftCore-private numbers (the Linux table never uses 512+).
const (
	Yield             Number = 512
	GetTicks          Number = 513
	IpcSend           Number = 514
	IpcRecv           Number = 515
	Exec              Number = 516
	Sleep             Number = 517
	FindProcessByName Number = 518
	Log               Number = 519
	PortIn            Number = 520
	PortOut           Number = 521
	Mkdir             Number = 522
	Rmdir             Number = 523
	Readdir           Number = 524
	Chdir             Number = 525
)

// Return codes. A syscall's return value packs either a non-negative
// result or a negated POSIX errno cast to unsigned, so any value at or
// above errnoFloor (the cast of -256) can be treated as an error by the
// caller (spec.md §4.G).
const (
	Success uint64 = 0

	EPERM  uint64 = 1<<64 - 1
	ENOENT uint64 = 1<<64 - 2
	EIO    uint64 = 1<<64 - 5
	ENXIO  uint64 = 1<<64 - 6
	EAGAIN uint64 = 1<<64 - 11
	ENOMEM uint64 = 1<<64 - 12
	EBADF  uint64 = 1<<64 - 9
	EFAULT uint64 = 1<<64 - 14
	EINVAL uint64 = 1<<64 - 22
	ENOSYS uint64 = 1<<64 - 38
	ENOTDIR uint64 = 1<<64 - 20
	EROFS   uint64 = 1<<64 - 30
)

// errnoFloor is the smallest return value dispatch ever produces for an
// error (-256 as u64, 0xFFFF_FFFF_FFFF_FF00); a caller can compare a return
// value against it to decide success vs failure without a separate error
// channel.
const errnoFloor uint64 = 1<<64 - 256

// IsError reports whether rc is an error return rather than a successful
// result, per spec.md §4.G's "negated errno, returns >= 0xFFFF...FF00"
// convention.
func IsError(rc uint64) bool {
	return rc >= errnoFloor
}
