package syscall

import (
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel/cpu"
	"github.com/tas0dev/SwiftCore-sub000/kernel/elf"
	"github.com/tas0dev/SwiftCore-sub000/kernel/ipc"
	"github.com/tas0dev/SwiftCore-sub000/kernel/irq"
	"github.com/tas0dev/SwiftCore-sub000/kernel/kfmt/early"
	"github.com/tas0dev/SwiftCore-sub000/kernel/sched"
	"github.com/tas0dev/SwiftCore-sub000/kernel/task"
)

// Dispatch is the flat match over the syscall number table (spec.md
// §4.G): Linux-compatible numbers in the low range, SwiftCore-private
// numbers at 512+. An unrecognised number returns ENOSYS. Both entry
// paths (int 0x80 and SYSCALL) funnel through this single function.
func Dispatch(num, arg0, arg1, arg2, arg3, arg4 uint64) uint64 {
	switch Number(num) {
	// Linux-compatible subset this kernel actually backs.
	case GetPid:
		return getpid()
	case GetTid:
		return gettid()
	case Exit, ExitGroup:
		sched.ExitCurrentTask(arg0)
		return Success // unreachable: ExitCurrentTask never returns
	case RtSigaction, RtSigprocmask:
		return Success // no signal delivery on this kernel; accept and ignore
	case ArchPrctl:
		return archPrctl(arg0, arg1)

	// SwiftCore-private range.
	case Yield:
		sched.Yield()
		return Success
	case GetTicks:
		return sched.Ticks()
	case IpcSend:
		return ipc.SendFromUserPtr(task.ThreadID(arg0), uintptr(arg1), arg2)
	case IpcRecv:
		return ipc.RecvToUserPtr(uintptr(arg0), arg1)
	case Sleep:
		return sleep(arg0)
	case FindProcessByName:
		return findProcessByName(arg0, arg1)
	case Log:
		return log(arg0, arg1, arg2)
	case Exec:
		return exec(arg0, arg1, arg2, arg3, arg4)
	case PortIn:
		return portIn(arg0, arg1)
	case PortOut:
		return portOut(arg0, arg1, arg2)
	case Open:
		return openFileSyscall(arg0, arg1)
	case Close:
		return closeFileSyscall(arg0)
	case Fstat:
		return fstatSyscall(arg0, arg1)
	case Lseek:
		return lseekSyscall(arg0, arg1, arg2)
	case Getcwd:
		return getcwdSyscall(arg0, arg1)
	case Chdir:
		return chdirSyscall(arg0, arg1)
	case Readdir:
		return readdirSyscall(arg0, arg1, arg2)
	case Mkdir:
		return mkdirSyscall(arg0, arg1)
	case Rmdir:
		return rmdirSyscall(arg0, arg1)
	case Read:
		return readFileSyscall(arg0, arg1, arg2)
	case Write:
		return writeFileSyscall(arg0, arg1, arg2)

	default:
		return ENOSYS
	}
}

// getpid returns the process id of the calling thread's process.
func getpid() uint64 {
	id, ok := task.CurrentThreadID()
	if !ok {
		return EINVAL
	}
	pid, ok := task.WithThread(id, func(t *task.Thread) task.ProcessID { return t.ProcessID() })
	if !ok {
		return EINVAL
	}
	return uint64(pid)
}

// gettid returns the thread id of the calling thread.
func gettid() uint64 {
	id, ok := task.CurrentThreadID()
	if !ok {
		return EINVAL
	}
	return uint64(id)
}

// archPrctl implements only ARCH_SET_FS (set the userspace TLS base); all
// other operations are unsupported.
func archPrctl(code, addr uint64) uint64 {
	const archSetFS = 0x1002
	if code != archSetFS {
		return EINVAL
	}
	setFSBaseFn(addr)
	return Success
}

// sleep blocks the calling thread until at least durationMs have elapsed.
// It busy-checks the tick count between yields rather than arming a timer,
// matching the scheduler's lack of a dedicated wait-queue for timed sleep.
func sleep(durationMs uint64) uint64 {
	deadline := sched.Ticks() + durationMs
	for sched.Ticks() < deadline {
		sched.Yield()
	}
	return Success
}

// findProcessByName looks up a process by the name read from user memory
// at namePtr (nameLen bytes, no NUL terminator required) and returns its
// id, or ENOENT if no process matches.
func findProcessByName(namePtr, nameLen uint64) uint64 {
	name := readUserString(namePtr, nameLen)
	if name == "" {
		return EINVAL
	}
	id, ok := task.FindProcessIDByName(name)
	if !ok {
		return ENOENT
	}
	return uint64(id)
}

// log writes level-tagged text read from user memory to the active
// console; level is currently ignored beyond being accepted.
func log(_ /* level */, textPtr, textLen uint64) uint64 {
	text := readUserString(textPtr, textLen)
	early.Printf("%s\n", text)
	return Success
}

// userStrRef is a (ptr, len) pair describing one string sitting in user
// memory; argv/envp are passed to exec as arrays of these rather than
// NUL-terminated C strings, matching every other string argument in this
// syscall table (e.g. namePtr/nameLen above).
type userStrRef struct {
	ptr uint64
	len uint64
}

// execArgs is the small in-user-memory header exec's argsPtr argument
// points to: two (array pointer, count) pairs describing argv and envp.
// This keeps exec itself within Dispatch's five-argument-register budget
// while still carrying two variable-length string arrays.
type execArgs struct {
	argvPtr   uint64
	argvCount uint64
	envpPtr   uint64
	envpCount uint64
}

// execStringArray reads a count-length array of userStrRef starting at
// arrayPtr and copies out each string it refers to.
func execStringArray(arrayPtr, count uint64) []string {
	if arrayPtr == 0 || count == 0 {
		return nil
	}
	refs := unsafe.Slice((*userStrRef)(unsafe.Pointer(uintptr(arrayPtr))), int(count))
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = readUserString(r.ptr, r.len)
	}
	return out
}

// exec loads an ELF64 image already sitting in user memory at
// (imagePtr, imageLen) and spawns it as a brand-new ring-3 process named
// by the (namePtr, nameLen) string, returning its process id. argsPtr, if
// non-zero, points at an execArgs header describing argv/envp; zero means
// "no arguments or environment", and elf.Spawn falls back to a single-entry
// argv of the process name. exec does not load an image by path.
func exec(imagePtr, imageLen, namePtr, nameLen, argsPtr uint64) uint64 {
	if imagePtr == 0 || imageLen == 0 {
		return EINVAL
	}
	name := readUserString(namePtr, nameLen)
	if name == "" {
		name = "exec"
	}
	image := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(imagePtr))), int(imageLen))

	var argv, envp []string
	if argsPtr != 0 {
		args := (*execArgs)(unsafe.Pointer(uintptr(argsPtr)))
		argv = execStringArray(args.argvPtr, args.argvCount)
		envp = execStringArray(args.envpPtr, args.envpCount)
	}

	pid, _, err := elf.Spawn(name, image, argv, envp)
	if err != nil {
		return EINVAL
	}
	return uint64(pid)
}

// portIn reads one value from the given I/O port: width 1 for InB, 2 for
// InW. Restricted to Core-privilege callers since a ring-3 process issuing
// raw port I/O is always a bug, not a legitimate request.
func portIn(port, width uint64) uint64 {
	if !callerIsCore() {
		return EPERM
	}
	switch width {
	case 1:
		return uint64(cpu.InB(uint16(port)))
	case 2:
		return uint64(cpu.InW(uint16(port)))
	default:
		return EINVAL
	}
}

// portOut writes value to the given I/O port; width as in portIn.
func portOut(port, width, value uint64) uint64 {
	if !callerIsCore() {
		return EPERM
	}
	switch width {
	case 1:
		cpu.OutB(uint16(port), uint8(value))
	case 2:
		cpu.OutW(uint16(port), uint16(value))
	default:
		return EINVAL
	}
	return Success
}

// callerIsCore reports whether the calling thread's process runs at Core
// privilege.
func callerIsCore() bool {
	id, ok := task.CurrentThreadID()
	if !ok {
		return false
	}
	pid, ok := task.WithThread(id, func(t *task.Thread) task.ProcessID { return t.ProcessID() })
	if !ok {
		return false
	}
	priv, ok := task.WithProcess(pid, func(p *task.Process) task.PrivilegeLevel { return p.Privilege() })
	return ok && priv == task.Core
}

// HandleSyscallTrap is registered against irq.SyscallVector: the int 0x80
// path. The isrCommon trampoline has already built Regs directly out of
// the saved general-purpose registers (Linux calling convention: RAX =
// number, RDI/RSI/RDX/R10/R8 = arg0..arg4), so dispatch's result is simply
// written back into regs.RAX before the trap returns via iretq.
func HandleSyscallTrap(_ *irq.Frame, regs *irq.Regs) {
	regs.RAX = Dispatch(regs.RAX, regs.RDI, regs.RSI, regs.RDX, regs.R10, regs.R8)
}

// Init registers the int 0x80 syscall handler and brings up the SYSCALL
// fast path's MSRs. It must run after irq.Init and sched.Init.
func Init() {
	irq.HandleException(irq.SyscallVector, HandleSyscallTrap)
	initFastPath()
	sched.RegisterKernelStackHook(UpdateKernelRSP)
}
