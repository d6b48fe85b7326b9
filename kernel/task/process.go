package task

import "github.com/tas0dev/SwiftCore-sub000/kernel/sync"

// maxProcesses bounds the process table the same way ThreadQueue bounds
// the thread table.
const maxProcesses = 64

// maxOpenFiles bounds a single process's open-file-descriptor table
// (spec.md §4.J); descriptor numbers are slot indices, same as a
// traditional POSIX fd table.
const maxOpenFiles = 32

// openFile is one entry in a process's file descriptor table: which inode
// it refers to and the current read offset into it. There is no backing
// filesystem reference here because this kernel mounts a single volume
// (kernel/syscall's fd table resolves inodes against that one mount).
type openFile struct {
	inode  uint64
	offset uint64
	inUse  bool
}

// Process owns an address space and one or more threads.
type Process struct {
	id           ProcessID
	name         string
	state        ProcessState
	privilege    PrivilegeLevel
	parentID     ProcessID
	hasParent    bool
	pageTable    uintptr
	hasPageTable bool
	priority     uint8
	files        [maxOpenFiles]openFile
	cwd          string
}

// NewProcess creates a process record. A parentID of 0 with hasParent
// false marks it as having no parent (the kernel's bootstrap process).
func NewProcess(name string, privilege PrivilegeLevel, parentID ProcessID, hasParent bool, priority uint8) *Process {
	return &Process{
		id:        newProcessID(),
		name:      name,
		state:     ProcessRunning,
		privilege: privilege,
		parentID:  parentID,
		hasParent: hasParent,
		priority:  priority,
		cwd:       "/",
	}
}

// ID returns the process id.
func (p *Process) ID() ProcessID { return p.id }

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// State returns the process's lifecycle state.
func (p *Process) State() ProcessState { return p.state }

// SetState updates the process's lifecycle state.
func (p *Process) SetState(s ProcessState) { p.state = s }

// Privilege returns the ring this process's threads execute in.
func (p *Process) Privilege() PrivilegeLevel { return p.privilege }

// ParentID returns the parent process id and whether one exists.
func (p *Process) ParentID() (ProcessID, bool) { return p.parentID, p.hasParent }

// Priority returns the process's scheduling priority (0 is highest).
func (p *Process) Priority() uint8 { return p.priority }

// PageTable returns the physical address of this process's top-level page
// table and whether one has been assigned (a process sharing the kernel's
// address space, like the idle process, never gets one).
func (p *Process) PageTable() (uintptr, bool) { return p.pageTable, p.hasPageTable }

// SetPageTable assigns the physical address of this process's page table.
func (p *Process) SetPageTable(addr uintptr) {
	p.pageTable, p.hasPageTable = addr, true
}

// Cwd returns the process's current working directory path.
func (p *Process) Cwd() string { return p.cwd }

// SetCwd updates the process's current working directory path.
func (p *Process) SetCwd(path string) { p.cwd = path }

// AllocFD reserves the lowest-numbered free descriptor for inode and
// returns it, or false if the table is full.
func (p *Process) AllocFD(inode uint64) (int, bool) {
	for i := range p.files {
		if !p.files[i].inUse {
			p.files[i] = openFile{inode: inode, inUse: true}
			return i, true
		}
	}
	return 0, false
}

// FD returns the inode and current read offset fd refers to, and whether
// fd is actually open.
func (p *Process) FD(fd int) (inode uint64, offset uint64, ok bool) {
	if fd < 0 || fd >= len(p.files) || !p.files[fd].inUse {
		return 0, 0, false
	}
	return p.files[fd].inode, p.files[fd].offset, true
}

// SetFDOffset updates fd's current read offset; a no-op if fd isn't open.
func (p *Process) SetFDOffset(fd int, offset uint64) {
	if fd >= 0 && fd < len(p.files) && p.files[fd].inUse {
		p.files[fd].offset = offset
	}
}

// CloseFD frees fd and reports whether it was open.
func (p *Process) CloseFD(fd int) bool {
	if fd < 0 || fd >= len(p.files) || !p.files[fd].inUse {
		return false
	}
	p.files[fd] = openFile{}
	return true
}

// ProcessTable holds every process known to the kernel in a fixed-capacity
// slot table, scanned linearly for add/get/remove under a single lock
// (spec.md §4.D).
type ProcessTable struct {
	processes [maxProcesses]*Process
	count     int
}

// Add inserts process into the first free slot and returns its id, or
// false if the table is full.
func (t *ProcessTable) Add(p *Process) (ProcessID, bool) {
	if t.count >= maxProcesses {
		return 0, false
	}
	for i := range t.processes {
		if t.processes[i] == nil {
			t.processes[i] = p
			t.count++
			return p.id, true
		}
	}
	return 0, false
}

// Get returns the process with the given id, if present.
func (t *ProcessTable) Get(id ProcessID) *Process {
	for _, p := range t.processes {
		if p != nil && p.id == id {
			return p
		}
	}
	return nil
}

// Remove deletes the process with the given id and returns it, or nil if
// it wasn't present.
func (t *ProcessTable) Remove(id ProcessID) *Process {
	for i, p := range t.processes {
		if p != nil && p.id == id {
			t.processes[i] = nil
			t.count--
			return p
		}
	}
	return nil
}

// FindByName performs a full-equality linear search over process names.
func (t *ProcessTable) FindByName(name string) *Process {
	for _, p := range t.processes {
		if p != nil && p.name == name {
			return p
		}
	}
	return nil
}

// Count returns the number of processes currently tracked.
func (t *ProcessTable) Count() int { return t.count }

var (
	processTableLock sync.Spinlock
	processTable      ProcessTable
)

// AddProcess registers p in the global process table.
func AddProcess(p *Process) (ProcessID, bool) {
	processTableLock.Acquire()
	defer processTableLock.Release()
	return processTable.Add(p)
}

// WithProcess runs f with read access to the process identified by id,
// under the process table's lock, and reports whether id was found.
func WithProcess[R any](id ProcessID, f func(*Process) R) (R, bool) {
	processTableLock.Acquire()
	defer processTableLock.Release()
	var zero R
	p := processTable.Get(id)
	if p == nil {
		return zero, false
	}
	return f(p), true
}

// WithProcessMut runs f with mutable access to the process identified by
// id, under the process table's lock, and reports whether id was found.
func WithProcessMut(id ProcessID, f func(*Process)) bool {
	processTableLock.Acquire()
	defer processTableLock.Release()
	p := processTable.Get(id)
	if p == nil {
		return false
	}
	f(p)
	return true
}

// RemoveProcess deletes id from the global process table.
func RemoveProcess(id ProcessID) *Process {
	processTableLock.Acquire()
	defer processTableLock.Release()
	return processTable.Remove(id)
}

// FindProcessIDByName looks up a process by its exact name.
func FindProcessIDByName(name string) (ProcessID, bool) {
	processTableLock.Acquire()
	defer processTableLock.Release()
	p := processTable.FindByName(name)
	if p == nil {
		return 0, false
	}
	return p.id, true
}

// ProcessCount returns the number of processes currently tracked.
func ProcessCount() int {
	processTableLock.Acquire()
	defer processTableLock.Release()
	return processTable.Count()
}
