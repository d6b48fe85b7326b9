package task

import "testing"

func TestProcessAccessors(t *testing.T) {
	p := NewProcess("init", Core, 0, false, 1)

	if p.Name() != "init" {
		t.Errorf("expected name %q; got %q", "init", p.Name())
	}
	if p.Privilege() != Core {
		t.Errorf("expected Core privilege; got %v", p.Privilege())
	}
	if _, hasParent := p.ParentID(); hasParent {
		t.Error("expected the bootstrap process to have no parent")
	}
	if p.State() != ProcessRunning {
		t.Errorf("expected a new process to start Running; got %v", p.State())
	}

	p.SetState(ProcessTerminated)
	if p.State() != ProcessTerminated {
		t.Error("expected SetState to stick")
	}

	if _, ok := p.PageTable(); ok {
		t.Error("expected no page table to be assigned yet")
	}
	p.SetPageTable(0x1000)
	addr, ok := p.PageTable()
	if !ok || addr != 0x1000 {
		t.Errorf("expected page table 0x1000; got %#x, %v", addr, ok)
	}

	if p.Cwd() != "/" {
		t.Errorf("expected new process cwd to be /; got %q", p.Cwd())
	}
	p.SetCwd("/home")
	if p.Cwd() != "/home" {
		t.Errorf("expected SetCwd to stick; got %q", p.Cwd())
	}
}

func TestProcessFDTable(t *testing.T) {
	p := NewProcess("fd-test", Core, 0, false, 0)

	fd, ok := p.AllocFD(42)
	if !ok || fd != 0 {
		t.Fatalf("expected first AllocFD to return fd 0; got %d, %v", fd, ok)
	}

	inode, offset, ok := p.FD(fd)
	if !ok || inode != 42 || offset != 0 {
		t.Fatalf("expected (42, 0, true); got (%d, %d, %v)", inode, offset, ok)
	}

	p.SetFDOffset(fd, 100)
	if _, offset, _ := p.FD(fd); offset != 100 {
		t.Fatalf("expected offset to update to 100; got %d", offset)
	}

	if !p.CloseFD(fd) {
		t.Fatal("expected CloseFD to report the descriptor was open")
	}
	if _, _, ok := p.FD(fd); ok {
		t.Fatal("expected FD to report closed after CloseFD")
	}
	if p.CloseFD(fd) {
		t.Fatal("expected a second CloseFD to report false")
	}
}

func TestProcessFDTableFull(t *testing.T) {
	p := NewProcess("fd-full", Core, 0, false, 0)
	for i := 0; i < maxOpenFiles; i++ {
		if _, ok := p.AllocFD(uint64(i)); !ok {
			t.Fatalf("expected AllocFD to succeed for slot %d", i)
		}
	}
	if _, ok := p.AllocFD(999); ok {
		t.Fatal("expected AllocFD to fail once the table is full")
	}
}

func TestProcessTableAddGetRemove(t *testing.T) {
	var tbl ProcessTable

	a := NewProcess("a", Core, 0, false, 0)
	b := NewProcess("b", User, a.ID(), true, 0)

	if _, ok := tbl.Add(a); !ok {
		t.Fatal("expected add to succeed")
	}
	if _, ok := tbl.Add(b); !ok {
		t.Fatal("expected add to succeed")
	}
	if tbl.Count() != 2 {
		t.Errorf("expected count 2; got %d", tbl.Count())
	}

	if tbl.Get(a.ID()) != a {
		t.Error("expected Get to return the process that was added")
	}
	if parentID, ok := b.ParentID(); !ok || parentID != a.ID() {
		t.Errorf("expected b's parent to be a; got %d, %v", parentID, ok)
	}

	if tbl.Remove(a.ID()) != a {
		t.Error("expected Remove to return the removed process")
	}
	if tbl.Count() != 1 {
		t.Errorf("expected count 1 after removal; got %d", tbl.Count())
	}
}

func TestProcessTableFindByName(t *testing.T) {
	var tbl ProcessTable
	p := NewProcess("shell", User, 0, false, 2)
	tbl.Add(p)

	if got := tbl.FindByName("shell"); got != p {
		t.Error("expected FindByName to find the exact-name match")
	}
	if got := tbl.FindByName("sh"); got != nil {
		t.Error("expected FindByName to require a full match, not a prefix")
	}
}

func TestGlobalProcessTable(t *testing.T) {
	p := NewProcess("global-proc", Core, 0, false, 0)
	id, ok := AddProcess(p)
	if !ok {
		t.Fatal("expected AddProcess to succeed")
	}
	defer RemoveProcess(id)

	foundID, ok := FindProcessIDByName("global-proc")
	if !ok || foundID != id {
		t.Fatalf("expected FindProcessIDByName to find the process; got %d, %v", foundID, ok)
	}

	if !WithProcessMut(id, func(p *Process) { p.SetState(ProcessTerminated) }) {
		t.Fatal("expected WithProcessMut to find the process")
	}
	if state, _ := WithProcess(id, func(p *Process) ProcessState { return p.State() }); state != ProcessTerminated {
		t.Errorf("expected state update to stick; got %v", state)
	}
}
