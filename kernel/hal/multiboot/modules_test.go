package multiboot

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

// buildModulesInfo assembles a synthetic multiboot2 info blob containing one
// module tag per entry in mods, terminated by the mandatory end tag.
func buildModulesInfo(t *testing.T, mods []ModuleEntry) []byte {
	t.Helper()
	le := binary.LittleEndian

	var tags []byte
	for _, m := range mods {
		cmd := append([]byte(m.CmdLine), 0)
		tagLen := 8 + 8 + len(cmd)
		padded := (tagLen + 7) &^ 7

		tag := make([]byte, padded)
		le.PutUint32(tag[0:4], uint32(tagModules))
		le.PutUint32(tag[4:8], uint32(tagLen))
		le.PutUint32(tag[8:12], m.StartAddr)
		le.PutUint32(tag[12:16], m.EndAddr)
		copy(tag[16:], cmd)
		tags = append(tags, tag...)
	}

	endTag := make([]byte, 8)
	le.PutUint32(endTag[4:8], 8)
	tags = append(tags, endTag...)

	buf := make([]byte, 8+len(tags))
	le.PutUint32(buf[0:4], uint32(len(buf)))
	copy(buf[8:], tags)
	return buf
}

func TestVisitModulesCollectsEveryModule(t *testing.T) {
	want := []ModuleEntry{
		{StartAddr: 0x100000, EndAddr: 0x200000, CmdLine: "rootfs.img"},
		{StartAddr: 0x300000, EndAddr: 0x300400, CmdLine: "init"},
	}
	buf := buildModulesInfo(t, want)
	SetInfoPtr(uintptr(unsafe.Pointer(&buf[0])))

	var got []ModuleEntry
	VisitModules(func(entry ModuleEntry) bool {
		got = append(got, entry)
		return true
	})

	if len(got) != len(want) {
		t.Fatalf("got %d modules, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("module %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestVisitModulesStopsWhenVisitorReturnsFalse(t *testing.T) {
	buf := buildModulesInfo(t, []ModuleEntry{
		{StartAddr: 1, EndAddr: 2, CmdLine: "a"},
		{StartAddr: 3, EndAddr: 4, CmdLine: "b"},
	})
	SetInfoPtr(uintptr(unsafe.Pointer(&buf[0])))

	var count int
	VisitModules(func(entry ModuleEntry) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("got %d visits, want 1", count)
	}
}

func TestVisitModulesNoneWhenNoModuleTags(t *testing.T) {
	buf := buildModulesInfo(t, nil)
	SetInfoPtr(uintptr(unsafe.Pointer(&buf[0])))

	called := false
	VisitModules(func(entry ModuleEntry) bool {
		called = true
		return true
	})
	if called {
		t.Fatal("visitor should not have been called")
	}
}
