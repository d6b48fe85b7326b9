package ext2

import (
	"encoding/binary"
	"testing"

	"github.com/tas0dev/SwiftCore-sub000/kernel/vfs"
)

const testBlockSize = 1024

// buildTestImage assembles a minimal synthetic ext2 volume with a root
// directory containing a single regular file "hello.txt", for exercising
// FS without a real disk image:
//
//	block 0: unused boot block
//	block 1: superblock
//	block 2: group descriptor table
//	block 3: inode table, slot for inode 2 (root)
//	block 4: inode table, slot for inode 11 (hello.txt)
//	block 5: root directory data
//	block 6: hello.txt data
func buildTestImage(t *testing.T, payload []byte) []byte {
	t.Helper()
	le := binary.LittleEndian
	img := make([]byte, 7*testBlockSize)

	sb := img[1*testBlockSize : 2*testBlockSize]
	le.PutUint32(sb[0:4], 32)     // inodesCount
	le.PutUint32(sb[4:8], 16)     // blocksCount
	le.PutUint32(sb[20:24], 1)    // firstDataBlock
	le.PutUint32(sb[24:28], 0)    // logBlockSize -> 1024
	le.PutUint32(sb[32:36], 8192) // blocksPerGroup
	le.PutUint32(sb[36:40], 8192) // fragsPerGroup
	le.PutUint32(sb[40:44], 32)   // inodesPerGroup
	le.PutUint16(sb[56:58], magic)
	le.PutUint32(sb[76:80], 0) // revLevel (static -> 128-byte inodes)

	gdt := img[2*testBlockSize : 3*testBlockSize]
	le.PutUint32(gdt[8:12], 3) // inodeTable starts at block 3

	rootInodeOff := 3*testBlockSize + 1*onDiskInodeSize // local_idx 1 within block 3
	ri := img[rootInodeOff : rootInodeOff+onDiskInodeSize]
	le.PutUint16(ri[0:2], modeIFDir|0o755)
	le.PutUint32(ri[4:8], 1024) // size: directory data fills one block
	le.PutUint16(ri[26:28], 2) // linksCount
	le.PutUint32(ri[40:44], 5) // i_block[0] = block 5

	fileInodeOff := 4*testBlockSize + 2*onDiskInodeSize // local_idx 10 -> block 4, slot 2
	fi := img[fileInodeOff : fileInodeOff+onDiskInodeSize]
	le.PutUint16(fi[0:2], modeIFReg|0o644)
	le.PutUint32(fi[4:8], uint32(len(payload)))
	le.PutUint16(fi[26:28], 1) // linksCount
	le.PutUint32(fi[40:44], 6) // i_block[0] = block 6

	dir := img[5*testBlockSize : 6*testBlockSize]
	writeDirEntry(dir, 0, 2, ".", 2)
	writeDirEntry(dir, 12, 2, "..", 2)
	writeDirEntryRecLen(dir, 24, 11, "hello.txt", 1, testBlockSize-24)

	copy(img[6*testBlockSize:], payload)

	return img
}

func writeDirEntry(buf []byte, offset int, inode uint32, name string, fileType uint8) {
	recLen := align4(dirEntrySize + len(name))
	writeDirEntryRecLen(buf, offset, inode, name, fileType, recLen)
}

func writeDirEntryRecLen(buf []byte, offset int, inode uint32, name string, fileType uint8, recLen int) {
	le := binary.LittleEndian
	le.PutUint32(buf[offset:offset+4], inode)
	le.PutUint16(buf[offset+4:offset+6], uint16(recLen))
	buf[offset+6] = uint8(len(name))
	buf[offset+7] = fileType
	copy(buf[offset+8:offset+8+len(name)], name)
}

func align4(n int) int {
	return (n + 3) &^ 3
}

func mustMount(t *testing.T, img []byte) *FS {
	t.Helper()
	dev := NewRAMBlockDeviceFromBytes(img, testBlockSize)
	fs, err := New(dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fs
}

func TestNewRejectsBadMagic(t *testing.T) {
	img := buildTestImage(t, []byte("hi"))
	img[1*testBlockSize+56] = 0 // clobber magic
	img[1*testBlockSize+57] = 0
	dev := NewRAMBlockDeviceFromBytes(img, testBlockSize)
	if _, err := New(dev); err != errBadMagic {
		t.Fatalf("got %v, want errBadMagic", err)
	}
}

func TestStatRoot(t *testing.T) {
	fs := mustMount(t, buildTestImage(t, []byte("hello, ext2!")))
	attr, err := fs.Stat(fs.RootInode())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if attr.Type != vfs.Directory {
		t.Fatalf("root type = %v, want Directory", attr.Type)
	}
}

func TestLookupFindsFile(t *testing.T) {
	fs := mustMount(t, buildTestImage(t, []byte("hello, ext2!")))
	inode, err := fs.Lookup(fs.RootInode(), "hello.txt")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if inode != 11 {
		t.Fatalf("got inode %d, want 11", inode)
	}
}

func TestLookupMissingReturnsNotFound(t *testing.T) {
	fs := mustMount(t, buildTestImage(t, []byte("hello, ext2!")))
	if _, err := fs.Lookup(fs.RootInode(), "nope.txt"); err != vfs.ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestReadDirListsEntries(t *testing.T) {
	fs := mustMount(t, buildTestImage(t, []byte("hello, ext2!")))
	entries, err := fs.ReadDir(fs.RootInode())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := map[string]uint64{}
	for _, e := range entries {
		names[e.Name] = e.Inode
	}
	if names["."] != 2 || names[".."] != 2 || names["hello.txt"] != 11 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestReadWholeFile(t *testing.T) {
	payload := []byte("hello, ext2!")
	fs := mustMount(t, buildTestImage(t, payload))

	inode, err := fs.Lookup(fs.RootInode(), "hello.txt")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	buf := make([]byte, len(payload))
	n, err := fs.Read(inode, 0, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(payload) || string(buf) != string(payload) {
		t.Fatalf("got %q, want %q", buf[:n], payload)
	}
}

func TestReadAtOffset(t *testing.T) {
	payload := []byte("hello, ext2!")
	fs := mustMount(t, buildTestImage(t, payload))
	inode, _ := fs.Lookup(fs.RootInode(), "hello.txt")

	buf := make([]byte, 5)
	n, err := fs.Read(inode, 7, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "ext2!" {
		t.Fatalf("got %q, want %q", buf[:n], "ext2!")
	}
}

func TestReadPastEOFReturnsZero(t *testing.T) {
	payload := []byte("hi")
	fs := mustMount(t, buildTestImage(t, payload))
	inode, _ := fs.Lookup(fs.RootInode(), "hello.txt")

	buf := make([]byte, 5)
	n, err := fs.Read(inode, 100, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 0 {
		t.Fatalf("got n=%d, want 0", n)
	}
}

func TestReadOnDirectoryReturnsIsDirectory(t *testing.T) {
	fs := mustMount(t, buildTestImage(t, []byte("hi")))
	buf := make([]byte, 4)
	if _, err := fs.Read(fs.RootInode(), 0, buf); err != vfs.ErrIsDirectory {
		t.Fatalf("got %v, want ErrIsDirectory", err)
	}
}

func TestResolvePathThroughFS(t *testing.T) {
	fs := mustMount(t, buildTestImage(t, []byte("hi")))
	inode, err := vfs.ResolvePath(fs, "/hello.txt")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if inode != 11 {
		t.Fatalf("got inode %d, want 11", inode)
	}
}
