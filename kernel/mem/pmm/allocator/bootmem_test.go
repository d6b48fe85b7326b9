package allocator

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/tas0dev/SwiftCore-sub000/kernel/hal"
	"github.com/tas0dev/SwiftCore-sub000/kernel/hal/multiboot"
)

// memConsole is an in-memory hal.ConsoleDevice used to capture early.Printf
// output in tests without needing a real VGA or serial backend.
type memConsole struct {
	buf bytes.Buffer
}

func (c *memConsole) WriteByte(ch byte)           { c.buf.WriteByte(ch) }
func (c *memConsole) Write(p []byte) (int, error) { return c.buf.Write(p) }
func (c *memConsole) Clear()                      { c.buf.Reset() }

func mockConsole() *memConsole {
	c := &memConsole{}
	hal.SetActiveConsole(c)
	return c
}

func TestBootMemoryAllocator(t *testing.T) {
	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(&multibootMemoryMap[0])))

	// region 1 extents get rounded to [0, 9f000] and provides 159 frames [0 to 158]
	// region 2 uses the original extents [100000 - 7fe0000] and provides 32480 frames [256-32735]
	var totalFreeFrames uint64 = 159 + 32480

	var (
		alloc           BootMemAllocator
		allocFrameCount uint64
	)
	for {
		frame, err := alloc.AllocFrame()
		if err != nil {
			if err == errBootAllocOutOfMemory {
				break
			}
			t.Fatalf("[frame %d] unexpected allocator error: %v", allocFrameCount, err)
		}
		allocFrameCount++
		if int64(frame) != alloc.lastAllocIndex {
			t.Errorf("[frame %d] expected allocated frame to be %d; got %d", allocFrameCount, alloc.lastAllocIndex, frame)
		}

		if !frame.IsValid() {
			t.Errorf("[frame %d] expected IsValid() to return true", allocFrameCount)
		}
	}

	if allocFrameCount != totalFreeFrames {
		t.Fatalf("expected allocator to allocate %d frames; allocated %d", totalFreeFrames, allocFrameCount)
	}
}

func TestBootMemAllocatorInit(t *testing.T) {
	con := mockConsole()
	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(&multibootMemoryMap[0])))

	var alloc BootMemAllocator
	alloc.Init()

	exp := "[boot_mem_alloc] system memory map:\n\t[0x0000000000 - 0x000009fc00], size:     654336, type: available\n\t[0x000009fc00 - 0x00000a0000], size:       1024, type: reserved\n\t[0x00000f0000 - 0x0000100000], size:      65536, type: reserved\n\t[0x0000100000 - 0x0007fe0000], size:  133038080, type: available\n\t[0x0007fe0000 - 0x0008000000], size:     131072, type: reserved\n\t[0x00fffc0000 - 0x0100000000], size:     262144, type: reserved\n[boot_mem_alloc] free memory: 130559Kb\n"
	if got := con.buf.String(); got != exp {
		t.Fatalf("expected Init to print the following memory map:\n%q\ngot:\n%q", exp, got)
	}
}

var (
	// A dump of multiboot data when running under qemu containing only the
	// memory region tag.  The dump encodes the following available memory
	// regions:
	// [     0 -   9fc00] length:    654336
	// [100000 - 7fe0000] length: 133038080
	multibootMemoryMap = []byte{
		72, 5, 0, 0, 0, 0, 0, 0,
		6, 0, 0, 0, 160, 0, 0, 0, 24, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 252, 9, 0, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 0, 0, 252, 9, 0, 0, 0, 0, 0,
		0, 4, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 15, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 16, 0, 0, 0, 0, 0,
		0, 0, 238, 7, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 254, 7, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 252, 255, 0, 0, 0, 0,
		0, 0, 4, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0,
		9, 0, 0, 0, 212, 3, 0, 0, 24, 0, 0, 0, 40, 0, 0, 0,
		21, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 27, 0, 0, 0,
		1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 16, 0, 0, 16, 0, 0,
		24, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)
