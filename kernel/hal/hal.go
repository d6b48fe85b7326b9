// Package hal collects the narrow hardware-abstraction surfaces the kernel
// core depends on. Framebuffer pixel drawing, PS/2 scan-code decoding and
// loading-spinner animation are external collaborators per spec.md §1; this
// package exposes only the minimal ConsoleDevice write sink those
// collaborators (or, by default, the built-in serial backend) implement.
package hal

import "github.com/tas0dev/SwiftCore-sub000/kernel/hal/multiboot"

// ConsoleDevice is the narrow write sink the kernel logger (kfmt/early)
// writes through. A concrete backend (serial port, VGA text
// mode, or a framebuffer-backed terminal supplied by an external
// collaborator) only needs to implement byte output and a clear operation.
type ConsoleDevice interface {
	WriteByte(ch byte)
	Write(p []byte) (int, error)
	Clear()
}

// nullConsole discards all output. It is the default ActiveConsole until
// SetActiveConsole installs a real backend, so early Printf calls never crash on
// a nil interface.
type nullConsole struct{}

func (nullConsole) WriteByte(byte)            {}
func (nullConsole) Write(p []byte) (int, error) { return len(p), nil }
func (nullConsole) Clear()                    {}

// ActiveConsole is the console every logger writes to.
var ActiveConsole ConsoleDevice = nullConsole{}

// SetActiveConsole installs c as the active console.
func SetActiveConsole(c ConsoleDevice) {
	ActiveConsole = c
}

// BootInfo is the firmware handoff record populated from the multiboot2
// payload the bootloader passes to the kernel entry point. It mirrors the
// "Firmware handoff structure" of spec.md §6, substituting a multiboot2
// memory map for UEFI's (UEFI handoff mechanics are themselves a Non-goal;
// see SPEC_FULL.md).
type BootInfo struct {
	// PhysMemOffset is the linear offset used to turn a physical frame
	// address into a kernel-visible virtual address once the kernel page
	// table establishes the direct physical mapping.
	PhysMemOffset uintptr

	// Framebuffer geometry, if one was reported.
	FramebufferBase   uintptr
	FramebufferWidth  uint32
	FramebufferHeight uint32
	FramebufferPitch  uint32

	// KernelHeapBase is the first virtual address past the kernel image
	// that the early allocator may hand out.
	KernelHeapBase uintptr
}

// Info holds the BootInfo populated by InitFromMultiboot during early boot.
// The memory map itself is never copied into a Go slice this early (no heap
// exists yet); subsystems that need it call multiboot.VisitMemRegions
// directly, same as gopheros's allocator does.
var Info BootInfo

// InitFromMultiboot populates Info from the multiboot2 tag stream found at
// infoPtr and installs it as the kernel-wide boot info record.
func InitFromMultiboot(infoPtr uintptr, kernelHeapBase uintptr) {
	multiboot.SetInfoPtr(infoPtr)

	Info = BootInfo{KernelHeapBase: kernelHeapBase}
	if fb := multiboot.GetFramebufferInfo(); fb != nil {
		Info.FramebufferBase = uintptr(fb.PhysAddr)
		Info.FramebufferWidth = fb.Width
		Info.FramebufferHeight = fb.Height
		Info.FramebufferPitch = fb.Pitch
	}
}
