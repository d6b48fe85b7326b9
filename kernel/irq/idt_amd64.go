package irq

import (
	"reflect"
	"unsafe"
)

// idtEntry is a 64-bit interrupt/trap gate descriptor.
type idtEntry struct {
	offsetLow  uint16
	selector   uint16
	istAndZero uint8
	typeAttr   uint8
	offsetMid  uint16
	offsetHigh uint32
	zero       uint32
}

// idtr is the operand LIDT loads into IDTR.
type idtr struct {
	limit uint16
	base  uint64
}

var idt [256]idtEntry

// lidtFn is mocked by tests, which cannot execute the privileged LIDT
// instruction outside ring 0.
var lidtFn = lidt

const (
	// codeSegmentSelector is the ring-0 code segment built by kernel/gdt.
	codeSegmentSelector = 0x08

	gateTypeInterrupt = 0x8E // present, DPL=0, 64-bit interrupt gate
	gateTypeTrap      = 0xEE // present, DPL=3, 64-bit trap gate (int 0x80)
)

// setGate points the IDT entry for vector at the code address of handler.
// handler must be a package-level function (not a closure), since the
// address is recovered from its func value's code pointer.
func setGate(vector ExceptionNum, handler func(), typeAttr uint8) {
	addr := uint64(reflect.ValueOf(handler).Pointer())
	idt[vector] = idtEntry{
		offsetLow:  uint16(addr),
		selector:   codeSegmentSelector,
		typeAttr:   typeAttr,
		offsetMid:  uint16(addr >> 16),
		offsetHigh: uint32(addr >> 32),
	}
}

// Init builds the IDT for every exception, IRQ and trap gate this kernel
// handles and loads it into the CPU. A vector with no installed gate is left
// zeroed (not present); a CPU exception on one of them cannot be serviced and
// triple-faults, since nothing claims to handle it.
func Init() {
	remapPIC()

	for _, e := range [...]struct {
		vector ExceptionNum
		stub   func()
	}{
		{DivideByZero, isrStub0},
		{NMI, isrStub2},
		{Overflow, isrStub4},
		{BoundRangeExceeded, isrStub5},
		{InvalidOpcode, isrStub6},
		{DeviceNotAvailable, isrStub7},
		{DoubleFault, isrStub8},
		{InvalidTSS, isrStub10},
		{SegmentNotPresent, isrStub11},
		{StackSegmentFault, isrStub12},
		{GPFException, isrStub13},
		{PageFaultException, isrStub14},
		{FloatingPointException, isrStub16},
		{AlignmentCheck, isrStub17},
		{MachineCheck, isrStub18},
		{SIMDFloatingPointException, isrStub19},
		{TimerIRQ, isrStub32},
		{KeyboardIRQ, isrStub33},
	} {
		setGate(e.vector, e.stub, gateTypeInterrupt)
	}
	setGate(SyscallVector, isrStub128, gateTypeTrap)

	descriptor := idtr{
		limit: uint16(unsafe.Sizeof(idt)) - 1,
		base:  uint64(uintptr(unsafe.Pointer(&idt[0]))),
	}
	lidtFn(&descriptor)
}

// lidt loads the IDT register with the table described by d.
func lidt(d *idtr)
