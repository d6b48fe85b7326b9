package irq

import "github.com/tas0dev/SwiftCore-sub000/kernel/cpu"

// outbFn is mocked by tests, which cannot execute the privileged OUT
// instruction outside ring 0.
var outbFn = cpu.OutB

const (
	picMasterCommand = 0x20
	picMasterData    = 0x21
	picSlaveCommand  = 0xA0
	picSlaveData     = 0xA1

	icw1Init = 0x10
	icw1ICW4 = 0x01
	icw4X86  = 0x01

	picEOI = 0x20

	// irqBase is the vector IRQ0 is remapped to. IRQ lines 0-7 land on
	// vectors 32-39 and 8-15 on 40-47, clear of the CPU exception vectors
	// 0-31 they collide with at their power-on default of 8-15.
	irqBase = 32
)

// remapPIC reprograms the master/slave 8259 PICs so hardware IRQs are
// delivered on vectors 32-47 instead of their power-on default.
func remapPIC() {
	outbFn(picMasterCommand, icw1Init|icw1ICW4)
	outbFn(picSlaveCommand, icw1Init|icw1ICW4)
	outbFn(picMasterData, irqBase)
	outbFn(picSlaveData, irqBase+8)
	outbFn(picMasterData, 4) // slave PIC lives on IRQ2
	outbFn(picSlaveData, 2)  // cascade identity
	outbFn(picMasterData, icw4X86)
	outbFn(picSlaveData, icw4X86)
	outbFn(picMasterData, 0)
	outbFn(picSlaveData, 0)
}

// sendEOI acknowledges the interrupt controller(s) for the given IRQ vector
// so further interrupts on that line (and, for IRQ8-15, any line at all) can
// be delivered.
func sendEOI(vector ExceptionNum) {
	if vector < irqBase {
		return
	}
	if vector >= irqBase+8 {
		outbFn(picSlaveCommand, picEOI)
	}
	outbFn(picMasterCommand, picEOI)
}
