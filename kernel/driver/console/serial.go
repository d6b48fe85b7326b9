// Package console provides the built-in hal.ConsoleDevice backends the
// kernel can attach without any external collaborator: a 16550 UART serial
// port. A richer VGA or framebuffer-backed console, if one is attached, is
// an external collaborator per spec.md §1.
package console

import "github.com/tas0dev/SwiftCore-sub000/kernel/cpu"

// COM1 is the conventional I/O port base for the first serial line.
const COM1 = 0x3F8

const (
	regData        = 0
	regIntEnable    = 1
	regBaudLow      = 0
	regBaudHigh     = 1
	regFIFOCtl      = 2
	regLineCtl      = 3
	regModemCtl     = 4
	regLineStatus   = 5
	lineStatusEmpty = 1 << 5
)

// Serial implements hal.ConsoleDevice over a 16550-compatible UART. Writes
// busy-wait for the transmit holding register to empty; there is no
// interrupt-driven path since kernel logging must work before the IDT (and
// thus IRQs) are installed.
type Serial struct {
	port uint16
}

// Init programs the UART at the given I/O port base for 38400 8N1 with FIFOs
// enabled, ready for polled byte output.
func (s *Serial) Init(port uint16) {
	s.port = port

	outbFn(port+regIntEnable, 0x00) // disable interrupts
	outbFn(port+regLineCtl, 0x80)   // enable DLAB to set the baud divisor
	outbFn(port+regBaudLow, 0x03)   // divisor 3 => 38400 baud
	outbFn(port+regBaudHigh, 0x00)
	outbFn(port+regLineCtl, 0x03)  // 8 bits, no parity, one stop bit, DLAB off
	outbFn(port+regFIFOCtl, 0xC7)  // enable FIFO, clear it, 14-byte threshold
	outbFn(port+regModemCtl, 0x0B) // IRQs disabled, RTS/DSR set
}

// WriteByte transmits ch, waiting for the holding register to be empty.
func (s *Serial) WriteByte(ch byte) {
	if ch == '\n' {
		s.WriteByte('\r')
	}
	for inbFn(s.port+regLineStatus)&lineStatusEmpty == 0 {
	}
	outbFn(s.port+regData, ch)
}

// Write transmits every byte of p and always returns len(p), nil: a serial
// line has no write failure mode this driver can observe.
func (s *Serial) Write(p []byte) (int, error) {
	for _, ch := range p {
		s.WriteByte(ch)
	}
	return len(p), nil
}

// Clear is a no-op: a serial terminal has no addressable screen to clear.
func (s *Serial) Clear() {}

var (
	// inbFn and outbFn are mocked by tests, which cannot execute the
	// privileged IN/OUT instructions outside ring 0.
	inbFn  = cpu.InB
	outbFn = cpu.OutB
)
