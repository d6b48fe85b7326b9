package diag

import "testing"

func TestDecodeOneNop(t *testing.T) {
	// 0x90 is NOP on every x86 mode.
	text, length, ok := decodeOne([]byte{0x90}, 0x1000)
	if !ok {
		t.Fatal("expected NOP to decode")
	}
	if length != 1 {
		t.Fatalf("NOP length = %d, want 1", length)
	}
	if text == "" {
		t.Fatal("expected non-empty disassembly text")
	}
}

func TestDecodeOneXorEaxEax(t *testing.T) {
	// 31 C0 is "xor eax, eax".
	text, length, ok := decodeOne([]byte{0x31, 0xC0}, 0x2000)
	if !ok {
		t.Fatal("expected xor eax, eax to decode")
	}
	if length != 2 {
		t.Fatalf("xor eax,eax length = %d, want 2", length)
	}
	if text == "" {
		t.Fatal("expected non-empty disassembly text")
	}
}

func TestDecodeOneInvalidBytes(t *testing.T) {
	// 0F is a two-byte opcode escape with no valid continuation byte
	// supplied; a truncated buffer should fail to decode rather than panic.
	_, length, ok := decodeOne([]byte{0x0F}, 0x3000)
	if ok {
		t.Fatal("expected a truncated opcode to fail to decode")
	}
	if length != 1 {
		t.Fatalf("fallback length = %d, want 1", length)
	}
}

func TestDisassembleAtNilRIP(t *testing.T) {
	if got := DisassembleAt(0); got != "<no instruction: nil rip>" {
		t.Fatalf("DisassembleAt(0) = %q", got)
	}
}

func TestDumpAroundZeroCount(t *testing.T) {
	if got := DumpAround(0x1000, 0); got != nil {
		t.Fatalf("DumpAround(count=0) = %v, want nil", got)
	}
}
