package gdt

import "testing"

func TestDescriptorDPL(t *testing.T) {
	if kernelCodeDescriptor()&dpl3 != 0 {
		t.Error("expected kernel code descriptor to have DPL 0")
	}
	if userCodeDescriptor()&dpl3 == 0 {
		t.Error("expected user code descriptor to have DPL 3 set")
	}
	if userDataDescriptor()&dpl3 == 0 {
		t.Error("expected user data descriptor to have DPL 3 set")
	}
}

func TestSelectorLayoutMatchesSysret(t *testing.T) {
	// SYSRET requires user code = user data + 8 once the RPL bits are
	// masked off.
	if (UserCodeSelector&^3)-(UserDataSelector&^3) != 8 {
		t.Errorf("expected user code selector to be 8 more than user data selector; got %#x/%#x", UserCodeSelector, UserDataSelector)
	}
	if (KernelDataSelector)-(KernelCodeSelector) != 8 {
		t.Errorf("expected kernel data selector to be 8 more than kernel code selector; got %#x/%#x", KernelDataSelector, KernelCodeSelector)
	}
}

func TestNewTSSDescriptor(t *testing.T) {
	d := newTSSDescriptor(0x1234567890, 0x67)

	if d.low&0xFFFF != 0x67 {
		t.Errorf("expected low limit bits to be 0x67; got %#x", d.low&0xFFFF)
	}
	if d.low&(1<<47) == 0 {
		t.Error("expected present bit to be set")
	}
}

func TestInit(t *testing.T) {
	defer func() {
		lgdtFn = lgdt
		ltrFn = ltr
		reloadSegmentsFn = reloadSegments
	}()

	var (
		lgdtCalled, ltrCalled, reloadCalled bool
		gotLTRSelector                      uint16
		gotCode, gotData                    uint16
	)
	lgdtFn = func(d *gdtr) {
		lgdtCalled = true
		if d.limit == 0 {
			t.Error("expected a non-zero GDT limit")
		}
	}
	ltrFn = func(selector uint16) {
		ltrCalled = true
		gotLTRSelector = selector
	}
	reloadSegmentsFn = func(code, data uint16) {
		reloadCalled = true
		gotCode, gotData = code, data
	}

	Init()

	if !lgdtCalled || !ltrCalled || !reloadCalled {
		t.Fatal("expected Init to load the GDT/TSS and reload segment registers")
	}
	if gotLTRSelector != TSSSelector {
		t.Errorf("expected TSS selector %#x; got %#x", TSSSelector, gotLTRSelector)
	}
	if gotCode != KernelCodeSelector || gotData != KernelDataSelector {
		t.Errorf("expected kernel code/data selectors; got %#x/%#x", gotCode, gotData)
	}
	if theTSS.rsp[0] == 0 {
		t.Error("expected TSS.RSP0 to be set to the boot kernel stack")
	}
}

func TestSetKernelStack(t *testing.T) {
	defer func() { theTSS.rsp[0] = 0 }()

	SetKernelStack(0xdeadbeef)
	if theTSS.rsp[0] != 0xdeadbeef {
		t.Errorf("expected RSP0 to be updated; got %#x", theTSS.rsp[0])
	}
}
