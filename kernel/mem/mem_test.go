package mem

import "testing"

func TestSizeToPages(t *testing.T) {
	specs := []struct {
		size     Size
		expPages uint64
	}{
		{1023 * Kb, 256},
		{1024 * Kb, 256},
		{1 * Byte, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
	}

	for specIndex, spec := range specs {
		if got := spec.size.Pages(); got != spec.expPages {
			t.Errorf("[spec %d] expected Pages(%d bytes) to equal %d; got %d", specIndex, spec.size, spec.expPages, got)
		}
	}
}

func TestSizeAlignUp(t *testing.T) {
	specs := []struct {
		size Size
		exp  Size
	}{
		{0, 0},
		{1, PageSize},
		{PageSize, PageSize},
		{PageSize + 1, 2 * PageSize},
	}

	for specIndex, spec := range specs {
		if got := spec.size.AlignUp(); got != spec.exp {
			t.Errorf("[spec %d] expected AlignUp(%d) to equal %d; got %d", specIndex, spec.size, spec.exp, got)
		}
	}
}
