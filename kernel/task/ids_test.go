package task

import "testing"

func TestNewThreadIDUnique(t *testing.T) {
	a := newThreadID()
	b := newThreadID()
	if a == b {
		t.Fatalf("expected distinct thread ids; got %d twice", a)
	}
}

func TestNewProcessIDUnique(t *testing.T) {
	a := newProcessID()
	b := newProcessID()
	if a == b {
		t.Fatalf("expected distinct process ids; got %d twice", a)
	}
}
