package frequency

import (
	"testing"
	"time"
)

func TestFromHz(t *testing.T) {
	if _, err := FromHz(0); err == nil {
		t.Error("expected error for 0 Hz")
	}
	if _, err := FromHz(-1); err == nil {
		t.Error("expected error for negative Hz")
	}
	f, err := FromHz(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Hz() != 10 {
		t.Errorf("got %g, want 10", f.Hz())
	}
	if f.Interval() != 100*time.Millisecond {
		t.Errorf("got %v, want 100ms", f.Interval())
	}
}

func TestMustFromHzPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustFromHz(0)
}
