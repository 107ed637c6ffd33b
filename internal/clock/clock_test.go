package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceAndSet(t *testing.T) {
	base := time.Unix(100, 0).UTC()
	f := NewFake(base)
	if got := f.Now(); !got.Equal(base) {
		t.Fatalf("expected %v, got %v", base, got)
	}
	if got := f.Advance(5 * time.Second); !got.Equal(base.Add(5 * time.Second)) {
		t.Fatalf("advance: got %v", got)
	}
	f.Set(base)
	if got := f.Now(); !got.Equal(base) {
		t.Fatalf("set: got %v", got)
	}
}

func TestRealIsUTC(t *testing.T) {
	if loc := Real().Now().Location(); loc != time.UTC {
		t.Fatalf("expected UTC, got %v", loc)
	}
}
