package utils

import (
	"path/filepath"
	"testing"
)

func TestSessionLockExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile")

	first, err := NewSessionLock(dir)
	if err != nil {
		t.Fatalf("NewSessionLock: %v", err)
	}
	if err := first.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer first.Unlock()

	second, err := NewSessionLock(dir)
	if err != nil {
		t.Fatalf("NewSessionLock: %v", err)
	}
	if second.Path() != first.Path() {
		t.Fatalf("unexpected lock path\nwant: %s\ngot:  %s", first.Path(), second.Path())
	}
	locked, err := second.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if locked {
		t.Fatalf("second lock acquired while first is held")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	locked, err = second.TryLock()
	if err != nil {
		t.Fatalf("TryLock after unlock: %v", err)
	}
	if !locked {
		t.Fatalf("expected lock to be free after unlock")
	}
	_ = second.Unlock()
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"9", []string{"9"}},
		{" 9, 12 ,,20", []string{"9", "12", "20"}},
	}
	for _, tt := range tests {
		got := SplitList(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("SplitList(%q)\nwant: %#v\ngot:  %#v", tt.in, tt.want, got)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("SplitList(%q)\nwant: %#v\ngot:  %#v", tt.in, tt.want, got)
			}
		}
	}
}
