package idgen

import (
	"strings"
	"testing"
)

func TestNanoID_Length(t *testing.T) {
	for _, length := range []int{8, 12, 24} {
		id := NanoID(length)()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
	}
}

func TestNanoID_Alphabet(t *testing.T) {
	id := NanoID(100)()
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("NanoID: unexpected character %q in %q", c, id)
		}
	}
}

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 || len(strings.Split(id, "-")) != 5 {
		t.Fatalf("UUIDv7: bad format %q", id)
	}
	if _, err := Parse(id); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("prj_", NanoID(8))()
	if !strings.HasPrefix(id, "prj_") || len(id) != 12 {
		t.Fatalf("Prefixed: got %q", id)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("Parse: expected error for invalid UUID")
	}
}

func TestSequence_Monotonic(t *testing.T) {
	s := NewSequence("n")
	if got := s.Next(); got != "n1" {
		t.Fatalf("first: got %q, want n1", got)
	}
	if got := s.Next(); got != "n2" {
		t.Fatalf("second: got %q, want n2", got)
	}
}

func TestSequence_Observe(t *testing.T) {
	s := NewSequence("n")
	s.Observe("n41")
	s.Observe("n7")     // lower, ignored
	s.Observe("x900")   // foreign prefix, ignored
	s.Observe("nabc")   // not numeric, ignored
	if got := s.Next(); got != "n42" {
		t.Fatalf("after observe: got %q, want n42", got)
	}
}

func TestSequence_Generator(t *testing.T) {
	gen := NewSequence("el-").Generator()
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate %q", id)
		}
		seen[id] = true
	}
}
