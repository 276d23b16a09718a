package util

import (
	"strings"
	"testing"
)

// TestParseShelves parses the default shelf layout.
func TestParseShelves(t *testing.T) {
	shelves, err := ParseShelves("hot=15:1,cold=15:1,frozen=15:1,overflow=20:2")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(shelves) != 4 {
		t.Fatalf("expected 4 shelves, got %d", len(shelves))
	}
	if shelves[3].Temperature != "overflow" || shelves[3].Capacity != 20 || shelves[3].DecayRateFactor != 2 {
		t.Errorf("overflow entry mangled: %+v", shelves[3])
	}
}

// TestParseShelvesErrors rejects malformed entries.
func TestParseShelvesErrors(t *testing.T) {
	for _, spec := range []string{
		"hot",
		"hot=15",
		"hot=x:1",
		"hot=15:y",
	} {
		if _, err := ParseShelves(spec); err == nil {
			t.Errorf("expected error for %q", spec)
		}
	}
}

// TestWrapString wraps long help texts at the configured width.
func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	wrapped := WrapString(text)
	for _, line := range strings.Split(wrapped, "\n") {
		if len(line) > Wrap {
			t.Errorf("line exceeds wrap width %d: %q", Wrap, line)
		}
	}
	if WrapString("short") != "short" {
		t.Error("short text should be unchanged")
	}
}
