package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomID(t *testing.T) {
	id := GenerateRandomID("evt_", 32)
	if !strings.HasPrefix(id, "evt_") {
		t.Errorf("Expected prefix 'evt_', got %q", id)
	}
	if len(id) != len("evt_")+32 {
		t.Errorf("Expected length %d, got %d", len("evt_")+32, len(id))
	}
	for _, c := range id[len("evt_"):] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("Non-hex character %q in ID %q", c, id)
		}
	}
}

func TestGenerateRandomHexZeroLength(t *testing.T) {
	if s := GenerateRandomHex(0); s != "" {
		t.Errorf("Expected empty string for zero length, got %q", s)
	}
	if s := GenerateRandomHex(-5); s != "" {
		t.Errorf("Expected empty string for negative length, got %q", s)
	}
}

func TestGenerateIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateEventID()
		if seen[id] {
			t.Fatalf("Duplicate ID generated: %q", id)
		}
		seen[id] = true
	}
}
