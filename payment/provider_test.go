package payment

import (
	"regexp"
	"testing"
)

func TestNewTxRef_Pattern(t *testing.T) {
	pattern := regexp.MustCompile(`^NEUROLAB-\d+-[0-9a-f]{8}$`)
	ref := NewTxRef()
	if !pattern.MatchString(ref) {
		t.Errorf("Reference %q does not match expected pattern", ref)
	}
}

func TestNewTxRef_NeverRepeats(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := NewTxRef()
		if seen[ref] {
			t.Fatalf("Reference %q generated twice", ref)
		}
		seen[ref] = true
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ada@Example.com", "ada@example.com"},
		{"  ada@example.com  ", "ada@example.com"},
		{"ada@example.com", "ada@example.com"},
	}
	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
