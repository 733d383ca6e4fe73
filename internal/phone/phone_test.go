package phone

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	n := NewE164Normalizer("us")
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already e164", "+15550000001", "+15550000001"},
		{"punctuation", "+1 (555) 000-0001", "+15550000001"},
		{"national with default region", "555 000 0001", "+15550000001"},
		{"surrounding space", "  +14155551234 ", "+14155551234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.in)
			if err != nil {
				t.Fatalf("normalize %q: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("normalize %q = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	n := NewE164Normalizer("US")
	for _, in := range []string{"", "   ", "not a phone", "+1"} {
		if _, err := n.Normalize(in); !errors.Is(err, ErrInvalidPhone) {
			t.Errorf("normalize %q: expected ErrInvalidPhone, got %v", in, err)
		}
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "****"},
		{"123", "***"},
		{"1234", "****"},
		{"+15550000001", "********0001"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
