package util

import (
	"strings"
	"unicode"
)

// SanitizeName trims a display name and drops control characters.
// HTML escaping is left to whatever renders the name.
func SanitizeName(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// ContainsSuspicious reports script-like fragments in free text input.
func ContainsSuspicious(s string) bool {
	lower := strings.ToLower(s)
	for _, c := range []string{"<", ">", "javascript:", "onerror=", "onload="} {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}
