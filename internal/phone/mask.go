package phone

import "strings"

const revealedDigits = 4

// Mask hides everything but the last four characters.
func Mask(phone string) string {
	if phone == "" {
		return "****"
	}
	if len(phone) <= revealedDigits {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-revealedDigits) + phone[len(phone)-revealedDigits:]
}
