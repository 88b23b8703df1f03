package scan

import "strings"

// Mask redacts a term for display and audit storage: first and last rune
// preserved, everything between replaced by asterisks. Terms of two runes
// or fewer are fully redacted.
func Mask(s string) string {
	runes := []rune(s)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}
