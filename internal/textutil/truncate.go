// Package textutil holds small string helpers shared across the
// exploration pipeline (content truncation at safe UTF-8 boundaries).
package textutil

import "unicode/utf8"

// Truncate returns s trimmed to at most max bytes, backing off to the
// nearest preceding rune boundary so the result is always valid UTF-8
// instead of splitting a multi-byte rune in half.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
