package common

import "unicode/utf8"

// TruncateBytes caps s at limit bytes without splitting a multi-byte
// rune. Returns the possibly shortened string and whether truncation
// happened.
func TruncateBytes(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
