package sanitize

import "unicode/utf8"

// Summary truncates s to at most max bytes for listings, cutting back to the
// nearest word boundary when possible and never splitting a rune.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
		for i > 0 && !utf8.RuneStart(s[i]) {
			i--
		}
	}
	return s[:i] + "…"
}
