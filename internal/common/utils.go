package common

import "strings"

// TrimOutput collapses surrounding whitespace and keeps at most max bytes of
// the tail of s, where process diagnostics usually end up.
func TrimOutput(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}

// FirstNonEmpty returns the first argument that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
