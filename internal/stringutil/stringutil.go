// Package stringutil provides common string manipulation utilities.
package stringutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Truncate shortens a string to maxLen runes with ellipsis.
// If maxLen < 4, returns the string unchanged (no room for ellipsis).
func Truncate(s string, maxLen int) string {
	if maxLen < 4 {
		return s
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts s to a lowercase key of letters, digits and hyphens, at
// most maxLen bytes long. A maxLen <= 0 means no limit.
func Slugify(s string, maxLen int) string {
	s = strings.ToLower(s)
	s = slugPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if maxLen > 0 && len(s) > maxLen {
		s = strings.TrimSuffix(s[:maxLen], "-")
	}
	return s
}

// SplitList splits a comma separated list, trimming blanks and dropping
// empty entries.
func SplitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
