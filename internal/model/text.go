package model

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`[\s\p{Zs}]+`)

// SafeText collapses whitespace runs into single spaces and trims the result.
func SafeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Truncate keeps the first n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// RuneLen returns the number of runes in s.
func RuneLen(s string) int {
	return len([]rune(s))
}
