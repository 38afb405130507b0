package models

import "strings"

// Normalize lower-cases and trims s, then drops every character outside
// [a-z0-9|]
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '|' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Identity builds the matching key for a title/keyword pair
func Identity(title, keyword string) string {
	return Normalize(title) + "|" + Normalize(keyword)
}
