// Package bizno handles Korean business registration numbers.
package bizno

import "strings"

// Length is the number of digits of a business number.
const Length = 10

// Normalize strips everything but ASCII digits.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r >= '０' && r <= '９': // full width, seen in some exports
			return '0' + (r - '０')
		}
		return -1
	}, s)
}

// Valid reports whether s normalizes to exactly ten digits.
func Valid(s string) bool {
	return len(Normalize(s)) == Length
}

// Format renders a business number as 123-45-67890. Invalid input is returned unchanged.
func Format(s string) string {
	n := Normalize(s)
	if len(n) != Length {
		return s
	}
	return n[:3] + "-" + n[3:5] + "-" + n[5:]
}
