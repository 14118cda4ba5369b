// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: buffer/utf16.go
// Summary: Conversions between UTF-8 byte offsets and UTF-16 columns.

package buffer

import (
	"strings"
	"unicode/utf8"
)

// utf16Units returns how many UTF-16 code units encode r.
func utf16Units(r rune) int {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2
	}
	return 1
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16Units(r)
	}
	return n
}

// UTF16ToByte converts a UTF-16 column into a byte offset within s.
// exact is false when col falls inside a surrogate pair (the returned offset
// is then the start of that rune) or beyond the end of s (len(s) is returned).
func UTF16ToByte(s string, col int) (offset int, exact bool) {
	units := 0
	for i, r := range s {
		if units == col {
			return i, true
		}
		units += utf16Units(r)
		if units > col {
			return i, false
		}
	}
	return len(s), units == col
}

// ByteToUTF16 converts a byte offset within s into a UTF-16 column.
func ByteToUTF16(s string, offset int) int {
	if offset > len(s) {
		offset = len(s)
	}
	return UTF16Len(s[:offset])
}

// SliceUTF16 returns s[from:to] where from and to are UTF-16 columns.
func SliceUTF16(s string, from, to int) string {
	a, _ := UTF16ToByte(s, from)
	b, _ := UTF16ToByte(s, to)
	if b < a {
		b = a
	}
	return s[a:b]
}

// SplitLines splits text on "\n", dropping a preceding "\r". The result always
// has at least one element.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
