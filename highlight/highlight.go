// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// Package highlight tokenizes buffer lines for syntax highlighting.
// The renderer asks a Highlighter for tokens of a line range and falls back
// to Plain when highlighting fails.
package highlight

// Token classifies a run of a single line. Offset and Length are UTF-16
// columns, matching buffer coordinates.
type Token struct {
	Offset int
	Length int
	Type   string
}

// End returns the column just past the token.
func (t Token) End() int { return t.Offset + t.Length }

// LineSource gives read access to buffer lines.
type LineSource interface {
	LineCount() int
	Line(i int) (string, error)
}

// Highlighter produces tokens for lines [from, to) of src. The result has
// one entry per line; tokens of a line are sorted and non-overlapping.
// Columns not covered by a token are plain text.
type Highlighter interface {
	HighlightLines(src LineSource, from, to int) ([][]Token, error)
}

// Plain is the no-op highlighter: every line is plain text.
type Plain struct{}

// HighlightLines returns no tokens for every line.
func (Plain) HighlightLines(_ LineSource, from, to int) ([][]Token, error) {
	if to < from {
		to = from
	}
	return make([][]Token, to-from), nil
}
