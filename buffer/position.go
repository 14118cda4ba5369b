// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: buffer/position.go
// Summary: Position and TextRange types for line/column buffer coordinates.
//
// Columns are measured in UTF-16 code units so that ranges produced by
// external collaborators (highlighters, search hosts) line up with the
// buffer without re-encoding.

package buffer

import "fmt"

// Position addresses a point between characters in the buffer.
type Position struct {
	Line   int
	Column int
}

// Compare orders positions lexicographically on (Line, Column).
// Returns -1, 0 or 1.
func (p Position) Compare(o Position) int {
	switch {
	case p.Line < o.Line:
		return -1
	case p.Line > o.Line:
		return 1
	case p.Column < o.Column:
		return -1
	case p.Column > o.Column:
		return 1
	}
	return 0
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool { return p.Compare(o) < 0 }

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// TextRange is a half-open range in the (line, column) plane.
// A range whose start sorts after its end is a reversed (anchor-last)
// selection and must be normalized before range arithmetic.
type TextRange struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// NewRange builds a range from two positions without normalizing it.
func NewRange(start, end Position) TextRange {
	return TextRange{
		StartLine:   start.Line,
		StartColumn: start.Column,
		EndLine:     end.Line,
		EndColumn:   end.Column,
	}
}

// Start returns the start position.
func (r TextRange) Start() Position { return Position{r.StartLine, r.StartColumn} }

// End returns the end position.
func (r TextRange) End() Position { return Position{r.EndLine, r.EndColumn} }

// IsReversed reports whether the start sorts after the end.
func (r TextRange) IsReversed() bool { return r.End().Before(r.Start()) }

// Normalize returns the range with start <= end.
func (r TextRange) Normalize() TextRange {
	if r.IsReversed() {
		return NewRange(r.End(), r.Start())
	}
	return r
}

// IsEmpty reports whether the range spans no characters.
func (r TextRange) IsEmpty() bool { return r.Start().Compare(r.End()) == 0 }

// LinesCount returns the number of line breaks spanned by the range.
func (r TextRange) LinesCount() int { return r.EndLine - r.StartLine }

// Contains reports whether p lies in [start, end).
func (r TextRange) Contains(p Position) bool {
	return r.Start().Compare(p) <= 0 && p.Before(r.End())
}

// Overlaps reports whether two normalized ranges share at least one character.
func (r TextRange) Overlaps(o TextRange) bool {
	return r.Start().Before(o.End()) && o.Start().Before(r.End())
}

func (r TextRange) String() string {
	return fmt.Sprintf("[%d:%d-%d:%d)", r.StartLine, r.StartColumn, r.EndLine, r.EndColumn)
}
