// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: buffer/line_buffer.go
// Summary: LineBuffer owns the authoritative sequence of text lines.
//
// Architecture:
//
//	LineBuffer stores one string per line. Line lookup is O(1); an edit
//	costs O(edit size + lines shifted) because only the replaced slice of
//	lines is rebuilt and the tail is moved once by slices.Replace.
//
//	Every mutation is announced to registered listeners synchronously,
//	before the mutating call returns, with the (oldRange, newRange) pair
//	describing the edit. Listeners therefore always observe a buffer that
//	already reflects the edit, and no listener sees a partial edit.

package buffer

import (
	"fmt"
	"slices"
	"strings"
)

// Change describes a single buffer mutation.
type Change struct {
	// OldRange is the replaced range in pre-edit coordinates.
	OldRange TextRange
	// NewRange is the range spanned by the inserted text in post-edit coordinates.
	NewRange TextRange
	// Reset is set when the whole document was replaced (load or reformat).
	// Derived structures should rebuild instead of patching.
	Reset bool
}

// LinesDelta returns the change in line count caused by the edit.
func (c Change) LinesDelta() int {
	return c.NewRange.LinesCount() - c.OldRange.LinesCount()
}

// Listener receives change notifications.
type Listener func(Change)

// LineBuffer is a line-indexed text document.
// It is not safe for concurrent use; all access happens on the UI loop.
type LineBuffer struct {
	lines     []string
	listeners []*listenerEntry
	version   int64
}

type listenerEntry struct {
	fn Listener
}

// New creates a buffer holding text. An empty string yields an empty
// document with zero lines.
func New(text string) *LineBuffer {
	b := &LineBuffer{}
	if text != "" {
		b.lines = SplitLines(text)
	}
	return b
}

// LineCount returns the number of lines.
func (b *LineBuffer) LineCount() int {
	return len(b.lines)
}

// Version is incremented on every mutation.
func (b *LineBuffer) Version() int64 {
	return b.version
}

// Line returns the text of line i.
func (b *LineBuffer) Line(i int) (string, error) {
	if i < 0 || i >= len(b.lines) {
		return "", fmt.Errorf("line %d not in [0, %d): %w", i, len(b.lines), ErrOutOfRange)
	}
	return b.lines[i], nil
}

// LineLength returns the length of line i in UTF-16 code units.
func (b *LineBuffer) LineLength(i int) (int, error) {
	line, err := b.Line(i)
	if err != nil {
		return 0, err
	}
	return UTF16Len(line), nil
}

// Lines returns a copy of lines [from, to).
func (b *LineBuffer) Lines(from, to int) ([]string, error) {
	if from < 0 || to > len(b.lines) || from > to {
		return nil, fmt.Errorf("lines [%d, %d) not in [0, %d): %w", from, to, len(b.lines), ErrOutOfRange)
	}
	return slices.Clone(b.lines[from:to]), nil
}

// Text returns the whole document joined with "\n".
func (b *LineBuffer) Text() string {
	return strings.Join(b.lines, "\n")
}

// Range returns the range covering the whole document.
func (b *LineBuffer) Range() TextRange {
	if len(b.lines) == 0 {
		return TextRange{}
	}
	last := len(b.lines) - 1
	return TextRange{EndLine: last, EndColumn: UTF16Len(b.lines[last])}
}

// AddListener registers fn for change notifications. Listeners are called in
// registration order. The returned function unregisters fn.
func (b *LineBuffer) AddListener(fn Listener) (remove func()) {
	entry := &listenerEntry{fn: fn}
	b.listeners = append(b.listeners, entry)
	return func() {
		b.listeners = slices.DeleteFunc(b.listeners, func(e *listenerEntry) bool { return e == entry })
	}
}

// SetText replaces the whole document and notifies listeners with Reset set.
func (b *LineBuffer) SetText(text string) {
	oldRange := b.Range()
	if text == "" {
		b.lines = nil
	} else {
		b.lines = SplitLines(text)
	}
	b.version++
	b.notify(Change{OldRange: oldRange, NewRange: b.Range(), Reset: true})
}

// ReplaceRange replaces the text in r with text and returns the range now
// spanned by the inserted text. A reversed range is normalized first.
// Positions are validated, never clamped.
func (b *LineBuffer) ReplaceRange(r TextRange, text string) (TextRange, error) {
	r = r.Normalize()

	reset := false
	if len(b.lines) == 0 {
		if r != (TextRange{}) {
			return TextRange{}, fmt.Errorf("range %s in empty document: %w", r, ErrOutOfRange)
		}
		reset = true
	}

	var startByte, endByte int
	if !reset {
		var err error
		if startByte, err = b.byteOffset(r.StartLine, r.StartColumn); err != nil {
			return TextRange{}, err
		}
		if endByte, err = b.byteOffset(r.EndLine, r.EndColumn); err != nil {
			return TextRange{}, err
		}
	} else {
		b.lines = []string{""}
	}

	prefix := b.lines[r.StartLine][:startByte]
	suffix := b.lines[r.EndLine][endByte:]

	inserted := SplitLines(text)
	last := len(inserted) - 1

	newRange := TextRange{
		StartLine:   r.StartLine,
		StartColumn: r.StartColumn,
		EndLine:     r.StartLine + last,
	}
	if last == 0 {
		newRange.EndColumn = r.StartColumn + UTF16Len(inserted[0])
	} else {
		newRange.EndColumn = UTF16Len(inserted[last])
	}

	inserted[0] = prefix + inserted[0]
	inserted[last] += suffix
	b.lines = slices.Replace(b.lines, r.StartLine, r.EndLine+1, inserted...)
	b.version++

	b.notify(Change{OldRange: r, NewRange: newRange, Reset: reset})
	return newRange, nil
}

// byteOffset validates (line, col) and converts col to a byte offset.
func (b *LineBuffer) byteOffset(line, col int) (int, error) {
	text, err := b.Line(line)
	if err != nil {
		return 0, err
	}
	if col < 0 {
		return 0, fmt.Errorf("column %d on line %d: %w", col, line, ErrOutOfRange)
	}
	offset, exact := UTF16ToByte(text, col)
	if !exact {
		return 0, fmt.Errorf("column %d on line %d (length %d): %w", col, line, UTF16Len(text), ErrOutOfRange)
	}
	return offset, nil
}

func (b *LineBuffer) notify(c Change) {
	// Snapshot so listeners may unregister themselves while being notified.
	for _, l := range slices.Clone(b.listeners) {
		l.fn(c)
	}
}
