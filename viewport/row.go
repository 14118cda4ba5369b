// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: viewport/row.go
// Summary: Paintable rows, paint spans and the row reuse pool.

package viewport

import (
	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/chunks"
)

// Span is a run of a row's text painted with one style.
type Span struct {
	Text string
	// Column is the UTF-16 column of the span's first character.
	Column int
	// Length is the span length in UTF-16 code units.
	Length int
	// Class is the token class, "" for plain text.
	Class string
	// Overlay is the overlay class painted on top, "" for none.
	Overlay string
	// Atomic spans are painted as one unit; positions inside them snap to
	// the span start.
	Atomic bool
}

// Row is the materialized form of one line of an expanded chunk.
// Rows do not store their line number; it is derived from the owning
// chunk, so chunk shifts never touch rows.
type Row struct {
	chunk   *chunks.Chunk
	offset  int
	text    string
	spans   []Span
	height  int
	painted bool
}

// Line returns the buffer line shown by the row.
func (r *Row) Line() int { return r.chunk.StartLine() + r.offset }

// Chunk returns the owning chunk.
func (r *Row) Chunk() *chunks.Chunk { return r.chunk }

// Text returns the line text.
func (r *Row) Text() string { return r.text }

// Spans returns the paint spans. The slice is owned by the row.
func (r *Row) Spans() []Span { return r.spans }

// Height returns the measured height.
func (r *Row) Height() int { return r.height }

// Painted reports whether highlighting has been applied.
func (r *Row) Painted() bool { return r.painted }

// setPlain resets the row to a single unstyled span.
func (r *Row) setPlain(text string) {
	r.text = text
	r.spans = append(r.spans[:0], Span{Text: text, Length: buffer.UTF16Len(text)})
	r.painted = false
}

// locate returns the span index and intra-span offset of col. A column
// strictly inside an atomic span or a surrogate pair snaps left.
func (r *Row) locate(col int) (span, offset int) {
	for i, s := range r.spans {
		if col >= s.Column+s.Length && i < len(r.spans)-1 {
			continue
		}
		off := col - s.Column
		switch {
		case s.Atomic && off > 0 && off < s.Length:
			off = 0
		case off > 0 && off < s.Length:
			if b, exact := buffer.UTF16ToByte(s.Text, off); !exact {
				off = buffer.ByteToUTF16(s.Text, b)
			}
		}
		return i, off
	}
	return 0, 0
}

// rowPool recycles rows released by collapsed chunks.
type rowPool struct {
	free []*Row
}

func (p *rowPool) get(c *chunks.Chunk, offset int) *Row {
	var r *Row
	if n := len(p.free); n > 0 {
		r = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		r = &Row{}
	}
	r.chunk = c
	r.offset = offset
	r.height = 0
	r.painted = false
	return r
}

func (p *rowPool) put(r *Row) {
	r.chunk = nil
	r.text = ""
	r.spans = r.spans[:0]
	p.free = append(p.free, r)
}

// size returns the number of pooled rows.
func (p *rowPool) size() int { return len(p.free) }
