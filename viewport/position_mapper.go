// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: viewport/position_mapper.go
// Summary: Converts between buffer positions and render coordinates.
//
// Architecture:
//
//	A render coordinate names a chunk, a row inside it, a paint span inside
//	the row and a UTF-16 offset inside the span. Resolving a position in a
//	collapsed chunk first isolates the line and expands it, so the returned
//	coordinate always points at a live row.
//
//	Placeholder coordinates address a collapsed chunk without materializing
//	it: the offset counts UTF-16 units from the chunk start with each line
//	break counting as one.

package viewport

import (
	"fmt"

	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/chunks"
)

// RenderPosition is a location in the rendered document.
type RenderPosition struct {
	Chunk *chunks.Chunk
	// Row is the row index within the chunk, or -1 for a placeholder
	// coordinate.
	Row int
	// Span is the paint span index within the row.
	Span int
	// Offset is the UTF-16 offset within the span, or within the chunk
	// text for a placeholder coordinate.
	Offset int
}

// IsPlaceholder reports whether p addresses unmaterialized chunk text.
func (p RenderPosition) IsPlaceholder() bool { return p.Row < 0 }

// PositionMapper converts positions for one renderer.
type PositionMapper struct {
	r *Renderer
}

// NewPositionMapper creates a mapper over r.
func NewPositionMapper(r *Renderer) *PositionMapper {
	return &PositionMapper{r: r}
}

// ToRenderCoordinate resolves (line, col), materializing the line's chunk
// when it is collapsed. A column strictly inside an atomic span or a
// surrogate pair resolves to the start of that unit. A column at a span
// boundary resolves to the start of the following span.
func (m *PositionMapper) ToRenderCoordinate(line, col int) (RenderPosition, error) {
	r := m.r
	n, err := r.buf.LineLength(line)
	if err != nil {
		return RenderPosition{}, err
	}
	if col < 0 || col > n {
		return RenderPosition{}, fmt.Errorf("column %d on line %d (length %d): %w", col, line, n, buffer.ErrOutOfRange)
	}
	c, err := r.index.ChunkForLine(line)
	if err != nil {
		return RenderPosition{}, err
	}
	if !c.Expanded() {
		if c, err = r.index.SplitAt(line); err != nil {
			return RenderPosition{}, err
		}
		if !c.Expanded() {
			r.expandChunk(c)
		}
	}
	rows, ok := r.rows[c]
	if !ok {
		return RenderPosition{}, fmt.Errorf("chunk %s not materialized: %w", c, buffer.ErrInvariantViolation)
	}
	rowIdx := line - c.StartLine()
	span, off := rows[rowIdx].locate(col)
	return RenderPosition{Chunk: c, Row: rowIdx, Span: span, Offset: off}, nil
}

// PlaceholderCoordinate resolves (line, col) without materializing rows.
func (m *PositionMapper) PlaceholderCoordinate(line, col int) (RenderPosition, error) {
	r := m.r
	n, err := r.buf.LineLength(line)
	if err != nil {
		return RenderPosition{}, err
	}
	if col < 0 || col > n {
		return RenderPosition{}, fmt.Errorf("column %d on line %d (length %d): %w", col, line, n, buffer.ErrOutOfRange)
	}
	c, err := r.index.ChunkForLine(line)
	if err != nil {
		return RenderPosition{}, err
	}
	off := col
	for l := c.StartLine(); l < line; l++ {
		ll, err := r.buf.LineLength(l)
		if err != nil {
			return RenderPosition{}, err
		}
		off += ll + 1
	}
	return RenderPosition{Chunk: c, Row: -1, Span: -1, Offset: off}, nil
}

// FromRenderCoordinate converts a render coordinate back to a buffer
// position.
func (m *PositionMapper) FromRenderCoordinate(p RenderPosition) (buffer.Position, error) {
	r := m.r
	if p.Chunk == nil || r.index.IndexOf(p.Chunk) < 0 {
		return buffer.Position{}, fmt.Errorf("render position references a chunk no longer indexed: %w", buffer.ErrOutOfRange)
	}
	if p.IsPlaceholder() {
		return m.fromPlaceholder(p)
	}
	rows, ok := r.rows[p.Chunk]
	if !ok || p.Row >= len(rows) {
		return buffer.Position{}, fmt.Errorf("row %d of chunk %s not materialized: %w", p.Row, p.Chunk, buffer.ErrOutOfRange)
	}
	row := rows[p.Row]
	if p.Span < 0 || p.Span >= len(row.spans) {
		return buffer.Position{}, fmt.Errorf("span %d of line %d: %w", p.Span, row.Line(), buffer.ErrOutOfRange)
	}
	if p.Offset < 0 || p.Offset > row.spans[p.Span].Length {
		return buffer.Position{}, fmt.Errorf("offset %d in span %d of line %d: %w", p.Offset, p.Span, row.Line(), buffer.ErrOutOfRange)
	}
	col := p.Offset
	for _, s := range row.spans[:p.Span] {
		col += s.Length
	}
	return buffer.Position{Line: row.Line(), Column: col}, nil
}

func (m *PositionMapper) fromPlaceholder(p RenderPosition) (buffer.Position, error) {
	off := p.Offset
	if off < 0 {
		return buffer.Position{}, fmt.Errorf("placeholder offset %d: %w", off, buffer.ErrOutOfRange)
	}
	for line := p.Chunk.StartLine(); line < p.Chunk.EndLine(); line++ {
		n, err := m.r.buf.LineLength(line)
		if err != nil {
			return buffer.Position{}, err
		}
		if off <= n {
			return buffer.Position{Line: line, Column: off}, nil
		}
		off -= n + 1
	}
	return buffer.Position{}, fmt.Errorf("placeholder offset %d beyond chunk %s: %w", p.Offset, p.Chunk, buffer.ErrOutOfRange)
}
