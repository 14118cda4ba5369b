// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: viewport/decorations.go
// Summary: Per-line decorations pinned to singleton chunks.
//
// Architecture:
//
//	A decoration (breakpoint, execution line marker, gutter annotation) is
//	anchored at a (line, column) position. The decorated line is isolated
//	into a singleton chunk so decorated chunks are never merged away.
//
//	On edit, decorations on lines wholly removed by the edit are deleted.
//	A decoration on the last line of the edit follows the text after the
//	edit's end; one on the first line of an edit that starts mid-line stays
//	put. Decorations below the edit move by the line delta. After the
//	chunk index is patched every decoration is re-pinned.

package viewport

import (
	"fmt"
	"maps"
	"slices"

	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/chunks"
)

// Decoration is a payload anchored to a buffer position.
type Decoration struct {
	ID      chunks.DecorationID
	Line    int
	Column  int
	Payload any
}

type decorationStore struct {
	byID   map[chunks.DecorationID]*Decoration
	byLine map[int][]*Decoration
	next   chunks.DecorationID
}

func newDecorationStore() decorationStore {
	return decorationStore{
		byID:   make(map[chunks.DecorationID]*Decoration),
		byLine: make(map[int][]*Decoration),
	}
}

func (s *decorationStore) add(line, col int, payload any) *Decoration {
	s.next++
	d := &Decoration{ID: s.next, Line: line, Column: col, Payload: payload}
	s.byID[d.ID] = d
	s.insertLine(d)
	return d
}

func (s *decorationStore) insertLine(d *Decoration) {
	list := s.byLine[d.Line]
	i, _ := slices.BinarySearchFunc(list, d, func(a, b *Decoration) int {
		if a.Column != b.Column {
			return a.Column - b.Column
		}
		return int(a.ID - b.ID)
	})
	s.byLine[d.Line] = slices.Insert(list, i, d)
}

func (s *decorationStore) remove(id chunks.DecorationID) (*Decoration, bool) {
	d, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	delete(s.byID, id)
	list := slices.DeleteFunc(s.byLine[d.Line], func(o *Decoration) bool { return o == d })
	if len(list) == 0 {
		delete(s.byLine, d.Line)
	} else {
		s.byLine[d.Line] = list
	}
	return d, true
}

func (s *decorationStore) clear() {
	clear(s.byID)
	clear(s.byLine)
}

// applyEdit translates decorations across ch and unpins the ones whose
// chunk the edit may replace.
func (s *decorationStore) applyEdit(ch buffer.Change, index *chunks.Index) {
	if len(s.byID) == 0 {
		return
	}
	old := ch.OldRange
	delta := ch.LinesDelta()
	for _, id := range slices.Sorted(maps.Keys(s.byID)) {
		d := s.byID[id]
		switch {
		case d.Line < old.StartLine:
			continue
		case d.Line > old.EndLine:
			d.Line += delta
			continue
		}
		if c, err := index.ChunkForLine(d.Line); err == nil {
			c.RemoveDecoration(d.ID)
		}
		switch {
		case d.Line == old.StartLine && old.StartColumn > 0 && d.Column <= old.StartColumn:
			// Anchored before the edit on its first line.
		case d.Line < old.EndLine && (d.Line > old.StartLine || old.StartColumn == 0):
			delete(s.byID, id)
		case d.Line == old.EndLine:
			p := buffer.ShiftPosition(buffer.Position{Line: d.Line, Column: max(d.Column, old.EndColumn)}, ch)
			d.Line, d.Column = p.Line, p.Column
		default:
			// First line of a mid-line edit spanning several lines, anchored
			// inside the removed text: clamp to the edit start.
			d.Column = old.StartColumn
		}
	}
	clear(s.byLine)
	for _, d := range s.byID {
		s.insertLine(d)
	}
}

// AddDecoration anchors payload at (line, col) and isolates the line into
// a singleton chunk.
func (r *Renderer) AddDecoration(line, col int, payload any) (chunks.DecorationID, error) {
	n, err := r.buf.LineLength(line)
	if err != nil {
		return 0, err
	}
	if col < 0 || col > n {
		return 0, fmt.Errorf("column %d on line %d (length %d): %w", col, line, n, buffer.ErrOutOfRange)
	}
	c, err := r.index.SplitAt(line)
	if err != nil {
		return 0, err
	}
	d := r.decorations.add(line, col, payload)
	if err := c.AddDecoration(d.ID); err != nil {
		r.decorations.remove(d.ID)
		return 0, err
	}
	r.offsets.invalidate()
	if row := r.RowForLine(line); row != nil {
		r.host.PaintRow(row)
	}
	return d.ID, nil
}

// RemoveDecoration removes a decoration. Returns false for unknown ids.
func (r *Renderer) RemoveDecoration(id chunks.DecorationID) bool {
	d, ok := r.decorations.remove(id)
	if !ok {
		return false
	}
	if c, err := r.index.ChunkForLine(d.Line); err == nil {
		c.RemoveDecoration(id)
	}
	if row := r.RowForLine(d.Line); row != nil {
		r.host.PaintRow(row)
	}
	return true
}

// DecorationsForLine returns the decorations on line ordered by column.
func (r *Renderer) DecorationsForLine(line int) []Decoration {
	list := r.decorations.byLine[line]
	out := make([]Decoration, len(list))
	for i, d := range list {
		out[i] = *d
	}
	return out
}

// Decoration returns the decoration with id.
func (r *Renderer) Decoration(id chunks.DecorationID) (Decoration, bool) {
	d, ok := r.decorations.byID[id]
	if !ok {
		return Decoration{}, false
	}
	return *d, true
}

// DecorationCount returns the number of live decorations.
func (r *Renderer) DecorationCount() int { return len(r.decorations.byID) }

func (r *Renderer) reattachDecorations() {
	for _, id := range slices.Sorted(maps.Keys(r.decorations.byID)) {
		d := r.decorations.byID[id]
		c, err := r.index.SplitAt(d.Line)
		if err != nil {
			r.decorations.remove(id)
			continue
		}
		if err := c.AddDecoration(id); err != nil {
			r.decorations.remove(id)
		}
	}
}
