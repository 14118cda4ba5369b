// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package viewport

import (
	"errors"
	"regexp"
	"testing"

	"github.com/framegrace/texeledit/buffer"
)

func TestPositionMapper_RoundTrip(t *testing.T) {
	f := newFixture(t, "abc\nde\nf", 0, 0, DefaultOptions())
	m := NewPositionMapper(f.r)

	p, err := m.ToRenderCoordinate(1, 1)
	if err != nil {
		t.Fatalf("ToRenderCoordinate: %v", err)
	}
	if p.IsPlaceholder() || !p.Chunk.Expanded() || !p.Chunk.IsSingleton() {
		t.Fatalf("expected line 1 materialized in its own chunk, got %+v", p)
	}
	if p.Span != 0 || p.Offset != 1 {
		t.Errorf("expected span 0 offset 1, got span %d offset %d", p.Span, p.Offset)
	}
	back, err := m.FromRenderCoordinate(p)
	if err != nil {
		t.Fatalf("FromRenderCoordinate: %v", err)
	}
	if back != (buffer.Position{Line: 1, Column: 1}) {
		t.Errorf("expected 1:1, got %s", back)
	}
	if err := f.r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestPositionMapper_Placeholder(t *testing.T) {
	f := newFixture(t, "abc\nde\nf", 0, 0, DefaultOptions())
	m := NewPositionMapper(f.r)

	p, err := m.PlaceholderCoordinate(1, 1)
	if err != nil {
		t.Fatalf("PlaceholderCoordinate: %v", err)
	}
	if !p.IsPlaceholder() || p.Offset != 5 || p.Chunk.Expanded() {
		t.Fatalf("expected placeholder offset 5 in a collapsed chunk, got %+v", p)
	}
	back, err := m.FromRenderCoordinate(p)
	if err != nil {
		t.Fatalf("FromRenderCoordinate: %v", err)
	}
	if back != (buffer.Position{Line: 1, Column: 1}) {
		t.Errorf("expected 1:1, got %s", back)
	}

	p.Offset = 9
	if _, err := m.FromRenderCoordinate(p); !errors.Is(err, buffer.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange past the chunk end, got %v", err)
	}
}

func TestPositionMapper_SpanBoundaries(t *testing.T) {
	f := newFixture(t, "abc", 0, 10, DefaultOptions())
	f.r.RepaintAll()
	f.r.HighlightRegex(regexp.MustCompile(`b`), "match")
	m := NewPositionMapper(f.r)

	tests := []struct {
		col, span, offset int
	}{
		{0, 0, 0},
		{1, 1, 0},
		{2, 2, 0},
		{3, 2, 1},
	}
	for _, tt := range tests {
		p, err := m.ToRenderCoordinate(0, tt.col)
		if err != nil {
			t.Fatalf("ToRenderCoordinate(0, %d): %v", tt.col, err)
		}
		if p.Span != tt.span || p.Offset != tt.offset {
			t.Errorf("col %d: expected span %d offset %d, got span %d offset %d", tt.col, tt.span, tt.offset, p.Span, p.Offset)
		}
		back, err := m.FromRenderCoordinate(p)
		if err != nil || back.Column != tt.col {
			t.Errorf("col %d: round trip gave %s (%v)", tt.col, back, err)
		}
	}
}

func TestPositionMapper_SnapsLeft(t *testing.T) {
	f := newFixture(t, "x😀y\nhello world", 0, 10, DefaultOptions())
	f.r.RepaintAll()
	m := NewPositionMapper(f.r)

	// Column 2 falls between the surrogates of the emoji.
	p, err := m.ToRenderCoordinate(0, 2)
	if err != nil {
		t.Fatalf("ToRenderCoordinate: %v", err)
	}
	if p.Offset != 1 {
		t.Errorf("expected offset inside surrogate pair to snap to 1, got %d", p.Offset)
	}

	f.r.MarkRange(buffer.TextRange{StartLine: 1, StartColumn: 6, EndLine: 1, EndColumn: 11})
	p, err = m.ToRenderCoordinate(1, 8)
	if err != nil {
		t.Fatalf("ToRenderCoordinate: %v", err)
	}
	back, _ := m.FromRenderCoordinate(p)
	if back.Column != 6 {
		t.Errorf("expected column inside the mark to snap to 6, got %d", back.Column)
	}
}

func TestPositionMapper_RejectsBadPositions(t *testing.T) {
	f := newFixture(t, "abc", 0, 10, DefaultOptions())
	m := NewPositionMapper(f.r)

	if _, err := m.ToRenderCoordinate(0, 4); !errors.Is(err, buffer.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange for column past the end, got %v", err)
	}
	if _, err := m.ToRenderCoordinate(3, 0); !errors.Is(err, buffer.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange for missing line, got %v", err)
	}
	if _, err := m.FromRenderCoordinate(RenderPosition{}); !errors.Is(err, buffer.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange for empty render position, got %v", err)
	}
}

func TestBuildSpans_EmptyLine(t *testing.T) {
	spans := buildSpans(nil, "", nil, nil)
	if len(spans) != 1 || spans[0].Length != 0 {
		t.Errorf("expected one empty span, got %+v", spans)
	}
}
