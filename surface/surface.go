// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: surface/surface.go
// Summary: Surface draws a viewport renderer onto a tcell screen.
//
// Architecture:
//
//	Surface implements viewport.Host. The renderer tells it which chunks
//	are materialized; Draw walks the visible offsets, draws materialized
//	rows span by span with chroma token styles, and draws collapsed lines
//	as dim placeholders straight from the buffer.
//
//	Offsets are screen rows. With wrapping enabled a row's height is the
//	number of screen rows its text occupies at the current width; the
//	same layout walk is used for measuring, drawing and cursor placement.

package surface

import (
	"fmt"
	"strconv"
	"unicode/utf16"

	"github.com/alecthomas/chroma/v2"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/chunks"
	"github.com/framegrace/texeledit/highlight"
	"github.com/framegrace/texeledit/viewport"
)

// Marker is implemented by decoration payloads that choose their gutter
// glyph.
type Marker interface {
	Marker() rune
}

// Options configures drawing.
type Options struct {
	Wrap     bool
	TabWidth int
	// StyleName is the chroma style used for token classes.
	StyleName string
}

type styleKey struct {
	class, overlay string
}

// Surface is a tcell-backed viewport host.
type Surface struct {
	screen tcell.Screen
	opts   Options
	style  *chroma.Style

	buf *buffer.LineBuffer
	r   *viewport.Renderer

	top      int
	expanded map[*chunks.Chunk]int
	dirty    bool

	base      tcell.Style
	gutter    tcell.Style
	dim       tcell.Style
	overlayBg tcell.Color
	styles    map[styleKey]tcell.Style

	cursor     buffer.Position
	showCursor bool
	status     string
}

// New creates a surface drawing on screen. The screen must be initialized.
func New(screen tcell.Screen, opts Options) *Surface {
	if opts.TabWidth <= 0 {
		opts.TabWidth = 4
	}
	s := &Surface{
		screen:   screen,
		opts:     opts,
		expanded: make(map[*chunks.Chunk]int),
	}
	s.SetStyle(opts.StyleName)
	return s
}

// Attach binds the renderer and buffer the surface draws.
func (s *Surface) Attach(r *viewport.Renderer, buf *buffer.LineBuffer) {
	s.r = r
	s.buf = buf
}

// SetStyle switches the chroma style. Unknown names fall back to the
// chroma default.
func (s *Surface) SetStyle(name string) {
	s.style = highlight.Style(name)
	bg := s.style.Get(chroma.Background)
	s.base = tcell.StyleDefault
	if bg.Colour.IsSet() {
		s.base = s.base.Foreground(toColor(bg.Colour))
	}
	if bg.Background.IsSet() {
		s.base = s.base.Background(toColor(bg.Background))
	}
	s.gutter = s.base.Dim(true)
	s.dim = s.base.Dim(true)
	s.overlayBg = tcell.NewRGBColor(90, 80, 30)
	if hl := s.style.Get(chroma.LineHighlight); hl.Background.IsSet() {
		s.overlayBg = toColor(hl.Background)
	}
	s.styles = make(map[styleKey]tcell.Style)
	s.dirty = true
}

func toColor(c chroma.Colour) tcell.Color {
	return tcell.NewRGBColor(int32(c.Red()), int32(c.Green()), int32(c.Blue()))
}

// ScrollTop implements viewport.Host.
func (s *Surface) ScrollTop() int { return s.top }

// ClientHeight implements viewport.Host. The bottom screen row is the
// status line.
func (s *Surface) ClientHeight() int {
	_, h := s.screen.Size()
	return max(0, h-1)
}

// ScrollTo implements viewport.Host. The offset is clamped to the
// document.
func (s *Surface) ScrollTo(offset int) {
	limit := 0
	if s.r != nil {
		limit = max(0, s.r.TotalHeight()-s.ClientHeight())
	}
	s.top = max(0, min(offset, limit))
	s.dirty = true
}

// ScrollBy moves the viewport by delta rows.
func (s *Surface) ScrollBy(delta int) { s.ScrollTo(s.top + delta) }

// MeasureRow implements viewport.Host.
func (s *Surface) MeasureRow(row *viewport.Row) int {
	if !s.opts.Wrap {
		return 1
	}
	rows := 1
	s.layout(row.Text(), func(_ rune, _ int, vrow, _ int) {
		rows = vrow + 1
	})
	return rows
}

// ExpandChunk implements viewport.Host.
func (s *Surface) ExpandChunk(c *chunks.Chunk, rows []*viewport.Row) {
	s.expanded[c] = len(rows)
	s.dirty = true
}

// CollapseChunk implements viewport.Host.
func (s *Surface) CollapseChunk(c *chunks.Chunk) {
	delete(s.expanded, c)
	s.dirty = true
}

// PaintRow implements viewport.Host.
func (s *Surface) PaintRow(*viewport.Row) { s.dirty = true }

// Dirty reports whether something changed since the last Draw.
func (s *Surface) Dirty() bool { return s.dirty }

// MaterializedChunks returns the number of chunks the renderer expanded.
func (s *Surface) MaterializedChunks() int { return len(s.expanded) }

// SetCursor places the cursor at p; visible hides or shows it.
func (s *Surface) SetCursor(p buffer.Position, visible bool) {
	if p == s.cursor && visible == s.showCursor {
		return
	}
	s.cursor = p
	s.showCursor = visible
	s.dirty = true
}

// SetStatus sets the status line text.
func (s *Surface) SetStatus(format string, args ...any) {
	if msg := fmt.Sprintf(format, args...); msg != s.status {
		s.status = msg
		s.dirty = true
	}
}

// Status returns the status line text.
func (s *Surface) Status() string { return s.status }

func (s *Surface) gutterWidth() int {
	n := 1
	if s.buf != nil {
		n = max(1, s.buf.LineCount())
	}
	return len(strconv.Itoa(n)) + 2
}

func (s *Surface) textWidth() int {
	w, _ := s.screen.Size()
	return max(1, w-s.gutterWidth())
}

// layout walks the visual cells of text. fn receives each rune with its
// visual column, wrapped row and cell width. Tabs are expanded to spaces.
func (s *Surface) layout(text string, fn func(r rune, col, vrow, width int)) {
	tw := s.textWidth()
	col, vrow := 0, 0
	for _, r := range text {
		width := runewidth.RuneWidth(r)
		if r == '\t' {
			width = s.opts.TabWidth - col%s.opts.TabWidth
		}
		if s.opts.Wrap && col > 0 && col+width > tw {
			col = 0
			vrow++
		}
		fn(r, col, vrow, width)
		col += width
	}
}

// Draw renders the visible part of the document.
func (s *Surface) Draw() {
	s.screen.Clear()
	w, h := s.screen.Size()
	s.screen.HideCursor()
	if s.r != nil && s.buf != nil {
		total := s.r.TotalHeight()
		for y := 0; y < s.ClientHeight(); y++ {
			off := s.top + y
			if off >= total {
				break
			}
			line := s.r.LineNumberAtOffset(off)
			lineTop, err := s.r.LineOffset(line)
			if err != nil {
				break
			}
			s.drawLine(y, line, off-lineTop, w)
		}
	}
	s.drawStatus(h-1, w)
	s.screen.Show()
	s.dirty = false
}

func (s *Surface) drawLine(y, line, sub, w int) {
	gw := s.gutterWidth()
	if sub == 0 {
		marker := ' '
		if ds := s.r.DecorationsForLine(line); len(ds) > 0 {
			marker = '●'
			if m, ok := ds[0].Payload.(Marker); ok {
				marker = m.Marker()
			}
		}
		s.screen.SetContent(0, y, marker, nil, s.base)
		num := strconv.Itoa(line + 1)
		s.putString(gw-1-len(num), y, num, s.gutter)
	}

	if row := s.r.RowForLine(line); row != nil {
		for _, sp := range row.Spans() {
			st := s.spanStyle(sp)
			s.drawText(y, sub, gw, w, sp.Text, sp.Column, row.Text(), st, line)
		}
		return
	}
	text, err := s.buf.Line(line)
	if err != nil {
		return
	}
	s.drawText(y, sub, gw, w, text, 0, text, s.dim, line)
}

// drawText draws the part of piece (starting at UTF-16 column startCol of
// full) that falls on wrapped row sub.
func (s *Surface) drawText(y, sub, gw, w int, piece string, startCol int, full string, st tcell.Style, line int) {
	from := startCol
	to := startCol + buffer.UTF16Len(piece)
	col16 := 0
	s.layout(full, func(r rune, col, vrow, width int) {
		defer func() {
			if r > 0xFFFF {
				col16 += 2
			} else {
				col16++
			}
		}()
		if col16 < from || col16 >= to || vrow != sub {
			return
		}
		x := gw + col
		if x >= w {
			return
		}
		if r == '\t' {
			for i := 0; i < width && x+i < w; i++ {
				s.screen.SetContent(x+i, y, ' ', nil, st)
			}
		} else {
			s.screen.SetContent(x, y, r, nil, st)
		}
		if s.showCursor && s.cursor.Line == line && s.cursor.Column == col16 {
			s.screen.ShowCursor(x, y)
		}
	})
	if s.showCursor && s.cursor.Line == line && s.cursor.Column == to && to == buffer.UTF16Len(full) {
		// Cursor at end of line.
		end := 0
		lastRow := 0
		s.layout(full, func(_ rune, col, vrow, width int) { end, lastRow = col+width, vrow })
		if lastRow == sub && gw+end < w {
			s.screen.ShowCursor(gw+end, y)
		}
	}
}

func (s *Surface) putString(x, y int, str string, st tcell.Style) {
	for _, r := range str {
		s.screen.SetContent(x, y, r, nil, st)
		x += runewidth.RuneWidth(r)
	}
}

func (s *Surface) drawStatus(y, w int) {
	if y < 0 {
		return
	}
	st := s.base.Reverse(true)
	for x := 0; x < w; x++ {
		s.screen.SetContent(x, y, ' ', nil, st)
	}
	s.putString(0, y, runewidth.Truncate(s.status, w, "…"), st)
}

func (s *Surface) spanStyle(sp viewport.Span) tcell.Style {
	key := styleKey{sp.Class, sp.Overlay}
	if st, ok := s.styles[key]; ok {
		return st
	}
	st := s.base
	if ts, ok := highlight.ResolveStyle(s.style, sp.Class); ok {
		if ts.Colour.IsSet() {
			st = st.Foreground(toColor(ts.Colour))
		}
		st = st.Bold(ts.Bold).Italic(ts.Italic).Underline(ts.Underline)
	}
	switch sp.Overlay {
	case "":
	case viewport.MarkClass:
		st = st.Reverse(true)
	default:
		st = st.Background(s.overlayBg)
	}
	s.styles[key] = st
	return st
}

// PositionAt maps a screen cell to a buffer position. Cells past the end of
// a line map to its end; the gutter maps to column 0.
func (s *Surface) PositionAt(x, y int) (buffer.Position, bool) {
	if s.r == nil || s.buf == nil || y < 0 || y >= s.ClientHeight() {
		return buffer.Position{}, false
	}
	off := s.top + y
	if off >= s.r.TotalHeight() {
		return buffer.Position{}, false
	}
	line := s.r.LineNumberAtOffset(off)
	lineTop, err := s.r.LineOffset(line)
	if err != nil {
		return buffer.Position{}, false
	}
	text, err := s.buf.Line(line)
	if err != nil {
		return buffer.Position{}, false
	}
	sub := off - lineTop
	want := x - s.gutterWidth()
	p := buffer.Position{Line: line}
	if want < 0 {
		return p, true
	}
	col16 := 0
	found := false
	s.layout(text, func(r rune, col, vrow, width int) {
		if found {
			return
		}
		if vrow > sub || (vrow == sub && want < col+width) {
			found = true
			return
		}
		col16 += utf16.RuneLen(r)
	})
	p.Column = col16
	return p, true
}
