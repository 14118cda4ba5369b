// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: viewport/paint.go
// Summary: Budgeted highlighting of expanded rows.
//
// Architecture:
//
//	Painting replaces a row's plain span with token and overlay spans.
//	Every painted span costs one unit of credit. Visible rows are painted
//	first, in line order, until the credit runs out; the remaining lines
//	are merged into a sorted schedule and painted on a later tick with a
//	fresh credit. Rows above the first visible line are painted at the end
//	of a pass regardless of credit so they never stay plain for long.
//
//	While scrolling, a scheduled pass re-arms itself after RetryDelay
//	instead of painting. Rebuild starts a new paint operation, which
//	discards the schedule and any continuation captured by an older pass.

package viewport

import (
	"log"
	"slices"

	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/highlight"
)

// lineSpan is a half-open range of lines awaiting paint.
type lineSpan struct {
	from, to int
}

type deferredRow struct {
	row    *Row
	tokens []highlight.Token
}

// paintLines paints lines [from, to) of expanded chunks.
func (r *Renderer) paintLines(from, to int) {
	r.paintLineSpans([]lineSpan{{from, to}})
}

func (r *Renderer) paintLineSpans(spans []lineSpan) {
	firstVisible := r.LineNumberAtOffset(r.host.ScrollTop())
	var deferred []deferredRow
	for _, s := range spans {
		if len(r.scheduled) > 0 {
			r.schedulePaint(s.from, s.to)
			continue
		}
		r.paintSpan(s, firstVisible, &deferred)
	}
	for _, d := range deferred {
		r.paintRow(d.row, d.tokens)
	}
}

func (r *Renderer) paintSpan(s lineSpan, firstVisible int, deferred *[]deferredRow) {
	line := s.from
	for line < s.to {
		c, err := r.index.ChunkForLine(line)
		if err != nil {
			return
		}
		end := min(s.to, c.EndLine())
		rows, ok := r.rows[c]
		if !ok {
			line = end
			continue
		}
		tokens := r.tokensFor(line, end)
		for l := line; l < end; l++ {
			row := rows[l-c.StartLine()]
			if l < firstVisible {
				*deferred = append(*deferred, deferredRow{row, tokens[l-line]})
				continue
			}
			if r.budget.Exhausted() {
				r.schedulePaint(l, s.to)
				return
			}
			r.paintRow(row, tokens[l-line])
		}
		line = end
	}
}

// tokensFor highlights lines [from, to). A failing highlighter is logged
// and the lines are painted plain.
func (r *Renderer) tokensFor(from, to int) [][]highlight.Token {
	tokens, err := r.highlighter.HighlightLines(r.buf, from, to)
	if err != nil || len(tokens) != to-from {
		if err != nil {
			log.Printf("[RENDER] highlight lines [%d, %d): %v", from, to, err)
		}
		return make([][]highlight.Token, to-from)
	}
	return tokens
}

func (r *Renderer) paintRow(row *Row, tokens []highlight.Token) {
	if r.opts.MaxLineLength > 0 && buffer.UTF16Len(row.text) > r.opts.MaxLineLength {
		tokens = nil
	}
	row.spans = buildSpans(row.spans[:0], row.text, tokens, r.overlayRanges(row.Line(), row.text))
	row.painted = true
	r.budget.Spend(len(row.spans))
	if h := r.host.MeasureRow(row); h != row.height {
		row.height = h
		r.offsets.invalidate()
	}
	r.host.PaintRow(row)
}

// schedulePaint merges [from, to) into the sorted schedule and arms a
// paint pass for the next tick.
func (r *Renderer) schedulePaint(from, to int) {
	if from >= to {
		return
	}
	r.scheduled = mergeSpan(r.scheduled, lineSpan{from, to})
	if r.paintArmed {
		return
	}
	r.paintArmed = true
	op := r.paintOp.Current()
	r.sched.Post(func() { r.runScheduled(op) })
}

func mergeSpan(spans []lineSpan, s lineSpan) []lineSpan {
	i, _ := slices.BinarySearchFunc(spans, s, func(a, b lineSpan) int { return a.from - b.from })
	spans = slices.Insert(spans, i, s)
	out := spans[:1]
	for _, next := range spans[1:] {
		last := &out[len(out)-1]
		if next.from <= last.to {
			last.to = max(last.to, next.to)
			continue
		}
		out = append(out, next)
	}
	return out
}

func (r *Renderer) runScheduled(op uint64) {
	if !r.paintOp.Valid(op) {
		return
	}
	r.paintArmed = false
	if len(r.scheduled) == 0 {
		return
	}
	if r.Scrolling() || r.updates > 0 {
		r.paintArmed = true
		r.sched.After(r.opts.RetryDelay, func() { r.runScheduled(op) })
		return
	}
	spans := r.scheduled
	r.scheduled = nil
	r.budget.Restore()
	r.paintLineSpans(spans)
	r.budget.Adjust()
}

// PaintPending reports whether lines are waiting for a scheduled pass.
func (r *Renderer) PaintPending() bool { return len(r.scheduled) > 0 }

// Rebuild discards pending paint work and repaints every expanded row.
func (r *Renderer) Rebuild() {
	r.repaintRows(func(*Row) bool { return true })
}

// repaintRows starts a new paint operation covering the expanded rows
// selected by want.
func (r *Renderer) repaintRows(want func(*Row) bool) {
	r.paintOp.Begin()
	r.scheduled = nil
	r.paintArmed = false

	var spans []lineSpan
	for c, rows := range r.rows {
		for i, row := range rows {
			if !want(row) {
				continue
			}
			row.painted = false
			line := c.StartLine() + i
			if n := len(spans); n > 0 && spans[n-1].to == line {
				spans[n-1].to++
				continue
			}
			spans = append(spans, lineSpan{line, line + 1})
		}
	}
	if len(spans) == 0 {
		return
	}
	slices.SortFunc(spans, func(a, b lineSpan) int { return a.from - b.from })
	r.budget.Restore()
	r.paintLineSpans(spans)
	r.budget.Adjust()
}

// buildSpans cuts text at token and overlay boundaries. Adjacent pieces
// with identical styling are merged. An empty line yields one empty span.
func buildSpans(dst []Span, text string, tokens []highlight.Token, overlays []overlayRange) []Span {
	n := buffer.UTF16Len(text)
	if n == 0 {
		return append(dst, Span{})
	}
	cuts := []int{0, n}
	for _, t := range tokens {
		a, b := max(0, t.Offset), min(n, t.End())
		if a < b {
			cuts = append(cuts, a, b)
		}
	}
	for _, o := range overlays {
		a, b := max(0, o.from), min(n, o.to)
		if a < b {
			cuts = append(cuts, a, b)
		}
	}
	slices.Sort(cuts)
	cuts = slices.Compact(cuts)

	j := 0
	for i := 0; i+1 < len(cuts); i++ {
		a, b := cuts[i], cuts[i+1]
		for j < len(tokens) && tokens[j].End() <= a {
			j++
		}
		piece := Span{Column: a, Length: b - a}
		if j < len(tokens) && tokens[j].Offset <= a {
			piece.Class = tokens[j].Type
		}
		for _, o := range overlays {
			if o.from <= a && a < o.to {
				piece.Overlay = o.class
				piece.Atomic = o.atomic
			}
		}
		if piece.Atomic {
			piece.Class = ""
		}
		if k := len(dst); k > 0 {
			last := &dst[k-1]
			if last.Column+last.Length == a && last.Class == piece.Class &&
				last.Overlay == piece.Overlay && last.Atomic == piece.Atomic {
				last.Length += piece.Length
				continue
			}
		}
		dst = append(dst, piece)
	}
	for i := range dst {
		dst[i].Text = buffer.SliceUTF16(text, dst[i].Column, dst[i].Column+dst[i].Length)
	}
	return dst
}
